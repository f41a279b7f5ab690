package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"quiz-challenge/internal/app"
	"quiz-challenge/internal/domain"
)

// WSHandler serves one quiz session per websocket connection.
type WSHandler struct {
	service  app.QuestionService
	upgrader websocket.Upgrader
}

func NewWSHandler(service app.QuestionService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectPayload struct {
	QuestionID string `json:"questionId"`
	Option     string `json:"option"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and drives a fresh session from the client's
// select/submit/retake/reload messages, pushing a state snapshot after every
// transition.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	id := uuid.NewString()
	log := slog.With("session", id)

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})

	push := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-closeSignals:
		}
	}

	var session *app.Session
	session = app.NewSession(h.service,
		app.WithID(id),
		app.WithOnChange(func() {
			push(outboundMessage[any]{Type: "state", Payload: session.Snapshot()})
		}),
	)

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Warn("ws write error", "error", err)
				return
			}
		}
	}()

	// Network calls run off the read loop so selections keep flowing while
	// a fetch or submit is outstanding.
	var ops sync.WaitGroup
	run := func(name string, op func(context.Context) error) {
		ops.Add(1)
		go func() {
			defer ops.Done()
			if err := op(ctx); err != nil && !expected(err) {
				log.Warn("quiz operation failed", "op", name, "error", err)
			}
		}()
	}

	log.Info("quiz session opened")
	push(outboundMessage[any]{Type: "state", Payload: session.Snapshot()})
	run("load", session.Load)

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "select":
			var payload selectPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				push(errorMessage("invalid select payload"))
				continue
			}
			if err := session.Select(payload.QuestionID, payload.Option); err != nil {
				push(errorMessage(err.Error()))
			}
		case "submit":
			run("submit", session.Submit)
		case "retake":
			run("retake", session.Retake)
		case "reload":
			run("load", session.Load)
		default:
			push(errorMessage("unsupported message type"))
		}
	}

	close(closeSignals)
	cancel()
	ops.Wait()
	close(send)
	<-writerDone
	log.Info("quiz session closed")
}

func errorMessage(msg string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}}
}

// expected reports errors already surfaced to the user through the session
// state, or benign races between user actions.
func expected(err error) bool {
	return errors.Is(err, domain.ErrLoad) ||
		errors.Is(err, domain.ErrSubmit) ||
		errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, app.ErrBusy) ||
		errors.Is(err, app.ErrStale) ||
		errors.Is(err, app.ErrNotReady) ||
		errors.Is(err, app.ErrCompleted)
}
