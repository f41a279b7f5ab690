package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"quiz-challenge/internal/domain"
)

// QuestionBank is the reference question service behind the HTTP contract.
type QuestionBank interface {
	Questions(ctx context.Context) ([]domain.Question, error)
	Score(ctx context.Context, answers []domain.Answer) (domain.ScoreResult, error)
}

// BankHandler exposes GET /questions/fetchAll and POST /questions/calculateScore.
type BankHandler struct {
	bank     QuestionBank
	bareList bool
}

// NewBankHandler builds the handler. With bareList set, fetchAll answers
// with a bare JSON array instead of the {"data": [...]} envelope.
func NewBankHandler(bank QuestionBank, bareList bool) *BankHandler {
	return &BankHandler{bank: bank, bareList: bareList}
}

// Routes returns the router for the reference service.
func (h *BankHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Route("/questions", func(r chi.Router) {
		r.Get("/fetchAll", h.FetchAll)
		r.Post("/calculateScore", h.CalculateScore)
	})
	return r
}

type dataEnvelope[T any] struct {
	Data T `json:"data"`
}

type scoreRequest struct {
	Answers []domain.Answer `json:"answers"`
}

func (h *BankHandler) FetchAll(w http.ResponseWriter, r *http.Request) {
	questions, err := h.bank.Questions(r.Context())
	if err != nil {
		slog.Error("fetch questions failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch questions")
		return
	}
	if h.bareList {
		writeJSON(w, http.StatusOK, questions)
		return
	}
	writeJSON(w, http.StatusOK, dataEnvelope[[]domain.Question]{Data: questions})
}

func (h *BankHandler) CalculateScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Answers) == 0 {
		writeError(w, http.StatusBadRequest, "answers are required")
		return
	}

	result, err := h.bank.Score(r.Context(), req.Answers)
	switch {
	case errors.Is(err, domain.ErrQuestionNotFound),
		errors.Is(err, domain.ErrOptionNotFound),
		errors.Is(err, domain.ErrDuplicateAnswer):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		slog.Error("calculate score failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to calculate score")
		return
	}
	writeJSON(w, http.StatusOK, dataEnvelope[domain.ScoreResult]{Data: result})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorPayload{Message: msg})
}
