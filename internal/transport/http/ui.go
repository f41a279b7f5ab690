package http

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed web
var webFiles embed.FS

// NewUIMux wires the browser surface: the page, its websocket and health.
// metrics may be nil.
func NewUIMux(ws *WSHandler, metrics http.Handler) *http.ServeMux {
	static, err := fs.Sub(webFiles, "web")
	if err != nil {
		panic(err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", ws.ServeWS)
	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}
	mux.Handle("/", http.FileServer(http.FS(static)))
	return mux
}
