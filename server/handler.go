package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/mfadel/go-collab-engine/store"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// NewHandler creates the HTTP handler with all routes.
func NewHandler(hub *Hub, st store.DocumentStore, log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	// Serve static files.
	mux.Handle("/", http.FileServer(http.Dir("static")))

	mux.HandleFunc("GET /api/documents", func(w http.ResponseWriter, r *http.Request) {
		docs, err := st.List(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, docs)
	})

	// Live snapshot when a session exists, stored state otherwise.
	mux.HandleFunc("GET /api/documents/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if s := hub.Manager().GetSession(id); s != nil {
			writeJSON(w, s.Document().Snapshot())
			return
		}
		info, err := st.Get(r.Context(), id)
		if err != nil {
			http.Error(w, "document not found", http.StatusNotFound)
			return
		}
		writeJSON(w, info)
	})

	mux.HandleFunc("GET /api/documents/{id}/session", func(w http.ResponseWriter, r *http.Request) {
		s := hub.Manager().GetSession(r.PathValue("id"))
		if s == nil {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		writeJSON(w, s.Info())
	})

	// WebSocket endpoint.
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}
		client := newClient(hub, conn, log)
		go client.WritePump()
		go client.ReadPump()
	})

	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
