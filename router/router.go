package router

import (
	"database/sql"
	"net/http"

	noteHandler "notesync/internal/note"
	"notesync/internal/note/service"
	"notesync/middleware"
	"notesync/socket"
)

func Setup(db *sql.DB, hub *socket.Hub, notes *service.NoteService, items *service.ItemService, cards *service.CardService, jwtSecret []byte) http.Handler {
	mux := http.NewServeMux()
	auth := middleware.AuthMiddleware(jwtSecret)

	// WebSocket
	wsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		socket.ServeWs(hub, w, r)
	})
	mux.Handle("/ws", auth(wsHandler))
	mux.Handle("/ws/events", auth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		socket.ServeEvents(hub, w, r)
	})))

	// REST API
	h := noteHandler.NewNoteHandler(notes, items, cards)

	mux.Handle("/api/notes/content", auth(http.HandlerFunc(h.GetContent)))
	mux.Handle("/api/notes/save", auth(http.HandlerFunc(h.SaveNote)))
	mux.Handle("/api/items/create", auth(http.HandlerFunc(h.CreateItem)))
	mux.Handle("/api/items", auth(http.HandlerFunc(h.GetItems)))
	mux.Handle("/api/items/get", auth(http.HandlerFunc(h.GetItem)))
	mux.Handle("/api/items/delete", auth(http.HandlerFunc(h.DeleteItem)))
	mux.Handle("/api/cards", auth(http.HandlerFunc(h.GetCards)))
	mux.Handle("/api/cards/create", auth(http.HandlerFunc(h.CreateCard)))
	mux.Handle("/api/cards/open", auth(http.HandlerFunc(h.OpenCard)))
	mux.Handle("/api/cards/delete", auth(http.HandlerFunc(h.DeleteCard)))

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return middleware.CORSMiddleware(mux)
}
