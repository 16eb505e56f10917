package socket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"notesync/internal/autosave"
	"notesync/internal/identity"
	"notesync/internal/note/model"
	"notesync/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	sendBuffer   = 256
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
	flushTimeout = 5 * time.Second
)

// hydrateWait bounds how long a HYDRATE waits for room in the send buffer
// before the session is closed.
var hydrateWait = writeWait

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CheckOrigin allows us to connect from our Next.js dev server
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is one mounted editor view, or a list view subscribed to events
// only. List views have no engine.
type Client struct {
	Hub    *Hub
	Conn   *websocket.Conn
	UserID string
	Key    model.DocumentKey
	Send   chan []byte

	engine *autosave.Engine
	doc    *remoteDocument
}

func (c *Client) String() string {
	if c.engine == nil {
		return "event session of " + c.UserID
	}
	return "editor session " + c.Key.String()
}

// ServeWs opens an editor session for noteId/subjectId/option.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	key, err := identity.DeriveKey(r.Context(), hub.Identity, identity.ParseRoute(r.URL.Query()))
	if err != nil {
		var idErr *model.IdentityError
		if errors.As(err, &idErr) {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Sugar.Error(err)
		return
	}

	client := &Client{
		Hub:    hub,
		Conn:   conn,
		UserID: key.ActorID,
		Key:    key,
		Send:   make(chan []byte, sendBuffer),
	}
	client.doc = &remoteDocument{client: client}
	client.engine = autosave.New(key, hub.Store, autosave.Options{
		Debounce:     hub.Options.Debounce,
		WriteTimeout: hub.Options.WriteTimeout,
		Clock:        hub.Options.Clock,
		OnStatus:     client.sendStatus,
	})

	if !hub.register(client) {
		client.engine.Close()
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()

	client.engine.Ready(client.doc)
}

// ServeEvents opens a list-view session: the actor's item and card events,
// no document.
func ServeEvents(hub *Hub, w http.ResponseWriter, r *http.Request) {
	userID, err := hub.Identity.CurrentUser(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Sugar.Error(err)
		return
	}

	client := &Client{
		Hub:    hub,
		Conn:   conn,
		UserID: userID,
		Send:   make(chan []byte, sendBuffer),
	}
	if !hub.register(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// register hands the client to Run. It reports false once the hub has shut
// down.
func (h *Hub) register(c *Client) bool {
	select {
	case h.Register <- c:
		return true
	case <-h.done:
		return false
	}
}

// unregister is a no-op once the hub has shut down; shutdown already closed
// the session.
func (h *Hub) unregister(c *Client) {
	select {
	case h.Unregister <- c:
	case <-h.done:
	}
}

// stopEngine flushes pending content when configured, then stops the engine
// and waits for writes already in flight. Safe to call more than once.
func (c *Client) stopEngine() {
	if c.engine == nil {
		return
	}
	if c.Hub.Options.FlushOnClose {
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		if err := c.engine.Flush(ctx); err != nil && !errors.Is(err, autosave.ErrClosed) {
			logger.Sugar.Warnf("Flush on close failed for %s: %v", c.Key, err)
		}
		cancel()
	}
	c.engine.Close()
	c.engine.Wait()
}

func (c *Client) readPump() {
	defer func() {
		// The engine must be stopped before Unregister closes Send.
		c.stopEngine()
		c.Hub.unregister(c)
		c.Conn.Close()
	}()

	for {
		_, rawMessage, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Sugar.Errorf("error: %v", err)
			}
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(rawMessage, &msg); err != nil {
			logger.Sugar.Errorf("Error unmarshalling message: %v", err)
			continue
		}

		switch msg.Type {
		case ChangeType:
			if c.doc == nil {
				logger.Sugar.Debugf("Ignoring CHANGE on event session of %s", c.UserID)
				continue
			}
			var content string
			if err := json.Unmarshal(msg.Payload, &content); err != nil {
				logger.Sugar.Warnf("Ignoring CHANGE with non-string payload from %s: %v", c.UserID, err)
				continue
			}
			c.doc.receive(content)
		default:
			logger.Sugar.Debugf("Ignoring %s message from %s", msg.Type, c.UserID)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return // Connection is dead
			}
		}
	}
}

// sendStatus runs on the engine loop and never blocks it.
func (c *Client) sendStatus(s autosave.Status) {
	p := StatusPayload{
		State:    s.State.String(),
		Hydrated: s.Hydrated,
		Writes:   s.Writes,
		RecordID: s.RecordID,
	}
	if s.LastErr != nil {
		p.Error = s.LastErr.Error()
	}
	c.sendJSON(StatusType, p)
}

func (c *Client) sendJSON(msgType string, v interface{}) {
	msg, err := c.encode(msgType, v)
	if err != nil {
		return
	}
	select {
	case c.Send <- msg:
	default:
		logger.Sugar.Warnf("Client %s's send buffer is full, dropping %s.", c.UserID, msgType)
	}
}

// sendHydrate must not drop: the engine has already moved its baseline to
// content. If the buffer stays full the session is closed, and the editor
// reconnects and hydrates again.
func (c *Client) sendHydrate(content string) {
	msg, err := c.encode(HydrateType, content)
	if err != nil {
		c.Conn.Close()
		return
	}
	timer := time.NewTimer(hydrateWait)
	defer timer.Stop()
	select {
	case c.Send <- msg:
	case <-timer.C:
		logger.Sugar.Errorf("Client %s's send buffer stayed full, closing session %s.", c.UserID, c.Key)
		c.Conn.Close()
	}
}

func (c *Client) encode(msgType string, v interface{}) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		logger.Sugar.Errorf("Error marshalling %s payload: %v", msgType, err)
		return nil, err
	}
	msg, err := json.Marshal(WSMessage{Type: msgType, UserID: c.UserID, Payload: payload})
	if err != nil {
		logger.Sugar.Errorf("Error marshalling %s message: %v", msgType, err)
		return nil, err
	}
	return msg, nil
}
