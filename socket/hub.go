package socket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"notesync/internal/autosave"
	"notesync/internal/events"
	"notesync/internal/identity"
	"notesync/pkg/logger"
)

const (
	HydrateType     = "HYDRATE"      // Stored content for the editor to display
	ChangeType      = "CHANGE"       // Editor content after a user edit
	StatusType      = "STATUS"       // Autosave state for the save indicator
	ItemCreatedType = "ITEM_CREATED" // A dashboard item was created
	ItemDeletedType = "ITEM_DELETED" // A dashboard item was removed
	CardCreatedType = "CARD_CREATED" // A subject card was added to an item
	CardDeletedType = "CARD_DELETED" // A subject card was removed
)

type WSMessage struct {
	Type    string          `json:"type"`
	UserID  string          `json:"user_id,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

type StatusPayload struct {
	State    string `json:"state"`
	Hydrated bool   `json:"hydrated"`
	Writes   int    `json:"writes"`
	RecordID string `json:"record_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Options configure the autosave engine of every editor session.
type Options struct {
	Debounce     time.Duration
	WriteTimeout time.Duration
	FlushOnClose bool
	Clock        autosave.Clock
}

// Hub tracks the open sessions of each actor (editors and list views) and
// forwards bus events to them.
type Hub struct {
	Clients    map[string]map[*Client]bool // actorID -> sessions
	Register   chan *Client
	Unregister chan *Client
	done       chan struct{}

	Store    autosave.Store
	Bus      events.Bus
	Identity identity.Provider
	Options  Options
}

func NewHub(store autosave.Store, bus events.Bus, opts Options) *Hub {
	return &Hub{
		Clients:    make(map[string]map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		done:       make(chan struct{}),
		Store:      store,
		Bus:        bus,
		Identity:   identity.ContextProvider{},
		Options:    opts,
	}
}

// Done is closed once Run has torn down every session and returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Run owns the session map until ctx is done, then closes every session.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	var busEvents <-chan events.Event
	if h.Bus != nil {
		busEvents = h.Bus.Subscribe(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.Register:
			if h.Clients[client.UserID] == nil {
				h.Clients[client.UserID] = make(map[*Client]bool)
			}
			h.Clients[client.UserID][client] = true
			logger.Sugar.Infof("Opened %s", client)

		case client := <-h.Unregister:
			if _, ok := h.Clients[client.UserID][client]; ok {
				delete(h.Clients[client.UserID], client)
				close(client.Send)
				if len(h.Clients[client.UserID]) == 0 {
					delete(h.Clients, client.UserID)
				}
				logger.Sugar.Infof("Closed %s", client)
			}

		case ev, ok := <-busEvents:
			if !ok {
				busEvents = nil
				continue
			}
			h.forward(ev)
		}
	}
}

func (h *Hub) forward(ev events.Event) {
	var msgType string
	switch ev.Type {
	case events.ItemCreated:
		msgType = ItemCreatedType
	case events.ItemDeleted:
		msgType = ItemDeletedType
	case events.CardCreated:
		msgType = CardCreatedType
	case events.CardDeleted:
		msgType = CardDeletedType
	default:
		return
	}

	payload, err := json.Marshal(WSMessage{Type: msgType, UserID: ev.ActorID, Payload: ev.Payload})
	if err != nil {
		logger.Sugar.Errorf("Error marshalling %s message: %v", msgType, err)
		return
	}
	for client := range h.Clients[ev.ActorID] {
		select {
		case client.Send <- payload:
		default:
			logger.Sugar.Warnf("Client %s's send buffer was full during %s.", client.UserID, msgType)
		}
	}
}

// shutdown stops every session's engine, flushing first when configured, and
// closes the connections. Sessions are torn down concurrently so one slow
// store write does not hold up the rest.
func (h *Hub) shutdown() {
	var wg sync.WaitGroup
	for _, sessions := range h.Clients {
		for client := range sessions {
			wg.Add(1)
			go func(c *Client) {
				defer wg.Done()
				c.stopEngine()
				close(c.Send)
				c.Conn.Close()
			}(client)
		}
	}
	wg.Wait()
	h.Clients = make(map[string]map[*Client]bool)
	logger.Sugar.Info("Closed all sessions")
}
