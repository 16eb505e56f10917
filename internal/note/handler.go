package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"notesync/internal/identity"
	"notesync/internal/note/model"
	"notesync/internal/note/service"
	"notesync/pkg/logger"
)

type NoteHandler struct {
	Notes    *service.NoteService
	Items    *service.ItemService
	Cards    *service.CardService
	Identity identity.Provider
}

func NewNoteHandler(notes *service.NoteService, items *service.ItemService, cards *service.CardService) *NoteHandler {
	return &NoteHandler{Notes: notes, Items: items, Cards: cards, Identity: identity.ContextProvider{}}
}

// GetContent hydrates one editor view: ?noteId&subjectId&option.
func (h *NoteHandler) GetContent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	key, err := identity.DeriveKey(r.Context(), h.Identity, identity.ParseRoute(r.URL.Query()))
	if err != nil {
		writeError(w, err)
		return
	}

	content, err := h.Notes.Load(r.Context(), key)
	if err != nil {
		var hydErr *model.HydrationError
		if errors.As(err, &hydErr) {
			// The editor still opens; it just starts from an empty document.
			logger.Sugar.Warnf("Handler: Hydration of %s failed, serving empty content: %v", key, err)
			content = model.EmptyContent
		} else {
			logger.Sugar.Errorf("Handler: Failed to load note %s: %v", key, err)
			writeError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, model.ContentResponse{Content: content})
}

// SaveNote upserts content outside the autosave pipeline.
func (h *NoteHandler) SaveNote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.SaveNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	key, err := identity.DeriveKey(r.Context(), h.Identity, model.RouteContext{
		NoteID:    req.NoteID,
		SubjectID: req.SubjectID,
		Variant:   req.Variant,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	recordID, err := h.Notes.Upsert(r.Context(), key, req.Content)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to save note %s: %v", key, err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.SaveNoteResponse{RecordID: recordID})
}

func (h *NoteHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, err := h.Identity.CurrentUser(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	var req model.CreateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	item, err := h.Items.Create(r.Context(), userID, req)
	if err != nil {
		if errors.Is(err, service.ErrTitleTooShort) || errors.Is(err, service.ErrTooManySubjects) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Sugar.Errorf("Handler: Failed to create item: %v", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, model.CreateItemResponse{ItemID: item.ID})
}

func (h *NoteHandler) GetItems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, err := h.Identity.CurrentUser(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	items, err := h.Items.Recent(r.Context(), userID)
	if err != nil {
		logger.Sugar.Errorf("Error fetching items: %v", err)
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, items)
}

func (h *NoteHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	itemID := r.URL.Query().Get("itemId")
	if itemID == "" {
		http.Error(w, "Missing itemId parameter", http.StatusBadRequest)
		return
	}

	userID, err := h.Identity.CurrentUser(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	item, err := h.Items.Get(r.Context(), itemID, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, item)
}

func (h *NoteHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	itemID := r.URL.Query().Get("itemId")
	if itemID == "" {
		http.Error(w, "Missing itemId parameter", http.StatusBadRequest)
		return
	}

	userID, err := h.Identity.CurrentUser(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.Items.Delete(r.Context(), itemID, userID); err != nil {
		logger.Sugar.Errorf("Handler: Failed to delete item %s: %v", itemID, err)
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Item deleted successfully"))
}

func (h *NoteHandler) GetCards(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	parentID := r.URL.Query().Get("parentId")
	if parentID == "" {
		http.Error(w, "Missing parentId parameter", http.StatusBadRequest)
		return
	}

	userID, err := h.Identity.CurrentUser(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	cards, err := h.Cards.List(r.Context(), parentID, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, cards)
}

func (h *NoteHandler) CreateCard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, err := h.Identity.CurrentUser(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	var req model.CreateCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ParentID == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	card, err := h.Cards.Create(r.Context(), userID, req)
	if err != nil {
		if errors.Is(err, service.ErrEmptyCardTitle) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Sugar.Errorf("Handler: Failed to create card: %v", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, card)
}

// OpenCard stamps the card as clicked and answers with the editor route it
// leads to.
func (h *NoteHandler) OpenCard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cardID := r.URL.Query().Get("cardId")
	if cardID == "" {
		http.Error(w, "Missing cardId parameter", http.StatusBadRequest)
		return
	}

	userID, err := h.Identity.CurrentUser(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	route, err := h.Cards.Open(r.Context(), cardID, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, route)
}

func (h *NoteHandler) DeleteCard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cardID := r.URL.Query().Get("cardId")
	if cardID == "" {
		http.Error(w, "Missing cardId parameter", http.StatusBadRequest)
		return
	}

	userID, err := h.Identity.CurrentUser(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.Cards.Delete(r.Context(), cardID, userID); err != nil {
		logger.Sugar.Errorf("Handler: Failed to delete card %s: %v", cardID, err)
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Card deleted successfully"))
}

// writeError maps domain errors to status codes.
func writeError(w http.ResponseWriter, err error) {
	var dupErr *model.DuplicateKeyError
	switch {
	case errors.Is(err, model.ErrUnauthenticated):
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	case errors.Is(err, identity.ErrIncompleteRoute):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &dupErr):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, model.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, model.ErrForbidden):
		http.Error(w, "Forbidden", http.StatusForbidden)
	default:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
