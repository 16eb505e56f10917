package model

import (
	"fmt"
	"time"
)

const (
	// DefaultVariant is used when the route does not name one.
	DefaultVariant = "main"
	// EmptyContent is the baseline for a key that has never been written.
	EmptyContent = "<p></p>"
)

// RouteContext is the read-only routing state of an editor view.
type RouteContext struct {
	NoteID    string
	SubjectID string
	Variant   string
}

// DocumentKey identifies one editable document. At most one DocumentRecord
// exists per key.
type DocumentKey struct {
	ActorID   string `json:"actor_id"`
	NoteID    string `json:"note_id"`
	SubjectID string `json:"subject_id"`
	Variant   string `json:"variant"`
}

func (k DocumentKey) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", k.ActorID, k.NoteID, k.SubjectID, k.Variant)
}

type DocumentRecord struct {
	ID           string      `json:"id"`
	Key          DocumentKey `json:"key"`
	Content      string      `json:"content"`
	CreatedAt    time.Time   `json:"created_at"`
	LastEditedAt time.Time   `json:"last_edited_at"`
}

type ContentResponse struct {
	Content string `json:"content"`
}

type SaveNoteRequest struct {
	NoteID    string `json:"note_id"`
	SubjectID string `json:"subject_id"`
	Variant   string `json:"option"`
	Content   string `json:"content"`
}

type SaveNoteResponse struct {
	RecordID string `json:"record_id"`
}

// Item is a topic on the dashboard; notes hang off it by note id.
type Item struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Subjects    []string  `json:"subjects"`
	Date        time.Time `json:"date"`
	CreatedAt   time.Time `json:"created_at"`
}

type CreateItemRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Subjects    []string  `json:"subjects"`
	Date        time.Time `json:"date"`
}

type CreateItemResponse struct {
	ItemID string `json:"item_id"`
}

// Card is one subject of an item. Opening it routes the editor to
// noteId = ParentID, subjectId = Title.
type Card struct {
	ID            string     `json:"id"`
	ParentID      string     `json:"parent_id"`
	UserID        string     `json:"user_id"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	LastClickedAt *time.Time `json:"last_clicked_at"`
	CreatedAt     time.Time  `json:"created_at"`
}

type CreateCardRequest struct {
	ParentID    string `json:"parent_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// OpenCardResponse is the editor route a card leads to.
type OpenCardResponse struct {
	NoteID    string `json:"note_id"`
	SubjectID string `json:"subject_id"`
}
