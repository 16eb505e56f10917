package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"notesync/internal/events"
	"notesync/internal/note/model"
	"notesync/internal/note/repository"

	"github.com/google/uuid"
)

var ErrEmptyCardTitle = errors.New("card title cannot be empty")

// CardService manages the subjects of an item. A card's title is the
// subjectId of the notes opened from it.
type CardService struct {
	Repo  *repository.CardRepository
	Items *ItemService
	Bus   events.Bus
	Now   func() time.Time
}

func NewCardService(repo *repository.CardRepository, items *ItemService, bus events.Bus) *CardService {
	return &CardService{Repo: repo, Items: items, Bus: bus, Now: time.Now}
}

// List returns the cards of an item the caller owns.
func (s *CardService) List(ctx context.Context, parentID, userID string) ([]model.Card, error) {
	if _, err := s.Items.Get(ctx, parentID, userID); err != nil {
		return nil, err
	}
	return s.Repo.ListByParent(ctx, parentID, userID)
}

func (s *CardService) Create(ctx context.Context, userID string, req model.CreateCardRequest) (*model.Card, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, ErrEmptyCardTitle
	}
	if _, err := s.Items.Get(ctx, req.ParentID, userID); err != nil {
		return nil, err
	}

	card := model.Card{
		ID:          uuid.New().String(),
		ParentID:    req.ParentID,
		UserID:      userID,
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		CreatedAt:   s.Now().UTC(),
	}
	if err := s.Repo.Create(ctx, card); err != nil {
		return nil, err
	}
	publish(ctx, s.Bus, events.CardCreated, userID, card)
	return &card, nil
}

// Open records the click and returns the editor route for the card.
func (s *CardService) Open(ctx context.Context, cardID, userID string) (model.OpenCardResponse, error) {
	card, err := s.Repo.Touch(ctx, cardID, userID, s.Now().UTC())
	if err != nil {
		return model.OpenCardResponse{}, err
	}
	return model.OpenCardResponse{NoteID: card.ParentID, SubjectID: card.Title}, nil
}

func (s *CardService) Delete(ctx context.Context, cardID, userID string) error {
	parentID, err := s.Repo.Delete(ctx, cardID, userID)
	if err != nil {
		return err
	}
	publish(ctx, s.Bus, events.CardDeleted, userID, map[string]string{"id": cardID, "parent_id": parentID})
	return nil
}
