package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"notesync/internal/events"
	"notesync/internal/note/model"
	"notesync/internal/note/repository"
	"notesync/pkg/logger"

	"github.com/google/uuid"
)

const (
	RecentItemsLimit = 6
	MaxSubjects      = 10
	minTitleLength   = 2
)

var (
	ErrTitleTooShort   = errors.New("title must be at least 2 characters")
	ErrTooManySubjects = errors.New("maximum 10 subjects allowed")
)

type ItemService struct {
	Repo *repository.ItemRepository
	Bus  events.Bus
	Now  func() time.Time
}

func NewItemService(repo *repository.ItemRepository, bus events.Bus) *ItemService {
	return &ItemService{Repo: repo, Bus: bus, Now: time.Now}
}

// Create stores a new item and notifies the owner's list views.
func (s *ItemService) Create(ctx context.Context, userID string, req model.CreateItemRequest) (*model.Item, error) {
	title := strings.TrimSpace(req.Title)
	if len([]rune(title)) < minTitleLength {
		return nil, ErrTitleTooShort
	}
	if len(req.Subjects) > MaxSubjects {
		return nil, ErrTooManySubjects
	}

	now := s.Now().UTC()
	item := model.Item{
		ID:          uuid.New().String(),
		UserID:      userID,
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Subjects:    dedupe(req.Subjects),
		Date:        req.Date,
		CreatedAt:   now,
	}
	if item.Date.IsZero() {
		item.Date = now
	}

	if err := s.Repo.Create(ctx, item); err != nil {
		return nil, err
	}
	publish(ctx, s.Bus, events.ItemCreated, userID, item)
	return &item, nil
}

func (s *ItemService) Recent(ctx context.Context, userID string) ([]model.Item, error) {
	return s.Repo.Recent(ctx, userID, RecentItemsLimit)
}

// Get returns the item only to its owner.
func (s *ItemService) Get(ctx context.Context, itemID, userID string) (*model.Item, error) {
	item, err := s.Repo.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.UserID != userID {
		return nil, model.ErrForbidden
	}
	return item, nil
}

func (s *ItemService) Delete(ctx context.Context, itemID, userID string) error {
	if err := s.Repo.Delete(ctx, itemID, userID); err != nil {
		return err
	}
	publish(ctx, s.Bus, events.ItemDeleted, userID, map[string]string{"id": itemID})
	return nil
}

// publish is best effort: the write already succeeded and a missed
// notification only delays a list refresh.
func publish(ctx context.Context, bus events.Bus, typ, userID string, payload interface{}) {
	if bus == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Sugar.Errorf("Error marshalling %s payload: %v", typ, err)
		return
	}
	if err := bus.Publish(ctx, events.Event{Type: typ, ActorID: userID, Payload: data}); err != nil {
		logger.Sugar.Warnf("Failed to publish %s for %s: %v", typ, userID, err)
	}
}

func dedupe(subjects []string) []string {
	out := make([]string, 0, len(subjects))
	seen := make(map[string]bool, len(subjects))
	for _, s := range subjects {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
