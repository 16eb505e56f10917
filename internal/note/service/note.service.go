package service

import (
	"context"
	"errors"
	"time"

	"notesync/internal/note/model"
	"notesync/internal/note/repository"

	"github.com/google/uuid"
)

// NoteService is the hydration loader and the upsert store adapter for
// editor content.
type NoteService struct {
	Repo *repository.NoteRepository
	Now  func() time.Time
}

func NewNoteService(repo *repository.NoteRepository) *NoteService {
	return &NoteService{Repo: repo, Now: time.Now}
}

// Load returns the stored content for key, or model.EmptyContent when the
// key has never been written.
func (s *NoteService) Load(ctx context.Context, key model.DocumentKey) (string, error) {
	rec, err := s.Repo.FindByKey(ctx, key)
	if errors.Is(err, model.ErrNotFound) {
		return model.EmptyContent, nil
	}
	var dupErr *model.DuplicateKeyError
	if errors.As(err, &dupErr) {
		return "", err
	}
	if err != nil {
		return "", &model.HydrationError{Key: key, Err: err}
	}
	if rec.Content == "" {
		return model.EmptyContent, nil
	}
	return rec.Content, nil
}

// Upsert creates the record for key or rewrites its content in place. The
// lookup and the write are separate statements, so two writers racing on one
// key can collide; the loser gets a WriteError.
func (s *NoteService) Upsert(ctx context.Context, key model.DocumentKey, content string) (string, error) {
	now := s.Now().UTC()

	rec, err := s.Repo.FindByKey(ctx, key)
	switch {
	case err == nil:
		if err := s.Repo.Update(ctx, rec.ID, content, now); err != nil {
			return "", &model.WriteError{Key: key, Err: err}
		}
		return rec.ID, nil

	case errors.Is(err, model.ErrNotFound):
		id, err := s.Repo.Insert(ctx, model.DocumentRecord{
			ID:           uuid.New().String(),
			Key:          key,
			Content:      content,
			CreatedAt:    now,
			LastEditedAt: now,
		})
		if err != nil {
			return "", &model.WriteError{Key: key, Err: err}
		}
		return id, nil
	}

	var dupErr *model.DuplicateKeyError
	if errors.As(err, &dupErr) {
		return "", err
	}
	return "", &model.WriteError{Key: key, Err: err}
}
