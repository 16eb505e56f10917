package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"notesync/internal/note/model"
	"notesync/pkg/logger"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// ErrConflict reports an insert that lost a race against another writer on
// the same key.
var ErrConflict = errors.New("record already exists for key")

type NoteRepository struct {
	DB *sql.DB
}

func NewNoteRepository(db *sql.DB) *NoteRepository {
	return &NoteRepository{DB: db}
}

// FindByKey matches all four key columns exactly. It returns model.ErrNotFound
// for no rows and a *model.DuplicateKeyError for more than one.
func (r *NoteRepository) FindByKey(ctx context.Context, key model.DocumentKey) (*model.DocumentRecord, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, content, created_at, last_edited_at FROM notes
		WHERE user_id = $1 AND note_id = $2 AND subject_id = $3 AND variant = $4
		LIMIT 2`,
		key.ActorID, key.NoteID, key.SubjectID, key.Variant)
	if err != nil {
		logger.Sugar.Errorf("Failed to query note %s: %v", key, err)
		return nil, err
	}
	defer rows.Close()

	var found []model.DocumentRecord
	for rows.Next() {
		rec := model.DocumentRecord{Key: key}
		if err := rows.Scan(&rec.ID, &rec.Content, &rec.CreatedAt, &rec.LastEditedAt); err != nil {
			logger.Sugar.Errorf("Failed to scan note %s: %v", key, err)
			return nil, err
		}
		found = append(found, rec)
	}
	if err := rows.Err(); err != nil {
		logger.Sugar.Errorf("Failed to read note %s: %v", key, err)
		return nil, err
	}

	switch len(found) {
	case 0:
		return nil, model.ErrNotFound
	case 1:
		return &found[0], nil
	default:
		logger.Sugar.Errorf("Store consistency violation: %d records for note %s", len(found), key)
		return nil, &model.DuplicateKeyError{Key: key, Count: len(found)}
	}
}

func (r *NoteRepository) Insert(ctx context.Context, rec model.DocumentRecord) (string, error) {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO notes (id, user_id, note_id, subject_id, variant, content, created_at, last_edited_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.Key.ActorID, rec.Key.NoteID, rec.Key.SubjectID, rec.Key.Variant,
		rec.Content, rec.CreatedAt, rec.LastEditedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			logger.Sugar.Errorf("Concurrent insert for note %s: %v", rec.Key, err)
			return "", fmt.Errorf("%w: %v", ErrConflict, err)
		}
		logger.Sugar.Errorf("Failed to insert note %s: %v", rec.Key, err)
		return "", err
	}
	return rec.ID, nil
}

// Update rewrites content and last_edited_at in place; id and created_at are
// never touched.
func (r *NoteRepository) Update(ctx context.Context, recordID, content string, editedAt time.Time) error {
	result, err := r.DB.ExecContext(ctx, `UPDATE notes SET content = $1, last_edited_at = $2 WHERE id = $3`,
		content, editedAt, recordID)
	if err != nil {
		logger.Sugar.Errorf("Failed to update note %s: %v", recordID, err)
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}
