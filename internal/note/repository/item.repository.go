package repository

import (
	"context"
	"database/sql"

	"notesync/internal/note/model"
	"notesync/pkg/logger"

	"github.com/lib/pq"
)

type ItemRepository struct {
	DB *sql.DB
}

func NewItemRepository(db *sql.DB) *ItemRepository {
	return &ItemRepository{DB: db}
}

func (r *ItemRepository) Create(ctx context.Context, item model.Item) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO items (id, user_id, title, description, subjects, date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		item.ID, item.UserID, item.Title, nullString(item.Description), pq.Array(item.Subjects), item.Date, item.CreatedAt)
	if err != nil {
		logger.Sugar.Errorf("Failed to create item for user %s: %v", item.UserID, err)
	}
	return err
}

func (r *ItemRepository) Recent(ctx context.Context, userID string, limit int) ([]model.Item, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, user_id, title, description, subjects, date, created_at FROM items
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		logger.Sugar.Errorf("Failed to get items for user %s: %v", userID, err)
		return nil, err
	}
	defer rows.Close()

	items := []model.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			logger.Sugar.Errorf("Failed to scan item for user %s: %v", userID, err)
			continue
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *ItemRepository) Get(ctx context.Context, itemID string) (*model.Item, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT id, user_id, title, description, subjects, date, created_at FROM items WHERE id = $1`, itemID)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, model.ErrNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to get item %s: %v", itemID, err)
		return nil, err
	}
	return &item, nil
}

// Delete removes the item only when it belongs to userID.
func (r *ItemRepository) Delete(ctx context.Context, itemID, userID string) error {
	result, err := r.DB.ExecContext(ctx, "DELETE FROM items WHERE id = $1 AND user_id = $2", itemID, userID)
	if err != nil {
		logger.Sugar.Errorf("Failed to delete item %s: %v", itemID, err)
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

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(s scanner) (model.Item, error) {
	var item model.Item
	var description sql.NullString
	var subjects pq.StringArray
	if err := s.Scan(&item.ID, &item.UserID, &item.Title, &description, &subjects, &item.Date, &item.CreatedAt); err != nil {
		return model.Item{}, err
	}
	item.Description = description.String
	item.Subjects = []string(subjects)
	if item.Subjects == nil {
		item.Subjects = []string{}
	}
	return item, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
