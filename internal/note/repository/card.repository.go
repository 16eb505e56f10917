package repository

import (
	"context"
	"database/sql"
	"time"

	"notesync/internal/note/model"
	"notesync/pkg/logger"
)

type CardRepository struct {
	DB *sql.DB
}

func NewCardRepository(db *sql.DB) *CardRepository {
	return &CardRepository{DB: db}
}

// ListByParent returns the actor's cards of one item, most recently opened
// first.
func (r *CardRepository) ListByParent(ctx context.Context, parentID, userID string) ([]model.Card, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, parent_id, user_id, title, description, last_clicked_at, created_at FROM cards
		WHERE parent_id = $1 AND user_id = $2
		ORDER BY last_clicked_at DESC`, parentID, userID)
	if err != nil {
		logger.Sugar.Errorf("Failed to get cards for item %s: %v", parentID, err)
		return nil, err
	}
	defer rows.Close()

	cards := []model.Card{}
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			logger.Sugar.Errorf("Failed to scan card for item %s: %v", parentID, err)
			continue
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}

func (r *CardRepository) Create(ctx context.Context, card model.Card) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO cards (id, parent_id, user_id, title, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		card.ID, card.ParentID, card.UserID, card.Title, nullString(card.Description), card.CreatedAt)
	if err != nil {
		logger.Sugar.Errorf("Failed to create card for item %s: %v", card.ParentID, err)
	}
	return err
}

// Touch stamps last_clicked_at and returns the card, or model.ErrNotFound
// when userID does not own it.
func (r *CardRepository) Touch(ctx context.Context, cardID, userID string, at time.Time) (*model.Card, error) {
	row := r.DB.QueryRowContext(ctx, `
		UPDATE cards SET last_clicked_at = $1 WHERE id = $2 AND user_id = $3
		RETURNING id, parent_id, user_id, title, description, last_clicked_at, created_at`,
		at, cardID, userID)
	card, err := scanCard(row)
	if err == sql.ErrNoRows {
		return nil, model.ErrNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to touch card %s: %v", cardID, err)
		return nil, err
	}
	return &card, nil
}

// Delete removes the card only when it belongs to userID and returns its
// parent id.
func (r *CardRepository) Delete(ctx context.Context, cardID, userID string) (string, error) {
	var parentID string
	err := r.DB.QueryRowContext(ctx, "DELETE FROM cards WHERE id = $1 AND user_id = $2 RETURNING parent_id",
		cardID, userID).Scan(&parentID)
	if err == sql.ErrNoRows {
		return "", model.ErrNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to delete card %s: %v", cardID, err)
		return "", err
	}
	return parentID, nil
}

func scanCard(s scanner) (model.Card, error) {
	var card model.Card
	var description sql.NullString
	var clicked sql.NullTime
	if err := s.Scan(&card.ID, &card.ParentID, &card.UserID, &card.Title, &description, &clicked, &card.CreatedAt); err != nil {
		return model.Card{}, err
	}
	card.Description = description.String
	if clicked.Valid {
		t := clicked.Time
		card.LastClickedAt = &t
	}
	return card, nil
}
