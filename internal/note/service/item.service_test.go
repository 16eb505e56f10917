package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"notesync/internal/events"
	"notesync/internal/note/model"
	"notesync/internal/note/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newItemService(t *testing.T) (*ItemService, sqlmock.Sqlmock, <-chan events.Event) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	bus := events.NewLocalBus()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	sub := bus.Subscribe(ctx)

	svc := NewItemService(repository.NewItemRepository(db), bus)
	svc.Now = func() time.Time { return fixedNow }
	return svc, mock, sub
}

func TestItemCreate_PublishesCreated(t *testing.T) {
	svc, mock, sub := newItemService(t)
	mock.ExpectExec("INSERT INTO items").WillReturnResult(sqlmock.NewResult(1, 1))

	item, err := svc.Create(context.Background(), "user-1", model.CreateItemRequest{
		Title:    "  Physics ",
		Subjects: []string{"Science", "Science", " Technology"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Physics", item.Title)
	assert.Equal(t, []string{"Science", "Technology"}, item.Subjects)
	assert.Equal(t, fixedNow, item.Date)

	select {
	case ev := <-sub:
		assert.Equal(t, events.ItemCreated, ev.Type)
		assert.Equal(t, "user-1", ev.ActorID)
		var got model.Item
		require.NoError(t, json.Unmarshal(ev.Payload, &got))
		assert.Equal(t, item.ID, got.ID)
	case <-time.After(time.Second):
		t.Fatal("no created event")
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestItemCreate_Validation(t *testing.T) {
	svc, _, sub := newItemService(t)

	_, err := svc.Create(context.Background(), "user-1", model.CreateItemRequest{Title: "a"})
	assert.ErrorIs(t, err, ErrTitleTooShort)

	subjects := make([]string, MaxSubjects+1)
	for i := range subjects {
		subjects[i] = string(rune('a' + i))
	}
	_, err = svc.Create(context.Background(), "user-1", model.CreateItemRequest{Title: "Valid", Subjects: subjects})
	assert.ErrorIs(t, err, ErrTooManySubjects)

	select {
	case ev := <-sub:
		t.Fatalf("unexpected event %s", ev.Type)
	default:
	}
}

func TestItemGet_Ownership(t *testing.T) {
	svc, mock, _ := newItemService(t)
	mock.ExpectQuery("SELECT id, user_id, title").
		WithArgs("item-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "title", "description", "subjects", "date", "created_at"}).
			AddRow("item-1", "user-1", "Physics", nil, "{}", fixedNow, fixedNow))

	_, err := svc.Get(context.Background(), "item-1", "user-2")
	assert.ErrorIs(t, err, model.ErrForbidden)
}

func TestItemDelete_PublishesDeleted(t *testing.T) {
	svc, mock, sub := newItemService(t)
	mock.ExpectExec("DELETE FROM items").
		WithArgs("item-1", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, svc.Delete(context.Background(), "item-1", "user-1"))

	select {
	case ev := <-sub:
		assert.Equal(t, events.ItemDeleted, ev.Type)
		assert.JSONEq(t, `{"id":"item-1"}`, string(ev.Payload))
	case <-time.After(time.Second):
		t.Fatal("no deleted event")
	}
}
