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

var (
	serviceItemColumns = []string{"id", "user_id", "title", "description", "subjects", "date", "created_at"}
	serviceCardColumns = []string{"id", "parent_id", "user_id", "title", "description", "last_clicked_at", "created_at"}
)

func newCardService(t *testing.T) (*CardService, sqlmock.Sqlmock, <-chan events.Event) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	bus := events.NewLocalBus()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	sub := bus.Subscribe(ctx)

	items := NewItemService(repository.NewItemRepository(db), bus)
	svc := NewCardService(repository.NewCardRepository(db), items, bus)
	svc.Now = func() time.Time { return fixedNow }
	return svc, mock, sub
}

func expectItemOwner(mock sqlmock.Sqlmock, itemID, owner string) {
	mock.ExpectQuery("SELECT (.+) FROM items WHERE id").WithArgs(itemID).
		WillReturnRows(sqlmock.NewRows(serviceItemColumns).AddRow(itemID, owner, "Physics", nil, "{}", fixedNow, fixedNow))
}

func TestCardCreate_PublishesCreated(t *testing.T) {
	svc, mock, sub := newCardService(t)
	expectItemOwner(mock, "item-1", "user-1")
	mock.ExpectExec("INSERT INTO cards").
		WithArgs(sqlmock.AnyArg(), "item-1", "user-1", "Mechanics", sqlmock.AnyArg(), fixedNow).
		WillReturnResult(sqlmock.NewResult(1, 1))

	card, err := svc.Create(context.Background(), "user-1", model.CreateCardRequest{ParentID: "item-1", Title: " Mechanics "})
	require.NoError(t, err)
	assert.Equal(t, "Mechanics", card.Title)
	assert.Nil(t, card.LastClickedAt)

	select {
	case ev := <-sub:
		assert.Equal(t, events.CardCreated, ev.Type)
		assert.Equal(t, "user-1", ev.ActorID)
		var got model.Card
		require.NoError(t, json.Unmarshal(ev.Payload, &got))
		assert.Equal(t, card.ID, got.ID)
		assert.Equal(t, "item-1", got.ParentID)
	case <-time.After(time.Second):
		t.Fatal("no created event")
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCardCreate_RejectsEmptyTitle(t *testing.T) {
	svc, mock, _ := newCardService(t)

	_, err := svc.Create(context.Background(), "user-1", model.CreateCardRequest{ParentID: "item-1", Title: "   "})
	assert.ErrorIs(t, err, ErrEmptyCardTitle)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCardCreate_RequiresOwnedParent(t *testing.T) {
	svc, mock, _ := newCardService(t)
	expectItemOwner(mock, "item-1", "user-2")

	_, err := svc.Create(context.Background(), "user-1", model.CreateCardRequest{ParentID: "item-1", Title: "Mechanics"})
	assert.ErrorIs(t, err, model.ErrForbidden)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCardList(t *testing.T) {
	svc, mock, _ := newCardService(t)
	expectItemOwner(mock, "item-1", "user-1")
	mock.ExpectQuery("SELECT (.+) FROM cards").WithArgs("item-1", "user-1").
		WillReturnRows(sqlmock.NewRows(serviceCardColumns).AddRow("card-1", "item-1", "user-1", "Mechanics", nil, nil, fixedNow))

	cards, err := svc.List(context.Background(), "item-1", "user-1")
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "Mechanics", cards[0].Title)
}

func TestCardOpen_ReturnsEditorRoute(t *testing.T) {
	svc, mock, _ := newCardService(t)
	mock.ExpectQuery("UPDATE cards SET last_clicked_at").WithArgs(fixedNow, "card-1", "user-1").
		WillReturnRows(sqlmock.NewRows(serviceCardColumns).AddRow("card-1", "item-1", "user-1", "Mechanics", nil, fixedNow, fixedNow))

	route, err := svc.Open(context.Background(), "card-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, model.OpenCardResponse{NoteID: "item-1", SubjectID: "Mechanics"}, route)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCardDelete_PublishesDeleted(t *testing.T) {
	svc, mock, sub := newCardService(t)
	mock.ExpectQuery("DELETE FROM cards").WithArgs("card-1", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"parent_id"}).AddRow("item-1"))

	require.NoError(t, svc.Delete(context.Background(), "card-1", "user-1"))

	select {
	case ev := <-sub:
		assert.Equal(t, events.CardDeleted, ev.Type)
		assert.JSONEq(t, `{"id":"card-1","parent_id":"item-1"}`, string(ev.Payload))
	case <-time.After(time.Second):
		t.Fatal("no deleted event")
	}
}
