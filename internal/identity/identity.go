package identity

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"notesync/internal/note/model"
)

type contextKey string

const actorIDKey contextKey = "actorID"

var ErrIncompleteRoute = errors.New("noteId and subjectId are required")

// Provider resolves the current actor. It returns an *model.IdentityError
// when there is no session.
type Provider interface {
	CurrentUser(ctx context.Context) (string, error)
}

// WithActor stores the authenticated actor id on ctx.
func WithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorIDKey, actorID)
}

// ActorFromContext returns the actor id stored by WithActor.
func ActorFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(actorIDKey).(string)
	return id, ok && id != ""
}

// ContextProvider reads the actor placed on the request context by the auth
// middleware.
type ContextProvider struct{}

func (ContextProvider) CurrentUser(ctx context.Context) (string, error) {
	id, ok := ActorFromContext(ctx)
	if !ok {
		return "", &model.IdentityError{Reason: "no session on request"}
	}
	return id, nil
}

// ParseRoute reads noteId, subjectId and option. The variant falls back to
// model.DefaultVariant.
func ParseRoute(q url.Values) model.RouteContext {
	rc := model.RouteContext{
		NoteID:    strings.TrimSpace(q.Get("noteId")),
		SubjectID: strings.TrimSpace(q.Get("subjectId")),
		Variant:   strings.TrimSpace(q.Get("option")),
	}
	if rc.Variant == "" {
		rc.Variant = model.DefaultVariant
	}
	return rc
}

// DeriveKey combines the resolved actor with the routing context.
func DeriveKey(ctx context.Context, p Provider, rc model.RouteContext) (model.DocumentKey, error) {
	actorID, err := p.CurrentUser(ctx)
	if err != nil {
		return model.DocumentKey{}, err
	}
	if rc.NoteID == "" || rc.SubjectID == "" {
		return model.DocumentKey{}, ErrIncompleteRoute
	}
	variant := rc.Variant
	if variant == "" {
		variant = model.DefaultVariant
	}
	return model.DocumentKey{
		ActorID:   actorID,
		NoteID:    rc.NoteID,
		SubjectID: rc.SubjectID,
		Variant:   variant,
	}, nil
}
