// Package identity resolves who is calling and with which role.
package identity

import (
	"context"
	"time"

	"dinidesk_backend/internal/model"
)

// Actor is the authenticated principal seen by the rest of the system.
type Actor struct {
	ID    uint       `json:"id"`
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
	Name  string     `json:"name"`
}

func (a Actor) IsAdmin() bool { return a.Role == model.RoleAdmin }

// IsStaff is true for staff and admins.
func (a Actor) IsStaff() bool { return a.Role == model.RoleStaff || a.Role == model.RoleAdmin }

type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Actor     Actor     `json:"actor"`
}

type EventType string

const (
	EventSignedIn    EventType = "signed_in"
	EventSignedOut   EventType = "signed_out"
	EventUserUpdated EventType = "user_updated"
)

// Event is pushed to subscribers after the change is committed.
type Event struct {
	Type    EventType
	UserID  uint
	Token   string
	Session *Session
}

// Provider is the identity collaborator: credentials in, sessions out.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string, role model.Role) (*Session, error)
	SignOut(ctx context.Context, token string) error
	// CurrentSession returns nil, nil for an empty, expired, revoked or
	// malformed token.
	CurrentSession(ctx context.Context, token string) (*Session, error)
	Subscribe(fn func(Event)) (unsubscribe func())
}

// LoginRecorder stamps the last successful resolution of an actor.
type LoginRecorder interface {
	RecordLogin(ctx context.Context, userID uint, at time.Time) error
}

// State is the resolver output consumed by the access guard.
type State struct {
	Actor   *Actor
	Loading bool
}

func (s State) Authenticated() bool {
	return !s.Loading && s.Actor != nil
}

// Resolve derives a settled state for token in one call. On a lookup
// failure it returns an empty state with the error; callers decide how to
// settle it (Authenticate keeps the request loading).
func Resolve(ctx context.Context, p Provider, token string) (State, error) {
	sess, err := p.CurrentSession(ctx, token)
	if err != nil {
		return State{}, err
	}
	return State{Actor: actorOf(sess)}, nil
}

func actorOf(sess *Session) *Actor {
	if sess == nil {
		return nil
	}
	actor := sess.Actor
	actor.Role = actor.Role.OrDefault()
	return &actor
}
