package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dinidesk_backend/internal/model"
	"dinidesk_backend/internal/testutil"
	jwtutil "dinidesk_backend/pkg/utils/jwt"
)

func newTestProvider(t *testing.T) *LocalProvider {
	t.Helper()
	return NewLocalProvider(testutil.NewDB(t), jwtutil.NewManager("test-secret", time.Hour))
}

func TestSignUpAndSignIn(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)

	sess, err := p.SignUp(ctx, "  Rija@Example.MG ", "secret1", "")
	require.NoError(t, err)
	assert.Equal(t, "rija@example.mg", sess.Actor.Email)
	assert.Equal(t, model.RoleCustomer, sess.Actor.Role)

	sess, err = p.SignIn(ctx, "RIJA@example.mg", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)

	_, err = p.SignIn(ctx, "rija@example.mg", "wrong-password")
	assert.ErrorIs(t, err, model.ErrAuthentication)

	_, err = p.SignIn(ctx, "nobody@example.mg", "secret1")
	assert.ErrorIs(t, err, model.ErrAuthentication)
}

func TestSignUpValidation(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)

	_, err := p.SignUp(ctx, "a@b.mg", "short", model.RoleStaff)
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = p.SignUp(ctx, "a@b.mg", "longenough", model.Role("owner"))
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = p.SignUp(ctx, "a@b.mg", "longenough", model.RoleStaff)
	require.NoError(t, err)
	_, err = p.SignUp(ctx, "A@B.mg", "longenough", model.RoleStaff)
	assert.ErrorIs(t, err, model.ErrEmailTaken)
}

func TestCurrentSession(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)

	sess, err := p.SignUp(ctx, "staff@dinidesk.mg", "secret1", model.RoleStaff)
	require.NoError(t, err)

	got, err := p.CurrentSession(ctx, sess.Token)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.RoleStaff, got.Actor.Role)

	for _, token := range []string{"", "garbage"} {
		got, err := p.CurrentSession(ctx, token)
		assert.NoError(t, err)
		assert.Nil(t, got)
	}
}

func TestCurrentSessionSeesRoleChange(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)

	sess, err := p.SignUp(ctx, "staff@dinidesk.mg", "secret1", model.RoleStaff)
	require.NoError(t, err)

	_, err = p.SetRole(ctx, sess.Actor.ID, model.RoleCustomer)
	require.NoError(t, err)

	got, err := p.CurrentSession(ctx, sess.Token)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.RoleCustomer, got.Actor.Role)
}

func TestSignOutRevokesToken(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)

	sess, err := p.SignUp(ctx, "admin@dinidesk.mg", "secret1", model.RoleAdmin)
	require.NoError(t, err)

	var events []Event
	unsubscribe := p.Subscribe(func(ev Event) { events = append(events, ev) })
	defer unsubscribe()

	require.NoError(t, p.SignOut(ctx, sess.Token))
	require.NoError(t, p.SignOut(ctx, sess.Token))

	got, err := p.CurrentSession(ctx, sess.Token)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NotEmpty(t, events)
	assert.Equal(t, EventSignedOut, events[0].Type)
	assert.Equal(t, sess.Token, events[0].Token)

	purged, err := p.PurgeRevoked(ctx, time.Now().Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)

	var got []EventType
	unsubscribe := p.Subscribe(func(ev Event) { got = append(got, ev.Type) })
	assert.Equal(t, 1, p.SubscriberCount())

	_, err := p.SignUp(ctx, "c@dinidesk.mg", "secret1", "")
	require.NoError(t, err)

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 0, p.SubscriberCount())

	_, err = p.SignIn(ctx, "c@dinidesk.mg", "secret1")
	require.NoError(t, err)
	assert.Equal(t, []EventType{EventSignedIn}, got)
}

func TestRecordLogin(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)

	user, err := p.CreateUser(ctx, NewUser{Email: "x@dinidesk.mg", Password: "secret1"})
	require.NoError(t, err)

	at := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, p.RecordLogin(ctx, user.ID, at))
	require.NoError(t, p.RecordLoginHistory(ctx, user.ID, "Firefox on Linux", "10.0.0.1"))

	reloaded, err := p.GetUser(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.LastLogin)
	assert.True(t, at.Equal(*reloaded.LastLogin))

	history, err := p.LoginHistory(ctx, user.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "10.0.0.1", history[0].IP)
}
