package identity

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const recordLoginTimeout = 5 * time.Second

// Resolver tracks one session and keeps its actor current as provider
// events arrive. It is created per consumer and passed by reference.
//
// Lifecycle: NewResolver, Init (starts background resolution), any number of
// State/Changes reads, Close (releases the provider subscription).
type Resolver struct {
	provider Provider
	recorder LoginRecorder
	now      func() time.Time

	mu      sync.RWMutex
	state   State
	token   string
	closed  bool
	changes chan struct{}

	initOnce    sync.Once
	closeOnce   sync.Once
	events      chan Event
	done        chan struct{}
	stopped     chan struct{}
	unsubscribe func()
	wg          sync.WaitGroup
}

// NewResolver returns a resolver in the loading state. recorder may be nil.
func NewResolver(provider Provider, recorder LoginRecorder) *Resolver {
	return &Resolver{
		provider: provider,
		recorder: recorder,
		now:      time.Now,
		state:    State{Loading: true},
		changes:  make(chan struct{}, 1),
		events:   make(chan Event, 16),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Init subscribes to the provider and resolves token in the background.
// Only the first call has an effect.
func (r *Resolver) Init(ctx context.Context, token string) {
	r.initOnce.Do(func() {
		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			return
		}
		r.token = token
		r.unsubscribe = r.provider.Subscribe(r.enqueue)
		r.wg.Add(1)
		r.mu.Unlock()

		go r.run(ctx)
	})
}

// State returns a snapshot of the current actor and loading flag.
func (r *Resolver) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st := r.state
	if st.Actor != nil {
		actor := *st.Actor
		st.Actor = &actor
	}
	return st
}

// Token returns the session token currently tracked.
func (r *Resolver) Token() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.token
}

// Changes is signalled after every state change. Signals coalesce.
func (r *Resolver) Changes() <-chan struct{} {
	return r.changes
}

// SignIn authenticates through the provider and adopts the new session.
func (r *Resolver) SignIn(ctx context.Context, email, password string) (*Session, error) {
	sess, err := r.provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.token = sess.Token
	r.mu.Unlock()
	r.touch(sess.Actor.ID)
	r.settle(sess)
	return sess, nil
}

// SignOut revokes the tracked session and clears the actor.
func (r *Resolver) SignOut(ctx context.Context) error {
	token := r.Token()
	if err := r.provider.SignOut(ctx, token); err != nil {
		return err
	}
	r.clear(token)
	return nil
}

// Close releases the provider subscription and waits for background work.
// It is safe to call more than once.
func (r *Resolver) Close() {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		unsubscribe := r.unsubscribe
		r.mu.Unlock()
		if unsubscribe != nil {
			unsubscribe()
		}
		close(r.done)
		r.wg.Wait()
	})
}

func (r *Resolver) run(ctx context.Context) {
	defer r.wg.Done()
	defer close(r.stopped)

	r.resolve(ctx)
	for {
		select {
		case <-r.done:
			return
		case <-ctx.Done():
			return
		case ev := <-r.events:
			r.apply(ctx, ev)
		}
	}
}

func (r *Resolver) enqueue(ev Event) {
	select {
	case r.events <- ev:
	case <-r.done:
	case <-r.stopped:
	}
}

func (r *Resolver) apply(ctx context.Context, ev Event) {
	current := r.State()
	switch ev.Type {
	case EventSignedOut:
		r.clear(ev.Token)
	case EventSignedIn:
		if ev.Session != nil && current.Actor != nil && current.Actor.ID == ev.UserID {
			r.resolve(ctx)
		}
	case EventUserUpdated:
		if current.Actor != nil && current.Actor.ID == ev.UserID {
			r.resolve(ctx)
		}
	}
}

func (r *Resolver) resolve(ctx context.Context) {
	sess, err := r.provider.CurrentSession(ctx, r.Token())
	if err != nil {
		log.Warn().Err(err).Msg("Session resolution failed")
		sess = nil
	}
	if sess != nil {
		r.touch(sess.Actor.ID)
	}
	r.settle(sess)
}

func (r *Resolver) settle(sess *Session) {
	r.mu.Lock()
	r.state = State{Actor: actorOf(sess)}
	r.mu.Unlock()
	r.signal()
}

// clear drops the actor when token is the tracked session.
func (r *Resolver) clear(token string) {
	r.mu.Lock()
	if token == "" || token != r.token {
		r.mu.Unlock()
		return
	}
	r.token = ""
	r.state = State{}
	r.mu.Unlock()
	r.signal()
}

func (r *Resolver) signal() {
	select {
	case r.changes <- struct{}{}:
	default:
	}
}

// touch records the login without blocking resolution.
func (r *Resolver) touch(userID uint) {
	if r.recorder == nil {
		return
	}
	if !r.track() {
		return
	}
	at := r.now()
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), recordLoginTimeout)
		defer cancel()
		if err := r.recorder.RecordLogin(ctx, userID, at); err != nil {
			log.Warn().Err(err).Uint("user_id", userID).Msg("Could not record last login")
		}
	}()
}

// track registers background work unless the resolver is closed.
func (r *Resolver) track() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.wg.Add(1)
	return true
}
