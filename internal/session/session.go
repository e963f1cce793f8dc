// Package session holds per-browser editor sessions: the composed status, kept
// in a StateStore, and the live export tracker and event stream of each session.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"statusgen/internal/export"
	"statusgen/internal/logx"
	"statusgen/internal/status"
	"statusgen/pkg/realtime"
)

// CookieName is the cookie carrying the session id.
const CookieName = "statusgen_session"

// DefaultTTL is how long an idle session is kept.
const DefaultTTL = 2 * time.Hour

// Session is one editor session.
type Session struct {
	ID        string
	CreatedAt time.Time
	Exports   *export.Tracker

	mu    sync.Mutex
	state status.State
	pool  status.Pool
}

// State returns a copy of the session's status.
func (s *Session) State() status.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Pool is the name pool last used to generate viewers.
func (s *Session) Pool() status.Pool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pool == "" {
		return status.PoolFrench
	}
	return s.pool
}

// SetPool remembers the generator's pool selection. Unknown tags are ignored.
func (s *Session) SetPool(tag string) {
	if !status.ValidPool(tag) {
		return
	}
	s.mu.Lock()
	s.pool = status.Pool(tag)
	s.mu.Unlock()
}

// Counter receives the number of live sessions.
type Counter interface {
	SetSessions(n int)
}

// Options tunes a Store.
type Options struct {
	TTL        time.Duration
	ResetDelay time.Duration
	Counter    Counter
}

// Store owns every live session.
type Store struct {
	rooms   *realtime.RoomStore[*Session]
	states  StateStore
	ttl     time.Duration
	delay   time.Duration
	counter Counter
}

// NewStore returns a store persisting states in states.
func NewStore(states StateStore, opts Options) *Store {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.ResetDelay <= 0 {
		opts.ResetDelay = realtime.DefaultSettleDelay
	}
	return &Store{
		rooms:   realtime.NewRoomStore[*Session](),
		states:  states,
		ttl:     opts.TTL,
		delay:   opts.ResetDelay,
		counter: opts.Counter,
	}
}

func (s *Store) count() {
	if s.counter != nil {
		s.counter.SetSessions(s.rooms.Len())
	}
}

func (s *Store) newSession(id string, state status.State) *Session {
	return &Session{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		Exports:   export.NewTracker(s.delay),
		state:     state,
	}
}

// attach makes the session live. A session attached concurrently under the
// same id wins and is returned instead.
func (s *Store) attach(id string, state status.State) *Session {
	room, created := s.rooms.GetOrCreate(id, func() *Session { return s.newSession(id, state) })
	if created {
		s.count()
	}
	return room.State
}

// Create starts a new session with the default status.
func (s *Store) Create(ctx context.Context) (*Session, error) {
	id := uuid.NewString()
	state := status.DefaultState()
	if err := s.states.Save(ctx, id, state, s.ttl); err != nil {
		return nil, err
	}
	logx.Ctx(ctx).Debug().Str(logx.FieldSession, id).Msg("session created")
	return s.attach(id, state), nil
}

// Get returns a live session, reattaching one whose state is still stored (for
// instance by another instance sharing redis). ErrNotFound means the caller
// should create a new one.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	if room, ok := s.rooms.Get(id); ok {
		return room.State, nil
	}
	state, err := s.states.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.attach(id, state), nil
}

// Resolve returns the session named by id or a fresh one.
func (s *Store) Resolve(ctx context.Context, id string) (*Session, bool, error) {
	if id != "" {
		sess, err := s.Get(ctx, id)
		if err == nil {
			return sess, false, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, false, err
		}
	}
	sess, err := s.Create(ctx)
	return sess, true, err
}

// Update applies fn to the session's status and persists the result. fn gets a
// private copy; on error nothing changes.
func (s *Store) Update(ctx context.Context, sess *Session, fn func(status.State) (status.State, error)) (status.State, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	next, err := fn(sess.state.Clone())
	if err != nil {
		return sess.state.Clone(), err
	}
	if err := s.states.Save(ctx, sess.ID, next, s.ttl); err != nil {
		return sess.state.Clone(), fmt.Errorf("persist session: %w", err)
	}
	sess.state = next
	return next.Clone(), nil
}

// Subscribe attaches to the session's event stream.
func (s *Store) Subscribe(id string) (chan realtime.Event, func(), bool) {
	hub, ok := s.rooms.Broadcaster(id)
	if !ok {
		return nil, nil, false
	}
	ch := hub.Subscribe()
	return ch, func() { hub.Unsubscribe(ch) }, true
}

// Publish sends an event to the session's subscribers.
func (s *Store) Publish(id string, event realtime.Event) {
	s.rooms.Publish(id, event)
}

// PublishExport publishes an export status change.
func (s *Store) PublishExport(id string, st export.Status) {
	s.rooms.Publish(id, st.Event())
}

// EnsureResetLoop makes sure finished exports of the session return to idle
// after the reset delay. The loop exits once nothing is pending.
func (s *Store) EnsureResetLoop(id string) {
	s.rooms.RunLoop(id, func() (*Session, bool) {
		room, ok := s.rooms.Get(id)
		if !ok {
			return nil, false
		}
		return room.State, true
	}, settleExports)
}

func settleExports(sess *Session, now time.Time) (time.Time, []realtime.Event, bool) {
	var events []realtime.Event
	for _, st := range sess.Exports.Settle(now) {
		events = append(events, st.Event())
	}
	next, ok := sess.Exports.NextWake(now)
	if !ok {
		return time.Time{}, events, true
	}
	return next, events, false
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	return s.rooms.Len()
}

// Sweep drops sessions idle since before now minus the TTL, including their
// stored state, and returns their ids.
func (s *Store) Sweep(ctx context.Context, now time.Time) []string {
	ids := s.rooms.Sweep(now.Add(-s.ttl))
	log := logx.Ctx(ctx)
	for _, id := range ids {
		if err := s.states.Delete(ctx, id); err != nil {
			log.Warn().Err(err).Str(logx.FieldSession, id).Msg("delete session state")
		}
	}
	if len(ids) > 0 {
		log.Debug().Int("count", len(ids)).Msg("sessions swept")
		s.count()
	}
	return ids
}

// RunSweeper sweeps every interval until ctx is done.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			s.Sweep(ctx, now)
		}
	}
}
