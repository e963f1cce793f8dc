package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"statusgen/internal/export"
	"statusgen/internal/status"
)

type countRecorder struct{ last int }

func (c *countRecorder) SetSessions(n int) { c.last = n }

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	counter := &countRecorder{}
	store := NewStore(NewMemoryStates(), Options{Counter: counter})

	sess, err := store.Create(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := sess.State().Config.ViewCount; got != 1247 {
		t.Fatalf("expected default view count, got %d", got)
	}
	if counter.last != 1 {
		t.Fatalf("expected session gauge 1, got %d", counter.last)
	}

	again, err := store.Get(ctx, sess.ID)
	if err != nil || again != sess {
		t.Fatalf("expected same session, got %v %v", again, err)
	}
}

func TestGetUnknown(t *testing.T) {
	store := NewStore(NewMemoryStates(), Options{})
	if _, err := store.Get(context.Background(), "not-a-uuid"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.Get(context.Background(), "0b6f3c34-8f3e-4a57-9a4e-2b8d0f0c6a11"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolveCreatesWhenMissing(t *testing.T) {
	store := NewStore(NewMemoryStates(), Options{})
	sess, created, err := store.Resolve(context.Background(), "")
	if err != nil || !created {
		t.Fatalf("expected new session, got created=%v err=%v", created, err)
	}
	same, created, err := store.Resolve(context.Background(), sess.ID)
	if err != nil || created || same.ID != sess.ID {
		t.Fatalf("expected existing session, got %v created=%v err=%v", same, created, err)
	}
}

func TestGetReattachesStoredState(t *testing.T) {
	ctx := context.Background()
	states := NewMemoryStates()
	first := NewStore(states, Options{})
	sess, _ := first.Create(ctx)
	if _, err := first.Update(ctx, sess, func(s status.State) (status.State, error) {
		return s.ClearViewers(), nil
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	second := NewStore(states, Options{})
	got, err := second.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.State().Viewers) != 0 {
		t.Fatalf("expected stored empty viewer list, got %d viewers", len(got.State().Viewers))
	}
}

func TestConcurrentReattachSharesSession(t *testing.T) {
	ctx := context.Background()
	states := NewMemoryStates()
	sess, err := NewStore(states, Options{}).Create(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	restarted := NewStore(states, Options{})
	got := make(chan *Session, 16)
	var wg sync.WaitGroup
	for i := 0; i < cap(got); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := restarted.Get(ctx, sess.ID)
			if err != nil {
				t.Errorf("get: %v", err)
				return
			}
			got <- s
		}()
	}
	wg.Wait()
	close(got)

	first := <-got
	for s := range got {
		if s != first {
			t.Fatal("concurrent reattach produced two sessions")
		}
	}
	if restarted.Len() != 1 {
		t.Fatalf("expected one live session, got %d", restarted.Len())
	}
}

func TestUpdateErrorKeepsState(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemoryStates(), Options{})
	sess, _ := store.Create(ctx)
	before := sess.State()

	_, err := store.Update(ctx, sess, func(s status.State) (status.State, error) {
		return s.RemoveViewer(42)
	})
	if !errors.Is(err, status.ErrViewerIndex) {
		t.Fatalf("expected ErrViewerIndex, got %v", err)
	}
	if len(sess.State().Viewers) != len(before.Viewers) {
		t.Fatalf("state changed on failed update")
	}
}

func TestSweepDropsIdleSessions(t *testing.T) {
	ctx := context.Background()
	states := NewMemoryStates()
	counter := &countRecorder{}
	store := NewStore(states, Options{TTL: time.Minute, Counter: counter})
	sess, _ := store.Create(ctx)

	if ids := store.Sweep(ctx, time.Now()); len(ids) != 0 {
		t.Fatalf("expected fresh session kept, swept %v", ids)
	}
	ids := store.Sweep(ctx, time.Now().Add(2*time.Minute))
	if len(ids) != 1 || ids[0] != sess.ID {
		t.Fatalf("expected session swept, got %v", ids)
	}
	if _, err := states.Load(ctx, sess.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected stored state removed, got %v", err)
	}
	if counter.last != 0 {
		t.Fatalf("expected session gauge 0, got %d", counter.last)
	}
}

func TestResetLoopSettlesExports(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemoryStates(), Options{ResetDelay: 20 * time.Millisecond})
	sess, _ := store.Create(ctx)
	events, unsubscribe, ok := store.Subscribe(sess.ID)
	if !ok {
		t.Fatal("expected subscription")
	}
	defer unsubscribe()

	if _, err := sess.Exports.Begin(export.KindHTML); err != nil {
		t.Fatalf("begin: %v", err)
	}
	sess.Exports.Finish(export.KindHTML, "x.html", nil, time.Now().UTC())
	store.EnsureResetLoop(sess.ID)

	select {
	case ev := <-events:
		if ev.Name != export.EventName {
			t.Fatalf("unexpected event %q", ev.Name)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for reset")
	}
	if st := sess.Exports.Status(export.KindHTML); st.State != export.StateIdle {
		t.Fatalf("expected idle, got %s", st.State)
	}
}

func TestMemoryStatesExpire(t *testing.T) {
	m := NewMemoryStates()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	if err := m.Save(context.Background(), "a", status.DefaultState(), time.Minute); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Load(context.Background(), "a"); err != nil {
		t.Fatalf("expected state, got %v", err)
	}
	now = now.Add(time.Minute)
	if _, err := m.Load(context.Background(), "a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expiry, got %v", err)
	}
}
