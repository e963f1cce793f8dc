package realtime

import (
	"context"
	"sync"
	"time"
)

// Room holds state and a broadcaster for one session.
type Room[T any] struct {
	ID       string
	State    T
	hub      *Broadcaster
	lastSeen time.Time
}

// RoomStore manages rooms, their broadcasters and their timed loops.
type RoomStore[T any] struct {
	mu    sync.RWMutex
	rooms map[string]*Room[T]
	loops map[string]context.CancelFunc
	wakes map[string]chan struct{}
}

// NewRoomStore creates an empty room store.
func NewRoomStore[T any]() *RoomStore[T] {
	return &RoomStore[T]{
		rooms: make(map[string]*Room[T]),
		loops: make(map[string]context.CancelFunc),
		wakes: make(map[string]chan struct{}),
	}
}

// Create adds a room with the given id and state, and a new Broadcaster.
// An existing room with the same id is replaced.
func (s *RoomStore[T]) Create(id string, state T) *Room[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.rooms[id]; ok {
		old.hub.Close()
	}
	r := &Room[T]{ID: id, State: state, hub: NewBroadcaster(), lastSeen: time.Now().UTC()}
	s.rooms[id] = r
	return r
}

// GetOrCreate returns the room for id, creating it with newState when absent.
// created reports whether newState was used.
func (s *RoomStore[T]) GetOrCreate(id string, newState func() T) (room *Room[T], created bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rooms[id]; ok {
		r.lastSeen = time.Now().UTC()
		return r, false
	}
	r := &Room[T]{ID: id, State: newState(), hub: NewBroadcaster(), lastSeen: time.Now().UTC()}
	s.rooms[id] = r
	return r, true
}

// Get returns the room by ID if it exists and marks it as seen.
func (s *RoomStore[T]) Get(id string) (*Room[T], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	if ok {
		r.lastSeen = time.Now().UTC()
	}
	return r, ok
}

// Len returns the number of rooms.
func (s *RoomStore[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// Delete removes the room, stops its loop and closes its subscribers.
func (s *RoomStore[T]) Delete(id string) {
	s.mu.Lock()
	r, ok := s.rooms[id]
	delete(s.rooms, id)
	cancel := s.loops[id]
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if ok {
		r.hub.Close()
	}
}

// Sweep deletes rooms not seen since cutoff and returns their ids.
// Rooms with live subscribers are kept.
func (s *RoomStore[T]) Sweep(cutoff time.Time) []string {
	s.mu.RLock()
	var stale []string
	for id, r := range s.rooms {
		if r.lastSeen.Before(cutoff) && r.hub.Subscribers() == 0 {
			stale = append(stale, id)
		}
	}
	s.mu.RUnlock()
	for _, id := range stale {
		s.Delete(id)
	}
	return stale
}

// Publish notifies subscribers of the room's broadcaster. Unknown rooms are ignored.
func (s *RoomStore[T]) Publish(id string, event Event) {
	hub, ok := s.Broadcaster(id)
	if !ok {
		return
	}
	hub.Publish(event)
}

// Broadcaster returns the broadcaster for the room.
func (s *RoomStore[T]) Broadcaster(id string) (*Broadcaster, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	if !ok {
		return nil, false
	}
	return r.hub, true
}

// TickFunc is called by RunLoop to determine the next wake time and events to publish.
// stop true means exit the loop.
type TickFunc[T any] func(state T, now time.Time) (next time.Time, events []Event, stop bool)

// RunLoop starts a timing loop for the room. If a loop already exists for id, it is
// woken instead of started again. A loop that ticked stop but was woken before
// it unregistered keeps running, so no wake is lost.
func (s *RoomStore[T]) RunLoop(id string, getState func() (T, bool), tick TickFunc[T]) {
	s.mu.Lock()
	if wake, ok := s.wakes[id]; ok {
		notify(wake)
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	wake := make(chan struct{}, 1)
	s.loops[id] = cancel
	s.wakes[id] = wake
	s.mu.Unlock()

	go func() {
		defer cancel()
		for {
			state, ok := getState()
			if !ok {
				s.endLoop(id)
				return
			}
			now := time.Now().UTC()
			next, events, stop := tick(state, now)
			for _, e := range events {
				s.Publish(id, e)
			}
			if stop {
				if s.finishLoop(id, wake) {
					return
				}
				continue
			}
			wait := time.Until(next)
			if wait < 0 {
				wait = 0
			}
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				s.endLoop(id)
				return
			case <-timer.C:
			case <-wake:
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
			}
		}
	}()
}

// finishLoop unregisters the loop unless a wake arrived since its last tick.
func (s *RoomStore[T]) finishLoop(id string, wake chan struct{}) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-wake:
		return false
	default:
	}
	delete(s.loops, id)
	delete(s.wakes, id)
	return true
}

func (s *RoomStore[T]) endLoop(id string) {
	s.mu.Lock()
	delete(s.loops, id)
	delete(s.wakes, id)
	s.mu.Unlock()
}

func notify(wake chan struct{}) {
	select {
	case wake <- struct{}{}:
	default:
	}
}

// Wake unblocks the room's loop so it recomputes immediately.
func (s *RoomStore[T]) Wake(id string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if wake, ok := s.wakes[id]; ok {
		notify(wake)
	}
}

// Looping reports whether a timed loop is running for id.
func (s *RoomStore[T]) Looping(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.loops[id]
	return ok
}
