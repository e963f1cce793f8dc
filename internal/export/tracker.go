package export

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"statusgen/pkg/realtime"
)

// Kind names an export mode.
type Kind string

const (
	KindPNG  Kind = "png"
	KindHTML Kind = "html"
)

// Kinds lists the export modes in display order.
func Kinds() []Kind { return []Kind{KindPNG, KindHTML} }

// State is the phase of one export mode.
type State string

const (
	StateIdle       State = "idle"
	StateInProgress State = "in_progress"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// EventName is the SSE event name carrying export status.
const EventName = "export"

var ErrBusy = errors.New("an export is already in progress")

// Status is the visible state of one export mode.
type Status struct {
	Kind     Kind   `json:"kind"`
	State    State  `json:"state"`
	Progress int    `json:"progress"`
	Filename string `json:"filename,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Active reports whether the export is in flight.
func (s Status) Active() bool { return s.State == StateInProgress }

// Event encodes the status for the session event stream.
func (s Status) Event() realtime.Event {
	b, _ := json.Marshal(s)
	return realtime.Event{Name: EventName, Data: string(b)}
}

type job struct {
	status   Status
	cooldown realtime.Cooldown
}

// Tracker holds the per-session export state machine:
// idle -> in_progress -> done|failed -> idle after the reset delay.
type Tracker struct {
	mu   sync.Mutex
	jobs map[Kind]*job
}

// NewTracker returns a tracker whose finished exports settle back to idle after
// delay (realtime.DefaultSettleDelay when zero).
func NewTracker(delay time.Duration) *Tracker {
	if delay <= 0 {
		delay = realtime.DefaultSettleDelay
	}
	t := &Tracker{jobs: make(map[Kind]*job, 2)}
	for _, k := range Kinds() {
		t.jobs[k] = &job{
			status:   Status{Kind: k, State: StateIdle},
			cooldown: realtime.Cooldown{Delay: delay},
		}
	}
	return t
}

func (t *Tracker) job(kind Kind) *job {
	j, ok := t.jobs[kind]
	if !ok {
		j = &job{status: Status{Kind: kind, State: StateIdle}, cooldown: realtime.Cooldown{Delay: realtime.DefaultSettleDelay}}
		t.jobs[kind] = j
	}
	return j
}

// Begin moves kind to in_progress. It fails with ErrBusy while any export is
// in flight.
func (t *Tracker) Begin(kind Kind) (Status, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.busyLocked() {
		return t.job(kind).status, ErrBusy
	}
	j := t.job(kind)
	j.cooldown.Clear()
	j.status = Status{Kind: kind, State: StateInProgress}
	return j.status, nil
}

// Progress records a checkpoint for an in-flight export. Checkpoints never move
// backwards.
func (t *Tracker) Progress(kind Kind, p int) Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	j := t.job(kind)
	if j.status.State == StateInProgress && p > j.status.Progress {
		j.status.Progress = p
	}
	return j.status
}

// Finish ends an export at now. A failed export drops its progress to zero.
func (t *Tracker) Finish(kind Kind, filename string, err error, now time.Time) Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	j := t.job(kind)
	if err != nil {
		j.status = Status{Kind: kind, State: StateFailed, Error: err.Error()}
	} else {
		j.status = Status{Kind: kind, State: StateDone, Progress: ProgressDone, Filename: filename}
	}
	j.cooldown.Mark(now)
	return j.status
}

// Busy reports whether any export is in flight.
func (t *Tracker) Busy() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.busyLocked()
}

func (t *Tracker) busyLocked() bool {
	for _, j := range t.jobs {
		if j.status.Active() {
			return true
		}
	}
	return false
}

// Status returns the current status of kind.
func (t *Tracker) Status(kind Kind) Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.job(kind).status
}

// Snapshot returns every mode's status in Kinds order.
func (t *Tracker) Snapshot() []Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Status, 0, len(t.jobs))
	for _, k := range Kinds() {
		out = append(out, t.job(k).status)
	}
	return out
}

// NextWake returns the earliest pending reset, if any.
func (t *Tracker) NextWake(now time.Time) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var next time.Time
	found := false
	for _, j := range t.jobs {
		if at, ok := j.cooldown.NextWake(now); ok && (!found || at.Before(next)) {
			next, found = at, true
		}
	}
	return next, found
}

// Settle returns finished exports whose reset delay has elapsed to idle and
// reports the statuses that changed.
func (t *Tracker) Settle(now time.Time) []Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	var changed []Status
	for _, k := range Kinds() {
		j := t.job(k)
		if !j.cooldown.Expired(now) {
			continue
		}
		j.cooldown.Clear()
		j.status = Status{Kind: k, State: StateIdle}
		changed = append(changed, j.status)
	}
	return changed
}
