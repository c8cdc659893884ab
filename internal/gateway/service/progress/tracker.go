// Package progress keeps a bounded history of acquisitions and fans their
// step events out to live subscribers.
package progress

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

var ErrUnknownAcquisition = errors.New("unknown acquisition")

const (
	defaultHistory   = 256
	subscriberBuffer = 16
)

type Event struct {
	AcquisitionID string    `json:"acquisitionId"`
	DeckCode      string    `json:"deckCode"`
	Step          string    `json:"step"`
	Status        Status    `json:"status"`
	Reference     string    `json:"reference,omitempty"`
	Error         string    `json:"error,omitempty"`
	At            time.Time `json:"at"`
}

type Snapshot struct {
	ID        string    `json:"id"`
	DeckCode  string    `json:"deckCode"`
	Status    Status    `json:"status"`
	Step      string    `json:"step"`
	Reference string    `json:"reference,omitempty"`
	Error     string    `json:"error,omitempty"`
	StartedAt time.Time `json:"startedAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Events    []Event   `json:"events"`
}

func (s Snapshot) Terminal() bool {
	return s.Status != StatusRunning
}

type subscriber struct {
	ch   chan Event
	done chan struct{}
}

type run struct {
	snap Snapshot
	subs map[*subscriber]struct{}
}

// Tracker is safe for concurrent use.
type Tracker struct {
	mu   sync.Mutex
	runs *lru.Cache[string, *run]
	now  func() time.Time
}

func NewTracker(history int) *Tracker {
	if history <= 0 {
		history = defaultHistory
	}
	t := &Tracker{now: time.Now}
	cache, err := lru.NewWithEvict[string, *run](history, func(_ string, r *run) {
		// Evicted runs drop their watchers.
		for sub := range r.subs {
			closeSubscriber(sub)
		}
		r.subs = nil
	})
	if err != nil {
		panic(err)
	}
	t.runs = cache
	return t
}

// Start registers a new acquisition and returns its id.
func (t *Tracker) Start(code string) string {
	id := uuid.NewString()
	now := t.now()
	ev := Event{AcquisitionID: id, DeckCode: code, Step: "queued", Status: StatusRunning, At: now}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runs.Add(id, &run{
		snap: Snapshot{
			ID:        id,
			DeckCode:  code,
			Status:    StatusRunning,
			Step:      ev.Step,
			StartedAt: now,
			UpdatedAt: now,
			Events:    []Event{ev},
		},
		subs: map[*subscriber]struct{}{},
	})
	return id
}

// Step records that the acquisition entered step.
func (t *Tracker) Step(id, step string) {
	t.publish(id, func(r *run, ev *Event) {
		ev.Step = step
		ev.Status = StatusRunning
	})
}

// Finish records the terminal outcome and releases watchers. step names
// the step the run ended in; empty keeps the last published step.
func (t *Tracker) Finish(id, step, reference string, err error) {
	t.publish(id, func(r *run, ev *Event) {
		ev.Step = r.snap.Step
		if step = strings.TrimSpace(step); step != "" {
			ev.Step = step
		}
		if err != nil {
			ev.Status = StatusFailed
			ev.Error = err.Error()
			return
		}
		ev.Status = StatusSucceeded
		ev.Reference = reference
	})
}

func (t *Tracker) publish(id string, fill func(*run, *Event)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.runs.Peek(strings.TrimSpace(id))
	if !ok || r.snap.Terminal() {
		return
	}
	ev := Event{AcquisitionID: r.snap.ID, DeckCode: r.snap.DeckCode, At: t.now()}
	fill(r, &ev)

	r.snap.Step = ev.Step
	r.snap.Status = ev.Status
	r.snap.Error = ev.Error
	r.snap.Reference = ev.Reference
	r.snap.UpdatedAt = ev.At
	r.snap.Events = append(r.snap.Events, ev)

	for sub := range r.subs {
		push(sub.ch, ev)
		if ev.Status != StatusRunning {
			closeSubscriber(sub)
		}
	}
	if ev.Status != StatusRunning {
		r.subs = nil
	}
}

func (t *Tracker) Get(id string) (Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.runs.Get(strings.TrimSpace(id))
	if !ok {
		return Snapshot{}, false
	}
	return cloneSnapshot(r.snap), true
}

// Subscribe returns the current snapshot and a channel of later events. The
// channel closes after the terminal event, when ctx ends, or when the run is
// evicted. A run that already finished yields a closed channel.
func (t *Tracker) Subscribe(ctx context.Context, id string) (Snapshot, <-chan Event, error) {
	t.mu.Lock()
	r, ok := t.runs.Get(strings.TrimSpace(id))
	if !ok {
		t.mu.Unlock()
		return Snapshot{}, nil, ErrUnknownAcquisition
	}
	snap := cloneSnapshot(r.snap)
	sub := &subscriber{ch: make(chan Event, subscriberBuffer), done: make(chan struct{})}
	if snap.Terminal() {
		closeSubscriber(sub)
		t.mu.Unlock()
		return snap, sub.ch, nil
	}
	r.subs[sub] = struct{}{}
	t.mu.Unlock()

	go func() {
		select {
		case <-sub.done:
		case <-ctx.Done():
			t.mu.Lock()
			if _, tracked := r.subs[sub]; tracked {
				delete(r.subs, sub)
				closeSubscriber(sub)
			}
			t.mu.Unlock()
		}
	}()
	return snap, sub.ch, nil
}

func closeSubscriber(sub *subscriber) {
	select {
	case <-sub.done:
		return
	default:
	}
	close(sub.done)
	close(sub.ch)
}

// push drops the oldest buffered event when a watcher falls behind.
func push(ch chan Event, ev Event) {
	select {
	case ch <- ev:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- ev:
	default:
	}
}

func cloneSnapshot(s Snapshot) Snapshot {
	s.Events = append([]Event(nil), s.Events...)
	return s
}
