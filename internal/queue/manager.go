package queue

import (
	"log/slog"
	"time"
)

// Manager applies operator call actions to the counters and keeps the call
// history and statistics in step. It is not safe for concurrent use.
type Manager struct {
	counters *Store
	history  *History
	now      func() time.Time
}

type Option func(*Manager)

func WithHistoryCapacity(capacity int) Option {
	return func(m *Manager) {
		m.history = NewHistory(capacity)
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

func NewManager(configs []CounterConfig, opts ...Option) *Manager {
	m := &Manager{
		counters: NewStore(nil),
		history:  NewHistory(DefaultHistoryCapacity),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.Initialize(configs)
	return m
}

// Initialize rebuilds every counter from configs. History is kept.
func (m *Manager) Initialize(configs []CounterConfig) {
	m.counters.initialize(configs)
}

func (m *Manager) Counter(id string) (Counter, bool) {
	return m.counters.Get(id)
}

func (m *Manager) Counters() []Counter {
	return m.counters.All()
}

func (m *Manager) ActiveCounters() []Counter {
	return m.counters.Active()
}

// Update merges p into the counter. Callers must not pass a negative ticket.
func (m *Manager) Update(id string, p Patch) (Counter, error) {
	if p.CurrentTicket != nil && *p.CurrentTicket < 0 {
		return Counter{}, ErrInvalidTicket
	}
	c, ok := m.counters.Update(id, p)
	if !ok {
		return Counter{}, ErrCounterNotFound
	}
	return c, nil
}

func (m *Manager) callable(id string) (Counter, error) {
	c, ok := m.counters.Get(id)
	if !ok {
		return Counter{}, ErrCounterNotFound
	}
	if !c.IsActive {
		slog.Debug("call rejected on paused counter", "counterID", id)
		return Counter{}, ErrCounterInactive
	}
	return c, nil
}

func (m *Manager) record(c Counter, ticket int, kind ActionKind, now time.Time) CallEvent {
	e := CallEvent{
		CounterID:    c.ID,
		CounterName:  c.Name,
		TicketNumber: ticket,
		Timestamp:    now,
		Action:       kind,
	}
	m.history.Push(e)
	return e
}

// Advance calls the ticket after the current one.
func (m *Manager) Advance(id string) (CallEvent, error) {
	c, err := m.callable(id)
	if err != nil {
		return CallEvent{}, err
	}

	now := m.now()
	next := c.CurrentTicket + 1
	c, _ = m.counters.Update(id, Patch{
		CurrentTicket: &next,
		LastCallAt:    &now,
		Queue:         markCalled(c.Queue, next),
	})

	e := m.record(c, next, ActionAdvance, now)
	m.updateStats(id, now)
	return e, nil
}

// Previous steps back one ticket, never below zero. Stats are not touched.
func (m *Manager) Previous(id string) (CallEvent, error) {
	c, err := m.callable(id)
	if err != nil {
		return CallEvent{}, err
	}

	now := m.now()
	prev := max(0, c.CurrentTicket-1)
	c, _ = m.counters.Update(id, Patch{
		CurrentTicket: &prev,
		LastCallAt:    &now,
	})

	return m.record(c, prev, ActionPrevious, now), nil
}

// Repeat announces the current ticket again. Stats are not touched.
func (m *Manager) Repeat(id string) (CallEvent, error) {
	c, err := m.callable(id)
	if err != nil {
		return CallEvent{}, err
	}
	if c.CurrentTicket == 0 {
		slog.Debug("nothing to repeat", "counterID", id)
		return CallEvent{}, ErrNothingToRepeat
	}

	now := m.now()
	c, _ = m.counters.Update(id, Patch{LastCallAt: &now})

	return m.record(c, c.CurrentTicket, ActionRepeat, now), nil
}

// Specific jumps to an arbitrary ticket and counts it like Advance.
func (m *Manager) Specific(id string, ticket int) (CallEvent, error) {
	if ticket < 0 {
		return CallEvent{}, ErrInvalidTicket
	}
	c, err := m.callable(id)
	if err != nil {
		return CallEvent{}, err
	}

	now := m.now()
	c, _ = m.counters.Update(id, Patch{
		CurrentTicket: &ticket,
		LastCallAt:    &now,
		Queue:         markCalled(c.Queue, ticket),
	})

	e := m.record(c, ticket, ActionSpecific, now)
	m.updateStats(id, now)
	return e, nil
}

// Reset clears the ticket pointer, the queue and the last call time. It works
// on paused counters too.
func (m *Manager) Reset(id string) (Counter, error) {
	zero := 0
	c, ok := m.counters.Update(id, Patch{
		CurrentTicket: &zero,
		Queue:         []QueueEntry{},
		ClearLastCall: true,
	})
	if !ok {
		return Counter{}, ErrCounterNotFound
	}
	return c, nil
}

func (m *Manager) Pause(id string) (Counter, error) {
	return m.setActive(id, false)
}

func (m *Manager) Resume(id string) (Counter, error) {
	return m.setActive(id, true)
}

func (m *Manager) setActive(id string, active bool) (Counter, error) {
	c, ok := m.counters.Update(id, Patch{IsActive: &active})
	if !ok {
		return Counter{}, ErrCounterNotFound
	}
	return c, nil
}

// Enqueue adds a waiting ticket. A number already in the queue is ignored.
func (m *Manager) Enqueue(id string, number int) (Counter, error) {
	if number < 0 {
		return Counter{}, ErrInvalidTicket
	}
	c, ok := m.counters.Get(id)
	if !ok {
		return Counter{}, ErrCounterNotFound
	}
	if c.hasTicket(number) {
		return c, nil
	}

	q := append(c.Queue, QueueEntry{
		Number:     number,
		EnqueuedAt: m.now(),
		Status:     StatusWaiting,
	})
	c, _ = m.counters.Update(id, Patch{Queue: q})
	return c, nil
}

func (m *Manager) Dequeue(id string, number int) (Counter, error) {
	c, ok := m.counters.Get(id)
	if !ok {
		return Counter{}, ErrCounterNotFound
	}
	if !c.hasTicket(number) {
		return c, nil
	}

	q := make([]QueueEntry, 0, len(c.Queue))
	for _, e := range c.Queue {
		if e.Number != number {
			q = append(q, e)
		}
	}
	c, _ = m.counters.Update(id, Patch{Queue: q})
	return c, nil
}

func (m *Manager) QueueLength(id string) int {
	c, ok := m.counters.Get(id)
	if !ok {
		return 0
	}
	return len(c.Queue)
}

// History returns the newest events across all counters, 10 by default.
func (m *Manager) History(limit int) []CallEvent {
	if limit <= 0 {
		limit = 10
	}
	return m.history.Recent(limit)
}

func (m *Manager) CounterHistory(id string, limit int) []CallEvent {
	if limit <= 0 {
		limit = 10
	}
	return m.history.ForCounter(id, limit)
}

func (m *Manager) Export() Snapshot {
	return Snapshot{
		Counters:  m.counters.All(),
		History:   m.history.Recent(0),
		Timestamp: m.now(),
	}
}

// Import replaces counters and history with the ones present in s. Negative
// tickets are raised to zero and repeated queue numbers keep their first entry.
func (m *Manager) Import(s Snapshot) {
	if s.Counters != nil {
		m.counters.replace(s.Counters)
	}
	if s.History != nil {
		m.history.replace(s.History)
	}
}

// ClearAll resets every counter and drops the history.
func (m *Manager) ClearAll() {
	for _, c := range m.counters.All() {
		m.Reset(c.ID)
	}
	m.history.Clear()
}

func markCalled(q []QueueEntry, number int) []QueueEntry {
	out := append([]QueueEntry{}, q...)
	for i := range out {
		if out[i].Number == number && out[i].Status == StatusWaiting {
			out[i].Status = StatusCalled
		}
	}
	return out
}
