package queue

import (
	"errors"
	"time"
)

const (
	DefaultHistoryCapacity = 100
	DefaultAverageWait     = 5.0

	// recentWindow is how many of a counter's newest calls feed the wait estimate.
	recentWindow = 10
)

var (
	ErrCounterNotFound = errors.New("counter not found")
	ErrCounterInactive = errors.New("counter is paused")
	ErrNothingToRepeat = errors.New("no ticket has been called yet")
	ErrInvalidTicket   = errors.New("ticket number must not be negative")
)

type ActionKind string

const (
	ActionAdvance  ActionKind = "next"
	ActionPrevious ActionKind = "previous"
	ActionRepeat   ActionKind = "repeat"
	ActionSpecific ActionKind = "specific"
)

type EntryStatus string

const (
	StatusWaiting EntryStatus = "waiting"
	StatusCalled  EntryStatus = "called"
	StatusRemoved EntryStatus = "removed"
)

// CounterConfig is the external description a counter is built from.
type CounterConfig struct {
	ID   string `json:"id" mapstructure:"id"`
	Name string `json:"name" mapstructure:"name"`
}

type QueueEntry struct {
	Number     int         `json:"number"`
	EnqueuedAt time.Time   `json:"enqueued_at"`
	Status     EntryStatus `json:"status"`
}

type Stats struct {
	TotalCalled            int        `json:"total_called"`
	AverageWaitTimeMinutes float64    `json:"average_wait_time_minutes"`
	LastCallTime           *time.Time `json:"last_call_time,omitempty"`
}

type Counter struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	CurrentTicket int          `json:"current_ticket"`
	Queue         []QueueEntry `json:"queue"`
	IsActive      bool         `json:"is_active"`
	Stats         Stats        `json:"stats"`
	LastCallAt    *time.Time   `json:"last_call_at,omitempty"`
}

// NewCounter builds a fully populated counter from its configuration.
func NewCounter(cfg CounterConfig) Counter {
	return Counter{
		ID:       cfg.ID,
		Name:     cfg.Name,
		Queue:    []QueueEntry{},
		IsActive: true,
		Stats: Stats{
			AverageWaitTimeMinutes: DefaultAverageWait,
		},
	}
}

func (c Counter) clone() Counter {
	out := c
	out.Queue = append([]QueueEntry{}, c.Queue...)
	if c.LastCallAt != nil {
		t := *c.LastCallAt
		out.LastCallAt = &t
	}
	if c.Stats.LastCallTime != nil {
		t := *c.Stats.LastCallTime
		out.Stats.LastCallTime = &t
	}
	return out
}

func (c Counter) hasTicket(number int) bool {
	for _, e := range c.Queue {
		if e.Number == number {
			return true
		}
	}
	return false
}

// CallEvent records one call action. It is never modified after creation.
type CallEvent struct {
	CounterID    string     `json:"counter_id"`
	CounterName  string     `json:"counter_name"`
	TicketNumber int        `json:"ticket_number"`
	Timestamp    time.Time  `json:"timestamp"`
	Action       ActionKind `json:"action_kind"`
}

type CounterStats struct {
	CurrentTicket          int        `json:"current_ticket"`
	TotalCalled            int        `json:"total_called"`
	AverageWaitTimeMinutes float64    `json:"average_wait_time_minutes"`
	QueueLength            int        `json:"queue_length"`
	IsActive               bool       `json:"is_active"`
	LastCall               *time.Time `json:"last_call,omitempty"`
}

type OverallStats struct {
	TotalCounters      int         `json:"total_counters"`
	ActiveCounters     int         `json:"active_counters"`
	TotalTicketsCalled int         `json:"total_tickets_called"`
	TotalInQueue       int         `json:"total_in_queue"`
	RecentCalls        []CallEvent `json:"recent_calls"`
}

// Snapshot is the exportable state of a Manager.
type Snapshot struct {
	Counters  []Counter   `json:"counters"`
	History   []CallEvent `json:"history"`
	Timestamp time.Time   `json:"timestamp"`
}
