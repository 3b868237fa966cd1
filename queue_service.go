package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"clinic-queue/internal/queue"
	"clinic-queue/internal/remote"
)

// QueueService serialises every counter operation behind one lock and
// mirrors the counters into the remote store after each change.
type QueueService struct {
	mu      sync.Mutex
	manager *queue.Manager
	display *remote.Display
}

func NewQueueService(manager *queue.Manager, display *remote.Display) *QueueService {
	return &QueueService{manager: manager, display: display}
}

// Load restores counters saved by a previous run. Only counters that are
// still configured are restored; their configured names win.
func (qs *QueueService) Load(ctx context.Context) error {
	qs.mu.Lock()
	defer qs.mu.Unlock()

	saved := map[string]queue.Counter{}
	ok, err := qs.display.LoadCounters(ctx, &saved)
	if err != nil {
		return fmt.Errorf("qs.display.LoadCounters(): %w", err)
	}
	if !ok {
		return nil
	}

	counters := qs.manager.Counters()
	restored := 0
	for i, c := range counters {
		s, found := saved[c.ID]
		if !found {
			continue
		}
		s.ID, s.Name = c.ID, c.Name
		counters[i] = s
		restored++
	}
	qs.manager.Import(queue.Snapshot{Counters: counters})

	slog.Info("counters restored", "restored", restored, "configured", len(counters))
	return nil
}

// persist must be called with qs.mu held.
func (qs *QueueService) persist(ctx context.Context) {
	counters := map[string]any{}
	for _, c := range qs.manager.Counters() {
		counters[c.ID] = c
	}
	if err := qs.display.SaveCounters(ctx, counters); err != nil {
		slog.Error("qs.display.SaveCounters()", "error", err)
	}
}

// Call runs one call action on a counter. ticket is only used by
// queue.ActionSpecific.
func (qs *QueueService) Call(ctx context.Context, counterID string, action queue.ActionKind, ticket int) (queue.CallEvent, error) {
	qs.mu.Lock()
	defer qs.mu.Unlock()

	var (
		event queue.CallEvent
		err   error
	)
	switch action {
	case queue.ActionAdvance:
		event, err = qs.manager.Advance(counterID)
	case queue.ActionPrevious:
		event, err = qs.manager.Previous(counterID)
	case queue.ActionRepeat:
		event, err = qs.manager.Repeat(counterID)
	case queue.ActionSpecific:
		event, err = qs.manager.Specific(counterID, ticket)
	default:
		return queue.CallEvent{}, fmt.Errorf("unknown action %q", action)
	}
	if err != nil {
		return queue.CallEvent{}, err
	}

	qs.persist(ctx)
	return event, nil
}

func (qs *QueueService) mutate(ctx context.Context, fn func() (queue.Counter, error)) (queue.Counter, error) {
	qs.mu.Lock()
	defer qs.mu.Unlock()

	c, err := fn()
	if err != nil {
		return queue.Counter{}, err
	}
	qs.persist(ctx)
	return c, nil
}

func (qs *QueueService) Reset(ctx context.Context, counterID string) (queue.Counter, error) {
	return qs.mutate(ctx, func() (queue.Counter, error) { return qs.manager.Reset(counterID) })
}

func (qs *QueueService) Pause(ctx context.Context, counterID string) (queue.Counter, error) {
	return qs.mutate(ctx, func() (queue.Counter, error) { return qs.manager.Pause(counterID) })
}

func (qs *QueueService) Resume(ctx context.Context, counterID string) (queue.Counter, error) {
	return qs.mutate(ctx, func() (queue.Counter, error) { return qs.manager.Resume(counterID) })
}

func (qs *QueueService) Enqueue(ctx context.Context, counterID string, number int) (queue.Counter, error) {
	return qs.mutate(ctx, func() (queue.Counter, error) { return qs.manager.Enqueue(counterID, number) })
}

func (qs *QueueService) Dequeue(ctx context.Context, counterID string, number int) (queue.Counter, error) {
	return qs.mutate(ctx, func() (queue.Counter, error) { return qs.manager.Dequeue(counterID, number) })
}

func (qs *QueueService) Counters() []queue.Counter {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	return qs.manager.Counters()
}

func (qs *QueueService) Counter(counterID string) (queue.Counter, error) {
	qs.mu.Lock()
	defer qs.mu.Unlock()

	c, ok := qs.manager.Counter(counterID)
	if !ok {
		return queue.Counter{}, queue.ErrCounterNotFound
	}
	return c, nil
}

func (qs *QueueService) CounterStats(counterID string) (queue.CounterStats, error) {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	return qs.manager.CounterStats(counterID)
}

func (qs *QueueService) OverallStats() queue.OverallStats {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	return qs.manager.OverallStats()
}

func (qs *QueueService) EstimatedWait(counterID string, ticket int) (float64, error) {
	qs.mu.Lock()
	defer qs.mu.Unlock()

	if _, ok := qs.manager.Counter(counterID); !ok {
		return 0, queue.ErrCounterNotFound
	}
	return qs.manager.EstimatedWait(counterID, ticket), nil
}

func (qs *QueueService) History(limit int) []queue.CallEvent {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	return qs.manager.History(limit)
}

func (qs *QueueService) CounterHistory(counterID string, limit int) []queue.CallEvent {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	return qs.manager.CounterHistory(counterID, limit)
}

// ClearAll resets every counter and drops the in-memory history.
func (qs *QueueService) ClearAll(ctx context.Context) {
	qs.mu.Lock()
	defer qs.mu.Unlock()

	qs.manager.ClearAll()
	qs.persist(ctx)
}
