package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"clinic-queue/internal/queue"
	"clinic-queue/internal/remote"
)

// Enqueuer is the part of *asynq.Client the services use.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// CallService turns counter calls into stored call records and fans them
// out to displays and the announcer.
type CallService struct {
	queueService *QueueService
	calls        *remote.CallLog
	enqueuer     Enqueuer
	displayID    string
	announce     bool
}

func NewCallService(qs *QueueService, calls *remote.CallLog, enqueuer Enqueuer, displayID string, announce bool) *CallService {
	return &CallService{
		queueService: qs,
		calls:        calls,
		enqueuer:     enqueuer,
		displayID:    displayID,
		announce:     announce,
	}
}

func recordFromEvent(e queue.CallEvent) remote.CallRecord {
	return remote.CallRecord{
		CounterID:    e.CounterID,
		CounterName:  e.CounterName,
		TicketNumber: e.TicketNumber,
		Timestamp:    e.Timestamp.UnixMilli(),
		ActionKind:   string(e.Action),
	}
}

// Call runs the action, stores the resulting call record and schedules the
// display notification and, when enabled, the spoken announcement.
func (cs *CallService) Call(ctx context.Context, counterID string, action queue.ActionKind, ticket int) (remote.CallRecord, error) {
	event, err := cs.queueService.Call(ctx, counterID, action, ticket)
	if err != nil {
		return remote.CallRecord{}, err
	}

	rec, err := cs.calls.SendCall(ctx, recordFromEvent(event))
	if err != nil {
		return remote.CallRecord{}, fmt.Errorf("cs.calls.SendCall(counter: %v): %w", counterID, err)
	}

	cs.scheduleNotification(ctx, rec)
	if cs.announce {
		cs.scheduleAnnouncement(ctx, rec)
	}

	return rec, nil
}

func (cs *CallService) scheduleNotification(ctx context.Context, rec remote.CallRecord) {
	task, err := NewNotifyDisplayTask(cs.displayID, rec)
	if err != nil {
		slog.Error("NewNotifyDisplayTask()", "error", err)
		return
	}
	if _, err := cs.enqueuer.EnqueueContext(ctx, task, asynq.Queue(QueueCritical)); err != nil {
		slog.Error("cs.enqueuer.EnqueueContext(notify)", "counter", rec.CounterID, "error", err)
	}
}

func (cs *CallService) scheduleAnnouncement(ctx context.Context, rec remote.CallRecord) {
	task, err := NewAnnounceCallTask(rec)
	if err != nil {
		slog.Error("NewAnnounceCallTask()", "error", err)
		return
	}
	if _, err := cs.enqueuer.EnqueueContext(ctx, task, asynq.Queue(QueueDefault), asynq.MaxRetry(0)); err != nil {
		slog.Error("cs.enqueuer.EnqueueContext(announce)", "counter", rec.CounterID, "error", err)
	}
}

func (cs *CallService) LatestCall(ctx context.Context) (remote.CallRecord, bool, error) {
	rec, ok, err := cs.calls.LatestCall(ctx)
	if err != nil {
		return remote.CallRecord{}, false, fmt.Errorf("cs.calls.LatestCall(): %w", err)
	}
	return rec, ok, nil
}
