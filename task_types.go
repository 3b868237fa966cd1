package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"clinic-queue/internal/announce"
	"clinic-queue/internal/remote"
)

const (
	TypeNotifyDisplay = "notify:display"
	TypeAnnounceCall  = "announce:call"
	TypeTrimCalls     = "calls:trim"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// Task payloads
type NotifyDisplayPayload struct {
	DisplayID string            `json:"display_id"`
	Call      remote.CallRecord `json:"call"`
}

type AnnounceCallPayload struct {
	Call remote.CallRecord `json:"call"`
}

type TrimCallsPayload struct {
	Keep int `json:"keep"`
}

func NewNotifyDisplayTask(displayID string, rec remote.CallRecord) (*asynq.Task, error) {
	payload, err := json.Marshal(NotifyDisplayPayload{DisplayID: displayID, Call: rec})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeNotifyDisplay, payload, asynq.TaskID(uuid.New().String())), nil
}

func NewAnnounceCallTask(rec remote.CallRecord) (*asynq.Task, error) {
	payload, err := json.Marshal(AnnounceCallPayload{Call: rec})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeAnnounceCall, payload, asynq.TaskID(uuid.New().String())), nil
}

func NewTrimCallsTask(keep int) (*asynq.Task, error) {
	payload, err := json.Marshal(TrimCallsPayload{Keep: keep})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeTrimCalls, payload, asynq.Queue(QueueLow)), nil
}

// Task handlers
func (h *Handlers) HandleNotifyDisplay(ctx context.Context, t *asynq.Task) error {
	var payload NotifyDisplayPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("json.Unmarshal(%v): %w: %w", TypeNotifyDisplay, err, asynq.SkipRetry)
	}

	return h.notificationService.NotifyDisplay(ctx, payload.DisplayID, payload.Call)
}

// HandleAnnounceCall plays the call when the announcer is free. A call that
// arrives while another is playing is dropped, not retried.
func (h *Handlers) HandleAnnounceCall(ctx context.Context, t *asynq.Task) error {
	var payload AnnounceCallPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("json.Unmarshal(%v): %w: %w", TypeAnnounceCall, err, asynq.SkipRetry)
	}

	if h.announcer == nil {
		slog.Debug("announcer disabled, skipping", "counter", payload.Call.CounterID, "ticket", payload.Call.TicketNumber)
		return nil
	}

	err := h.announcer.Announce(ctx, announce.Call{
		TicketNumber: payload.Call.TicketNumber,
		CounterID:    payload.Call.CounterID,
		CounterName:  payload.Call.CounterName,
	})
	if errors.Is(err, announce.ErrAnnouncing) {
		slog.Info("announcement rejected, another one is playing", "counter", payload.Call.CounterID, "ticket", payload.Call.TicketNumber)
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return err
}

func (h *Handlers) HandleTrimCalls(ctx context.Context, t *asynq.Task) error {
	var payload TrimCallsPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("json.Unmarshal(%v): %w: %w", TypeTrimCalls, err, asynq.SkipRetry)
	}
	if payload.Keep < 1 {
		return fmt.Errorf("keep must be at least 1, got %d: %w", payload.Keep, asynq.SkipRetry)
	}

	_, err := h.callService.TrimCalls(ctx, payload.Keep)
	return err
}
