package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"clinic-queue/internal/remote"
)

const MessageTypeCall = "call"

// DisplayMessage is what a display board receives for each call.
type DisplayMessage struct {
	ID     string            `json:"id"`
	Type   string            `json:"type"`
	Call   remote.CallRecord `json:"call"`
	SentAt time.Time         `json:"sent_at"`
}

type NotificationService struct {
	pubnub Pubnub
}

// NewNotificationService accepts a nil pubnub, in which case notifications
// are only logged.
func NewNotificationService(pubnub Pubnub) *NotificationService {
	return &NotificationService{pubnub: pubnub}
}

func (ns *NotificationService) NotifyDisplay(ctx context.Context, displayID string, rec remote.CallRecord) error {
	msg := DisplayMessage{
		ID:     uuid.New().String(),
		Type:   MessageTypeCall,
		Call:   rec,
		SentAt: time.Now(),
	}

	if ns.pubnub == nil {
		slog.Info("display notification", "display", displayID, "counter", rec.CounterID, "ticket", rec.TicketNumber)
		return nil
	}

	timetoken, err := ns.pubnub.Publish(ctx, displayID, msg)
	if err != nil {
		return fmt.Errorf("ns.pubnub.Publish(%v): %w", displayID, err)
	}

	slog.Debug("display notified", "display", displayID, "message", msg.ID, "timetoken", timetoken)
	return nil
}
