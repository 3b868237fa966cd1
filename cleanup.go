package main

import (
	"context"
	"fmt"
	"log/slog"
)

// TrimCalls keeps the newest keep call records and deletes the rest.
func (cs *CallService) TrimCalls(ctx context.Context, keep int) (int, error) {
	removed, err := cs.calls.Trim(ctx, keep)
	if err != nil {
		return removed, fmt.Errorf("cs.calls.Trim(keep: %v): %w", keep, err)
	}

	if removed > 0 {
		slog.Info("Call log trimmed", "removed", removed, "kept", keep)
	}
	return removed, nil
}

// ClearAll resets every counter, drops the history and removes every stored
// call record.
func (cs *CallService) ClearAll(ctx context.Context) error {
	cs.queueService.ClearAll(ctx)

	if err := cs.calls.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear call log: %w", err)
	}

	slog.Info("All counters and calls cleared")
	return nil
}
