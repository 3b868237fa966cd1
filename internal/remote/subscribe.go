package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

const DefaultPollInterval = time.Second

// Subscribe polls path and calls fn whenever its serialised value differs
// from the previous poll. The first check runs immediately. Delivery is at
// least once; changes between two polls collapse into one call, and a value
// that disappears is reported as nil.
func Subscribe(ctx context.Context, store Store, path string, interval time.Duration, fn func(json.RawMessage)) (unsubscribe func()) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)

		// nil stands for an absent value, so an empty path starts silent
		var last []byte
		check := func() {
			val, _, err := store.Get(ctx, path)
			if err != nil {
				if ctx.Err() == nil {
					slog.Error("subscription poll failed", "path", path, "error", err)
				}
				return
			}
			if bytes.Equal(last, val) {
				return
			}
			last = append([]byte(nil), val...)
			fn(val)
		}

		check()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				check()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}
