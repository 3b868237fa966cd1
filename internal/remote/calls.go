package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"
)

const (
	PathCalls        = "calls"
	PathClinics      = "clinics"
	PathSettings     = "settings"
	PathInstantAudio = "instant_audio"
	PathCustomName   = "custom_name"
)

// CallRecord is the stored and published shape of one call.
type CallRecord struct {
	CounterID    string `json:"counter_id"`
	CounterName  string `json:"counter_name"`
	TicketNumber int    `json:"ticket_number"`
	// Timestamp is in Unix milliseconds and doubles as the record key.
	Timestamp  int64  `json:"timestamp"`
	ActionKind string `json:"action_kind"`
}

func (r CallRecord) Time() time.Time {
	return time.UnixMilli(r.Timestamp)
}

type CallLog struct {
	store Store
}

func NewCallLog(store Store) *CallLog {
	return &CallLog{store: store}
}

// SendCall stores rec under calls/<timestamp>, stamping it with the current
// time when it has none.
func (l *CallLog) SendCall(ctx context.Context, rec CallRecord) (CallRecord, error) {
	if rec.Timestamp == 0 {
		rec.Timestamp = time.Now().UnixMilli()
	}
	path := PathCalls + "/" + strconv.FormatInt(rec.Timestamp, 10)
	if err := l.store.Set(ctx, path, rec); err != nil {
		return CallRecord{}, fmt.Errorf("l.store.Set(%v): %w", path, err)
	}
	return rec, nil
}

func (l *CallLog) Calls(ctx context.Context) (map[string]CallRecord, error) {
	raw, ok, err := l.store.Get(ctx, PathCalls)
	if err != nil {
		return nil, fmt.Errorf("l.store.Get(%v): %w", PathCalls, err)
	}
	if !ok {
		return map[string]CallRecord{}, nil
	}
	return decodeCalls(raw)
}

func decodeCalls(raw json.RawMessage) (map[string]CallRecord, error) {
	calls := map[string]CallRecord{}
	if len(raw) == 0 {
		return calls, nil
	}
	if err := json.Unmarshal(raw, &calls); err != nil {
		return nil, fmt.Errorf("failed to decode calls: %w", err)
	}
	return calls, nil
}

// sortedKeys orders timestamp keys newest first. Keys that are not numbers
// sort after every numeric key.
func sortedKeys(calls map[string]CallRecord) []string {
	keys := make([]string, 0, len(calls))
	for k := range calls {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.ParseInt(keys[i], 10, 64)
		b, errB := strconv.ParseInt(keys[j], 10, 64)
		switch {
		case errA == nil && errB == nil:
			return a > b
		case errA == nil:
			return true
		case errB == nil:
			return false
		default:
			return keys[i] > keys[j]
		}
	})
	return keys
}

func latest(calls map[string]CallRecord) (CallRecord, bool) {
	keys := sortedKeys(calls)
	if len(keys) == 0 {
		return CallRecord{}, false
	}
	return calls[keys[0]], true
}

func (l *CallLog) LatestCall(ctx context.Context) (CallRecord, bool, error) {
	calls, err := l.Calls(ctx)
	if err != nil {
		return CallRecord{}, false, err
	}
	rec, ok := latest(calls)
	return rec, ok, nil
}

// ListenToCalls polls the calls collection and hands fn the latest record each
// time the collection changes.
func (l *CallLog) ListenToCalls(ctx context.Context, interval time.Duration, fn func(CallRecord)) (unsubscribe func()) {
	return Subscribe(ctx, l.store, PathCalls, interval, func(raw json.RawMessage) {
		calls, err := decodeCalls(raw)
		if err != nil {
			slog.Error("ignoring undecodable calls", "error", err)
			return
		}
		if rec, ok := latest(calls); ok {
			fn(rec)
		}
	})
}

// Trim keeps the newest keep calls and deletes the rest.
func (l *CallLog) Trim(ctx context.Context, keep int) (int, error) {
	calls, err := l.Calls(ctx)
	if err != nil {
		return 0, err
	}

	keys := sortedKeys(calls)
	if len(keys) <= keep {
		return 0, nil
	}

	removed := 0
	for _, k := range keys[max(keep, 0):] {
		if err := l.store.Delete(ctx, PathCalls+"/"+k); err != nil {
			return removed, fmt.Errorf("l.store.Delete(%v): %w", k, err)
		}
		removed++
	}
	return removed, nil
}

// Clear drops every stored call.
func (l *CallLog) Clear(ctx context.Context) error {
	return l.store.Delete(ctx, PathCalls)
}
