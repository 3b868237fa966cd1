package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

type DisplayName struct {
	Name      string `json:"name"`
	Timestamp int64  `json:"timestamp"`
}

type InstantAudio struct {
	Filename  string `json:"filename"`
	Timestamp int64  `json:"timestamp"`
}

// Display reads and writes what the display boards show besides calls.
type Display struct {
	store Store
}

func NewDisplay(store Store) *Display {
	return &Display{store: store}
}

func (d *Display) SetDisplayName(ctx context.Context, name string) error {
	return d.store.Set(ctx, PathCustomName, DisplayName{Name: name, Timestamp: time.Now().UnixMilli()})
}

func (d *Display) DisplayName(ctx context.Context) (DisplayName, bool, error) {
	var v DisplayName
	ok, err := getJSON(ctx, d.store, PathCustomName, &v)
	return v, ok, err
}

func (d *Display) SetInstantAudio(ctx context.Context, filename string) (InstantAudio, error) {
	v := InstantAudio{Filename: filename, Timestamp: time.Now().UnixMilli()}
	if err := d.store.Set(ctx, PathInstantAudio, v); err != nil {
		return InstantAudio{}, err
	}
	return v, nil
}

func (d *Display) InstantAudio(ctx context.Context) (InstantAudio, bool, error) {
	var v InstantAudio
	ok, err := getJSON(ctx, d.store, PathInstantAudio, &v)
	return v, ok, err
}

// ListenToInstantAudio calls fn each time a new instant announcement is requested.
func (d *Display) ListenToInstantAudio(ctx context.Context, interval time.Duration, fn func(InstantAudio)) (unsubscribe func()) {
	return Subscribe(ctx, d.store, PathInstantAudio, interval, func(raw json.RawMessage) {
		var v InstantAudio
		if len(raw) == 0 || json.Unmarshal(raw, &v) != nil || v.Filename == "" {
			return
		}
		fn(v)
	})
}

// SaveCounters stores one field per counter id in the clinics document.
func (d *Display) SaveCounters(ctx context.Context, counters map[string]any) error {
	return d.store.Set(ctx, PathClinics, counters)
}

// LoadCounters decodes the clinics document into dst, a map keyed by counter id.
func (d *Display) LoadCounters(ctx context.Context, dst any) (bool, error) {
	return getJSON(ctx, d.store, PathClinics, dst)
}

func (d *Display) SaveSettings(ctx context.Context, settings map[string]any) error {
	return d.store.Update(ctx, PathSettings, settings)
}

func (d *Display) Settings(ctx context.Context) (map[string]json.RawMessage, error) {
	out := map[string]json.RawMessage{}
	if _, err := getJSON(ctx, d.store, PathSettings, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func getJSON(ctx context.Context, store Store, path string, dst any) (bool, error) {
	raw, ok, err := store.Get(ctx, path)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("failed to decode %v: %w", path, err)
	}
	return true, nil
}
