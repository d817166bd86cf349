package phase

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// LiveAtKey is the settings key for the persisted T1 threshold.
const LiveAtKey = "presale_live_at"

// ErrSettingNotFound is returned by ThresholdStore.GetSetting for unknown keys.
var ErrSettingNotFound = errors.New("setting not found")

// ThresholdStore persists thresholds with first-write-wins semantics.
type ThresholdStore interface {
	GetSetting(ctx context.Context, key string) (string, error)
	// InitSetting stores value unless key already has one, and returns the
	// value that is stored afterwards.
	InitSetting(ctx context.Context, key, value string) (string, error)
}

// ResolveThreshold returns the stored threshold for key, storing configured
// first if nothing is stored yet. Once written the value never changes.
func ResolveThreshold(ctx context.Context, store ThresholdStore, key string, configured time.Time) (time.Time, error) {
	raw, err := store.GetSetting(ctx, key)
	switch {
	case errors.Is(err, ErrSettingNotFound):
		raw, err = store.InitSetting(ctx, key, configured.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return time.Time{}, fmt.Errorf("failed to store threshold %s: %w", key, err)
		}
	case err != nil:
		return time.Time{}, fmt.Errorf("failed to read threshold %s: %w", key, err)
	}

	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("stored threshold %s is not a timestamp: %w", key, err)
	}
	return t, nil
}
