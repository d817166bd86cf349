package phase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu     sync.Mutex
	values map[string]string
	getErr error
}

func (m *memoryStore) GetSetting(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.values[key]
	if !ok {
		return "", ErrSettingNotFound
	}
	return v, nil
}

func (m *memoryStore) InitSetting(ctx context.Context, key, value string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.values[key]; ok {
		return existing, nil
	}
	m.values[key] = value
	return value, nil
}

func TestResolveThreshold_FirstWriteWins(t *testing.T) {
	ctx := context.Background()
	store := &memoryStore{values: map[string]string{}}

	first, err := ResolveThreshold(ctx, store, LiveAtKey, testLiveAt)
	require.NoError(t, err)
	assert.True(t, testLiveAt.Equal(first))

	later := testLiveAt.Add(72 * time.Hour)
	second, err := ResolveThreshold(ctx, store, LiveAtKey, later)
	require.NoError(t, err)
	assert.True(t, testLiveAt.Equal(second), "stored threshold must not move")
}

func TestResolveThreshold_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := ResolveThreshold(ctx, &memoryStore{getErr: errors.New("disk gone")}, LiveAtKey, testLiveAt)
	assert.Error(t, err)

	corrupt := &memoryStore{values: map[string]string{LiveAtKey: "yesterday"}}
	_, err = ResolveThreshold(ctx, corrupt, LiveAtKey, testLiveAt)
	assert.Error(t, err)
}
