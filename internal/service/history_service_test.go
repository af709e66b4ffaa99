package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowdeck/chat-core/internal/cache"
	"github.com/flowdeck/chat-core/internal/domain"
	"github.com/flowdeck/chat-core/internal/repository"
)

type historyFakeStore struct {
	repository.Store
	mu        sync.Mutex
	listCalls int
	messages  []domain.Message
}

func (f *historyFakeStore) ListMessages(ctx context.Context, roomID string, page, limit int) ([]domain.Message, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return f.messages, int64(len(f.messages)), nil
}

func (f *historyFakeStore) SearchMessages(ctx context.Context, roomID, query string, page, limit int) ([]domain.Message, int64, error) {
	var out []domain.Message
	for _, msg := range f.messages {
		if msg.Content == query {
			out = append(out, msg)
		}
	}
	return out, int64(len(out)), nil
}

type mapCache struct {
	mu    sync.Mutex
	pages map[string]*cache.HistoryPage
	gets  int
	sets  int
}

func newMapCache() *mapCache {
	return &mapCache{pages: make(map[string]*cache.HistoryPage)}
}

func (c *mapCache) BuildKey(roomID string, page, limit int) string {
	return fmt.Sprintf("%s:%d:%d", roomID, page, limit)
}

func (c *mapCache) Get(ctx context.Context, key string) (*cache.HistoryPage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if page, ok := c.pages[key]; ok {
		return page, nil
	}
	return nil, cache.ErrCacheMiss
}

func (c *mapCache) Set(ctx context.Context, key string, page *cache.HistoryPage, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.pages[key] = page
	return nil
}

func (c *mapCache) Close() error { return nil }

func TestGetHistoryFirstPageBypassesCache(t *testing.T) {
	store := &historyFakeStore{messages: []domain.Message{{ID: "m1", Content: "hi"}}}
	cached := newMapCache()
	svc := NewHistoryService(store, cached, time.Minute)

	// Page 1 must always be fresh so just-sent messages show up.
	page, err := svc.GetHistory(context.Background(), "room-1", 1, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	assert.Zero(t, cached.gets)
	assert.Zero(t, cached.sets)
	assert.Equal(t, 1, store.listCalls)
}

func TestGetHistoryDeepPagesUseCache(t *testing.T) {
	store := &historyFakeStore{messages: []domain.Message{{ID: "m1"}}}
	cached := newMapCache()
	svc := NewHistoryService(store, cached, time.Minute)

	_, err := svc.GetHistory(context.Background(), "room-1", 2, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, store.listCalls)
	assert.Equal(t, 1, cached.sets)

	// Second read is served from the cache.
	_, err = svc.GetHistory(context.Background(), "room-1", 2, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, store.listCalls)
}

func TestGetHistoryNilCache(t *testing.T) {
	store := &historyFakeStore{}
	svc := NewHistoryService(store, nil, time.Minute)

	_, err := svc.GetHistory(context.Background(), "room-1", 3, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, store.listCalls)
}

func TestGetHistoryClampsPage(t *testing.T) {
	store := &historyFakeStore{}
	svc := NewHistoryService(store, newMapCache(), time.Minute)

	_, err := svc.GetHistory(context.Background(), "room-1", 0, 50)
	require.NoError(t, err)
	// Page 0 is treated as page 1 and read fresh.
	assert.Equal(t, 1, store.listCalls)
}

func TestSearchDelegatesToStore(t *testing.T) {
	store := &historyFakeStore{messages: []domain.Message{
		{ID: "m1", Content: "deploy"},
		{ID: "m2", Content: "lunch"},
	}}
	svc := NewHistoryService(store, nil, time.Minute)

	messages, total, err := svc.Search(context.Background(), "room-1", "deploy", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, messages, 1)
	assert.Equal(t, "m1", messages[0].ID)
}
