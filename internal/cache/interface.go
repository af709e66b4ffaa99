package cache

import (
	"context"
	"errors"
	"time"

	"github.com/flowdeck/chat-core/internal/domain"
)

// ErrCacheMiss is returned when a key is absent.
var ErrCacheMiss = errors.New("cache miss")

// HistoryPage is one cached page of room history.
type HistoryPage struct {
	Messages []domain.Message `json:"messages"`
	Total    int64            `json:"total"`
}

// HistoryCache caches pages of message history in front of the store.
type HistoryCache interface {
	BuildKey(roomID string, page, limit int) string
	Get(ctx context.Context, key string) (*HistoryPage, error)
	Set(ctx context.Context, key string, page *HistoryPage, ttl time.Duration) error
	Close() error
}
