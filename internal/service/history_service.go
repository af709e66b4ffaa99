package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/flowdeck/chat-core/internal/cache"
	"github.com/flowdeck/chat-core/internal/domain"
	"github.com/flowdeck/chat-core/internal/repository"
	"github.com/flowdeck/chat-core/pkg/log"
)

type historyService struct {
	store    repository.Store
	cache    cache.HistoryCache // nil disables caching
	cacheTTL time.Duration
	sf       singleflight.Group
}

// NewHistoryService creates the paginated history/search reader. cache may
// be nil, in which case every page hits the store.
func NewHistoryService(store repository.Store, historyCache cache.HistoryCache, cacheTTL time.Duration) HistoryService {
	return &historyService{
		store:    store,
		cache:    historyCache,
		cacheTTL: cacheTTL,
	}
}

// GetHistory returns one page of room history, newest first. The first
// page is always read fresh so a just-sent message shows up immediately;
// deeper pages are cached and deduplicated with singleflight.
func (s *historyService) GetHistory(ctx context.Context, roomID string, page, limit int) (*cache.HistoryPage, error) {
	if page < 1 {
		page = 1
	}

	if s.cache == nil || page == 1 {
		messages, total, err := s.store.ListMessages(ctx, roomID, page, limit)
		if err != nil {
			return nil, fmt.Errorf("failed to list messages: %w", err)
		}
		return &cache.HistoryPage{Messages: messages, Total: total}, nil
	}

	key := s.cache.BuildKey(roomID, page, limit)

	result, err, _ := s.sf.Do(key, func() (interface{}, error) {
		return s.fetchWithCache(ctx, roomID, page, limit, key)
	})
	if err != nil {
		return nil, err
	}

	pageResult, ok := result.(*cache.HistoryPage)
	if !ok {
		return nil, errors.New("unexpected result type from singleflight")
	}
	return pageResult, nil
}

func (s *historyService) fetchWithCache(ctx context.Context, roomID string, page, limit int, key string) (*cache.HistoryPage, error) {
	cached, err := s.cache.Get(ctx, key)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		log.Ctx(ctx).Warn().Err(err).Msg("history cache get error")
	}

	messages, total, err := s.store.ListMessages(ctx, roomID, page, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	result := &cache.HistoryPage{Messages: messages, Total: total}
	if err := s.cache.Set(ctx, key, result, s.cacheTTL); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("history cache set error")
	}

	return result, nil
}

// Search runs a content search over a room's non-deleted messages.
func (s *historyService) Search(ctx context.Context, roomID, query string, page, limit int) ([]domain.Message, int64, error) {
	return s.store.SearchMessages(ctx, roomID, query, page, limit)
}
