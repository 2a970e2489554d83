package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/JakeFAU/realtime-news-crawler/internal/harvest"
	"github.com/JakeFAU/realtime-news-crawler/internal/storage"
)

// NewsStore is an in-memory harvest.Store keyed by article URL.
type NewsStore struct {
	mu     sync.RWMutex
	nextID int64
	byURL  map[string]int64
	rows   map[int64]harvest.AnalyzedArticle
}

// NewNewsStore constructs an empty NewsStore.
func NewNewsStore() *NewsStore {
	return &NewsStore{
		byURL: make(map[string]int64),
		rows:  make(map[int64]harvest.AnalyzedArticle),
	}
}

// Save records the article unless its URL is already stored.
func (s *NewsStore) Save(_ context.Context, article harvest.AnalyzedArticle) (harvest.StoreResult, error) {
	if article.URL == "" {
		return harvest.StoreResult{}, errors.New("article url is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byURL[article.URL]; ok {
		return harvest.StoreResult{ID: id, Duplicate: true}, nil
	}
	s.nextID++
	s.byURL[article.URL] = s.nextID
	s.rows[s.nextID] = article
	return harvest.StoreResult{ID: s.nextID}, nil
}

// Get returns a stored article by id.
func (s *NewsStore) Get(id int64) (harvest.AnalyzedArticle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	article, ok := s.rows[id]
	return article, ok
}

// Len reports how many articles are stored.
func (s *NewsStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// Each calls fn for every stored article in id order. The store is not
// locked while fn runs.
func (s *NewsStore) Each(ctx context.Context, fn func(id int64, doc storage.IndexDocument) error) error {
	s.mu.RLock()
	ids := make([]int64, 0, len(s.rows))
	for id := range s.rows {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		article, ok := s.Get(id)
		if !ok {
			continue
		}
		if err := fn(id, storage.IndexDocument{Title: article.Title, Content: article.Content}); err != nil {
			return err
		}
	}
	return nil
}

// Ping always succeeds.
func (s *NewsStore) Ping(context.Context) error {
	return nil
}
