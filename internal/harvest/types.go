package harvest

import (
	"fmt"
	"time"
)

// SourceKind identifies which Lister/Fetcher pair applies to an item.
type SourceKind string

// Registered source kinds.
const (
	KindNews  SourceKind = "news"
	KindEnter SourceKind = "enter"
	KindSport SourceKind = "sport"
)

// Kinds returns every known kind in registry order.
func Kinds() []SourceKind {
	return []SourceKind{KindNews, KindEnter, KindSport}
}

// Valid reports whether k is a known kind.
func (k SourceKind) Valid() bool {
	switch k {
	case KindNews, KindEnter, KindSport:
		return true
	default:
		return false
	}
}

// Listing metadata keys captured at listing time.
const (
	MetaImageURL    = "image_url"
	MetaMediaName   = "media_name"
	MetaOriginalURL = "original_url"
)

// Listing is a single entry returned by a Lister page.
type Listing struct {
	DedupKey string
	Kind     SourceKind
	Metadata map[string]string
}

// WorkItem is one discovered article pending processing. It is never mutated
// after being enqueued.
type WorkItem struct {
	ID           string
	CycleID      string
	Kind         SourceKind
	DedupKey     string
	Metadata     map[string]string
	DiscoveredAt time.Time
}

// Meta returns a listing metadata value or "".
func (w WorkItem) Meta(key string) string {
	if w.Metadata == nil {
		return ""
	}
	return w.Metadata[key]
}

// String renders the item identity used in log lines and errors.
func (w WorkItem) String() string {
	return fmt.Sprintf("%s[%s] %s", w.Kind, w.ID, w.DedupKey)
}

// QueueItem wraps a WorkItem on the queue. A QueueItem with Sentinel set
// carries no work and tells the receiving worker to exit.
type QueueItem struct {
	Item     WorkItem
	Sentinel bool
}

// Sentinel builds the shutdown marker enqueued once per worker.
func Sentinel() QueueItem {
	return QueueItem{Sentinel: true}
}

// Work wraps an item for the queue.
func Work(item WorkItem) QueueItem {
	return QueueItem{Item: item}
}

// FetchedArticle is the full content retrieved for a WorkItem.
type FetchedArticle struct {
	URL       string     `json:"url"`
	SourceURL string     `json:"source_url"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	ImageURL  string     `json:"image_url"`
	MediaName string     `json:"media_name"`
	Kind      SourceKind `json:"kind"`
}

// AnalyzedArticle is a FetchedArticle enriched by the Analyzer.
type AnalyzedArticle struct {
	FetchedArticle

	Summary          string             `json:"summary"`
	Category         string             `json:"category"`
	HeadlineScore    float64            `json:"headline_score"`
	HeadlineScoreRaw float64            `json:"headline_score_origin"`
	HeadlineProbs    map[string]float64 `json:"headline_score_probs,omitempty"`
	FactScore        float64            `json:"fact_score"`
	FactScoreRaw     float64            `json:"fact_score_origin"`
	FactProbs        map[string]float64 `json:"fact_score_probs,omitempty"`
	HeadlineReason   string             `json:"headline_score_reason"`
	FactReason       string             `json:"fact_score_reason"`
	AnalyzedAt       time.Time          `json:"analyzed_at"`
}

// StoreResult describes what the Store did with an article.
type StoreResult struct {
	ID        int64
	Duplicate bool
}
