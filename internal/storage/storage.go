// Package storage persists analyzed articles. Writer composes the
// authoritative record store with optional search, archive and
// notification sinks.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-news-crawler/internal/harvest"
	"github.com/JakeFAU/realtime-news-crawler/internal/metrics"
)

// IndexDocument is the searchable projection of a stored article.
type IndexDocument struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Indexer writes documents to a search index keyed by record id.
type Indexer interface {
	Index(ctx context.Context, id int64, doc IndexDocument) error
}

// Scanner walks every stored article in id order.
type Scanner interface {
	Each(ctx context.Context, fn func(id int64, doc IndexDocument) error) error
}

// Notification is published for each newly stored article.
type Notification struct {
	ID            int64              `json:"news_id"`
	URL           string             `json:"url"`
	Kind          harvest.SourceKind `json:"kind"`
	Title         string             `json:"title"`
	Category      string             `json:"category"`
	HeadlineScore float64            `json:"headline_score"`
	FactScore     float64            `json:"fact_score"`
	ArchiveURI    string             `json:"archive_uri,omitempty"`
	StoredAt      time.Time          `json:"stored_at"`
}

// Sinks are the optional secondary destinations. Nil fields are skipped.
type Sinks struct {
	Index     Indexer
	Archive   harvest.BlobStore
	Publisher harvest.Publisher
	// ArchivePrefix is prepended to archive object names.
	ArchivePrefix string
	// Topic is passed through to the Publisher.
	Topic string
}

// Writer implements harvest.Store. Only the record store decides the
// outcome; sink failures are logged and counted.
type Writer struct {
	records harvest.Store
	sinks   Sinks
	hasher  harvest.Hasher
	clock   harvest.Clock
	logger  *zap.Logger
}

// NewWriter builds a Writer around the authoritative record store.
func NewWriter(
	records harvest.Store,
	sinks Sinks,
	hasher harvest.Hasher,
	clock harvest.Clock,
	logger *zap.Logger,
) (*Writer, error) {
	if records == nil {
		return nil, errors.New("record store is required")
	}
	if sinks.Archive != nil && hasher == nil {
		return nil, errors.New("archive sink requires a hasher")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		records: records,
		sinks:   sinks,
		hasher:  hasher,
		clock:   clock,
		logger:  logger.Named("storage"),
	}, nil
}

// Save writes the record, then fans out to the configured sinks when the
// article is new.
func (w *Writer) Save(ctx context.Context, article harvest.AnalyzedArticle) (harvest.StoreResult, error) {
	res, err := w.records.Save(ctx, article)
	if err != nil {
		return harvest.StoreResult{}, fmt.Errorf("save record: %w", err)
	}
	if res.Duplicate {
		return res, nil
	}

	log := w.logger.With(zap.Int64("news_id", res.ID), zap.String("url", article.URL))
	if w.sinks.Index != nil {
		doc := IndexDocument{Title: article.Title, Content: article.Content}
		if err := w.sinks.Index.Index(ctx, res.ID, doc); err != nil {
			w.sinkFailed(log, "index", err)
		}
	}

	var archiveURI string
	if w.sinks.Archive != nil {
		uri, err := w.archive(ctx, article)
		if err != nil {
			w.sinkFailed(log, "archive", err)
		} else {
			archiveURI = uri
		}
	}

	if w.sinks.Publisher != nil {
		note := Notification{
			ID:            res.ID,
			URL:           article.URL,
			Kind:          article.Kind,
			Title:         article.Title,
			Category:      article.Category,
			HeadlineScore: article.HeadlineScore,
			FactScore:     article.FactScore,
			ArchiveURI:    archiveURI,
		}
		if w.clock != nil {
			note.StoredAt = w.clock.Now()
		}
		if _, err := w.sinks.Publisher.Publish(ctx, w.sinks.Topic, note); err != nil {
			w.sinkFailed(log, "publish", err)
		}
	}
	return res, nil
}

// ArchivePath returns the object name an article is archived under:
// <prefix>/<kind>/<sha256(url)>.json.
func ArchivePath(prefix string, kind harvest.SourceKind, digest string) string {
	return path.Join(prefix, string(kind), digest+".json")
}

func (w *Writer) archive(ctx context.Context, article harvest.AnalyzedArticle) (string, error) {
	digest, err := w.hasher.Hash([]byte(article.URL))
	if err != nil {
		return "", fmt.Errorf("hash url: %w", err)
	}
	body, err := json.Marshal(article)
	if err != nil {
		return "", fmt.Errorf("marshal article: %w", err)
	}
	uri, err := w.sinks.Archive.PutObject(ctx, ArchivePath(w.sinks.ArchivePrefix, article.Kind, digest), "application/json", body)
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return uri, nil
}

func (w *Writer) sinkFailed(log *zap.Logger, sink string, err error) {
	metrics.ObserveSinkFailure(sink)
	log.Warn("secondary write failed", zap.String("sink", sink), zap.Error(err))
}

// Reindex replays every stored article into idx and returns how many
// documents were written.
func Reindex(ctx context.Context, src Scanner, idx Indexer) (int, error) {
	count := 0
	err := src.Each(ctx, func(id int64, doc IndexDocument) error {
		if err := idx.Index(ctx, id, doc); err != nil {
			return fmt.Errorf("index %d: %w", id, err)
		}
		count++
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("reindex: %w", err)
	}
	return count, nil
}
