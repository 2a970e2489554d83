// Package bleveindex keeps a full-text index of stored articles keyed by news id.
package bleveindex

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/JakeFAU/realtime-news-crawler/internal/storage"
)

const docType = "news"

// Hit is one search result.
type Hit struct {
	ID    int64   `json:"news_id"`
	Score float64 `json:"score"`
	Title string  `json:"title"`
}

// Index wraps a bleve index. An empty path keeps the index in memory.
type Index struct {
	index bleve.Index
}

type document struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Open opens the index at path, creating it when it does not exist.
func Open(path string) (*Index, error) {
	if path == "" {
		idx, err := bleve.NewMemOnly(newMapping())
		if err != nil {
			return nil, fmt.Errorf("create memory index: %w", err)
		}
		return &Index{index: idx}, nil
	}
	idx, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		idx, err = bleve.New(path, newMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", path, err)
	}
	return &Index{index: idx}, nil
}

func newMapping() mapping.IndexMapping {
	m := bleve.NewIndexMapping()
	m.TypeField = "type"

	doc := bleve.NewDocumentMapping()

	title := bleve.NewTextFieldMapping()
	title.Store = true
	title.Analyzer = standard.Name
	doc.AddFieldMappingsAt("title", title)

	content := bleve.NewTextFieldMapping()
	content.Store = false
	content.Analyzer = standard.Name
	doc.AddFieldMappingsAt("content", content)

	m.AddDocumentMapping(docType, doc)
	return m
}

// Index writes doc under id, replacing an earlier version.
func (i *Index) Index(_ context.Context, id int64, doc storage.IndexDocument) error {
	err := i.index.Index(strconv.FormatInt(id, 10), document{
		Type:    docType,
		Title:   doc.Title,
		Content: doc.Content,
	})
	if err != nil {
		return fmt.Errorf("index news %d: %w", id, err)
	}
	return nil
}

// Search runs a match query over title and content.
func (i *Index) Search(ctx context.Context, text string, size int) ([]Hit, error) {
	if size <= 0 {
		size = 10
	}
	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(text), size, 0, false)
	req.Fields = []string{"title"}
	res, err := i.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		id, err := strconv.ParseInt(h.ID, 10, 64)
		if err != nil {
			continue
		}
		title, _ := h.Fields["title"].(string)
		hits = append(hits, Hit{ID: id, Score: h.Score, Title: title})
	}
	return hits, nil
}

// Count returns the number of indexed documents.
func (i *Index) Count() (uint64, error) {
	n, err := i.index.DocCount()
	if err != nil {
		return 0, fmt.Errorf("doc count: %w", err)
	}
	return n, nil
}

// Ping verifies the index is readable.
func (i *Index) Ping(context.Context) error {
	_, err := i.Count()
	return err
}

// Close releases the index.
func (i *Index) Close() error {
	return i.index.Close()
}
