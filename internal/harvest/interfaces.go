package harvest

import (
	"context"
	"errors"
	"time"
)

// ErrUnknownKind is reported when no Fetcher is registered for an item kind.
var ErrUnknownKind = errors.New("unknown source kind")

// Lister returns one page of listings for a source. An empty, error-free
// result means the source has no more pages this cycle.
type Lister interface {
	List(ctx context.Context, page int) ([]Listing, error)
}

// ListerFunc adapts a function to Lister.
type ListerFunc func(ctx context.Context, page int) ([]Listing, error)

// List calls f.
func (f ListerFunc) List(ctx context.Context, page int) ([]Listing, error) {
	return f(ctx, page)
}

// Fetcher retrieves the full article for a WorkItem. A non-nil error means
// the item could not be retrieved and should be dropped.
type Fetcher interface {
	Fetch(ctx context.Context, item WorkItem) (FetchedArticle, error)
}

// Analyzer enriches fetched content.
type Analyzer interface {
	Analyze(ctx context.Context, article FetchedArticle) (AnalyzedArticle, error)
}

// Store persists analyzed articles. Implementations must be safe for
// concurrent use and detect already-stored articles themselves.
type Store interface {
	Save(ctx context.Context, article AnalyzedArticle) (StoreResult, error)
}

// Enqueuer accepts work for the pool.
type Enqueuer interface {
	Enqueue(ctx context.Context, item QueueItem) error
}

// Pinger is implemented by collaborators that support a pre-flight check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces item and cycle IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Hasher computes digests used for archive object names.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Publisher announces stored articles to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}
