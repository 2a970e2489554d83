// Package registry holds the static list of news sources the producer walks
// each cycle and the fetchers workers use to resolve items by kind.
package registry

import (
	"errors"
	"fmt"

	"github.com/JakeFAU/realtime-news-crawler/internal/harvest"
)

// Descriptor describes one source. Registry order is the order the producer
// visits sources within a cycle.
type Descriptor struct {
	Name      string
	Kind      harvest.SourceKind
	Lister    harvest.Lister
	MaxPages  int
	StartPage int
}

// Default paging for the built-in sources.
var defaultPaging = map[harvest.SourceKind]struct{ start, max int }{
	harvest.KindNews:  {start: 1, max: 10},
	harvest.KindEnter: {start: 1, max: 4},
	harvest.KindSport: {start: 0, max: 4},
}

// StartPage returns the first page index for kind.
func StartPage(kind harvest.SourceKind) int {
	return defaultPaging[kind].start
}

// DefaultMaxPages returns the default page bound for kind.
func DefaultMaxPages(kind harvest.SourceKind) int {
	return defaultPaging[kind].max
}

// Source binds a lister and fetcher for one kind.
type Source struct {
	Kind    harvest.SourceKind
	Lister  harvest.Lister
	Fetcher harvest.Fetcher
	// MaxPages overrides the default page bound when positive.
	MaxPages int
}

// Registry is immutable after New returns.
type Registry struct {
	descriptors []Descriptor
	fetchers    map[harvest.SourceKind]harvest.Fetcher
}

// New validates sources and builds a Registry in the given order.
func New(sources ...Source) (*Registry, error) {
	if len(sources) == 0 {
		return nil, errors.New("registry: at least one source is required")
	}
	r := &Registry{
		descriptors: make([]Descriptor, 0, len(sources)),
		fetchers:    make(map[harvest.SourceKind]harvest.Fetcher, len(sources)),
	}
	for _, src := range sources {
		if !src.Kind.Valid() {
			return nil, fmt.Errorf("registry: %w: %q", harvest.ErrUnknownKind, src.Kind)
		}
		if _, dup := r.fetchers[src.Kind]; dup {
			return nil, fmt.Errorf("registry: duplicate source %q", src.Kind)
		}
		if src.Lister == nil || src.Fetcher == nil {
			return nil, fmt.Errorf("registry: source %q needs a lister and a fetcher", src.Kind)
		}
		maxPages := src.MaxPages
		if maxPages <= 0 {
			maxPages = DefaultMaxPages(src.Kind)
		}
		r.descriptors = append(r.descriptors, Descriptor{
			Name:      string(src.Kind),
			Kind:      src.Kind,
			Lister:    src.Lister,
			MaxPages:  maxPages,
			StartPage: StartPage(src.Kind),
		})
		r.fetchers[src.Kind] = src.Fetcher
	}
	return r, nil
}

// Descriptors returns a copy of the sources in registry order.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, len(r.descriptors))
	copy(out, r.descriptors)
	return out
}

// Fetcher returns the fetcher registered for kind.
func (r *Registry) Fetcher(kind harvest.SourceKind) (harvest.Fetcher, error) {
	f, ok := r.fetchers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", harvest.ErrUnknownKind, kind)
	}
	return f, nil
}

// Kinds lists registered kinds in order.
func (r *Registry) Kinds() []harvest.SourceKind {
	out := make([]harvest.SourceKind, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		out = append(out, d.Kind)
	}
	return out
}
