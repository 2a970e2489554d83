package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/realtime-news-crawler/internal/harvest"
)

type stubFetcher struct{}

func (stubFetcher) Fetch(context.Context, harvest.WorkItem) (harvest.FetchedArticle, error) {
	return harvest.FetchedArticle{}, nil
}

func emptyLister() harvest.Lister {
	return harvest.ListerFunc(func(context.Context, int) ([]harvest.Listing, error) {
		return nil, nil
	})
}

func TestNewAppliesDefaultPaging(t *testing.T) {
	t.Parallel()

	r, err := New(
		Source{Kind: harvest.KindNews, Lister: emptyLister(), Fetcher: stubFetcher{}},
		Source{Kind: harvest.KindEnter, Lister: emptyLister(), Fetcher: stubFetcher{}},
		Source{Kind: harvest.KindSport, Lister: emptyLister(), Fetcher: stubFetcher{}, MaxPages: 2},
	)
	require.NoError(t, err)

	ds := r.Descriptors()
	require.Len(t, ds, 3)
	require.Equal(t, []harvest.SourceKind{harvest.KindNews, harvest.KindEnter, harvest.KindSport}, r.Kinds())
	require.Equal(t, 1, ds[0].StartPage)
	require.Equal(t, 10, ds[0].MaxPages)
	require.Equal(t, 4, ds[1].MaxPages)
	require.Equal(t, 0, ds[2].StartPage)
	require.Equal(t, 2, ds[2].MaxPages)
}

func TestNewRejectsBadSources(t *testing.T) {
	t.Parallel()

	_, err := New()
	require.Error(t, err)

	_, err = New(Source{Kind: "radio", Lister: emptyLister(), Fetcher: stubFetcher{}})
	require.ErrorIs(t, err, harvest.ErrUnknownKind)

	_, err = New(
		Source{Kind: harvest.KindNews, Lister: emptyLister(), Fetcher: stubFetcher{}},
		Source{Kind: harvest.KindNews, Lister: emptyLister(), Fetcher: stubFetcher{}},
	)
	require.ErrorContains(t, err, "duplicate source")

	_, err = New(Source{Kind: harvest.KindNews, Lister: emptyLister()})
	require.ErrorContains(t, err, "needs a lister and a fetcher")
}

func TestFetcherLookup(t *testing.T) {
	t.Parallel()

	r, err := New(Source{Kind: harvest.KindNews, Lister: emptyLister(), Fetcher: stubFetcher{}})
	require.NoError(t, err)

	f, err := r.Fetcher(harvest.KindNews)
	require.NoError(t, err)
	require.NotNil(t, f)

	_, err = r.Fetcher(harvest.KindSport)
	require.ErrorIs(t, err, harvest.ErrUnknownKind)
}

func TestDescriptorsReturnsCopy(t *testing.T) {
	t.Parallel()

	r, err := New(Source{Kind: harvest.KindNews, Lister: emptyLister(), Fetcher: stubFetcher{}})
	require.NoError(t, err)
	ds := r.Descriptors()
	ds[0].MaxPages = 99
	require.Equal(t, 10, r.Descriptors()[0].MaxPages)
}
