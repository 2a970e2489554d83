package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/realtime-news-crawler/internal/harvest"
	"github.com/JakeFAU/realtime-news-crawler/internal/storage"
)

func sampleArticle() harvest.AnalyzedArticle {
	return harvest.AnalyzedArticle{
		FetchedArticle: harvest.FetchedArticle{
			URL:       "https://press.example/1",
			SourceURL: "https://n.news.naver.com/article/001/1",
			Title:     "제목",
			Content:   "본문",
			ImageURL:  "https://img.example/1.jpg",
			MediaName: "연합뉴스",
			Kind:      harvest.KindNews,
		},
		Summary:          "요약",
		Category:         "정치",
		HeadlineScore:    95,
		FactScore:        50,
		HeadlineScoreRaw: 4.8,
		FactScoreRaw:     3,
		HeadlineReason:   "hs",
		FactReason:       "fs",
		AnalyzedAt:       time.Unix(1700000000, 0).UTC(),
	}
}

func newsArgs(a harvest.AnalyzedArticle) []any {
	return []any{
		a.URL, a.SourceURL, string(a.Kind), a.Title, a.Summary, a.ImageURL, a.MediaName,
		a.Category, a.HeadlineScore, a.FactScore, a.HeadlineScoreRaw,
		a.FactScoreRaw, a.HeadlineReason, a.FactReason, pgxmock.AnyArg(),
	}
}

func newMockStore(t *testing.T) (*NewsStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	store, err := NewNewsStoreWithPool(mock)
	require.NoError(t, err)
	return store, mock
}

func TestSaveInsertsNewsAndContent(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	a := sampleArticle()

	mock.ExpectQuery(`SELECT news_id FROM news WHERE url = \$1`).
		WithArgs(a.URL).
		WillReturnRows(pgxmock.NewRows([]string{"news_id"}))
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO news \(url,naver_url,kind`).
		WithArgs(newsArgs(a)...).
		WillReturnRows(pgxmock.NewRows([]string{"news_id"}).AddRow(int64(7)))
	mock.ExpectExec(`INSERT INTO news_content \(news_id,content\) VALUES \(\$1,\$2\)`).
		WithArgs(int64(7), a.Content).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	res, err := store.Save(context.Background(), a)
	require.NoError(t, err)
	require.Equal(t, harvest.StoreResult{ID: 7}, res)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveExistingURLIsDuplicate(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	a := sampleArticle()

	mock.ExpectQuery(`SELECT news_id FROM news`).
		WithArgs(a.URL).
		WillReturnRows(pgxmock.NewRows([]string{"news_id"}).AddRow(int64(3)))

	res, err := store.Save(context.Background(), a)
	require.NoError(t, err)
	require.Equal(t, harvest.StoreResult{ID: 3, Duplicate: true}, res)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveConflictDuringInsertIsDuplicate(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	a := sampleArticle()

	mock.ExpectQuery(`SELECT news_id FROM news`).
		WithArgs(a.URL).
		WillReturnRows(pgxmock.NewRows([]string{"news_id"}))
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO news`).
		WithArgs(newsArgs(a)...).
		WillReturnRows(pgxmock.NewRows([]string{"news_id"}))
	mock.ExpectRollback()
	mock.ExpectQuery(`SELECT news_id FROM news`).
		WithArgs(a.URL).
		WillReturnRows(pgxmock.NewRows([]string{"news_id"}).AddRow(int64(9)))

	res, err := store.Save(context.Background(), a)
	require.NoError(t, err)
	require.Equal(t, harvest.StoreResult{ID: 9, Duplicate: true}, res)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRollsBackOnContentFailure(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	a := sampleArticle()

	mock.ExpectQuery(`SELECT news_id FROM news`).
		WithArgs(a.URL).
		WillReturnRows(pgxmock.NewRows([]string{"news_id"}))
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO news`).
		WithArgs(newsArgs(a)...).
		WillReturnRows(pgxmock.NewRows([]string{"news_id"}).AddRow(int64(7)))
	mock.ExpectExec(`INSERT INTO news_content`).
		WithArgs(int64(7), a.Content).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := store.Save(context.Background(), a)
	require.ErrorContains(t, err, "insert news_content: disk full")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveLookupError(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	a := sampleArticle()
	mock.ExpectQuery(`SELECT news_id FROM news`).
		WithArgs(a.URL).
		WillReturnError(errors.New("connection reset"))

	_, err := store.Save(context.Background(), a)
	require.ErrorContains(t, err, "lookup news by url")
	require.NoError(t, mock.ExpectationsWereMet())

	_, err = store.Save(context.Background(), harvest.AnalyzedArticle{})
	require.Error(t, err)
}

func TestEachStreamsJoinedRows(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT n.news_id, n.title, nc.content FROM news n JOIN news_content nc`).
		WillReturnRows(pgxmock.NewRows([]string{"news_id", "title", "content"}).
			AddRow(int64(1), "a", "body a").
			AddRow(int64(2), "b", "body b"))

	var got []storage.IndexDocument
	err := store.Each(context.Background(), func(id int64, doc storage.IndexDocument) error {
		require.Equal(t, int64(len(got)+1), id)
		got = append(got, doc)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []storage.IndexDocument{
		{Title: "a", Content: "body a"},
		{Title: "b", Content: "body b"},
	}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPing(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	store, err := NewNewsStoreWithPool(mock)
	require.NoError(t, err)

	mock.ExpectPing().WillReturnError(errors.New("refused"))
	require.ErrorContains(t, store.Ping(context.Background()), "ping postgres: refused")
	require.NoError(t, mock.ExpectationsWereMet())
}
