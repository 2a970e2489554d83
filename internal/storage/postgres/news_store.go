// Package postgres stores analyzed articles in Postgres using pgx and
// squirrel-built statements.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/realtime-news-crawler/internal/harvest"
	"github.com/JakeFAU/realtime-news-crawler/internal/storage"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// pool is the subset of *pgxpool.Pool the store needs; pgxmock satisfies it.
type pool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// NewsStore implements harvest.Store over the news and news_content tables.
type NewsStore struct {
	pool pool
}

// NewNewsStore opens a connection pool from cfg.
func NewNewsStore(ctx context.Context, cfg Config) (*NewsStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &NewsStore{pool: p}, nil
}

// NewNewsStoreWithPool wraps an existing pool (primarily for testing).
func NewNewsStoreWithPool(p pool) (*NewsStore, error) {
	if p == nil {
		return nil, errors.New("pool is required")
	}
	return &NewsStore{pool: p}, nil
}

// Ping checks database connectivity.
func (s *NewsStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *NewsStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Save inserts the article and its content in one transaction. An article
// whose URL is already stored is reported as a duplicate and left untouched.
func (s *NewsStore) Save(ctx context.Context, article harvest.AnalyzedArticle) (harvest.StoreResult, error) {
	if article.URL == "" {
		return harvest.StoreResult{}, errors.New("article url is required")
	}
	if id, found, err := s.lookup(ctx, article.URL); err != nil {
		return harvest.StoreResult{}, err
	} else if found {
		return harvest.StoreResult{ID: id, Duplicate: true}, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return harvest.StoreResult{}, fmt.Errorf("begin tx: %w", err)
	}
	id, inserted, err := insertNews(ctx, tx, article)
	if err != nil {
		_ = tx.Rollback(ctx)
		return harvest.StoreResult{}, err
	}
	if !inserted {
		// Another worker stored the same URL between lookup and insert.
		_ = tx.Rollback(ctx)
		id, _, err := s.lookup(ctx, article.URL)
		if err != nil {
			return harvest.StoreResult{}, err
		}
		return harvest.StoreResult{ID: id, Duplicate: true}, nil
	}

	contentSQL, args, err := psql.Insert("news_content").
		Columns("news_id", "content").
		Values(id, article.Content).
		ToSql()
	if err != nil {
		_ = tx.Rollback(ctx)
		return harvest.StoreResult{}, fmt.Errorf("build content insert: %w", err)
	}
	if _, err := tx.Exec(ctx, contentSQL, args...); err != nil {
		_ = tx.Rollback(ctx)
		return harvest.StoreResult{}, fmt.Errorf("insert news_content: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return harvest.StoreResult{}, fmt.Errorf("commit: %w", err)
	}
	return harvest.StoreResult{ID: id}, nil
}

func (s *NewsStore) lookup(ctx context.Context, url string) (int64, bool, error) {
	query, args, err := psql.Select("news_id").From("news").Where(sq.Eq{"url": url}).ToSql()
	if err != nil {
		return 0, false, fmt.Errorf("build lookup: %w", err)
	}
	var id int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("lookup news by url: %w", err)
	}
	return id, true, nil
}

func insertNews(ctx context.Context, tx pgx.Tx, a harvest.AnalyzedArticle) (int64, bool, error) {
	var analyzedAt *time.Time
	if !a.AnalyzedAt.IsZero() {
		analyzedAt = &a.AnalyzedAt
	}
	query, args, err := psql.Insert("news").
		Columns(
			"url", "naver_url", "kind", "title", "summary", "image_url", "media_name",
			"category", "headline_score", "fact_score", "headline_score_origin",
			"fact_score_origin", "headline_score_reason", "fact_score_reason", "analyzed_at",
		).
		Values(
			a.URL, a.SourceURL, string(a.Kind), a.Title, a.Summary, a.ImageURL, a.MediaName,
			a.Category, a.HeadlineScore, a.FactScore, a.HeadlineScoreRaw,
			a.FactScoreRaw, a.HeadlineReason, a.FactReason, analyzedAt,
		).
		Suffix("ON CONFLICT (url) DO NOTHING RETURNING news_id").
		ToSql()
	if err != nil {
		return 0, false, fmt.Errorf("build news insert: %w", err)
	}
	var id int64
	if err := tx.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("insert news: %w", err)
	}
	return id, true, nil
}

// Each streams stored articles in id order, joining news with its content.
func (s *NewsStore) Each(ctx context.Context, fn func(id int64, doc storage.IndexDocument) error) error {
	query, args, err := psql.Select("n.news_id", "n.title", "nc.content").
		From("news n").
		Join("news_content nc ON n.news_id = nc.news_id").
		OrderBy("n.news_id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build scan: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query news: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id  int64
			doc storage.IndexDocument
		)
		if err := rows.Scan(&id, &doc.Title, &doc.Content); err != nil {
			return fmt.Errorf("scan news row: %w", err)
		}
		if err := fn(id, doc); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows iteration: %w", err)
	}
	return nil
}
