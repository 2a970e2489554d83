// Package naver implements listers and fetchers for the Naver news,
// entertainment and sports sections.
package naver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	collyfetcher "github.com/JakeFAU/realtime-news-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/realtime-news-crawler/internal/harvest"
)

// ErrStale marks a listing older than the freshness window.
var ErrStale = errors.New("listing older than freshness window")

// Getter performs a single HTTP GET.
type Getter interface {
	Get(ctx context.Context, url string, header http.Header) (collyfetcher.Response, error)
}

// Endpoints are the upstream base URLs. Tests point them at httptest servers.
type Endpoints struct {
	NewsList     string
	EnterList    string
	EnterArticle string
	SportList    string
	SportArticle string
}

// DefaultEndpoints are the production Naver URLs.
var DefaultEndpoints = Endpoints{
	NewsList:     "https://news.naver.com/main/list.naver",
	EnterList:    "https://api-gw.entertain.naver.com/news/articles",
	EnterArticle: "https://api-gw.entertain.naver.com/news/article/",
	SportList:    "https://api-gw.sports.naver.com/news/scs/series",
	SportArticle: "https://api-gw.sports.naver.com/news/article/",
}

// Config controls all three sources.
type Config struct {
	Endpoints       Endpoints
	FreshnessWindow time.Duration
	EnterPageSize   int
	SportPageSize   int
}

func (c Config) withDefaults() Config {
	if c.Endpoints == (Endpoints{}) {
		c.Endpoints = DefaultEndpoints
	}
	if c.FreshnessWindow <= 0 {
		c.FreshnessWindow = 2 * time.Minute
	}
	if c.EnterPageSize <= 0 {
		c.EnterPageSize = 50
	}
	if c.SportPageSize <= 0 {
		c.SportPageSize = 18
	}
	return c
}

// kst is the zone Naver list dates are expressed in.
var kst = time.FixedZone("KST", 9*60*60)

const acceptLanguage = "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7"

func baseHeader() http.Header {
	return http.Header{
		"Accept-Language": {acceptLanguage},
	}
}

func jsonHeader(referer string) http.Header {
	h := baseHeader()
	h.Set("Accept", "application/json, text/plain, */*")
	if referer != "" {
		h.Set("Referer", referer)
	}
	return h
}

// Sources bundles the Lister and Fetcher for every kind.
type Sources struct {
	News  *News
	Enter *Enter
	Sport *Sport
}

// New builds all Naver sources over one Getter.
func New(getter Getter, clock harvest.Clock, cfg Config, logger *zap.Logger) Sources {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	logger = logger.Named("naver")
	return Sources{
		News:  &News{getter: getter, clock: clock, cfg: cfg, logger: logger.With(zap.String("kind", string(harvest.KindNews)))},
		Enter: &Enter{getter: getter, clock: clock, cfg: cfg, logger: logger.With(zap.String("kind", string(harvest.KindEnter)))},
		Sport: &Sport{getter: getter, clock: clock, cfg: cfg, logger: logger.With(zap.String("kind", string(harvest.KindSport)))},
	}
}

// parseRelativeAge parses list ages such as "방금전" and "3분전".
func parseRelativeAge(raw string) (time.Duration, error) {
	s := strings.TrimSpace(strings.ReplaceAll(raw, `"`, ""))
	if s == "방금전" || s == "방금 전" {
		return 0, nil
	}
	s = strings.TrimSpace(strings.TrimSuffix(s, "분전"))
	s = strings.TrimSpace(strings.TrimSuffix(s, "분 전"))
	minutes, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("parse age %q: %w", raw, err)
	}
	return time.Duration(minutes) * time.Minute, nil
}

// checkFresh returns ErrStale when age reaches the window.
func checkFresh(age, window time.Duration) error {
	if age >= window {
		return fmt.Errorf("%w: %s", ErrStale, age)
	}
	return nil
}

func requireField(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("article missing %s", field)
	}
	return nil
}
