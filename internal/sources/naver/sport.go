package naver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-news-crawler/internal/harvest"
)

const sportReferer = "https://m.sports.naver.com/column/press/columnist?categoryId=ALL"

var sportMobileArticle = regexp.MustCompile(`https://m\.sports\.naver\.com/[^/]+/article/`)

// Sport lists the sports series feed and fetches article JSON.
type Sport struct {
	getter Getter
	clock  harvest.Clock
	cfg    Config
	logger *zap.Logger
}

type sportListResponse struct {
	Result struct {
		Contents []struct {
			PackItemContents []struct {
				LinkURL     string `json:"linkUrl"`
				ImageURL    string `json:"imageUrl"`
				CreatedDate string `json:"createdDate"`
				OrgURL      struct {
					PC string `json:"pc"`
				} `json:"orgUrl"`
			} `json:"packItemContents"`
		} `json:"contents"`
	} `json:"result"`
}

type sportArticleResponse struct {
	Result struct {
		ArticleInfo struct {
			Article struct {
				Title          string `json:"title"`
				RefinedContent string `json:"refinedContent"`
			} `json:"article"`
		} `json:"articleInfo"`
		OfficeInfo struct {
			HName string `json:"hname"`
		} `json:"officeInfo"`
	} `json:"result"`
}

// List returns fresh items from one series page. Series are ordered by
// last modification, so stale items are skipped rather than ending the page.
func (s *Sport) List(ctx context.Context, page int) ([]harvest.Listing, error) {
	now := s.clock.Now()
	resp, err := s.getter.Get(ctx, s.listURL(page, now), jsonHeader(sportReferer))
	if err != nil {
		return nil, fmt.Errorf("sport list page %d: %w", page, err)
	}
	listings, err := parseSportList(resp.Body, now, s.cfg.FreshnessWindow)
	if err != nil {
		return nil, fmt.Errorf("sport list page %d: %w", page, err)
	}
	s.logger.Debug("list page parsed", zap.Int("page", page), zap.Int("fresh", len(listings)))
	return listings, nil
}

func (s *Sport) listURL(page int, now time.Time) string {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("sort", "lastModifiedContentDate:DESC")
	q.Set("contentSort", "contentId:DESC")
	q.Set("contentSize", "3")
	q.Set("hasTotalCount", "true")
	q.Set("publishingType", "SPORTS")
	q.Set("serviceExposure", "SE001")
	q.Set("size", strconv.Itoa(s.cfg.SportPageSize))
	q.Set("nocache", strconv.FormatInt(now.Unix(), 10))
	return s.cfg.Endpoints.SportList + "?" + q.Encode()
}

// Fetch resolves the article API URL from the mobile link and reads it.
func (s *Sport) Fetch(ctx context.Context, item harvest.WorkItem) (harvest.FetchedArticle, error) {
	apiURL := sportArticleURL(item.DedupKey, s.cfg.Endpoints.SportArticle)
	resp, err := s.getter.Get(ctx, apiURL, jsonHeader(sportReferer))
	if err != nil {
		return harvest.FetchedArticle{}, fmt.Errorf("sport article: %w", err)
	}
	var payload sportArticleResponse
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return harvest.FetchedArticle{}, fmt.Errorf("decode sport article: %w", err)
	}
	a := payload.Result.ArticleInfo.Article
	article := harvest.FetchedArticle{
		URL:       item.Meta(harvest.MetaOriginalURL),
		SourceURL: item.DedupKey,
		Title:     strings.TrimSpace(a.Title),
		Content:   strings.TrimSpace(a.RefinedContent),
		ImageURL:  item.Meta(harvest.MetaImageURL),
		MediaName: payload.Result.OfficeInfo.HName,
		Kind:      harvest.KindSport,
	}
	if article.URL == "" {
		article.URL = item.DedupKey
	}
	if err := requireField("title", article.Title); err != nil {
		return harvest.FetchedArticle{}, err
	}
	if err := requireField("content", article.Content); err != nil {
		return harvest.FetchedArticle{}, err
	}
	return article, nil
}

func sportArticleURL(mobileURL, apiBase string) string {
	u := sportMobileArticle.ReplaceAllLiteralString(mobileURL, apiBase)
	return strings.Replace(u, "?type=series&cid=", "?cid=", 1)
}

var sportDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// parseCreatedDate reads createdDate as UTC when no offset is given.
func parseCreatedDate(raw string) (time.Time, error) {
	for _, layout := range sportDateLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse createdDate %q", raw)
}

func parseSportList(body []byte, now time.Time, window time.Duration) ([]harvest.Listing, error) {
	var payload sportListResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode sport list: %w", err)
	}
	var out []harvest.Listing
	for _, series := range payload.Result.Contents {
		for _, item := range series.PackItemContents {
			created, err := parseCreatedDate(item.CreatedDate)
			if err != nil || checkFresh(now.Sub(created), window) != nil {
				continue
			}
			if item.LinkURL == "" {
				continue
			}
			out = append(out, harvest.Listing{
				DedupKey: item.LinkURL,
				Kind:     harvest.KindSport,
				Metadata: map[string]string{
					harvest.MetaImageURL:    item.ImageURL,
					harvest.MetaOriginalURL: item.OrgURL.PC,
				},
			})
		}
	}
	return out, nil
}
