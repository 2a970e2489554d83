package naver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-news-crawler/internal/harvest"
)

const enterMobilePrefix = "https://m.entertain.naver.com/now/article/"

// Enter lists the entertainment JSON feed and fetches article JSON.
type Enter struct {
	getter Getter
	clock  harvest.Clock
	cfg    Config
	logger *zap.Logger
}

type enterListResponse struct {
	Result struct {
		NewsList []struct {
			URL         string `json:"url"`
			Image       string `json:"image"`
			OfficeName  string `json:"officeName"`
			ArticleTime string `json:"articleTime"`
		} `json:"newsList"`
	} `json:"result"`
}

type enterArticleResponse struct {
	Result struct {
		ArticleInfo struct {
			Article struct {
				Title          string `json:"title"`
				RefinedContent string `json:"refinedContent"`
				OrgURL         struct {
					PC struct {
						URL string `json:"url"`
					} `json:"pc"`
				} `json:"orgUrl"`
			} `json:"article"`
		} `json:"articleInfo"`
	} `json:"result"`
}

// List returns fresh entries from one feed page, stopping at the first
// stale entry.
func (e *Enter) List(ctx context.Context, page int) ([]harvest.Listing, error) {
	resp, err := e.getter.Get(ctx, e.listURL(page), jsonHeader(""))
	if err != nil {
		return nil, fmt.Errorf("enter list page %d: %w", page, err)
	}
	listings, err := parseEnterList(resp.Body, e.cfg.FreshnessWindow)
	if err != nil {
		return nil, fmt.Errorf("enter list page %d: %w", page, err)
	}
	e.logger.Debug("list page parsed", zap.Int("page", page), zap.Int("fresh", len(listings)))
	return listings, nil
}

func (e *Enter) listURL(page int) string {
	q := url.Values{}
	q.Set("date", e.clock.Now().In(kst).Format("20060102"))
	q.Set("page", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(e.cfg.EnterPageSize))
	return e.cfg.Endpoints.EnterList + "?" + q.Encode()
}

// Fetch resolves the article API URL from the mobile link and reads it.
func (e *Enter) Fetch(ctx context.Context, item harvest.WorkItem) (harvest.FetchedArticle, error) {
	apiURL := enterArticleURL(item.DedupKey, e.cfg.Endpoints.EnterArticle)
	resp, err := e.getter.Get(ctx, apiURL, jsonHeader(""))
	if err != nil {
		return harvest.FetchedArticle{}, fmt.Errorf("enter article: %w", err)
	}
	var payload enterArticleResponse
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return harvest.FetchedArticle{}, fmt.Errorf("decode enter article: %w", err)
	}
	a := payload.Result.ArticleInfo.Article
	article := harvest.FetchedArticle{
		URL:       a.OrgURL.PC.URL,
		SourceURL: item.DedupKey,
		Title:     strings.TrimSpace(a.Title),
		Content:   strings.TrimSpace(a.RefinedContent),
		ImageURL:  item.Meta(harvest.MetaImageURL),
		MediaName: item.Meta(harvest.MetaMediaName),
		Kind:      harvest.KindEnter,
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

func enterArticleURL(mobileURL, apiBase string) string {
	return strings.Replace(mobileURL, enterMobilePrefix, apiBase, 1)
}

func parseEnterList(body []byte, window time.Duration) ([]harvest.Listing, error) {
	var payload enterListResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode enter list: %w", err)
	}
	var out []harvest.Listing
	for _, entry := range payload.Result.NewsList {
		age, err := parseRelativeAge(entry.ArticleTime)
		if err != nil || checkFresh(age, window) != nil {
			break
		}
		if entry.URL == "" {
			continue
		}
		out = append(out, harvest.Listing{
			DedupKey: entry.URL,
			Kind:     harvest.KindEnter,
			Metadata: map[string]string{
				harvest.MetaImageURL:  entry.Image,
				harvest.MetaMediaName: entry.OfficeName,
			},
		})
	}
	return out, nil
}
