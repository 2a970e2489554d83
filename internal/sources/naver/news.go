package naver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-news-crawler/internal/harvest"
)

// News lists the breaking-news flash board and fetches article pages.
type News struct {
	getter Getter
	clock  harvest.Clock
	cfg    Config
	logger *zap.Logger
}

// List returns fresh entries from one list page. Entries are newest first,
// so the first stale entry ends the page.
func (n *News) List(ctx context.Context, page int) ([]harvest.Listing, error) {
	resp, err := n.getter.Get(ctx, n.listURL(page), baseHeader())
	if err != nil {
		return nil, fmt.Errorf("news list page %d: %w", page, err)
	}
	listings, err := parseNewsList(resp.Body, n.cfg.FreshnessWindow)
	if err != nil {
		return nil, fmt.Errorf("news list page %d: %w", page, err)
	}
	n.logger.Debug("list page parsed", zap.Int("page", page), zap.Int("fresh", len(listings)))
	return listings, nil
}

func (n *News) listURL(page int) string {
	q := url.Values{}
	q.Set("mode", "LSD")
	q.Set("mid", "sec")
	q.Set("sid1", "001")
	q.Set("date", n.clock.Now().In(kst).Format("20060102"))
	q.Set("page", strconv.Itoa(page))
	return n.cfg.Endpoints.NewsList + "?" + q.Encode()
}

// Fetch downloads and parses the article page behind a listing.
func (n *News) Fetch(ctx context.Context, item harvest.WorkItem) (harvest.FetchedArticle, error) {
	resp, err := n.getter.Get(ctx, item.DedupKey, baseHeader())
	if err != nil {
		return harvest.FetchedArticle{}, fmt.Errorf("news article: %w", err)
	}
	article, err := parseNewsArticle(resp.Body, item.DedupKey)
	if err != nil {
		return harvest.FetchedArticle{}, err
	}
	return article, nil
}

func parseNewsList(body []byte, window time.Duration) ([]harvest.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse list html: %w", err)
	}
	board := doc.Find("div.list_body.newsflash_body")
	if board.Length() == 0 {
		return nil, errors.New("list board not found")
	}

	var out []harvest.Listing
	board.Find("li").EachWithBreak(func(_ int, li *goquery.Selection) bool {
		href, ok := li.Find("a").First().Attr("href")
		if !ok || href == "" {
			return true
		}
		age, err := parseRelativeAge(li.Find("span.date.is_new").First().Text())
		if err != nil || checkFresh(age, window) != nil {
			return false
		}
		out = append(out, harvest.Listing{
			DedupKey: href,
			Kind:     harvest.KindNews,
		})
		return true
	})
	return out, nil
}

func parseNewsArticle(body []byte, naverURL string) (harvest.FetchedArticle, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return harvest.FetchedArticle{}, fmt.Errorf("parse article html: %w", err)
	}
	article := harvest.FetchedArticle{
		URL:       naverURL,
		SourceURL: naverURL,
		Title:     strings.TrimSpace(doc.Find("h2#title_area").First().Text()),
		Content:   strings.TrimSpace(doc.Find("article#dic_area").First().Text()),
		Kind:      harvest.KindNews,
	}
	article.ImageURL, _ = doc.Find("img._LAZY_LOADING").First().Attr("data-src")
	article.MediaName, _ = doc.Find("img.media_end_head_top_logo_img").First().Attr("title")
	doc.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if strings.TrimSpace(a.Text()) != "기사원문" {
			return true
		}
		if href, ok := a.Attr("href"); ok && href != "" {
			article.URL = href
		}
		return false
	})

	if err := requireField("title", article.Title); err != nil {
		return harvest.FetchedArticle{}, err
	}
	if err := requireField("content", article.Content); err != nil {
		return harvest.FetchedArticle{}, err
	}
	return article, nil
}
