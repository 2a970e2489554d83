package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-news-crawler/internal/harvest"
)

// DefaultScoreModel is used for the G-Eval scoring calls.
const DefaultScoreModel = "gpt-4o-mini"

// Config configures the Analyzer.
type Config struct {
	Endpoint   string
	APIKey     string
	Model      string
	ScoreModel string
	Timeout    time.Duration
}

// Analyzer implements harvest.Analyzer with four chat-completion calls per
// article.
type Analyzer struct {
	summarizer *Client
	scorer     *Client
	prompts    PromptSet
	clock      harvest.Clock
	logger     *zap.Logger
}

// New builds an Analyzer.
func New(cfg Config, prompts PromptSet, clock harvest.Clock, logger *zap.Logger) (*Analyzer, error) {
	if err := prompts.Validate(); err != nil {
		return nil, fmt.Errorf("prompts: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	scoreModel := cfg.ScoreModel
	if scoreModel == "" {
		scoreModel = DefaultScoreModel
	}
	return &Analyzer{
		summarizer: NewClient(ClientConfig{
			Endpoint: cfg.Endpoint, APIKey: cfg.APIKey, Model: cfg.Model, Timeout: cfg.Timeout,
		}),
		scorer: NewClient(ClientConfig{
			Endpoint: cfg.Endpoint, APIKey: cfg.APIKey, Model: scoreModel, Timeout: cfg.Timeout,
		}),
		prompts: prompts,
		clock:   clock,
		logger:  logger.Named("analyzer"),
	}, nil
}

// Ping reports whether the analyzer has usable credentials.
func (a *Analyzer) Ping(ctx context.Context) error {
	return a.summarizer.Ping(ctx)
}

// Analyze summarizes, categorizes and scores an article.
func (a *Analyzer) Analyze(ctx context.Context, article harvest.FetchedArticle) (harvest.AnalyzedArticle, error) {
	vars := map[string]string{
		"title":   article.Title,
		"content": article.Content,
	}

	summary, err := a.summarize(ctx, vars)
	if err != nil {
		return harvest.AnalyzedArticle{}, err
	}
	hsRaw, hsProbs, err := a.score(ctx, "headline", a.prompts.Headline, vars)
	if err != nil {
		return harvest.AnalyzedArticle{}, err
	}
	fsRaw, fsProbs, err := a.score(ctx, "fact", a.prompts.Fact, vars)
	if err != nil {
		return harvest.AnalyzedArticle{}, err
	}

	out := harvest.AnalyzedArticle{
		FetchedArticle:   article,
		Summary:          summary.Summary,
		Category:         summary.Category,
		HeadlineScore:    NormalizeScore(hsRaw),
		HeadlineScoreRaw: hsRaw,
		HeadlineProbs:    hsProbs,
		FactScore:        NormalizeScore(fsRaw),
		FactScoreRaw:     fsRaw,
		FactProbs:        fsProbs,
	}

	vars["hs"] = fmt.Sprintf("%.2f", out.HeadlineScore)
	vars["fs"] = fmt.Sprintf("%.2f", out.FactScore)
	reason, err := a.reason(ctx, vars)
	if err != nil {
		return harvest.AnalyzedArticle{}, err
	}
	out.HeadlineReason = reason.HeadlineReason
	out.FactReason = reason.FactReason
	if a.clock != nil {
		out.AnalyzedAt = a.clock.Now()
	}

	a.logger.Debug("article analyzed",
		zap.String("url", article.URL),
		zap.String("category", out.Category),
		zap.Float64("headline_score", out.HeadlineScore),
		zap.Float64("fact_score", out.FactScore),
	)
	return out, nil
}

type summaryResult struct {
	Summary  string `json:"summary"`
	Category string `json:"category"`
}

type reasonResult struct {
	HeadlineReason string `json:"hs_reason"`
	FactReason     string `json:"fs_reason"`
}

func (a *Analyzer) messages(prompt string) []chatMessage {
	msgs := make([]chatMessage, 0, 2)
	if strings.TrimSpace(a.prompts.System) != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: a.prompts.System})
	}
	return append(msgs, chatMessage{Role: "user", Content: prompt})
}

func (a *Analyzer) summarize(ctx context.Context, vars map[string]string) (summaryResult, error) {
	resp, err := a.summarizer.complete(ctx, chatRequest{
		Messages:    a.messages(render(a.prompts.Summary, vars)),
		MaxTokens:   500,
		Temperature: 0.2,
		TopP:        0.9,
	})
	if err != nil {
		return summaryResult{}, fmt.Errorf("summary: %w", err)
	}
	var out summaryResult
	if err := decodeJSONContent(resp.Choices[0].Message.Content, &out); err != nil {
		return summaryResult{}, fmt.Errorf("summary: %w", err)
	}
	if out.Summary == "" {
		return summaryResult{}, errors.New("summary: empty summary")
	}
	return out, nil
}

func (a *Analyzer) score(ctx context.Context, name, tmpl string, vars map[string]string) (float64, map[string]float64, error) {
	resp, err := a.scorer.complete(ctx, chatRequest{
		Messages:    a.messages(render(tmpl, vars)),
		MaxTokens:   5,
		Temperature: 0,
		Logprobs:    true,
		TopLogprobs: 10,
	})
	if err != nil {
		return 0, nil, fmt.Errorf("%s score: %w", name, err)
	}
	lp := resp.Choices[0].Logprobs
	if lp == nil || len(lp.Content) == 0 {
		return 0, nil, fmt.Errorf("%s score: response carries no logprobs", name)
	}
	raw, probs := CalculateScore(lp.Content)
	return raw, probs, nil
}

func (a *Analyzer) reason(ctx context.Context, vars map[string]string) (reasonResult, error) {
	resp, err := a.summarizer.complete(ctx, chatRequest{
		Messages:    a.messages(render(a.prompts.Reason, vars)),
		MaxTokens:   500,
		Temperature: 0.2,
		TopP:        0.9,
	})
	if err != nil {
		return reasonResult{}, fmt.Errorf("reason: %w", err)
	}
	var out reasonResult
	if err := decodeJSONContent(resp.Choices[0].Message.Content, &out); err != nil {
		return reasonResult{}, fmt.Errorf("reason: %w", err)
	}
	return out, nil
}
