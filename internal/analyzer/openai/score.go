package openai

import (
	"math"
	"strconv"
)

// Score tokens considered by G-Eval.
const (
	minScore = 1
	maxScore = 5
)

// TopLogprob is one alternative token at a generated position.
type TopLogprob struct {
	Token   string  `json:"token"`
	Logprob float64 `json:"logprob"`
}

// TokenLogprob is one generated position with its alternatives.
type TokenLogprob struct {
	Token       string       `json:"token"`
	Logprob     float64      `json:"logprob"`
	TopLogprobs []TopLogprob `json:"top_logprobs"`
}

// CalculateScore takes, for every score token "1".."5", the highest
// probability seen across all positions and returns the probability
// weighted sum together with the per-token probabilities.
func CalculateScore(positions []TokenLogprob) (float64, map[string]float64) {
	probs := make(map[string]float64, maxScore-minScore+1)
	for i := minScore; i <= maxScore; i++ {
		probs[strconv.Itoa(i)] = 0
	}
	for _, pos := range positions {
		for _, alt := range pos.TopLogprobs {
			if _, ok := probs[alt.Token]; !ok {
				continue
			}
			if p := math.Exp(alt.Logprob); p > probs[alt.Token] {
				probs[alt.Token] = p
			}
		}
	}

	var score float64
	for i := minScore; i <= maxScore; i++ {
		score += float64(i) * probs[strconv.Itoa(i)]
	}
	return score, probs
}

// NormalizeScore maps a 1..5 score onto 0..100, rounded to two decimals
// and clamped to the target range.
func NormalizeScore(score float64) float64 {
	const newMin, newMax = 0.0, 100.0
	scaled := (score-minScore)/(maxScore-minScore)*(newMax-newMin) + newMin
	rounded := math.Round(scaled*100) / 100
	return math.Max(newMin, math.Min(newMax, rounded))
}
