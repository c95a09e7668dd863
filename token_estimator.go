package autodrip

import (
	"math"
)

// TokenEstimator provides configurable token estimation strategies
type TokenEstimator interface {
	EstimateTokens(text string) int

	// EstimateRequest covers a prompt, one input image and one output
	// image at the given size.
	EstimateRequest(prompt string, size ImageSize) int
}

// Approximate token cost of images on the Gemini image models.
const (
	inputImageTokens   = 560
	outputImageTokens  = 1120
	outputImageTokens4 = 2000
)

// SimpleTokenEstimator - fast approximation of token usage for rate limiting
type SimpleTokenEstimator struct {
	SafetyMargin float64
}

func NewSimpleTokenEstimator() *SimpleTokenEstimator {
	return &SimpleTokenEstimator{
		SafetyMargin: 1.2,
	}
}

func (e *SimpleTokenEstimator) EstimateTokens(text string) int {
	if text == "" {
		return 0
	}

	charCount := len([]rune(text))
	tokenEstimate := float64(charCount) / 4.0
	tokenEstimate *= e.SafetyMargin

	return int(math.Ceil(tokenEstimate)) + 3
}

func (e *SimpleTokenEstimator) EstimateRequest(prompt string, size ImageSize) int {
	out := outputImageTokens
	if size == ImageSize4K {
		out = outputImageTokens4
	}
	return e.EstimateTokens(prompt) + inputImageTokens + out
}
