// Package llm provides the optional semantic classification capability
// backed by hosted language model APIs. The engine treats it as a narrow,
// timeout-bounded interface and never depends on it for correctness.
package llm

import (
	"context"
	"time"
)

// Client defines the interface for LLM providers.
type Client interface {
	Classify(ctx context.Context, prompt string) (ClassificationResponse, error)
}

// ClassificationResponse contains the LLM's classification result.
type ClassificationResponse struct {
	CategorySlug string
	Confidence   float64
}

// Config holds configuration for the LLM classifier.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	Timeout     time.Duration
	CacheTTL    time.Duration
	RateLimit   int
	Temperature float64
	MaxTokens   int
}
