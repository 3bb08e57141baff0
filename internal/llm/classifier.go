package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/calderhart/sift/internal/model"
)

// Classifier wraps a provider client with caching, rate limiting, and a
// hard timeout. It satisfies the engine's SemanticClassifier interface.
type Classifier struct {
	client      Client
	cache       *suggestionCache
	rateLimiter *rateLimiter
	logger      *slog.Logger
	timeout     time.Duration
}

// NewClassifier creates an LLM-backed classifier from configuration.
func NewClassifier(cfg Config, logger *slog.Logger) (*Classifier, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Classifier{
		client:      client,
		cache:       newSuggestionCache(cfg.CacheTTL),
		rateLimiter: newRateLimiter(cfg.RateLimit),
		logger:      logger,
		timeout:     timeout,
	}, nil
}

// Classify asks the model to pick a category slug for a transaction. The
// call is bounded by the configured timeout; callers treat any error,
// including deadline expiry, as "capability unavailable" and fall back to
// deterministic scoring.
func (c *Classifier) Classify(ctx context.Context, txn model.Transaction, merchant string, categories []model.Category) (model.ClassificationSource, string, float64, error) {
	if cached, found := c.cache.get(merchant); found {
		c.logger.Debug("llm cache hit", "merchant", merchant)
		return model.SourceModel, cached.CategorySlug, cached.Confidence, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.rateLimiter.wait(ctx); err != nil {
		return model.SourceModel, "", 0, err
	}

	prompt := buildPrompt(txn, merchant, categories)

	response, err := c.client.Classify(ctx, prompt)
	if err != nil {
		return model.SourceModel, "", 0, err
	}

	// The model must pick from the offered slugs; anything else is
	// treated as a miss.
	valid := false
	for _, cat := range categories {
		if cat.Slug == response.CategorySlug {
			valid = true
			break
		}
	}
	if !valid {
		return model.SourceModel, "", 0, fmt.Errorf("model returned unknown category %q", response.CategorySlug)
	}

	c.cache.set(merchant, response)

	return model.SourceModel, response.CategorySlug, response.Confidence, nil
}

// Close releases background goroutines.
func (c *Classifier) Close() {
	c.cache.Close()
	c.rateLimiter.Close()
}

func buildPrompt(txn model.Transaction, merchant string, categories []model.Category) string {
	var sb strings.Builder
	sb.WriteString("Classify this financial transaction into exactly one of the listed categories.\n\n")
	fmt.Fprintf(&sb, "Merchant: %s\n", merchant)
	fmt.Fprintf(&sb, "Raw description: %s\n", txn.RawDescription)
	fmt.Fprintf(&sb, "Amount: $%.2f\n", txn.Amount)
	fmt.Fprintf(&sb, "Date: %s\n", txn.Date.Format("2006-01-02"))
	fmt.Fprintf(&sb, "Account purpose: %s\n\n", txn.AccountPurpose)

	sb.WriteString("Categories (slug: name):\n")
	for _, cat := range categories {
		fmt.Fprintf(&sb, "- %s: %s\n", cat.Slug, cat.Name)
	}

	sb.WriteString("\nRespond with JSON: {\"category\": \"<slug>\", \"confidence\": <0.0-1.0>}\n")
	return sb.String()
}
