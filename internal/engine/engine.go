// Package engine orchestrates transaction classification: merchant
// normalization, deterministic signal scoring, optional semantic
// classification, and confidence-banded persistence.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/calderhart/sift/internal/model"
	"github.com/calderhart/sift/internal/service"
	"github.com/calderhart/sift/internal/taxonomy"
)

const batchWorkers = 4

// Engine classifies transactions against a taxonomy snapshot. Classification
// for the same canonical merchant is serialized so concurrent imports see a
// consistent merchant history; distinct merchants proceed in parallel.
type Engine struct {
	store      service.Storage
	normalizer Normalizer
	taxonomy   *taxonomy.Manager
	semantic   SemanticClassifier
	learner    AliasLearner
	logger     *slog.Logger
	locks      *merchantLocks
	userID     string
}

// Options configures optional engine capabilities.
type Options struct {
	// Semantic is consulted when deterministic signals fall short of the
	// auto-assign threshold. May be nil; errors from it are logged and
	// swallowed, never surfaced to the caller.
	Semantic SemanticClassifier
	// Learner receives confirmed raw-description-to-merchant mappings.
	// May be nil.
	Learner AliasLearner
	// UserID scopes taxonomy lookups. Empty means the system layer only.
	UserID string
	Logger *slog.Logger
}

// New creates a classification engine.
func New(store service.Storage, normalizer Normalizer, manager *taxonomy.Manager, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:      store,
		normalizer: normalizer,
		taxonomy:   manager,
		semantic:   opts.Semantic,
		learner:    opts.Learner,
		logger:     logger,
		locks:      newMerchantLocks(),
		userID:     opts.UserID,
	}
}

// BatchStats summarizes the outcome of a classification run.
type BatchStats struct {
	Total         int
	AutoAssigned  int
	NeedsReview   int
	Uncategorized int
	Skipped       int
	Failed        int
}

// Classify categorizes a single transaction and persists the result. The
// operation is idempotent: re-running with no new signals produces the same
// stored result, and user-confirmed results are never overwritten.
func (e *Engine) Classify(ctx context.Context, txn model.Transaction) (*model.ClassificationResult, error) {
	snap, err := e.taxonomy.Snapshot(ctx, e.userID)
	if err != nil {
		return nil, err
	}
	return e.classifyOne(ctx, snap, txn)
}

// ClassifyNew classifies every stored transaction that has no result yet,
// optionally restricted to transactions on or after fromDate. The progress
// callback, if non-nil, is invoked after each transaction.
func (e *Engine) ClassifyNew(ctx context.Context, fromDate *time.Time, progress func(done, total int)) (BatchStats, error) {
	txns, err := e.store.GetTransactionsToClassify(ctx, fromDate)
	if err != nil {
		return BatchStats{}, fmt.Errorf("failed to load unclassified transactions: %w", err)
	}
	return e.ClassifyBatch(ctx, txns, progress)
}

// ClassifyBatch classifies transactions with a small worker pool. Workers
// contend only on per-merchant locks, so a batch dominated by distinct
// merchants parallelizes fully.
func (e *Engine) ClassifyBatch(ctx context.Context, txns []model.Transaction, progress func(done, total int)) (BatchStats, error) {
	stats := BatchStats{Total: len(txns)}
	if len(txns) == 0 {
		return stats, nil
	}

	snap, err := e.taxonomy.Snapshot(ctx, e.userID)
	if err != nil {
		return stats, err
	}

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		done int
	)
	jobs := make(chan model.Transaction)

	for i := 0; i < batchWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for txn := range jobs {
				result, err := e.classifyOne(ctx, snap, txn)

				mu.Lock()
				done++
				switch {
				case err != nil:
					stats.Failed++
					e.logger.Warn("classification failed",
						"transaction_id", txn.ID,
						"error", err)
				case result.IsUserConfirmed():
					stats.Skipped++
				case result.CategorySlug == model.UncategorizedSlug && result.Priority == model.PriorityHigh:
					stats.Uncategorized++
				case result.PendingQuestion:
					stats.NeedsReview++
				default:
					stats.AutoAssigned++
				}
				if progress != nil {
					progress(done, len(txns))
				}
				mu.Unlock()
			}
		}()
	}

	var cancelled error
	for _, txn := range txns {
		select {
		case <-ctx.Done():
			cancelled = ctx.Err()
		case jobs <- txn:
			continue
		}
		break
	}
	close(jobs)
	wg.Wait()

	e.logger.Info("classification run complete",
		"total", stats.Total,
		"auto_assigned", stats.AutoAssigned,
		"needs_review", stats.NeedsReview,
		"uncategorized", stats.Uncategorized,
		"skipped", stats.Skipped,
		"failed", stats.Failed)

	return stats, cancelled
}

func (e *Engine) classifyOne(ctx context.Context, snap *taxonomy.Snapshot, txn model.Transaction) (*model.ClassificationResult, error) {
	normalized, err := e.normalizer.Normalize(ctx, txn.RawDescription)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize merchant: %w", err)
	}
	canonical := normalized.Canonical

	unlock := e.locks.lock(canonical)
	defer unlock()

	existing, err := e.store.GetClassification(ctx, txn.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.IsUserConfirmed() {
		return existing, nil
	}

	if txn.MerchantName != canonical {
		if err := e.store.SetTransactionMerchant(ctx, txn.ID, canonical); err != nil {
			return nil, err
		}
	}

	history, err := e.store.GetMerchantCategoryHistory(ctx, canonical)
	if err != nil {
		return nil, err
	}

	recurring := false
	if sub, err := e.store.GetLatestSubscriptionRecord(ctx, canonical); err == nil && sub != nil {
		recurring = !sub.LikelyStopped && sub.Frequency != model.FrequencyIrregular
	}

	best := scoreDeterministic(txn, canonical, snap, history, recurring)
	source := model.SourceRule

	if best.score < model.AutoAssignThreshold && e.semantic != nil {
		semSource, semSlug, semConf, semErr := e.semantic.Classify(ctx, txn, canonical, snap.All())
		switch {
		case semErr != nil:
			e.logger.Debug("semantic classifier unavailable, using deterministic score",
				"merchant", canonical,
				"error", semErr)
		case semConf > best.score:
			best = candidate{slug: semSlug, score: semConf}
			source = semSource
		}
	}

	result := bandResult(txn.ID, best, source)
	if err := e.store.SaveClassification(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to save classification: %w", err)
	}

	e.logger.Debug("classified transaction",
		"transaction_id", txn.ID,
		"merchant", canonical,
		"category", result.CategorySlug,
		"confidence", result.Confidence,
		"source", result.Source)

	return result, nil
}

// bandResult maps a scored candidate onto a confidence band. Scores below
// the question threshold fall back to the uncategorized placeholder with a
// high-priority question; the rejected suggestion is kept in the notes.
func bandResult(transactionID string, best candidate, source model.ClassificationSource) *model.ClassificationResult {
	pending, priority := model.BandFor(best.score)

	result := &model.ClassificationResult{
		TransactionID:   transactionID,
		CategorySlug:    best.slug,
		Source:          source,
		Confidence:      best.score,
		PendingQuestion: pending,
		Priority:        priority,
		ClassifiedAt:    time.Now(),
	}

	if best.slug == "" || best.score < model.QuestionThreshold {
		if best.slug != "" {
			result.Notes = fmt.Sprintf("low-confidence suggestion: %s (%.2f)", best.slug, best.score)
		}
		result.CategorySlug = model.UncategorizedSlug
	}
	return result
}
