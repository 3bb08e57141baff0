package engine

import (
	"context"

	"github.com/calderhart/sift/internal/model"
)

// SemanticClassifier is the optional external classification capability.
// Implementations must respect context deadlines; the engine treats any
// error as "unavailable" and falls back to deterministic scoring.
type SemanticClassifier interface {
	Classify(ctx context.Context, txn model.Transaction, merchant string, categories []model.Category) (model.ClassificationSource, string, float64, error)
}

// Normalizer resolves raw bank descriptions to canonical merchants.
type Normalizer interface {
	Normalize(ctx context.Context, rawDescription string) (model.NormalizedMerchant, error)
}

// AliasLearner records a raw-description-to-merchant mapping learned from
// user feedback.
type AliasLearner interface {
	Learn(ctx context.Context, pattern, canonical string, kind model.AliasMatchKind) error
}
