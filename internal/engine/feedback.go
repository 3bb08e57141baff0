package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/calderhart/sift/internal/common"
	"github.com/calderhart/sift/internal/model"
)

// Confirm records a user decision for one transaction. The result becomes
// user-confirmed at full confidence, which future classifications of the
// same merchant treat as the dominant signal. The transaction's raw
// description is also learned as an exact alias so later charges from the
// same biller normalize without cleaning heuristics.
func (e *Engine) Confirm(ctx context.Context, transactionID, categorySlug string) error {
	txn, err := e.store.GetTransactionByID(ctx, transactionID)
	if err != nil {
		return err
	}

	snap, err := e.taxonomy.Snapshot(ctx, e.userID)
	if err != nil {
		return err
	}
	if _, ok := snap.Resolve(categorySlug); !ok {
		return common.NewUserError(
			fmt.Sprintf("Category %q does not exist. Run 'sift categories list' to see available categories.", categorySlug),
			fmt.Errorf("category %q: %w", categorySlug, common.ErrNotFound),
		)
	}

	result := &model.ClassificationResult{
		TransactionID: transactionID,
		CategorySlug:  categorySlug,
		Source:        model.SourceUserConfirmed,
		Confidence:    1.0,
		Priority:      model.PriorityNone,
		ClassifiedAt:  time.Now(),
	}
	if err := e.store.SaveClassification(ctx, result); err != nil {
		return fmt.Errorf("failed to save confirmation: %w", err)
	}

	if e.learner != nil && txn.MerchantName != "" && txn.RawDescription != "" && txn.RawDescription != txn.MerchantName {
		if err := e.learner.Learn(ctx, txn.RawDescription, txn.MerchantName, model.MatchExact); err != nil {
			// Alias learning is best effort; the confirmation itself
			// already landed.
			e.logger.Warn("failed to learn merchant alias",
				"pattern", txn.RawDescription,
				"canonical", txn.MerchantName,
				"error", err)
		}
	}

	e.logger.Info("classification confirmed",
		"transaction_id", transactionID,
		"category", categorySlug)

	return nil
}

// ConfirmMerchant confirms the same category for every pending transaction
// of a canonical merchant. Returns the number of transactions confirmed.
func (e *Engine) ConfirmMerchant(ctx context.Context, merchant, categorySlug string) (int, error) {
	txns, err := e.store.GetTransactionsByMerchant(ctx, merchant)
	if err != nil {
		return 0, err
	}

	confirmed := 0
	for _, txn := range txns {
		existing, err := e.store.GetClassification(ctx, txn.ID)
		if err != nil {
			return confirmed, err
		}
		if existing == nil || existing.IsUserConfirmed() || !existing.PendingQuestion {
			continue
		}
		if err := e.Confirm(ctx, txn.ID, categorySlug); err != nil {
			return confirmed, err
		}
		confirmed++
	}
	return confirmed, nil
}
