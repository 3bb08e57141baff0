// Package storage provides the data persistence layer for the sift application.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/calderhart/sift/internal/model"
)

// Validation errors.
var (
	ErrNilContext          = errors.New("context cannot be nil")
	ErrEmptyString         = errors.New("string parameter cannot be empty")
	ErrNilParameter        = errors.New("parameter cannot be nil")
	ErrEmptySlice          = errors.New("slice cannot be empty")
	ErrInvalidDateRange    = errors.New("start date must be before end date")
	ErrInvalidSource       = errors.New("invalid classification source")
	ErrInvalidTransaction  = errors.New("invalid transaction")
	ErrInvalidAlias        = errors.New("invalid merchant alias")
	ErrInvalidResult       = errors.New("invalid classification result")
	ErrInvalidSubscription = errors.New("invalid subscription record")
	ErrCategoryNotFound    = errors.New("category not found")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateTransactions validates a slice of transactions.
func validateTransactions(transactions []model.Transaction) error {
	if transactions == nil {
		return fmt.Errorf("%w: transactions", ErrNilParameter)
	}
	if len(transactions) == 0 {
		return fmt.Errorf("%w: transactions", ErrEmptySlice)
	}

	for i, txn := range transactions {
		if err := validateTransaction(&txn); err != nil {
			return fmt.Errorf("transaction at index %d: %w", i, err)
		}
	}
	return nil
}

// validateTransaction validates a single transaction.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if txn.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidTransaction)
	}
	if txn.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidTransaction)
	}
	if txn.RawDescription == "" {
		return fmt.Errorf("%w: missing raw description", ErrInvalidTransaction)
	}
	if txn.AccountID == "" {
		return fmt.Errorf("%w: missing account ID", ErrInvalidTransaction)
	}
	return nil
}

// validateAlias validates a merchant alias.
func validateAlias(alias *model.MerchantAlias) error {
	if alias == nil {
		return fmt.Errorf("%w: alias", ErrNilParameter)
	}
	if strings.TrimSpace(alias.Pattern) == "" {
		return fmt.Errorf("%w: missing pattern", ErrInvalidAlias)
	}
	if strings.TrimSpace(alias.Canonical) == "" {
		return fmt.Errorf("%w: missing canonical name", ErrInvalidAlias)
	}
	switch alias.Kind {
	case model.MatchExact, model.MatchPrefix:
	default:
		return fmt.Errorf("%w: unknown match kind %q", ErrInvalidAlias, alias.Kind)
	}
	switch alias.Source {
	case model.AliasHardcoded, model.AliasLearned:
	default:
		return fmt.Errorf("%w: unknown source %q", ErrInvalidAlias, alias.Source)
	}
	return nil
}

// validateResult validates a classification result.
func validateResult(result *model.ClassificationResult) error {
	if result == nil {
		return fmt.Errorf("%w: result", ErrNilParameter)
	}
	if result.TransactionID == "" {
		return fmt.Errorf("%w: missing transaction ID", ErrInvalidResult)
	}
	if strings.TrimSpace(result.CategorySlug) == "" {
		return fmt.Errorf("%w: missing category slug", ErrInvalidResult)
	}

	switch result.Source {
	case model.SourceRule, model.SourceModel, model.SourceUserConfirmed:
	default:
		return fmt.Errorf("%w: %s", ErrInvalidSource, result.Source)
	}

	if result.Confidence < 0 || result.Confidence > 1 {
		return fmt.Errorf("%w: confidence must be between 0 and 1", ErrInvalidResult)
	}

	return nil
}

// validateSubscription validates a subscription record.
func validateSubscription(record *model.SubscriptionRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record", ErrNilParameter)
	}
	if record.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidSubscription)
	}
	if record.Merchant == "" {
		return fmt.Errorf("%w: missing merchant", ErrInvalidSubscription)
	}
	switch record.Frequency {
	case model.FrequencyWeekly, model.FrequencyMonthly, model.FrequencyQuarterly,
		model.FrequencyAnnual, model.FrequencyIrregular:
	default:
		return fmt.Errorf("%w: unknown frequency %q", ErrInvalidSubscription, record.Frequency)
	}
	return nil
}
