// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/calderhart/sift/internal/model"
)

// TransactionFilter defines filtering options for transaction queries.
type TransactionFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	Merchant  string
	AccountID string
	Limit     int
}

// Storage defines the contract for the persistence layer.
type Storage interface {
	// Transaction operations
	SaveTransactions(ctx context.Context, transactions []model.Transaction) error
	GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error)
	GetTransactions(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error)
	GetTransactionsToClassify(ctx context.Context, fromDate *time.Time) ([]model.Transaction, error)
	GetTransactionsByMerchant(ctx context.Context, merchant string) ([]model.Transaction, error)
	SetTransactionMerchant(ctx context.Context, transactionID, merchant string) error
	SetDeductibleOverride(ctx context.Context, transactionID string, deductible bool) error
	GetClassifiedMerchants(ctx context.Context) ([]string, error)

	// Category operations
	GetCategories(ctx context.Context, userID string) ([]model.Category, error)
	GetCategoryBySlug(ctx context.Context, userID, slug string) (*model.Category, error)
	CreateCategory(ctx context.Context, category *model.Category) (*model.Category, error)
	UpdateCategory(ctx context.Context, category *model.Category) error
	DeleteCategory(ctx context.Context, userID, slug, reassignTo string) error

	// Merchant alias operations
	GetAliases(ctx context.Context) ([]model.MerchantAlias, error)
	SaveAlias(ctx context.Context, alias *model.MerchantAlias) error
	SaveNormalizationCandidate(ctx context.Context, rawDescription, cleaned string) error
	GetNormalizationCandidates(ctx context.Context, limit int) (map[string]string, error)

	// Classification operations
	SaveClassification(ctx context.Context, result *model.ClassificationResult) error
	GetClassification(ctx context.Context, transactionID string) (*model.ClassificationResult, error)
	GetClassificationsByDateRange(ctx context.Context, start, end time.Time) ([]model.ClassificationResult, error)
	GetPendingQuestions(ctx context.Context, limit int) ([]model.ClassificationResult, error)
	GetMerchantCategoryHistory(ctx context.Context, merchant string) ([]MerchantCategoryCount, error)
	RerouteClassificationsForCategory(ctx context.Context, categorySlug, toSlug string) (int, error)

	// Subscription operations
	SaveSubscriptionRecord(ctx context.Context, record *model.SubscriptionRecord) error
	GetActiveSubscriptionRecords(ctx context.Context) ([]model.SubscriptionRecord, error)
	GetLatestSubscriptionRecord(ctx context.Context, merchant string) (*model.SubscriptionRecord, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// MerchantCategoryCount summarizes prior classifications of one merchant.
type MerchantCategoryCount struct {
	CategorySlug  string
	Count         int
	UserConfirmed int
}

// DateRange represents a time period with start and end dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// LineTotal aggregates eligible spend for one Schedule C line.
type LineTotal struct {
	Categories map[string]CategorySummary
	TaxLine    string
	Total      float64
	Count      int
}

// CategorySummary contains aggregated statistics for a category.
type CategorySummary struct {
	Count  int
	Amount float64
}

// ScheduleCReport is the grouped export produced by the tax mapper.
type ScheduleCReport struct {
	DateRange DateRange
	Lines     []LineTotal
	Rows      []ReportRow
	Total     float64
}

// ReportRow is one transaction in the row-per-transaction detail section.
type ReportRow struct {
	Date          time.Time
	TransactionID string
	Merchant      string
	CategorySlug  string
	TaxLine       string
	Amount        float64
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
