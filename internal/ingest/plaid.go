package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/plaid/plaid-go/v20/plaid"

	"github.com/calderhart/sift/internal/common"
	"github.com/calderhart/sift/internal/model"
	"github.com/calderhart/sift/internal/service"
)

// PlaidConfig holds Plaid API configuration.
type PlaidConfig struct {
	ClientID    string
	Secret      string
	Environment string // sandbox or production
	AccessToken string
}

// Validate ensures all required fields are present.
func (c *PlaidConfig) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("%w: plaid client ID is required", common.ErrMissingConfig)
	}
	if c.Secret == "" {
		return fmt.Errorf("%w: plaid secret is required", common.ErrMissingConfig)
	}
	if c.AccessToken == "" {
		return fmt.Errorf("%w: plaid access token is required", common.ErrMissingConfig)
	}
	return validEnvironment(c.Environment)
}

func validEnvironment(env string) error {
	switch env {
	case "sandbox", "production":
		return nil
	case "":
		return fmt.Errorf("%w: plaid environment is required", common.ErrMissingConfig)
	default:
		return fmt.Errorf("%w: plaid environment must be sandbox or production", common.ErrInvalidConfig)
	}
}

// PlaidClient fetches transactions from the Plaid API. It implements
// TransactionFetcher.
type PlaidClient struct {
	client      *plaid.APIClient
	logger      *slog.Logger
	retryOpts   service.RetryOptions
	accessToken string
	environment string
}

// NewPlaidClient creates a Plaid client. The access token may be empty for
// the Link flow; GetTransactions requires it.
func NewPlaidClient(cfg PlaidConfig) (*PlaidClient, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: plaid client ID is required", common.ErrMissingConfig)
	}
	if cfg.Secret == "" {
		return nil, fmt.Errorf("%w: plaid secret is required", common.ErrMissingConfig)
	}
	if err := validEnvironment(cfg.Environment); err != nil {
		return nil, err
	}

	configuration := plaid.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", cfg.ClientID)
	configuration.AddDefaultHeader("PLAID-SECRET", cfg.Secret)
	switch cfg.Environment {
	case "sandbox":
		configuration.UseEnvironment(plaid.Sandbox)
	case "production":
		configuration.UseEnvironment(plaid.Production)
	}

	return &PlaidClient{
		client:      plaid.NewAPIClient(configuration),
		accessToken: cfg.AccessToken,
		environment: cfg.Environment,
		logger:      slog.Default().With("component", "plaid"),
		retryOpts: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 1 * time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
	}, nil
}

// GetTransactions fetches all transactions in [startDate, endDate],
// paginating through the API with retry on rate limits.
func (c *PlaidClient) GetTransactions(ctx context.Context, startDate, endDate time.Time) ([]model.Transaction, error) {
	if startDate.After(endDate) {
		return nil, fmt.Errorf("start date must be before end date")
	}

	c.logger.Info("fetching transactions from Plaid",
		"start_date", startDate.Format("2006-01-02"),
		"end_date", endDate.Format("2006-01-02"))

	var allTransactions []plaid.Transaction
	offset := int32(0)
	const pageSize = int32(500) // Plaid's max page size

	for {
		var page []plaid.Transaction

		retryErr := common.WithRetry(ctx, func() error {
			request := plaid.NewTransactionsGetRequest(
				c.accessToken,
				startDate.Format("2006-01-02"),
				endDate.Format("2006-01-02"),
			)
			request.SetOptions(plaid.TransactionsGetRequestOptions{
				Count:  plaid.PtrInt32(pageSize),
				Offset: plaid.PtrInt32(offset),
			})

			resp, _, err := c.client.PlaidApi.TransactionsGet(ctx).TransactionsGetRequest(*request).Execute()
			if err != nil {
				return c.wrapPlaidError(err, "failed to fetch transactions")
			}

			page = resp.GetTransactions()
			c.logger.Debug("fetched transaction batch",
				"count", len(page),
				"offset", offset,
				"total", resp.GetTotalTransactions())
			return nil
		}, c.retryOpts)
		if retryErr != nil {
			return nil, retryErr
		}

		allTransactions = append(allTransactions, page...)
		if len(page) < int(pageSize) {
			break
		}
		offset += pageSize
	}

	c.logger.Info("fetched all transactions", "count", len(allTransactions))

	transactions := make([]model.Transaction, 0, len(allTransactions))
	for _, pt := range allTransactions {
		transactions = append(transactions, c.mapPlaidTransaction(pt))
	}
	return transactions, nil
}

// GetAccounts fetches account IDs from Plaid.
func (c *PlaidClient) GetAccounts(ctx context.Context) ([]string, error) {
	var accounts []plaid.AccountBase
	retryErr := common.WithRetry(ctx, func() error {
		request := plaid.NewAccountsGetRequest(c.accessToken)
		resp, _, err := c.client.PlaidApi.AccountsGet(ctx).AccountsGetRequest(*request).Execute()
		if err != nil {
			return c.wrapPlaidError(err, "failed to fetch accounts")
		}
		accounts = resp.GetAccounts()
		return nil
	}, c.retryOpts)
	if retryErr != nil {
		return nil, retryErr
	}

	accountIDs := make([]string, 0, len(accounts))
	for _, account := range accounts {
		accountIDs = append(accountIDs, account.GetAccountId())
	}
	return accountIDs, nil
}

// mapPlaidTransaction converts a Plaid transaction to the storage model.
// Plaid reports positive amounts for money out, matching our convention.
// MerchantName is left for the normalizer to fill from the raw description.
func (c *PlaidClient) mapPlaidTransaction(pt plaid.Transaction) model.Transaction {
	date, err := time.Parse("2006-01-02", pt.GetDate())
	if err != nil {
		c.logger.Error("failed to parse transaction date", "date", pt.GetDate(), "error", err)
		date = time.Now()
	}

	raw := pt.GetName()
	if raw == "" {
		raw = pt.GetMerchantName()
	}

	tx := model.Transaction{
		Date:           date,
		ID:             pt.GetTransactionId(),
		RawDescription: raw,
		AccountID:      pt.GetAccountId(),
		Amount:         pt.GetAmount(),
	}
	tx.Hash = tx.GenerateHash()
	return tx
}

// wrapPlaidError classifies API failures: rate limits become retryable,
// structured Plaid errors keep their code and message.
func (c *PlaidClient) wrapPlaidError(err error, msg string) error {
	if plaidErr, convErr := plaid.ToPlaidError(err); convErr == nil {
		if plaidErr.ErrorCode == "RATE_LIMIT_EXCEEDED" {
			c.logger.Warn("rate limit hit, will retry", "error", plaidErr.ErrorMessage)
			return &common.RetryableError{Err: common.ErrBankRateLimit, Retryable: true}
		}
		return fmt.Errorf("%w: %s - %s", common.ErrBankConnection, plaidErr.ErrorCode, plaidErr.ErrorMessage)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// CreateLinkToken creates a Link token for Plaid Link initialization.
func (c *PlaidClient) CreateLinkToken(ctx context.Context) (string, error) {
	user := plaid.LinkTokenCreateRequestUser{
		ClientUserId: "sift-user-" + time.Now().Format("20060102150405"),
	}

	request := plaid.NewLinkTokenCreateRequest(
		"sift",
		"en",
		[]plaid.CountryCode{plaid.COUNTRYCODE_US},
		user,
	)
	request.SetProducts([]plaid.Products{plaid.PRODUCTS_TRANSACTIONS})
	if c.environment == "production" {
		request.SetRedirectUri("https://localhost:8080/")
	}

	resp, _, err := c.client.PlaidApi.LinkTokenCreate(ctx).LinkTokenCreateRequest(*request).Execute()
	if err != nil {
		return "", c.wrapPlaidError(err, "failed to create link token")
	}
	return resp.GetLinkToken(), nil
}

// ExchangePublicToken exchanges a public token from Link for an access
// token and item ID.
func (c *PlaidClient) ExchangePublicToken(ctx context.Context, publicToken string) (string, string, error) {
	request := plaid.NewItemPublicTokenExchangeRequest(publicToken)
	resp, _, err := c.client.PlaidApi.ItemPublicTokenExchange(ctx).ItemPublicTokenExchangeRequest(*request).Execute()
	if err != nil {
		return "", "", c.wrapPlaidError(err, "failed to exchange public token")
	}
	return resp.GetAccessToken(), resp.GetItemId(), nil
}

var _ TransactionFetcher = (*PlaidClient)(nil)
