package model

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// AccountPurpose tags an account as business, personal, or mixed use.
// It gates which transactions are eligible for tax export.
type AccountPurpose string

const (
	// PurposeBusiness marks an account used only for business spending.
	PurposeBusiness AccountPurpose = "business"
	// PurposePersonal marks an account used only for personal spending.
	PurposePersonal AccountPurpose = "personal"
	// PurposeMixed marks an account with both kinds of spending.
	PurposeMixed AccountPurpose = "mixed"
)

// Transaction represents a single financial transaction from any source.
type Transaction struct {
	Date            time.Time
	ID              string
	RawDescription  string // description exactly as the bank supplied it
	MerchantName    string // canonical merchant after normalization
	AccountID       string
	AccountPurpose  AccountPurpose
	Hash            string
	Amount          float64
	DeductibleOvrd  bool // user marked this transaction deductible regardless of account purpose
}

// GenerateHash creates a stable hash for duplicate detection across
// redelivered bank-sync batches.
func (t *Transaction) GenerateHash() string {
	data := fmt.Sprintf("%s:%.2f:%s:%s",
		t.Date.Format("2006-01-02"),
		t.Amount,
		t.RawDescription,
		t.AccountID)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}
