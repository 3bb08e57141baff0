// Package tax maps classified transactions onto IRS Schedule C line items.
package tax

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/calderhart/sift/internal/model"
	"github.com/calderhart/sift/internal/service"
	"github.com/calderhart/sift/internal/taxonomy"
)

// Mapper produces Schedule C reports from stored classifications.
type Mapper struct {
	store    service.Storage
	taxonomy *taxonomy.Manager
	logger   *slog.Logger
	userID   string
}

// NewMapper creates a Schedule C mapper scoped to one user's taxonomy.
func NewMapper(store service.Storage, manager *taxonomy.Manager, userID string, logger *slog.Logger) *Mapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mapper{
		store:    store,
		taxonomy: manager,
		logger:   logger,
		userID:   userID,
	}
}

// ScheduleC aggregates deductible spend in [start, end] by Schedule C line.
// A transaction contributes when its category carries a tax line and either
// the account is business-purpose with a typically-deductible category, or
// the user explicitly marked the transaction deductible. Personal and mixed
// accounts need the explicit override. The report's line totals always sum
// to its grand total.
func (m *Mapper) ScheduleC(ctx context.Context, start, end time.Time) (*service.ScheduleCReport, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("invalid date range: end %s before start %s",
			end.Format("2006-01-02"), start.Format("2006-01-02"))
	}

	snap, err := m.taxonomy.Snapshot(ctx, m.userID)
	if err != nil {
		return nil, err
	}

	results, err := m.store.GetClassificationsByDateRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load classifications: %w", err)
	}

	txns, err := m.store.GetTransactions(ctx, service.TransactionFilter{
		StartDate: &start,
		EndDate:   &end,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	byID := make(map[string]model.Transaction, len(txns))
	for _, txn := range txns {
		byID[txn.ID] = txn
	}

	report := &service.ScheduleCReport{
		DateRange: service.DateRange{Start: start, End: end},
	}
	lines := make(map[string]*service.LineTotal)

	for _, result := range results {
		txn, ok := byID[result.TransactionID]
		if !ok {
			continue
		}

		cat, ok := snap.Resolve(result.CategorySlug)
		if !ok || cat.TaxScheduleLine == "" {
			continue
		}
		if !eligible(txn, cat) {
			continue
		}

		amount := math.Abs(txn.Amount)

		line, ok := lines[cat.TaxScheduleLine]
		if !ok {
			line = &service.LineTotal{
				TaxLine:    cat.TaxScheduleLine,
				Categories: make(map[string]service.CategorySummary),
			}
			lines[cat.TaxScheduleLine] = line
		}
		summary := line.Categories[cat.Slug]
		summary.Count++
		summary.Amount += amount
		line.Categories[cat.Slug] = summary
		line.Total += amount
		line.Count++

		report.Rows = append(report.Rows, service.ReportRow{
			Date:          txn.Date,
			TransactionID: txn.ID,
			Merchant:      txn.MerchantName,
			CategorySlug:  cat.Slug,
			TaxLine:       cat.TaxScheduleLine,
			Amount:        amount,
		})
		report.Total += amount
	}

	for _, line := range lines {
		report.Lines = append(report.Lines, *line)
	}
	sort.Slice(report.Lines, func(i, j int) bool {
		return lineLess(report.Lines[i].TaxLine, report.Lines[j].TaxLine)
	})
	sort.Slice(report.Rows, func(i, j int) bool {
		if !report.Rows[i].Date.Equal(report.Rows[j].Date) {
			return report.Rows[i].Date.Before(report.Rows[j].Date)
		}
		return report.Rows[i].TransactionID < report.Rows[j].TransactionID
	})

	m.logger.Info("schedule C report built",
		"start", start.Format("2006-01-02"),
		"end", end.Format("2006-01-02"),
		"lines", len(report.Lines),
		"rows", len(report.Rows),
		"total", report.Total)

	return report, nil
}

// eligible applies the deduction gate. The per-transaction override always
// includes; otherwise only business-account spend in typically-deductible
// categories qualifies.
func eligible(txn model.Transaction, cat model.Category) bool {
	if txn.DeductibleOvrd {
		return true
	}
	return txn.AccountPurpose == model.PurposeBusiness && cat.IsTypicallyDeductible
}

// lineLess orders Schedule C lines numerically, with letter suffixes
// ("24a", "24b") sorting after the bare number.
func lineLess(a, b string) bool {
	an, as := splitLine(a)
	bn, bs := splitLine(b)
	if an != bn {
		return an < bn
	}
	return as < bs
}

func splitLine(line string) (int, string) {
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	n, _ := strconv.Atoi(line[:i])
	return n, line[i:]
}
