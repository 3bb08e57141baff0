// Package export renders Schedule C reports to CSV files and Google Sheets.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/calderhart/sift/internal/service"
)

// WriteCSV renders a report as CSV: a per-line summary section followed by
// the row-per-transaction detail section. Amounts are formatted with two
// decimal places.
func WriteCSV(w io.Writer, report *service.ScheduleCReport) error {
	cw := csv.NewWriter(w)

	header := []string{
		"Schedule C Report",
		fmt.Sprintf("%s to %s",
			report.DateRange.Start.Format("2006-01-02"),
			report.DateRange.End.Format("2006-01-02")),
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	if err := cw.Write([]string{"Line", "Category", "Count", "Amount"}); err != nil {
		return err
	}
	for _, line := range report.Lines {
		for _, slug := range sortedSlugs(line.Categories) {
			summary := line.Categories[slug]
			record := []string{
				line.TaxLine,
				slug,
				strconv.Itoa(summary.Count),
				formatAmount(summary.Amount),
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
		subtotal := []string{
			line.TaxLine,
			"(line total)",
			strconv.Itoa(line.Count),
			formatAmount(line.Total),
		}
		if err := cw.Write(subtotal); err != nil {
			return err
		}
	}
	total := []string{"", "(grand total)", strconv.Itoa(len(report.Rows)), formatAmount(report.Total)}
	if err := cw.Write(total); err != nil {
		return err
	}

	if err := cw.Write([]string{}); err != nil {
		return err
	}
	if err := cw.Write([]string{"Date", "Transaction", "Merchant", "Category", "Line", "Amount"}); err != nil {
		return err
	}
	for _, row := range report.Rows {
		record := []string{
			row.Date.Format("2006-01-02"),
			row.TransactionID,
			row.Merchant,
			row.CategorySlug,
			row.TaxLine,
			formatAmount(row.Amount),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', 2, 64)
}

func sortedSlugs(categories map[string]service.CategorySummary) []string {
	slugs := make([]string, 0, len(categories))
	for slug := range categories {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	return slugs
}
