package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/calderhart/sift/internal/model"
	"github.com/calderhart/sift/internal/service"
	"github.com/calderhart/sift/internal/taxonomy"
)

// Confirmer applies user category decisions.
type Confirmer interface {
	Confirm(ctx context.Context, transactionID, categorySlug string) error
	ConfirmMerchant(ctx context.Context, merchant, categorySlug string) (int, error)
}

// Prompter drives the interactive review loop over pending questions.
type Prompter struct {
	store     service.Storage
	confirmer Confirmer
	taxonomy  *taxonomy.Manager
	reader    *NonBlockingReader
	out       io.Writer
	userID    string
}

// NewPrompter creates a review prompter reading from in and writing to out.
func NewPrompter(store service.Storage, confirmer Confirmer, manager *taxonomy.Manager, in io.Reader, out io.Writer, userID string) *Prompter {
	return &Prompter{
		store:     store,
		confirmer: confirmer,
		taxonomy:  manager,
		reader:    NewNonBlockingReader(in),
		out:       out,
		userID:    userID,
	}
}

// ReviewStats summarizes a review session.
type ReviewStats struct {
	Reviewed  int
	Confirmed int
	Skipped   int
}

// Run reviews up to limit pending questions, highest priority first. For
// each question the user may accept the suggestion, type another category
// slug, apply the decision to the whole merchant, skip, or quit.
func (p *Prompter) Run(ctx context.Context, limit int) (ReviewStats, error) {
	stats := ReviewStats{}

	questions, err := p.store.GetPendingQuestions(ctx, limit)
	if err != nil {
		return stats, fmt.Errorf("failed to load pending questions: %w", err)
	}
	if len(questions) == 0 {
		fmt.Fprintln(p.out, FormatInfo("No pending questions. Everything is categorized."))
		return stats, nil
	}

	snap, err := p.taxonomy.Snapshot(ctx, p.userID)
	if err != nil {
		return stats, err
	}

	fmt.Fprintln(p.out, FormatTitle(fmt.Sprintf("Reviewing %d pending questions", len(questions))))
	fmt.Fprintln(p.out, SubtleStyle.Render("[enter] accept · <slug> reassign · a apply to merchant · s skip · q quit"))
	fmt.Fprintln(p.out)

	for _, question := range questions {
		txn, err := p.store.GetTransactionByID(ctx, question.TransactionID)
		if err != nil {
			return stats, err
		}

		p.printQuestion(txn, question, snap)

		done, err := p.handleAnswer(ctx, txn, question, snap, &stats)
		if err != nil {
			if errors.Is(err, ErrInputCancelled) {
				return stats, nil
			}
			return stats, err
		}
		stats.Reviewed++
		if done {
			break
		}
	}

	fmt.Fprintln(p.out, FormatSuccess(fmt.Sprintf(
		"Review complete: %d confirmed, %d skipped", stats.Confirmed, stats.Skipped)))

	return stats, nil
}

func (p *Prompter) printQuestion(txn *model.Transaction, question model.ClassificationResult, snap *taxonomy.Snapshot) {
	suggestion := question.CategorySlug
	if crumbs := snap.Breadcrumb(suggestion); len(crumbs) > 0 {
		names := make([]string, len(crumbs))
		for i, c := range crumbs {
			names[i] = c.Name
		}
		suggestion = strings.Join(names, " > ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s  $%.2f  %s\n", txn.Date.Format("2006-01-02"), txn.Amount, BoldStyle.Render(txn.MerchantName))
	fmt.Fprintf(&b, "%s\n", SubtleStyle.Render(txn.RawDescription))
	fmt.Fprintf(&b, "Suggested: %s (%.0f%%)", suggestion, question.Confidence*100)
	if question.Notes != "" {
		fmt.Fprintf(&b, "\n%s", SubtleStyle.Render(question.Notes))
	}

	title := "Needs review"
	if question.Priority == model.PriorityHigh {
		title = "Uncategorized"
	}
	fmt.Fprintln(p.out, RenderBox(title, b.String()))
}

// handleAnswer processes one answer. Returns true when the user quit.
func (p *Prompter) handleAnswer(ctx context.Context, txn *model.Transaction, question model.ClassificationResult, snap *taxonomy.Snapshot, stats *ReviewStats) (bool, error) {
	for {
		fmt.Fprint(p.out, FormatPrompt("category"))
		answer, err := p.reader.ReadLine(ctx)
		if err != nil {
			return false, err
		}

		switch answer {
		case "q":
			return true, nil
		case "s":
			stats.Skipped++
			return false, nil
		case "":
			if question.CategorySlug == model.UncategorizedSlug {
				fmt.Fprintln(p.out, FormatWarning("No suggestion to accept; type a category slug."))
				continue
			}
			if err := p.confirmer.Confirm(ctx, txn.ID, question.CategorySlug); err != nil {
				return false, err
			}
			stats.Confirmed++
			return false, nil
		case "a":
			slug := question.CategorySlug
			if slug == model.UncategorizedSlug {
				fmt.Fprintln(p.out, FormatWarning("No suggestion to apply; type a category slug first."))
				continue
			}
			count, err := p.confirmer.ConfirmMerchant(ctx, txn.MerchantName, slug)
			if err != nil {
				return false, err
			}
			fmt.Fprintln(p.out, FormatSuccess(fmt.Sprintf("Applied %s to %d transactions from %s", slug, count, txn.MerchantName)))
			stats.Confirmed += count
			return false, nil
		default:
			if _, ok := snap.Resolve(answer); !ok {
				fmt.Fprintln(p.out, FormatWarning(fmt.Sprintf("Unknown category %q.", answer)))
				continue
			}
			if err := p.confirmer.Confirm(ctx, txn.ID, answer); err != nil {
				return false, err
			}
			stats.Confirmed++
			return false, nil
		}
	}
}
