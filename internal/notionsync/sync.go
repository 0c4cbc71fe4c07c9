package notionsync

import (
	"context"
	"fmt"

	"github.com/dvloznov/finance-planner/internal/domain"
	"github.com/dvloznov/finance-planner/internal/ledger"
	"github.com/dvloznov/finance-planner/internal/logger"
)

// PageSize is the number of rows requested per database query.
const PageSize = 100

// SyncReport counts what a sync run did (or would do, in dry-run mode).
type SyncReport struct {
	Created  int
	Updated  int
	Archived int
	Failed   int
	DryRun   bool
}

// SyncPlannedPayments mirrors the ledger's planned payments into a Notion
// database. Pages are matched to payments by the Payment ID column. Pages
// with no matching payment, and duplicate pages for the same payment, are
// archived. A failure on one page is logged and counted; the run continues.
func SyncPlannedPayments(ctx context.Context, store ledger.Store, notion NotionService, databaseID string, dryRun bool) (SyncReport, error) {
	log := logger.FromContext(ctx)
	report := SyncReport{DryRun: dryRun}

	log.Info().
		Str("database_id", databaseID).
		Bool("dry_run", dryRun).
		Msg("Starting planned payment sync to Notion")

	// 1. Load the ledger side
	payments, err := store.FetchPlannedPayments(ctx, ledger.PaymentFilter{})
	if err != nil {
		return report, fmt.Errorf("SyncPlannedPayments: fetch payments: %w", err)
	}
	byID := make(map[string]domain.PlannedPayment, len(payments))
	for _, p := range payments {
		byID[p.ID] = p
	}

	// 2. Load the Notion side
	pages, err := queryAllPages(ctx, notion, databaseID)
	if err != nil {
		return report, fmt.Errorf("SyncPlannedPayments: query pages: %w", err)
	}
	log.Info().
		Int("payment_count", len(payments)).
		Int("notion_page_count", len(pages)).
		Msg("Loaded payments and Notion pages")

	// 3. Archive stale pages and pick one page per payment
	pageFor := make(map[string]string, len(pages))
	for _, page := range pages {
		_, live := byID[page.PaymentID]
		_, seen := pageFor[page.PaymentID]
		if live && !seen {
			pageFor[page.PaymentID] = page.PageID
			continue
		}

		pageLog := log.With().Str("payment_id", page.PaymentID).Str("page_id", page.PageID).Logger()
		if dryRun {
			pageLog.Info().Msg("[DRY RUN] Would archive stale Notion page")
			report.Archived++
			continue
		}
		if err := notion.ArchivePage(ctx, page.PageID); err != nil {
			pageLog.Warn().Err(err).Msg("Failed to archive stale Notion page")
			report.Failed++
			continue
		}
		pageLog.Info().Msg("Archived stale Notion page")
		report.Archived++
	}

	// 4. Create or update a page per payment
	for _, p := range payments {
		pageID, exists := pageFor[p.ID]
		paymentLog := log.With().Str("payment_id", p.ID).Logger()

		if dryRun {
			if exists {
				paymentLog.Info().Str("page_id", pageID).Msg("[DRY RUN] Would update Notion page")
				report.Updated++
			} else {
				paymentLog.Info().Msg("[DRY RUN] Would create Notion page")
				report.Created++
			}
			continue
		}

		if exists {
			if err := notion.UpdatePaymentPage(ctx, pageID, p); err != nil {
				paymentLog.Warn().Err(err).Str("page_id", pageID).Msg("Failed to update Notion page")
				report.Failed++
				continue
			}
			report.Updated++
			continue
		}

		newPageID, err := notion.CreatePaymentPage(ctx, databaseID, p)
		if err != nil {
			paymentLog.Warn().Err(err).Msg("Failed to create Notion page")
			report.Failed++
			continue
		}
		paymentLog.Info().Str("page_id", newPageID).Msg("Created Notion page")
		report.Created++
	}

	log.Info().
		Int("created", report.Created).
		Int("updated", report.Updated).
		Int("archived", report.Archived).
		Int("failed", report.Failed).
		Msg("Planned payment sync completed")

	return report, nil
}

func queryAllPages(ctx context.Context, notion NotionService, databaseID string) ([]PageRef, error) {
	var pages []PageRef
	cursor := ""
	for {
		batch, next, err := notion.ListPaymentPages(ctx, databaseID, cursor)
		if err != nil {
			return nil, fmt.Errorf("queryAllPages: %w", err)
		}
		pages = append(pages, batch...)
		if next == "" {
			return pages, nil
		}
		cursor = next
	}
}
