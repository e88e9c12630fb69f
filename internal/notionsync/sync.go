package notionsync

import (
	"context"
	"fmt"
	"time"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/rent-ledger/internal/frontdata"
	"github.com/dvloznov/rent-ledger/internal/logger"
	"github.com/dvloznov/rent-ledger/internal/notify"
	"github.com/dvloznov/rent-ledger/internal/rents"
	"github.com/dvloznov/rent-ledger/internal/term"
)

// MonthSource returns the rent board of a month.
type MonthSource interface {
	RentsByMonth(ctx context.Context, info notify.RequestInfo, year, month int) (*rents.MonthRents, error)
}

// SyncMonth mirrors the rent board of one month.
func SyncMonth(ctx context.Context, src MonthSource, notionClient NotionService, notionDBID string, year int, month time.Month, dryRun bool) (SyncStats, error) {
	board, err := src.RentsByMonth(ctx, notify.RequestInfo{}, year, int(month))
	if err != nil {
		return SyncStats{}, fmt.Errorf("SyncMonth: %w", err)
	}
	start, end := term.Bounds(time.Date(year, month, 1, 0, 0, 0, 0, time.UTC), term.Months)
	return SyncRents(ctx, notionClient, notionDBID, start, end, board.Rents, dryRun)
}

// SyncStats counts the page operations of a sync.
type SyncStats struct {
	Created  int `json:"created"`
	Updated  int `json:"updated"`
	Archived int `json:"archived"`
	Failed   int `json:"failed"`
}

// SyncRents mirrors the rent views of the terms [start, end] to a Notion rent board.
// Pages are matched by Rent Key: existing pages are updated, missing ones created,
// and pages of the same terms whose rent no longer exists are archived.
// Pages whose key is not a rent key are left alone.
func SyncRents(ctx context.Context, notionClient NotionService, notionDBID string, start, end term.Term, views []frontdata.RentView, dryRun bool) (SyncStats, error) {
	log := logger.FromContext(ctx)
	var stats SyncStats

	log.Info().
		Stringer("start", start).
		Stringer("end", end).
		Int("rents", len(views)).
		Bool("dry_run", dryRun).
		Msg("Starting rent sync to Notion")

	notionPages, err := queryAllNotionPages(ctx, notionClient, notionDBID)
	if err != nil {
		return stats, fmt.Errorf("SyncRents: %w", err)
	}
	log.Info().Int("notion_page_count", len(notionPages)).Msg("Retrieved existing Notion pages")

	wanted := make(map[string]bool, len(views))
	for _, v := range views {
		wanted[RentKey(v.OccupantID, v.Term)] = true
	}

	existing := make(map[string]string)
	for _, page := range notionPages {
		key := extractRentKey(page)
		_, tm, ok := ParseRentKey(key)
		if !ok {
			continue
		}
		if wanted[key] {
			existing[key] = string(page.ID)
			continue
		}
		if tm < start || tm > end {
			continue
		}

		if dryRun {
			log.Info().Str("rent_key", key).Str("page_id", string(page.ID)).Msg("[DRY RUN] Would archive stale Notion page")
			stats.Archived++
			continue
		}
		if err := notionClient.DeletePage(ctx, string(page.ID)); err != nil {
			log.Warn().Err(err).Str("rent_key", key).Str("page_id", string(page.ID)).Msg("Failed to archive stale Notion page")
			stats.Failed++
			continue
		}
		stats.Archived++
	}

	for _, v := range views {
		key := RentKey(v.OccupantID, v.Term)
		props := RentToNotionProperties(v)
		pageID, found := existing[key]

		if dryRun {
			if found {
				log.Info().Str("rent_key", key).Str("page_id", pageID).Msg("[DRY RUN] Would update Notion page")
				stats.Updated++
			} else {
				log.Info().Str("rent_key", key).Msg("[DRY RUN] Would create Notion page")
				stats.Created++
			}
			continue
		}

		if found {
			if _, err := notionClient.UpdatePage(ctx, pageID, props); err != nil {
				log.Warn().Err(err).Str("rent_key", key).Msg("Failed to update Notion page")
				stats.Failed++
				continue
			}
			stats.Updated++
			continue
		}
		if _, err := notionClient.CreatePage(ctx, notionDBID, props); err != nil {
			log.Warn().Err(err).Str("rent_key", key).Msg("Failed to create Notion page")
			stats.Failed++
			continue
		}
		stats.Created++
	}

	log.Info().
		Int("created", stats.Created).
		Int("updated", stats.Updated).
		Int("archived", stats.Archived).
		Int("failed", stats.Failed).
		Msg("Rent sync completed")
	return stats, nil
}

// queryAllNotionPages queries all pages from a Notion database and returns them.
// Handles pagination automatically.
func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: 100,
		}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notionClient.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}

// extractRentKey returns the title of a rent page, or "" when missing.
func extractRentKey(page notionapi.Page) string {
	if prop, ok := page.Properties[PropRentKey]; ok {
		if title, ok := prop.(*notionapi.TitleProperty); ok {
			if len(title.Title) > 0 {
				return title.Title[0].PlainText
			}
		}
	}
	return ""
}
