package handlers

import (
	"context"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"github.com/ferreiramx/smart-events/internal/compare"
	"github.com/ferreiramx/smart-events/internal/funnel"
	"github.com/ferreiramx/smart-events/internal/logging"
	"github.com/ferreiramx/smart-events/internal/metrics"
)

// topGroupCount bounds the grouped funnel views so a long tail of
// one-visit mediums does not bury the chart.
const topGroupCount = 5

// funnelPayload is the per-table shape every funnel endpoint shares.
func funnelPayload(table funnel.Table) fiber.Map {
	rate := funnel.ConversionRate(table)
	return fiber.Map{
		"stages":          table,
		"conversion_rate": rate,
		"conversion":      funnel.FormatRate(rate),
		"steps":           funnel.StepDifferences(table),
	}
}

// handleFunnel returns the overall purchase funnel for one event.
// GET /api/events/:event_id/funnel
func (a *API) handleFunnel(c fiber.Ctx) error {
	eventID, err := eventIDParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid event id"})
	}

	rows, err := a.metrics.Pageviews(c.Context(), eventID)
	if err != nil {
		logging.L().Warn("funnel query failed", zap.Int64("event_id", eventID), zap.Error(err))
		return c.JSON(noData())
	}

	return c.JSON(funnelPayload(funnel.Normalize(rows)))
}

// handleFunnelMediums splits the funnel by traffic medium: a merged
// "General" table first, then one table per top medium.
// GET /api/events/:event_id/funnel/mediums
func (a *API) handleFunnelMediums(c fiber.Ctx) error {
	return a.groupedFunnel(c, "mediums", a.metrics.PageviewsByMedium)
}

// handleFunnelSources is the finer split by source plus medium.
// GET /api/events/:event_id/funnel/sources
func (a *API) handleFunnelSources(c fiber.Ctx) error {
	return a.groupedFunnel(c, "sources", a.metrics.PageviewsBySourceMedium)
}

func (a *API) groupedFunnel(
	c fiber.Ctx, section string,
	load func(ctx context.Context, eventID int64) ([]funnel.GroupedRow, error),
) error {
	eventID, err := eventIDParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid event id"})
	}

	rows, err := load(c.Context(), eventID)
	if err != nil {
		logging.L().Warn("grouped funnel query failed",
			zap.String("section", section),
			zap.Int64("event_id", eventID),
			zap.Error(err))
		return c.JSON(noData())
	}
	if len(rows) == 0 {
		return c.JSON(noData())
	}

	general := funnel.Merge(rows)
	tables := funnel.Pivot(rows)

	groups := make([]fiber.Map, 0, topGroupCount)
	for _, name := range funnel.TopGroups(rows, topGroupCount) {
		entry := funnelPayload(tables[name])
		entry["group"] = name
		groups = append(groups, entry)
	}

	return c.JSON(fiber.Map{
		"general": funnelPayload(general),
		"groups":  groups,
	})
}

// handleSources ranks traffic sources by completed purchases, the
// long tail collapsed into a single bucket.
// GET /api/events/:event_id/sources
func (a *API) handleSources(c fiber.Ctx) error {
	eventID, err := eventIDParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid event id"})
	}

	rows, err := a.metrics.PageviewsBySourceMedium(c.Context(), eventID)
	if err != nil {
		logging.L().Warn("sources query failed", zap.Int64("event_id", eventID), zap.Error(err))
		return c.JSON(noData())
	}

	tables := funnel.Pivot(rows)
	paid := make([]metrics.Row, 0, len(tables))
	seen := make(map[string]struct{}, len(tables))
	for _, row := range rows {
		if _, ok := seen[row.Group]; ok {
			continue
		}
		seen[row.Group] = struct{}{}
		if count := tables[row.Group].Count(funnel.Paid); count > 0 {
			paid = append(paid, metrics.Row{Label: row.Group, Count: float64(count)})
		}
	}
	if len(paid) == 0 {
		return c.JSON(noData())
	}

	topN := fiber.Query[int](c, "top", topGroupCount)
	return c.JSON(fiber.Map{
		"sources": compare.Collapse(paid, topN),
		"total":   metrics.Total(paid),
	})
}
