// Package handlers exposes the dashboard sections over HTTP. Each
// section endpoint is independent: a failed warehouse query or geocoder
// call degrades that section to a "no data" payload without touching its
// siblings.
package handlers

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"github.com/ferreiramx/smart-events/internal/catalog"
	"github.com/ferreiramx/smart-events/internal/compare"
	"github.com/ferreiramx/smart-events/internal/config"
	"github.com/ferreiramx/smart-events/internal/geocode"
	"github.com/ferreiramx/smart-events/internal/logging"
	"github.com/ferreiramx/smart-events/internal/metrics"
)

// API bundles the stores a request needs. Everything is injected at
// construction; handlers hold no global state.
type API struct {
	catalog *catalog.Store
	metrics *metrics.Store
	geo     *geocode.Client
	cfg     *config.Config
}

func New(db *sql.DB, geo *geocode.Client, cfg *config.Config) *API {
	return &API{
		catalog: catalog.NewStore(db),
		metrics: metrics.NewStore(db),
		geo:     geo,
		cfg:     cfg,
	}
}

// Register mounts all dashboard routes.
func (a *API) Register(app *fiber.App) {
	app.Get("/", a.handleOverview)
	app.Get("/api/events/:event_id", a.handleEvent)
	app.Get("/api/events/:event_id/cohort", a.handleCohort)
	app.Get("/api/events/:event_id/sales/timeline", a.handleSalesTimeline)
	app.Get("/api/events/:event_id/sales/weekdays", a.handleSalesWeekdays)
	app.Get("/api/events/:event_id/sales/payment-methods", a.handlePaymentMethods)
	app.Get("/api/events/:event_id/demographics/age", a.handleAge)
	app.Get("/api/events/:event_id/demographics/gender", a.handleGender)
	app.Get("/api/events/:event_id/demographics/gender-age", a.handleGenderAge)
	app.Get("/api/events/:event_id/demographics/cities", a.handleCities)
	app.Get("/api/events/:event_id/funnel", a.handleFunnel)
	app.Get("/api/events/:event_id/funnel/mediums", a.handleFunnelMediums)
	app.Get("/api/events/:event_id/funnel/sources", a.handleFunnelSources)
	app.Get("/api/events/:event_id/sources", a.handleSources)
}

func eventIDParam(c fiber.Ctx) (int64, error) {
	return strconv.ParseInt(c.Params("event_id"), 10, 64)
}

// noData is the degraded payload a section renders when its upstream is
// unavailable or legitimately empty at the comparison level.
func noData() fiber.Map {
	return fiber.Map{"no_data": true}
}

// cohortIDs resolves the comparison set for a base event: the explicit
// override when configured, similarity selection otherwise. The
// threshold query parameter overrides the configured one per request.
func (a *API) cohortIDs(ctx context.Context, c fiber.Ctx, baseEventID int64) (metrics.IDSet, error) {
	if a.cfg.HasExplicitCohort() {
		events, err := a.catalog.FetchExplicit(ctx, a.cfg.SimilarEvents)
		if err != nil {
			return nil, err
		}
		return catalog.IDs(events), nil
	}

	threshold := fiber.Query[float64](c, "threshold", a.cfg.PriceThreshold)
	events, err := a.catalog.SelectCohort(ctx, baseEventID, threshold)
	if err != nil {
		return nil, err
	}
	return catalog.IDs(events), nil
}

// comparisonSection builds the shared event/cohort/comparison payload
// for one metric. Each side degrades independently; the normalized
// comparison is skipped when either side has no volume to normalize.
func (a *API) comparisonSection(
	ctx context.Context, c fiber.Ctx, baseEventID int64, section string,
	load func(context.Context, metrics.IDSet) ([]metrics.Row, error),
	normalized bool,
) fiber.Map {
	payload := fiber.Map{}

	eventRows, eventErr := load(ctx, metrics.Single(baseEventID))
	if eventErr != nil {
		logging.L().Warn("section query failed",
			zap.String("section", section),
			zap.Int64("event_id", baseEventID),
			zap.Error(eventErr))
		payload["event"] = noData()
	} else {
		payload["event"] = eventRows
	}

	cohortIDs, cohortErr := a.cohortIDs(ctx, c, baseEventID)
	var cohortRows []metrics.Row
	if cohortErr == nil {
		cohortRows, cohortErr = load(ctx, cohortIDs)
	}
	if cohortErr != nil {
		logging.L().Warn("cohort section query failed",
			zap.String("section", section),
			zap.Int64("event_id", baseEventID),
			zap.Error(cohortErr))
		payload["cohort"] = noData()
	} else {
		payload["cohort"] = cohortRows
	}

	if eventErr != nil || cohortErr != nil {
		payload["comparison"] = noData()
		return payload
	}

	if !normalized {
		payload["comparison"] = compare.Join(eventRows, cohortRows)
		return payload
	}

	joined, err := compare.Normalized(eventRows, cohortRows)
	if errors.Is(err, compare.ErrDivisionUndefined) {
		payload["comparison"] = noData()
		return payload
	}
	payload["comparison"] = joined
	return payload
}
