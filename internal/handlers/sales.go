package handlers

import (
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"github.com/ferreiramx/smart-events/internal/compare"
	"github.com/ferreiramx/smart-events/internal/logging"
	"github.com/ferreiramx/smart-events/internal/metrics"
)

// labeledTimePoint is a timeline point tagged with its side of the
// comparison.
type labeledTimePoint struct {
	DaysOnSale int    `json:"days_on_sale"`
	Purchases  int64  `json:"purchases"`
	Source     string `json:"source"`
}

// handleSalesTimeline returns purchases per day-on-sale for the event
// and its cohort, plus the joined comparison series.
// GET /api/events/:event_id/sales/timeline
func (a *API) handleSalesTimeline(c fiber.Ctx) error {
	eventID, err := eventIDParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid event id"})
	}
	ctx := c.Context()
	payload := fiber.Map{}

	eventPoints, eventErr := a.metrics.BookingsByDay(ctx, metrics.Single(eventID))
	if eventErr != nil {
		logging.L().Warn("timeline query failed", zap.Int64("event_id", eventID), zap.Error(eventErr))
		payload["event"] = noData()
	} else {
		payload["event"] = eventPoints
	}

	cohortIDs, cohortErr := a.cohortIDs(ctx, c, eventID)
	var cohortPoints []metrics.TimePoint
	if cohortErr == nil {
		cohortPoints, cohortErr = a.metrics.BookingsByDay(ctx, cohortIDs)
	}
	if cohortErr != nil {
		logging.L().Warn("cohort timeline query failed", zap.Int64("event_id", eventID), zap.Error(cohortErr))
		payload["cohort"] = noData()
	} else {
		payload["cohort"] = cohortPoints
	}

	if eventErr != nil || cohortErr != nil {
		payload["comparison"] = noData()
	} else {
		joined := make([]labeledTimePoint, 0, len(eventPoints)+len(cohortPoints))
		for _, p := range eventPoints {
			joined = append(joined, labeledTimePoint{DaysOnSale: p.DaysOnSale, Purchases: p.Purchases, Source: compare.SourceEvent})
		}
		for _, p := range cohortPoints {
			joined = append(joined, labeledTimePoint{DaysOnSale: p.DaysOnSale, Purchases: p.Purchases, Source: compare.SourceCohort})
		}
		payload["comparison"] = joined
	}

	return c.JSON(payload)
}

// handleSalesWeekdays returns weekday purchase preference. The
// comparison side is normalized to percentages so events of different
// sizes compare fairly.
// GET /api/events/:event_id/sales/weekdays
func (a *API) handleSalesWeekdays(c fiber.Ctx) error {
	eventID, err := eventIDParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid event id"})
	}

	payload := a.comparisonSection(c.Context(), c, eventID, "weekdays", a.metrics.BookingsByWeekday, true)
	return c.JSON(payload)
}

// handlePaymentMethods returns the payment-method mix: raw tables, the
// normalized comparison, the top-N collapsed distribution for the pie
// chart, and the headline payment metrics.
// GET /api/events/:event_id/sales/payment-methods?top=5
func (a *API) handlePaymentMethods(c fiber.Ctx) error {
	eventID, err := eventIDParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid event id"})
	}
	ctx := c.Context()
	topN := fiber.Query[int](c, "top", 5)

	payload := a.comparisonSection(ctx, c, eventID, "payment_methods", a.metrics.BookingsByPaymentMethod, true)

	eventRows, err := a.metrics.BookingsByPaymentMethod(ctx, metrics.Single(eventID))
	if err != nil {
		payload["collapsed"] = noData()
		payload["summary"] = noData()
		return c.JSON(payload)
	}

	payload["collapsed"] = compare.Collapse(eventRows, topN)
	payload["summary"] = paymentSummary(eventRows)
	return c.JSON(payload)
}

func paymentSummary(rows []metrics.Row) fiber.Map {
	top, ok := metrics.Max(rows)
	if !ok {
		return noData()
	}
	return fiber.Map{
		"total_payments":    metrics.Total(rows),
		"top_method":        top.Label,
		"top_method_count":  top.Count,
		"methods_available": len(rows),
	}
}
