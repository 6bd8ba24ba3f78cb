package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"github.com/ferreiramx/smart-events/internal/catalog"
	"github.com/ferreiramx/smart-events/internal/logging"
)

// handleEvent returns the base event snapshot shown in the page header.
// GET /api/events/:event_id
func (a *API) handleEvent(c fiber.Ctx) error {
	eventID, err := eventIDParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid event id"})
	}

	event, err := a.catalog.Load(c.Context(), eventID)
	if errors.Is(err, catalog.ErrEventNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "event not found"})
	}
	if err != nil {
		logging.L().Error("failed to load event", zap.Int64("event_id", eventID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "database error"})
	}

	return c.JSON(event)
}

// handleCohort returns the comparison set for an event, either selected
// by similarity or pinned by the configured override.
// GET /api/events/:event_id/cohort?threshold=0.1
func (a *API) handleCohort(c fiber.Ctx) error {
	eventID, err := eventIDParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid event id"})
	}

	if a.cfg.HasExplicitCohort() {
		events, err := a.catalog.FetchExplicit(c.Context(), a.cfg.SimilarEvents)
		if err != nil {
			logging.L().Error("failed to fetch explicit cohort", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "database error"})
		}
		return c.JSON(fiber.Map{
			"explicit": true,
			"events":   events,
		})
	}

	threshold := fiber.Query[float64](c, "threshold", a.cfg.PriceThreshold)
	if threshold < 0 || threshold > 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "threshold must be between 0 and 1"})
	}

	base, err := a.catalog.Load(c.Context(), eventID)
	if errors.Is(err, catalog.ErrEventNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "event not found"})
	}
	if err != nil {
		logging.L().Error("failed to load base event", zap.Int64("event_id", eventID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "database error"})
	}

	events, err := a.catalog.SelectCohort(c.Context(), eventID, threshold)
	if err != nil {
		logging.L().Error("failed to select cohort", zap.Int64("event_id", eventID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "database error"})
	}

	low, high := catalog.PriceBand(base.AverageTicketPrice, threshold)
	return c.JSON(fiber.Map{
		"explicit":        false,
		"threshold":       threshold,
		"price_band_low":  low,
		"price_band_high": high,
		"events":          events,
	})
}
