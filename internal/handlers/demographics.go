package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"github.com/ferreiramx/smart-events/internal/geocode"
	"github.com/ferreiramx/smart-events/internal/logging"
	"github.com/ferreiramx/smart-events/internal/metrics"
)

// handleAge returns profiled buyers per age bracket.
// GET /api/events/:event_id/demographics/age
func (a *API) handleAge(c fiber.Ctx) error {
	eventID, err := eventIDParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid event id"})
	}

	payload := a.comparisonSection(c.Context(), c, eventID, "age", a.metrics.CustomersByAge, false)
	return c.JSON(payload)
}

// handleGender returns profiled buyers per gender, normalized for the
// comparison side.
// GET /api/events/:event_id/demographics/gender
func (a *API) handleGender(c fiber.Ctx) error {
	eventID, err := eventIDParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid event id"})
	}

	payload := a.comparisonSection(c.Context(), c, eventID, "gender", a.metrics.CustomersByGender, true)
	return c.JSON(payload)
}

// handleGenderAge returns the gender by age-bracket breakdown for the
// event and its cohort.
// GET /api/events/:event_id/demographics/gender-age
func (a *API) handleGenderAge(c fiber.Ctx) error {
	eventID, err := eventIDParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid event id"})
	}
	ctx := c.Context()
	payload := fiber.Map{}

	eventBuckets, eventErr := a.metrics.CustomersByGenderAge(ctx, metrics.Single(eventID))
	if eventErr != nil {
		logging.L().Warn("gender/age query failed", zap.Int64("event_id", eventID), zap.Error(eventErr))
		payload["event"] = noData()
	} else {
		payload["event"] = eventBuckets
	}

	cohortIDs, cohortErr := a.cohortIDs(ctx, c, eventID)
	var cohortBuckets []metrics.GenderAgeRow
	if cohortErr == nil {
		cohortBuckets, cohortErr = a.metrics.CustomersByGenderAge(ctx, cohortIDs)
	}
	if cohortErr != nil {
		logging.L().Warn("cohort gender/age query failed", zap.Int64("event_id", eventID), zap.Error(cohortErr))
		payload["cohort"] = noData()
	} else {
		payload["cohort"] = cohortBuckets
	}

	return c.JSON(payload)
}

// geocodeLimit caps geocoder calls per request. Cities arrive ordered
// by bookings, so the cap keeps the busiest markers on the map while
// staying inside the public Nominatim usage limits.
const geocodeLimit = 50

// handleCities returns the buyer map: per-city bookings with geocoded
// coordinates. A failed lookup leaves that city's coordinates empty; the
// row itself still renders in the table.
// GET /api/events/:event_id/demographics/cities
func (a *API) handleCities(c fiber.Ctx) error {
	eventID, err := eventIDParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid event id"})
	}
	ctx := c.Context()

	cities, err := a.metrics.BookingsByCity(ctx, eventID)
	if err != nil {
		logging.L().Warn("cities query failed", zap.Int64("event_id", eventID), zap.Error(err))
		return c.JSON(noData())
	}
	if len(cities) == 0 {
		return c.JSON(noData())
	}

	plotted := make([]metrics.CityRow, len(cities))
	copy(plotted, cities)
	for i := range plotted {
		if i >= geocodeLimit {
			break
		}
		coords, err := a.geo.Resolve(ctx, plotted[i].City, plotted[i].Country)
		if errors.Is(err, geocode.ErrNotFound) {
			continue
		}
		if err != nil {
			logging.L().Warn("geocoder unavailable",
				zap.String("city", plotted[i].City), zap.Error(err))
			continue
		}
		lat, lon := coords.Latitude, coords.Longitude
		plotted[i].Latitude = &lat
		plotted[i].Longitude = &lon
	}

	countrySet := make(map[string]struct{})
	for _, city := range cities {
		countrySet[city.Country] = struct{}{}
	}

	// Cities arrive ordered by bookings descending
	return c.JSON(fiber.Map{
		"cities":        plotted,
		"top_city":      cities[0].City,
		"top_country":   cities[0].Country,
		"country_count": len(countrySet),
	})
}
