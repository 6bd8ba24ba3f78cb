package handlers

import (
	"database/sql/driver"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/require"

	"github.com/ferreiramx/smart-events/internal/config"
	"github.com/ferreiramx/smart-events/internal/geocode"
)

// newTestServer wires a fiber app around a mocked warehouse. Tests queue
// expectations on the returned mock before firing requests.
func newTestServer(t *testing.T, cfg *config.Config) (*fiber.App, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	if cfg == nil {
		cfg = testConfig()
	}

	app := fiber.New(fiber.Config{Views: ViewEngine()})
	api := New(db, geocode.NewClient(cfg.GeocoderBaseURL), cfg)
	api.Register(app)
	return app, mock
}

// testConfig pins an explicit cohort so section tests exercise the
// override path with a single, simple cohort query.
func testConfig() *config.Config {
	return &config.Config{
		EventID:         7,
		PriceThreshold:  config.DefaultPriceThreshold,
		SimilarEvents:   []int64{11, 12},
		GeocoderBaseURL: "http://127.0.0.1:1", // never reached outside city tests
	}
}

// selectorConfig leaves the cohort to the similarity selector.
func selectorConfig() *config.Config {
	return &config.Config{
		EventID:         7,
		PriceThreshold:  config.DefaultPriceThreshold,
		GeocoderBaseURL: "http://127.0.0.1:1",
	}
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

// eventRows builds catalog rows in column order.
func eventRows(rows ...[]driver.Value) *sqlmock.Rows {
	out := sqlmock.NewRows([]string{
		"event_id", "name", "subcategory", "city", "state",
		"average_ticket_price", "channel_type", "started_at",
		"bookings_completed", "tickets_sold", "total_ticket_sales",
	})
	for _, r := range rows {
		out.AddRow(r...)
	}
	return out
}
