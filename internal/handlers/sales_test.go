package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleSalesTimeline_Success(t *testing.T) {
	app, mock := newTestServer(t, testConfig())

	mock.ExpectQuery("days_on_sale").
		WithArgs(pq.Array([]int64{7})).
		WillReturnRows(sqlmock.NewRows([]string{"days_on_sale", "purchases"}).
			AddRow(0, int64(4)).
			AddRow(3, int64(9)))
	mock.ExpectQuery("FROM events").
		WithArgs(pq.Array([]int64{11, 12})).
		WillReturnRows(eventRows(
			concertRow(11, "Indie Fest", 95),
			concertRow(12, "Jazz Evening", 108),
		))
	mock.ExpectQuery("days_on_sale").
		WithArgs(pq.Array([]int64{11, 12})).
		WillReturnRows(sqlmock.NewRows([]string{"days_on_sale", "purchases"}).
			AddRow(1, int64(20)))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/events/7/sales/timeline", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Len(t, body["event"], 2)
	assert.Len(t, body["cohort"], 1)

	comparison, ok := body["comparison"].([]any)
	require.True(t, ok)
	require.Len(t, comparison, 3)
	first := comparison[0].(map[string]any)
	last := comparison[2].(map[string]any)
	assert.Equal(t, "This event", first["source"])
	assert.Equal(t, "Similar", last["source"])

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleSalesTimeline_EventSideDegrades(t *testing.T) {
	app, mock := newTestServer(t, testConfig())

	mock.ExpectQuery("days_on_sale").
		WithArgs(pq.Array([]int64{7})).
		WillReturnError(assert.AnError)
	mock.ExpectQuery("FROM events").
		WithArgs(pq.Array([]int64{11, 12})).
		WillReturnRows(eventRows(concertRow(11, "Indie Fest", 95)))
	mock.ExpectQuery("days_on_sale").
		WithArgs(pq.Array([]int64{11})).
		WillReturnRows(sqlmock.NewRows([]string{"days_on_sale", "purchases"}).
			AddRow(1, int64(20)))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/events/7/sales/timeline", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	event, ok := body["event"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, event["no_data"])
	assert.Len(t, body["cohort"], 1)
	comparison, ok := body["comparison"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, comparison["no_data"])

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleSalesWeekdays_NormalizedComparison(t *testing.T) {
	app, mock := newTestServer(t, testConfig())

	mock.ExpectQuery("TO_CHAR").
		WithArgs(pq.Array([]int64{7})).
		WillReturnRows(sqlmock.NewRows([]string{"weekday", "total_bookings"}).
			AddRow("Friday", 30.0).
			AddRow("Saturday", 10.0))
	mock.ExpectQuery("FROM events").
		WithArgs(pq.Array([]int64{11, 12})).
		WillReturnRows(eventRows(concertRow(11, "Indie Fest", 95)))
	mock.ExpectQuery("TO_CHAR").
		WithArgs(pq.Array([]int64{11})).
		WillReturnRows(sqlmock.NewRows([]string{"weekday", "total_bookings"}).
			AddRow("Friday", 100.0).
			AddRow("Saturday", 300.0))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/events/7/sales/weekdays", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	comparison, ok := body["comparison"].([]any)
	require.True(t, ok)
	require.Len(t, comparison, 4)

	first := comparison[0].(map[string]any)
	assert.Equal(t, "Friday", first["label"])
	assert.Equal(t, 75.0, first["count"])
	assert.Equal(t, "This event", first["source"])

	third := comparison[2].(map[string]any)
	assert.Equal(t, 25.0, third["count"])
	assert.Equal(t, "Similar", third["source"])

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHandlePaymentMethods_CollapseAndSummary(t *testing.T) {
	app, mock := newTestServer(t, testConfig())

	mock.ExpectQuery("SPLIT_PART").
		WithArgs(pq.Array([]int64{7})).
		WillReturnRows(sqlmock.NewRows([]string{"payment_method", "purchases"}).
			AddRow("Banwire", 40.0).
			AddRow("Cash", 25.0).
			AddRow("PhysicalTicket", 20.0).
			AddRow("Insiders", 15.0))
	mock.ExpectQuery("FROM events").
		WithArgs(pq.Array([]int64{11, 12})).
		WillReturnRows(eventRows(concertRow(11, "Indie Fest", 95)))
	mock.ExpectQuery("SPLIT_PART").
		WithArgs(pq.Array([]int64{11})).
		WillReturnRows(sqlmock.NewRows([]string{"payment_method", "purchases"}).
			AddRow("Banwire", 90.0).
			AddRow("Cash", 10.0))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/events/7/sales/payment-methods?top=2", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)

	collapsed, ok := body["collapsed"].([]any)
	require.True(t, ok)
	require.Len(t, collapsed, 3)
	top := collapsed[0].(map[string]any)
	assert.Equal(t, "Credit card", top["label"])
	assert.Equal(t, 40.0, top["count"])
	others := collapsed[2].(map[string]any)
	assert.Equal(t, "others", others["label"])
	assert.Equal(t, 35.0, others["count"])

	summary, ok := body["summary"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 100.0, summary["total_payments"])
	assert.Equal(t, "Credit card", summary["top_method"])
	assert.Equal(t, 40.0, summary["top_method_count"])
	assert.Equal(t, 4.0, summary["methods_available"])

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHandlePaymentMethods_CachedEventRows(t *testing.T) {
	app, mock := newTestServer(t, testConfig())

	// The event-side rows feed both the comparison and the collapsed
	// chart; the second use must come from the cache.
	mock.ExpectQuery("SPLIT_PART").
		WithArgs(pq.Array([]int64{7})).
		WillReturnRows(sqlmock.NewRows([]string{"payment_method", "purchases"}).
			AddRow("Cash", 10.0))
	mock.ExpectQuery("FROM events").
		WithArgs(pq.Array([]int64{11, 12})).
		WillReturnRows(eventRows(concertRow(11, "Indie Fest", 95)))
	mock.ExpectQuery("SPLIT_PART").
		WithArgs(pq.Array([]int64{11})).
		WillReturnRows(sqlmock.NewRows([]string{"payment_method", "purchases"}).
			AddRow("Cash", 50.0))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/events/7/sales/payment-methods", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, mock.ExpectationsWereMet())
}
