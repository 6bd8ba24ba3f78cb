package metrics

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferreiramx/smart-events/internal/funnel"
)

func TestBookingsByDay(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	rows := sqlmock.NewRows([]string{"days_on_sale", "purchases"}).
		AddRow(0, int64(12)).
		AddRow(1, int64(30)).
		AddRow(5, int64(7))
	mock.ExpectQuery("FROM completed_bookings cb").WillReturnRows(rows)

	store := NewStore(db)
	points, err := store.BookingsByDay(context.Background(), IDSet{208150})
	require.NoError(t, err)

	require.Len(t, points, 3)
	assert.Equal(t, TimePoint{DaysOnSale: 0, Purchases: 12}, points[0])
	assert.Equal(t, TimePoint{DaysOnSale: 5, Purchases: 7}, points[2])
}

func TestBookingsByDayCachesResult(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	rows := sqlmock.NewRows([]string{"days_on_sale", "purchases"}).AddRow(0, int64(1))
	// One expectation only: the second call must be served from cache
	mock.ExpectQuery("FROM completed_bookings cb").WillReturnRows(rows)

	store := NewStore(db)
	first, err := store.BookingsByDay(context.Background(), IDSet{1, 2})
	require.NoError(t, err)
	second, err := store.BookingsByDay(context.Background(), IDSet{2, 1})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingsByDayErrorNotCached(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("FROM completed_bookings cb").WillReturnError(assert.AnError)
	mock.ExpectQuery("FROM completed_bookings cb").
		WillReturnRows(sqlmock.NewRows([]string{"days_on_sale", "purchases"}).AddRow(0, int64(1)))

	store := NewStore(db)
	_, err = store.BookingsByDay(context.Background(), IDSet{1})
	require.Error(t, err)

	points, err := store.BookingsByDay(context.Background(), IDSet{1})
	require.NoError(t, err)
	assert.Len(t, points, 1)
}

func TestBookingsByWeekdayOrdersMondayFirst(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	rows := sqlmock.NewRows([]string{"weekday", "total_bookings"}).
		AddRow("Sunday", 40.0).
		AddRow("Friday", 120.0).
		AddRow("Monday", 15.0)
	mock.ExpectQuery("FROM completed_bookings").WillReturnRows(rows)

	store := NewStore(db)
	result, err := store.BookingsByWeekday(context.Background(), IDSet{1})
	require.NoError(t, err)

	require.Len(t, result, 3)
	assert.Equal(t, "Monday", result[0].Label)
	assert.Equal(t, "Friday", result[1].Label)
	assert.Equal(t, "Sunday", result[2].Label)
}

func TestBookingsByPaymentMethodRenames(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	rows := sqlmock.NewRows([]string{"payment_method", "purchases"}).
		AddRow("Banwire", 310.0).
		AddRow("Cash", 45.0).
		AddRow("Insiders", 12.0)
	mock.ExpectQuery("FROM completed_bookings cb").WillReturnRows(rows)

	store := NewStore(db)
	methods, err := store.BookingsByPaymentMethod(context.Background(), IDSet{1})
	require.NoError(t, err)

	require.Len(t, methods, 3)
	assert.Equal(t, Row{Label: "Credit card", Count: 310}, methods[0])
	assert.Equal(t, Row{Label: "Cash", Count: 45}, methods[1])
	assert.Equal(t, Row{Label: "Insiders", Count: 12}, methods[2])
}

func TestCustomersByGenderRenames(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	rows := sqlmock.NewRows([]string{"gender", "total_bookings"}).
		AddRow("female", 220.0).
		AddRow("male", 180.0)
	mock.ExpectQuery("FROM customer_demographics_gender").WillReturnRows(rows)

	store := NewStore(db)
	result, err := store.CustomersByGender(context.Background(), IDSet{1, 2})
	require.NoError(t, err)

	assert.Equal(t, []Row{
		{Label: "Women", Count: 220},
		{Label: "Men", Count: 180},
	}, result)
}

func TestCustomersByGenderAge(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	rows := sqlmock.NewRows([]string{"gender", "age_bracket", "total_bookings"}).
		AddRow("female", "25-34", int64(90)).
		AddRow("male", "25-34", int64(70))
	mock.ExpectQuery("FROM customer_demographics_gender_age").WillReturnRows(rows)

	store := NewStore(db)
	buckets, err := store.CustomersByGenderAge(context.Background(), IDSet{1})
	require.NoError(t, err)

	require.Len(t, buckets, 2)
	assert.Equal(t, GenderAgeRow{Gender: "Women", AgeBracket: "25-34", Bookings: 90}, buckets[0])
	assert.Equal(t, GenderAgeRow{Gender: "Men", AgeBracket: "25-34", Bookings: 70}, buckets[1])
}

func TestBookingsByCity(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	rows := sqlmock.NewRows([]string{"city", "country", "total_bookings"}).
		AddRow("Monterrey", "Mexico", int64(900)).
		AddRow("Guadalajara", "Mexico", int64(400))
	mock.ExpectQuery("FROM customer_demographics_city").
		WithArgs(int64(208150)).
		WillReturnRows(rows)

	store := NewStore(db)
	cities, err := store.BookingsByCity(context.Background(), 208150)
	require.NoError(t, err)

	require.Len(t, cities, 2)
	assert.Equal(t, "Monterrey", cities[0].City)
	assert.Equal(t, int64(900), cities[0].Bookings)
	assert.Nil(t, cities[0].Latitude)
}

func TestPageviews(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	rows := sqlmock.NewRows([]string{"stage", "pageviews"}).
		AddRow("Start", int64(1000)).
		AddRow("Info", int64(600)).
		AddRow("Paid", int64(50)).
		AddRow("Landing", int64(99)) // untracked bucket, dropped
	mock.ExpectQuery("FROM sales_funnels").
		WithArgs(int64(208150)).
		WillReturnRows(rows)

	store := NewStore(db)
	stageRows, err := store.Pageviews(context.Background(), 208150)
	require.NoError(t, err)

	require.Len(t, stageRows, 3)
	table := funnel.Normalize(stageRows)
	assert.Equal(t, int64(1000), table.Count(funnel.Start))
	assert.Equal(t, int64(0), table.Count(funnel.Checkout))
	assert.Equal(t, int64(50), table.Count(funnel.Paid))
}

func TestPageviewsByMediumRenames(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	rows := sqlmock.NewRows([]string{"stage", "medium", "pageviews"}).
		AddRow("Start", "(none)", int64(500)).
		AddRow("Paid", "(none)", int64(20)).
		AddRow("Start", "organic", int64(300))
	mock.ExpectQuery("FROM sales_funnels_by_medium").
		WithArgs(int64(1)).
		WillReturnRows(rows)

	store := NewStore(db)
	grouped, err := store.PageviewsByMedium(context.Background(), 1)
	require.NoError(t, err)

	require.Len(t, grouped, 3)
	assert.Equal(t, "Direct", grouped[0].Group)
	assert.Equal(t, "Organic", grouped[2].Group)
}

func TestPageviewsBySourceMediumRenamesDirect(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	rows := sqlmock.NewRows([]string{"stage", "source_medium", "pageviews"}).
		AddRow("Start", "(direct) / (none)", int64(700)).
		AddRow("Start", "google / organic", int64(350))
	mock.ExpectQuery("FROM sales_funnels_by_source_medium").
		WithArgs(int64(1)).
		WillReturnRows(rows)

	store := NewStore(db)
	grouped, err := store.PageviewsBySourceMedium(context.Background(), 1)
	require.NoError(t, err)

	require.Len(t, grouped, 2)
	assert.Equal(t, "direct", grouped[0].Group)
	assert.Equal(t, "google / organic", grouped[1].Group)
}

func TestEmptyResultIsNotAnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("FROM customer_demographics_age").
		WillReturnRows(sqlmock.NewRows([]string{"age_bracket", "total_bookings"}))

	store := NewStore(db)
	result, err := store.CustomersByAge(context.Background(), IDSet{42})
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestIDSetKeyIsOrderIndependent(t *testing.T) {
	assert.Equal(t, IDSet{3, 1, 2}.Key(), IDSet{1, 2, 3}.Key())
	assert.Equal(t, "1,2,3", IDSet{3, 1, 2}.Key())
	assert.Equal(t, "208150", Single(208150).Key())
	assert.NotEqual(t, IDSet{1, 2}.Key(), IDSet{1, 2, 3}.Key())
}
