// Package metrics loads the per-event analytic tables the dashboard is
// built from: purchase timing, payment methods, buyer demographics, and
// sales-funnel pageviews. Every query takes an explicit event-id set and
// goes through a TTL read-through cache, so repeated renders with the
// same parameters reuse their results.
package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/ferreiramx/smart-events/internal/funnel"
)

// Store runs metric queries against an injected warehouse handle.
type Store struct {
	db    *sql.DB
	cache *resultCache
}

const defaultCacheTTL = 5 * time.Minute

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:    db,
		cache: newResultCache(defaultCacheTTL),
	}
}

// BookingsByDay returns purchases per day-on-sale: how many bookings were
// paid N days after the event went on sale, clamped to the first 180
// days. The on-sale baseline is the first booking intent when recorded,
// the event's creation otherwise.
func (s *Store) BookingsByDay(ctx context.Context, ids IDSet) ([]TimePoint, error) {
	return cached(s.cache, cacheKey("bookings_by_day", ids), func() ([]TimePoint, error) {
		query := `
			SELECT
				(cb.paid_at::date - COALESCE(e.first_booking_intended_at, e.created_at)::date) AS days_on_sale,
				COUNT(*) AS purchases
			FROM completed_bookings cb
			LEFT JOIN events e ON e.event_id = cb.event_id
			WHERE cb.event_id = ANY($1)
			  AND cb.paid_at > COALESCE(e.first_booking_intended_at, e.created_at)
			  AND (cb.paid_at::date - COALESCE(e.first_booking_intended_at, e.created_at)::date) BETWEEN 0 AND 180
			GROUP BY 1
			ORDER BY 1
		`
		rows, err := s.db.QueryContext(ctx, query, pq.Array(ids))
		if err != nil {
			return nil, fmt.Errorf("failed to query bookings by day: %w", err)
		}
		defer func() { _ = rows.Close() }()

		points := make([]TimePoint, 0)
		for rows.Next() {
			var p TimePoint
			if err := rows.Scan(&p.DaysOnSale, &p.Purchases); err != nil {
				return nil, fmt.Errorf("failed to scan timeline row: %w", err)
			}
			points = append(points, p)
		}
		return points, rows.Err()
	})
}

// weekdayOrder fixes the Monday-first display order of the weekday chart.
var weekdayOrder = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// BookingsByWeekday returns bookings per day of the week, Monday first.
func (s *Store) BookingsByWeekday(ctx context.Context, ids IDSet) ([]Row, error) {
	return cached(s.cache, cacheKey("bookings_by_weekday", ids), func() ([]Row, error) {
		query := `
			SELECT TRIM(TO_CHAR(paid_at, 'Day')) AS weekday, COUNT(booking_id) AS total_bookings
			FROM completed_bookings
			WHERE event_id = ANY($1)
			GROUP BY 1
		`
		rows, err := s.db.QueryContext(ctx, query, pq.Array(ids))
		if err != nil {
			return nil, fmt.Errorf("failed to query bookings by weekday: %w", err)
		}
		defer func() { _ = rows.Close() }()

		counts := make(map[string]float64)
		for rows.Next() {
			var r Row
			if err := rows.Scan(&r.Label, &r.Count); err != nil {
				return nil, fmt.Errorf("failed to scan weekday row: %w", err)
			}
			counts[r.Label] = r.Count
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}

		ordered := make([]Row, 0, len(counts))
		for _, day := range weekdayOrder {
			if count, ok := counts[day]; ok {
				ordered = append(ordered, Row{Label: day, Count: count})
			}
		}
		return ordered, nil
	})
}

// paymentMethodNames maps raw gateway identifiers to display labels.
var paymentMethodNames = map[string]string{
	"Banwire":        "Credit card",
	"PhysicalTicket": "Physical ticket",
	"Cash":           "Cash",
}

// BookingsByPaymentMethod returns purchases per payment method. Point of
// sale channels are grouped as "Insiders" and retired gateways as
// "Inactive"; the remaining raw identifiers get friendly names.
func (s *Store) BookingsByPaymentMethod(ctx context.Context, ids IDSet) ([]Row, error) {
	return cached(s.cache, cacheKey("bookings_by_payment_method", ids), func() ([]Row, error) {
		query := `
			SELECT
				CASE
					WHEN SPLIT_PART(payment_method, '::', 2) IN ('PosCard', 'PosCash') THEN 'Insiders'
					WHEN SPLIT_PART(payment_method, '::', 2) IN ('Paypal', 'BoletiaDeposit', 'Deposit', 'TicketBooth', 'Innova') THEN 'Inactive'
					ELSE SPLIT_PART(payment_method, '::', 2)
				END AS payment_method,
				COUNT(*) AS purchases
			FROM completed_bookings cb
			LEFT JOIN events e ON e.event_id = cb.event_id
			WHERE cb.event_id = ANY($1)
			  AND cb.paid_at > COALESCE(e.activated_at, e.created_at)
			  AND payment_method IS NOT NULL
			GROUP BY 1
			ORDER BY 1
		`
		rows, err := s.db.QueryContext(ctx, query, pq.Array(ids))
		if err != nil {
			return nil, fmt.Errorf("failed to query payment methods: %w", err)
		}
		defer func() { _ = rows.Close() }()

		methods := make([]Row, 0)
		for rows.Next() {
			var r Row
			if err := rows.Scan(&r.Label, &r.Count); err != nil {
				return nil, fmt.Errorf("failed to scan payment method row: %w", err)
			}
			if name, ok := paymentMethodNames[r.Label]; ok {
				r.Label = name
			}
			methods = append(methods, r)
		}
		return methods, rows.Err()
	})
}

// CustomersByAge returns profiled buyers per age bracket.
func (s *Store) CustomersByAge(ctx context.Context, ids IDSet) ([]Row, error) {
	return cached(s.cache, cacheKey("customers_by_age", ids), func() ([]Row, error) {
		query := `
			SELECT age_bracket, SUM(total_bookings) AS total_bookings
			FROM customer_demographics_age
			WHERE event_id = ANY($1)
			GROUP BY age_bracket
			ORDER BY age_bracket
		`
		return s.queryRows(ctx, query, ids, "age brackets")
	})
}

var genderNames = map[string]string{
	"female": "Women",
	"male":   "Men",
}

// CustomersByGender returns profiled buyers per gender.
func (s *Store) CustomersByGender(ctx context.Context, ids IDSet) ([]Row, error) {
	return cached(s.cache, cacheKey("customers_by_gender", ids), func() ([]Row, error) {
		query := `
			SELECT gender, SUM(total_bookings) AS total_bookings
			FROM customer_demographics_gender
			WHERE event_id = ANY($1)
			GROUP BY gender
		`
		rows, err := s.queryRows(ctx, query, ids, "genders")
		if err != nil {
			return nil, err
		}
		for i := range rows {
			if name, ok := genderNames[rows[i].Label]; ok {
				rows[i].Label = name
			}
		}
		return rows, nil
	})
}

// GenderAgeRow is one (gender, age bracket) bucket of profiled buyers.
type GenderAgeRow struct {
	Gender     string `json:"gender"`
	AgeBracket string `json:"age_bracket"`
	Bookings   int64  `json:"bookings"`
}

// CustomersByGenderAge returns profiled buyers per gender and age bracket.
func (s *Store) CustomersByGenderAge(ctx context.Context, ids IDSet) ([]GenderAgeRow, error) {
	return cached(s.cache, cacheKey("customers_by_gender_age", ids), func() ([]GenderAgeRow, error) {
		query := `
			SELECT gender, age_bracket, SUM(total_bookings) AS total_bookings
			FROM customer_demographics_gender_age
			WHERE event_id = ANY($1)
			GROUP BY gender, age_bracket
			ORDER BY gender, age_bracket
		`
		rows, err := s.db.QueryContext(ctx, query, pq.Array(ids))
		if err != nil {
			return nil, fmt.Errorf("failed to query gender/age buckets: %w", err)
		}
		defer func() { _ = rows.Close() }()

		buckets := make([]GenderAgeRow, 0)
		for rows.Next() {
			var b GenderAgeRow
			if err := rows.Scan(&b.Gender, &b.AgeBracket, &b.Bookings); err != nil {
				return nil, fmt.Errorf("failed to scan gender/age row: %w", err)
			}
			if name, ok := genderNames[b.Gender]; ok {
				b.Gender = name
			}
			buckets = append(buckets, b)
		}
		return buckets, rows.Err()
	})
}

// BookingsByCity returns per-city bookings for the buyer map, most
// active cities first. Cities the tracker could not attribute are
// excluded. Coordinates are filled in later by the geocoder.
func (s *Store) BookingsByCity(ctx context.Context, eventID int64) ([]CityRow, error) {
	return cached(s.cache, cacheKey("bookings_by_city", Single(eventID)), func() ([]CityRow, error) {
		query := `
			SELECT city, country, total_bookings
			FROM customer_demographics_city
			WHERE event_id = $1
			  AND city <> '(not set)'
			ORDER BY total_bookings DESC
		`
		rows, err := s.db.QueryContext(ctx, query, eventID)
		if err != nil {
			return nil, fmt.Errorf("failed to query bookings by city: %w", err)
		}
		defer func() { _ = rows.Close() }()

		cities := make([]CityRow, 0)
		for rows.Next() {
			var c CityRow
			if err := rows.Scan(&c.City, &c.Country, &c.Bookings); err != nil {
				return nil, fmt.Errorf("failed to scan city row: %w", err)
			}
			cities = append(cities, c)
		}
		return cities, rows.Err()
	})
}

// funnelPathCase buckets tracked page paths into the canonical stages.
const funnelPathCase = `
	CASE
		WHEN page_path LIKE '%/finish' THEN 'Paid'
		WHEN page_path LIKE '%/pay' THEN 'Checkout'
		WHEN page_path LIKE '%/info' THEN 'Info'
		ELSE 'Start'
	END`

// Pageviews returns the raw funnel-stage pageviews of one event's sales
// pages. Stages with no traffic are absent; funnel.Normalize fills them.
func (s *Store) Pageviews(ctx context.Context, eventID int64) ([]funnel.StageRow, error) {
	return cached(s.cache, cacheKey("pageviews", Single(eventID)), func() ([]funnel.StageRow, error) {
		query := `
			SELECT ` + funnelPathCase + ` AS stage, SUM(pageviews) AS pageviews
			FROM sales_funnels
			WHERE subdomain = (SELECT subdomain FROM events WHERE event_id = $1)
			GROUP BY 1
			ORDER BY 2 DESC
		`
		rows, err := s.db.QueryContext(ctx, query, eventID)
		if err != nil {
			return nil, fmt.Errorf("failed to query pageviews: %w", err)
		}
		defer func() { _ = rows.Close() }()

		stageRows := make([]funnel.StageRow, 0)
		for rows.Next() {
			var label string
			var pageviews int64
			if err := rows.Scan(&label, &pageviews); err != nil {
				return nil, fmt.Errorf("failed to scan pageview row: %w", err)
			}
			stage, ok := funnel.StageFromLabel(label)
			if !ok {
				continue
			}
			stageRows = append(stageRows, funnel.StageRow{Stage: stage, Pageviews: pageviews})
		}
		return stageRows, rows.Err()
	})
}

// mediumNames maps tracker medium identifiers to display labels.
var mediumNames = map[string]string{
	"(none)":      "Direct",
	"referral":    "Referral",
	"organic":     "Organic",
	"paid social": "Paid Social",
	"sendgrid":    "Sendgrid",
}

// PageviewsByMedium returns funnel-stage pageviews grouped by traffic
// medium.
func (s *Store) PageviewsByMedium(ctx context.Context, eventID int64) ([]funnel.GroupedRow, error) {
	return cached(s.cache, cacheKey("pageviews_by_medium", Single(eventID)), func() ([]funnel.GroupedRow, error) {
		query := `
			SELECT ` + funnelPathCase + ` AS stage, medium, SUM(pageviews) AS pageviews
			FROM sales_funnels_by_medium
			WHERE subdomain = (SELECT subdomain FROM events WHERE event_id = $1)
			GROUP BY 1, 2
			ORDER BY 3 DESC
		`
		return s.queryGroupedRows(ctx, query, eventID, mediumNames)
	})
}

// sourceMediumNames collapses untagged direct traffic under one label.
var sourceMediumNames = map[string]string{
	"(direct) / (none)": "direct",
}

// PageviewsBySourceMedium returns funnel-stage pageviews grouped by
// source/medium pair.
func (s *Store) PageviewsBySourceMedium(ctx context.Context, eventID int64) ([]funnel.GroupedRow, error) {
	return cached(s.cache, cacheKey("pageviews_by_source_medium", Single(eventID)), func() ([]funnel.GroupedRow, error) {
		query := `
			SELECT ` + funnelPathCase + ` AS stage, source_medium, SUM(pageviews) AS pageviews
			FROM sales_funnels_by_source_medium
			WHERE subdomain = (SELECT subdomain FROM events WHERE event_id = $1)
			GROUP BY 1, 2
			ORDER BY 3 DESC
		`
		return s.queryGroupedRows(ctx, query, eventID, sourceMediumNames)
	})
}

func (s *Store) queryRows(ctx context.Context, query string, ids IDSet, what string) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", what, err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]Row, 0)
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.Label, &r.Count); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", what, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) queryGroupedRows(ctx context.Context, query string, eventID int64, renames map[string]string) ([]funnel.GroupedRow, error) {
	rows, err := s.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query grouped pageviews: %w", err)
	}
	defer func() { _ = rows.Close() }()

	grouped := make([]funnel.GroupedRow, 0)
	for rows.Next() {
		var label, group string
		var pageviews int64
		if err := rows.Scan(&label, &group, &pageviews); err != nil {
			return nil, fmt.Errorf("failed to scan grouped pageview row: %w", err)
		}
		stage, ok := funnel.StageFromLabel(label)
		if !ok {
			continue
		}
		if name, ok := renames[group]; ok {
			group = name
		}
		grouped = append(grouped, funnel.GroupedRow{Stage: stage, Group: group, Pageviews: pageviews})
	}
	return grouped, rows.Err()
}
