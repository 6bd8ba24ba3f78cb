// Package catalog resolves events from the warehouse catalog and selects
// the cohort of comparable events used for benchmarking.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// ErrEventNotFound is returned when an event id does not resolve to any
// catalog entry. A cohort query that matches nothing is not an error.
var ErrEventNotFound = errors.New("event not found")

// Event is an immutable snapshot of one catalog entry, fetched once per
// page load and read-only from there on.
type Event struct {
	ID                 int64     `json:"event_id"`
	Name               string    `json:"name"`
	Subcategory        string    `json:"subcategory"`
	City               string    `json:"city"`
	State              string    `json:"state"`
	AverageTicketPrice float64   `json:"average_ticket_price"`
	ChannelType        string    `json:"channel_type"`
	StartedAt          time.Time `json:"started_at"`
	BookingsCompleted  int64     `json:"bookings_completed"`
	TicketsSold        int64     `json:"tickets_sold"`
	TotalTicketSales   float64   `json:"total_ticket_sales"`
}

// Store runs catalog queries against an injected warehouse handle.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const eventColumns = `
		event_id,
		name,
		subcategory,
		city,
		state,
		average_ticket_price,
		channel_type,
		started_at,
		bookings_completed,
		tickets_sold,
		total_ticket_sales`

// Load fetches the snapshot for a single event.
func (s *Store) Load(ctx context.Context, eventID int64) (*Event, error) {
	query := `
		SELECT` + eventColumns + `
		FROM events
		WHERE event_id = $1
	`
	e := &Event{}
	err := s.db.QueryRowContext(ctx, query, eventID).Scan(
		&e.ID,
		&e.Name,
		&e.Subcategory,
		&e.City,
		&e.State,
		&e.AverageTicketPrice,
		&e.ChannelType,
		&e.StartedAt,
		&e.BookingsCompleted,
		&e.TicketsSold,
		&e.TotalTicketSales,
	)
	if err == sql.ErrNoRows {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load event %d: %w", eventID, err)
	}
	return e, nil
}

// SelectCohort finds past events comparable to the base event: same
// subcategory and channel type, average ticket price inside the inclusive
// band [base*(1-threshold), base*(1+threshold)], already ended, with at
// least one paid ticket, and never the base event itself.
//
// An unknown base event is ErrEventNotFound; an empty cohort is a valid
// result and comes back as an empty slice.
func (s *Store) SelectCohort(ctx context.Context, baseEventID int64, priceThreshold float64) ([]Event, error) {
	if priceThreshold < 0 || priceThreshold > 1 {
		return nil, fmt.Errorf("price threshold must be in [0,1], got %g", priceThreshold)
	}

	query := `
		WITH base_event AS (
			SELECT event_id, subcategory, channel_type, average_ticket_price
			FROM events
			WHERE event_id = $1
		)
		SELECT` + eventColumns + `
		FROM events
		WHERE subcategory = (SELECT subcategory FROM base_event)
		  AND channel_type = (SELECT channel_type FROM base_event)
		  AND average_ticket_price BETWEEN
		      (SELECT average_ticket_price FROM base_event) * (1.0 - $2::float8)
		      AND (SELECT average_ticket_price FROM base_event) * (1.0 + $2::float8)
		  AND tickets_sold_with_cost > 0
		  AND ended_at < NOW()
		  AND event_id <> (SELECT event_id FROM base_event)
	`
	rows, err := s.db.QueryContext(ctx, query, baseEventID, priceThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to select cohort for event %d: %w", baseEventID, err)
	}
	defer func() { _ = rows.Close() }()

	cohort, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}

	if len(cohort) == 0 {
		// Distinguish "no comparable events" from "base event missing"
		if _, err := s.Load(ctx, baseEventID); err != nil {
			return nil, err
		}
	}
	return cohort, nil
}

// FetchExplicit resolves a static, caller-supplied list of event ids.
// This is the override path: no similarity policy is applied.
func (s *Store) FetchExplicit(ctx context.Context, ids []int64) ([]Event, error) {
	if len(ids) == 0 {
		return []Event{}, nil
	}

	query := `
		SELECT` + eventColumns + `
		FROM events
		WHERE event_id = ANY($1)
	`
	rows, err := s.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	events := make([]Event, 0)
	for rows.Next() {
		var e Event
		if err := rows.Scan(
			&e.ID,
			&e.Name,
			&e.Subcategory,
			&e.City,
			&e.State,
			&e.AverageTicketPrice,
			&e.ChannelType,
			&e.StartedAt,
			&e.BookingsCompleted,
			&e.TicketsSold,
			&e.TotalTicketSales,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// PriceBand returns the inclusive average-ticket-price range a candidate
// must fall into to be comparable to a base price at the given threshold.
func PriceBand(basePrice, threshold float64) (low, high float64) {
	return basePrice * (1.0 - threshold), basePrice * (1.0 + threshold)
}

// IDs extracts the id set of a cohort, the unit of granularity every
// metric query operates on.
func IDs(events []Event) []int64 {
	ids := make([]int64, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	return ids
}
