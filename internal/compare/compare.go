// Package compare merges a single event's metric tables with its cohort's
// into side-by-side structures, and collapses long-tail distributions for
// pie-chart display. Every function allocates its result; inputs are
// never modified.
package compare

import (
	"errors"
	"math"
	"sort"
	"strconv"

	"github.com/ferreiramx/smart-events/internal/metrics"
)

// Provenance labels tagged onto comparison rows.
const (
	SourceEvent  = "This event"
	SourceCohort = "Similar"
)

// OthersLabel names the synthetic bucket holding a collapsed tail.
const OthersLabel = "others"

// ErrDivisionUndefined is returned when a percentage normalization has a
// zero denominator. Callers skip normalization and render a "no data"
// state instead of showing NaN values.
var ErrDivisionUndefined = errors.New("cannot normalize a table with zero total")

// LabeledRow is one row of a comparison table, tagged with which side it
// came from. The same label may appear once per side; rows are
// independent observations and are never deduplicated.
type LabeledRow struct {
	Label  string  `json:"label"`
	Count  float64 `json:"count"`
	Source string  `json:"source"`
}

// Join concatenates the target event's rows with the cohort's rows,
// tagging provenance.
func Join(eventRows, cohortRows []metrics.Row) []LabeledRow {
	joined := make([]LabeledRow, 0, len(eventRows)+len(cohortRows))
	for _, r := range eventRows {
		joined = append(joined, LabeledRow{Label: r.Label, Count: r.Count, Source: SourceEvent})
	}
	for _, r := range cohortRows {
		joined = append(joined, LabeledRow{Label: r.Label, Count: r.Count, Source: SourceCohort})
	}
	return joined
}

// Percentages rescales one side's counts to percentages of that side's
// own total, rounded to two decimals. A zero total is
// ErrDivisionUndefined.
func Percentages(rows []metrics.Row) ([]metrics.Row, error) {
	total := metrics.Total(rows)
	if total == 0 {
		return nil, ErrDivisionUndefined
	}

	scaled := make([]metrics.Row, 0, len(rows))
	for _, r := range rows {
		scaled = append(scaled, metrics.Row{
			Label: r.Label,
			Count: round2(r.Count / total * 100),
		})
	}
	return scaled, nil
}

// Normalized rescales both sides to percentages of their own totals and
// joins them, making cross-event comparison meaningful when absolute
// volumes differ. Either side having a zero total is
// ErrDivisionUndefined.
func Normalized(eventRows, cohortRows []metrics.Row) ([]LabeledRow, error) {
	eventPct, err := Percentages(eventRows)
	if err != nil {
		return nil, err
	}
	cohortPct, err := Percentages(cohortRows)
	if err != nil {
		return nil, err
	}
	return Join(eventPct, cohortPct), nil
}

// CollapsedRow is one slice of a collapsed distribution. Display carries
// the "label<TAB>count" legend string the original charts use.
type CollapsedRow struct {
	Label   string  `json:"label"`
	Count   float64 `json:"count"`
	Display string  `json:"display"`
}

// Collapse reduces a categorical distribution to its top n entries plus
// a synthetic "others" bucket summing the remainder. The sort is stable,
// so ties at the boundary keep their input order. When there is no tail
// (n or fewer entries in total) no "others" row is added. The sum of
// counts is always conserved.
func Collapse(rows []metrics.Row, n int) []CollapsedRow {
	if n < 0 {
		n = 0
	}

	sorted := make([]metrics.Row, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Count > sorted[j].Count
	})

	out := make([]CollapsedRow, 0, n+1)
	var othersCount float64
	hasTail := false
	for i, r := range sorted {
		if i < n {
			out = append(out, CollapsedRow{
				Label:   r.Label,
				Count:   r.Count,
				Display: displayString(r.Label, r.Count),
			})
			continue
		}
		hasTail = true
		othersCount += r.Count
	}

	if hasTail {
		out = append(out, CollapsedRow{
			Label:   OthersLabel,
			Count:   othersCount,
			Display: displayString(OthersLabel, othersCount),
		})
	}
	return out
}

func displayString(label string, count float64) string {
	return label + "\t" + strconv.FormatFloat(count, 'f', -1, 64)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
