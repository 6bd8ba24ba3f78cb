// Package funnel shapes raw pageview rows into the canonical 4-stage
// purchase funnel and derives the display series the dashboard charts from.
//
// All transforms here are pure: they allocate their results and never
// mutate their inputs, so repeated calls with the same rows are always
// safe and cheap to cache upstream.
package funnel

import (
	"fmt"
	"sort"
)

// Stage is one step of the purchase flow, ordered Start < Info <
// Checkout < Paid.
type Stage int

const (
	Start Stage = iota
	Info
	Checkout
	Paid

	stageCount = 4
)

var stageNames = [stageCount]string{"Start", "Info", "Checkout", "Paid"}

func (s Stage) String() string {
	if s < 0 || int(s) >= stageCount {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

// MarshalText lets stages render as their names in JSON payloads.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// StageFromLabel maps a stage label back to its Stage. Unknown labels
// report ok=false and are dropped by the normalizer.
func StageFromLabel(label string) (Stage, bool) {
	for i, name := range stageNames {
		if name == label {
			return Stage(i), true
		}
	}
	return 0, false
}

// Stages returns all stages in canonical order.
func Stages() []Stage {
	return []Stage{Start, Info, Checkout, Paid}
}

// StageRow is one (stage, pageviews) observation.
type StageRow struct {
	Stage     Stage `json:"stage"`
	Pageviews int64 `json:"pageviews"`
}

// GroupedRow is one (stage, group, pageviews) observation, where the
// group is a traffic medium or source/medium pair.
type GroupedRow struct {
	Stage     Stage  `json:"stage"`
	Group     string `json:"group"`
	Pageviews int64  `json:"pageviews"`
}

// Table is a complete funnel: exactly one row per stage, in canonical
// order. Build one with Normalize.
type Table []StageRow

// Normalize turns arbitrary stage rows into a complete, ordered funnel
// table. Missing stages are filled with zero pageviews; duplicate rows
// for a stage are summed. The function is idempotent: normalizing an
// already complete, ordered table returns an equal table. Counts are
// passed through untouched, so a later stage larger than an earlier one
// is preserved, not clamped.
func Normalize(rows []StageRow) Table {
	var counts [stageCount]int64
	for _, r := range rows {
		if r.Stage < 0 || int(r.Stage) >= stageCount {
			continue
		}
		counts[r.Stage] += r.Pageviews
	}

	table := make(Table, 0, stageCount)
	for _, s := range Stages() {
		table = append(table, StageRow{Stage: s, Pageviews: counts[s]})
	}
	return table
}

// Count returns the pageviews recorded for a stage, or 0 when the table
// is not normalized and the stage is absent.
func (t Table) Count(stage Stage) int64 {
	for _, r := range t {
		if r.Stage == stage {
			return r.Pageviews
		}
	}
	return 0
}

// ConversionRate is the percentage of visitors entering the funnel that
// completed payment. Defined as 0 when nobody entered, never a division
// fault. The value is unrounded; use FormatRate for display.
func ConversionRate(t Table) float64 {
	start := t.Count(Start)
	if start == 0 {
		return 0
	}
	return float64(t.Count(Paid)) / float64(start) * 100
}

// FormatRate renders a conversion rate with two decimals, e.g. "5.00%".
func FormatRate(rate float64) string {
	return fmt.Sprintf("%.2f%%", rate)
}

// Series labels for the step-difference chart rows.
const (
	SeriesCurrent = "current"
	SeriesDropoff = "dropoff"
)

// StepPoint is one bar of the stacked funnel chart: either the raw count
// of a stage or the drop-off relative to the previous stage.
type StepPoint struct {
	Stage  Stage  `json:"stage"`
	Value  int64  `json:"value"`
	Series string `json:"series"`
}

// StepDifferences expands a normalized table into chart rows: every
// stage contributes its raw count (series "current"), and every stage
// after the first also contributes the drop from its predecessor
// (series "dropoff"). The input table is not modified.
func StepDifferences(t Table) []StepPoint {
	norm := Normalize(t)

	points := make([]StepPoint, 0, 2*stageCount-1)
	for _, r := range norm {
		points = append(points, StepPoint{Stage: r.Stage, Value: r.Pageviews, Series: SeriesCurrent})
	}
	for i := 1; i < len(norm); i++ {
		points = append(points, StepPoint{
			Stage:  norm[i].Stage,
			Value:  norm[i-1].Pageviews - norm[i].Pageviews,
			Series: SeriesDropoff,
		})
	}
	return points
}

// Pivot splits grouped rows into one normalized funnel per group.
func Pivot(rows []GroupedRow) map[string]Table {
	byGroup := make(map[string][]StageRow)
	for _, r := range rows {
		byGroup[r.Group] = append(byGroup[r.Group], StageRow{Stage: r.Stage, Pageviews: r.Pageviews})
	}

	tables := make(map[string]Table, len(byGroup))
	for group, stageRows := range byGroup {
		tables[group] = Normalize(stageRows)
	}
	return tables
}

// Merge sums grouped rows across groups into a single normalized table,
// the "all traffic" aggregate.
func Merge(rows []GroupedRow) Table {
	flat := make([]StageRow, 0, len(rows))
	for _, r := range rows {
		flat = append(flat, StageRow{Stage: r.Stage, Pageviews: r.Pageviews})
	}
	return Normalize(flat)
}

// TopGroups ranks groups by their Start-stage pageviews, descending, and
// returns at most n group names. Ties keep their input order.
func TopGroups(rows []GroupedRow, n int) []string {
	if n <= 0 {
		return []string{}
	}

	type groupStart struct {
		group string
		start int64
	}
	seen := make(map[string]int)
	ranked := make([]groupStart, 0)
	for _, r := range rows {
		idx, ok := seen[r.Group]
		if !ok {
			seen[r.Group] = len(ranked)
			ranked = append(ranked, groupStart{group: r.Group})
			idx = len(ranked) - 1
		}
		if r.Stage == Start {
			ranked[idx].start += r.Pageviews
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].start > ranked[j].start
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	names := make([]string, 0, len(ranked))
	for _, g := range ranked {
		names = append(names, g.group)
	}
	return names
}
