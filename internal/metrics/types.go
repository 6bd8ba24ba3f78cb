package metrics

// Row is one (dimension value, count) observation of a metric, e.g. a
// weekday and its bookings, or a payment method and its purchases.
type Row struct {
	Label string  `json:"label"`
	Count float64 `json:"count"`
}

// Total sums the counts of a metric table.
func Total(rows []Row) float64 {
	var total float64
	for _, r := range rows {
		total += r.Count
	}
	return total
}

// Max returns the row with the highest count, ok=false for empty input.
func Max(rows []Row) (Row, bool) {
	if len(rows) == 0 {
		return Row{}, false
	}
	best := rows[0]
	for _, r := range rows[1:] {
		if r.Count > best.Count {
			best = r
		}
	}
	return best, true
}

// TimePoint is one point of the days-on-sale series: how many purchases
// happened N days after the event went on sale.
type TimePoint struct {
	DaysOnSale int   `json:"days_on_sale"`
	Purchases  int64 `json:"purchases"`
}

// CityRow is one city of the buyer map, with optional coordinates filled
// in by the geocoder.
type CityRow struct {
	City      string   `json:"city"`
	Country   string   `json:"country"`
	Bookings  int64    `json:"bookings"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}
