package normalize

import (
	"sort"
	"time"

	"sovpanel/pkg/contracts/domain"
)

// FillStatistics describes one forward-fill pass
type FillStatistics struct {
	Events            int
	ForwardFilled     int
	CountriesFilled   int
	SupersededInMonth int
}

// forwardFill carries each event's value month by month until the next
// event of the same country, and the last event through until.
// Several events in one month collapse to the latest of them.
func forwardFill(records []domain.LongRecord, variable string, until time.Time) ([]domain.LongRecord, FillStatistics) {
	var stats FillStatistics
	until = domain.MonthStart(until)

	byCountry := make(map[domain.CountryCode][]domain.LongRecord)
	for _, r := range records {
		byCountry[r.Country] = append(byCountry[r.Country], r)
	}
	countries := make([]domain.CountryCode, 0, len(byCountry))
	for c := range byCountry {
		countries = append(countries, c)
	}
	sort.Slice(countries, func(i, j int) bool { return countries[i] < countries[j] })

	var result []domain.LongRecord
	for _, country := range countries {
		events := byCountry[country]
		sort.SliceStable(events, func(i, j int) bool { return events[i].Date.Before(events[j].Date) })

		// month -> value of the latest event in that month
		var months []time.Time
		values := make(map[time.Time]domain.LongRecord)
		for _, e := range events {
			m := domain.MonthStart(e.Date)
			if _, ok := values[m]; ok {
				stats.SupersededInMonth++
			} else {
				months = append(months, m)
			}
			values[m] = e
		}
		stats.Events += len(events)

		filled := false
		for i, m := range months {
			if m.After(until) {
				break
			}
			last := values[m]
			end := until.AddDate(0, 1, 0)
			if i+1 < len(months) && months[i+1].Before(end) {
				end = months[i+1]
			}
			for cur := m; cur.Before(end); cur = cur.AddDate(0, 1, 0) {
				result = append(result, domain.LongRecord{
					Country:  country,
					Date:     cur,
					Variable: variable,
					Value:    last.Value,
				})
				if !cur.Equal(m) {
					stats.ForwardFilled++
					filled = true
				}
			}
		}
		if filled {
			stats.CountriesFilled++
		}
	}
	return result, stats
}
