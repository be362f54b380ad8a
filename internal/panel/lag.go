package panel

import (
	"fmt"

	"sovpanel/pkg/contracts/domain"
)

// DeriveLag adds column target holding column's value lag months earlier
// for the same country. The lookup is by calendar month, so a country's
// first lag months are null and so is any month whose lagged month has no
// row. It returns the number of non-null cells.
func (p *Panel) DeriveLag(column string, lag int, target string) (int, error) {
	src, ok := p.colIndex[column]
	if !ok {
		return 0, fmt.Errorf("lag source column %q not in panel", column)
	}
	if lag < 1 {
		return 0, fmt.Errorf("lag of %s must be at least one month, got %d", column, lag)
	}
	if p.HasColumn(target) {
		return 0, fmt.Errorf("%w: %s", ErrDuplicateColumn, target)
	}

	dst := p.addColumn(target)
	filled := 0
	for k, row := range p.rows {
		prev, ok := p.rows[domain.NewObservationKey(k.Country, k.Date.AddDate(0, -lag, 0))]
		if !ok || !prev[src].Valid {
			continue
		}
		row[dst] = prev[src]
		filled++
	}
	return filled, nil
}
