package panel

import (
	"fmt"

	"sovpanel/pkg/contracts/domain"
)

// DeriveSpread adds column target holding column minus the benchmark
// country's value of column in the same month, e.g. a sovereign yield spread
// over US treasuries. Cells are null when either side is null or missing,
// and on the benchmark's own rows. It returns the number of non-null cells.
func (p *Panel) DeriveSpread(column string, benchmark domain.CountryCode, target string) (int, error) {
	src, ok := p.colIndex[column]
	if !ok {
		return 0, fmt.Errorf("spread source column %q not in panel", column)
	}
	if p.HasColumn(target) {
		return 0, fmt.Errorf("%w: %s", ErrDuplicateColumn, target)
	}

	base := make(map[int64]float64)
	for k, row := range p.rows {
		if k.Country == benchmark && row[src].Valid {
			base[k.Date.Unix()] = row[src].Float64
		}
	}
	if len(base) == 0 {
		return 0, fmt.Errorf("benchmark %s has no %s observations", benchmark, column)
	}

	dst := p.addColumn(target)
	filled := 0
	for k, row := range p.rows {
		if k.Country == benchmark || !row[src].Valid {
			continue
		}
		b, ok := base[k.Date.Unix()]
		if !ok {
			continue
		}
		row[dst] = domain.Float(row[src].Float64 - b)
		filled++
	}
	return filled, nil
}
