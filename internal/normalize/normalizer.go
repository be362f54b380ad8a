package normalize

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"sovpanel/pkg/contracts/domain"
)

// ErrUnboundedEvents is returned when an event series has no end month to fill to
var ErrUnboundedEvents = errors.New("event series need an end month")

// Options controls a conversion to monthly frequency
type Options struct {
	Policy Policy
	// From and To bound the output months, inclusive. Zero means unbounded,
	// except for event series which are filled through To.
	From time.Time
	To   time.Time
}

// Stats counts what one conversion did
type Stats struct {
	Variable      string           `json:"variable"`
	Frequency     domain.Frequency `json:"frequency"`
	InputRecords  int              `json:"input_records"`
	Duplicates    int              `json:"duplicates"`
	Conflicts     int              `json:"conflicts"`
	Periods       int              `json:"periods"`
	OutputRecords int              `json:"output_records"`
	ForwardFilled int              `json:"forward_filled"`
	Clamped       int              `json:"clamped"`
}

// Normalizer converts long tables to month-start series
type Normalizer struct {
	logger *slog.Logger
}

// NewNormalizer creates a normalizer that logs to logger
func NewNormalizer(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{logger: logger.With(slog.String("component", "normalize"))}
}

// ToMonthly returns a monthly copy of table. Quarterly and annual values are
// repeated over their 3 or 12 months, daily values are averaged per month,
// monthly values pass through and event values hold until the next event.
// Every output key is unique and records are sorted by country then date.
func (n *Normalizer) ToMonthly(table *domain.Table, opts Options) (*domain.Table, Stats, error) {
	stats := Stats{Variable: table.Variable, Frequency: table.Frequency, InputRecords: table.Len()}

	policy, err := ParsePolicy(string(opts.Policy))
	if err != nil {
		return nil, stats, err
	}
	from, to := opts.From, opts.To
	if !from.IsZero() {
		from = domain.MonthStart(from)
	}
	if !to.IsZero() {
		to = domain.MonthStart(to)
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, stats, fmt.Errorf("%s: range end %s is before start %s",
			table.Variable, to.Format(domain.DateLayout), from.Format(domain.DateLayout))
	}

	deduped, err := dedup(table, policy)
	stats.Duplicates = deduped.duplicates
	stats.Conflicts = len(deduped.conflicts)
	if err != nil {
		return nil, stats, err
	}
	stats.Periods = len(deduped.records)
	n.logConflicts(table, policy, deduped.conflicts)

	var out []domain.LongRecord
	switch table.Frequency {
	case domain.FrequencyMonthly, domain.FrequencyQuarterly, domain.FrequencyAnnual:
		out, err = expand(deduped.records, table.Frequency)
		if err != nil {
			return nil, stats, err
		}
	case domain.FrequencyDaily:
		out = monthlyMean(deduped.records)
	case domain.FrequencyEvent:
		if to.IsZero() {
			return nil, stats, fmt.Errorf("%s: %w", table.Variable, ErrUnboundedEvents)
		}
		var fill FillStatistics
		out, fill = forwardFill(deduped.records, table.Variable, to)
		stats.ForwardFilled = fill.ForwardFilled
	default:
		return nil, stats, fmt.Errorf("%s: unsupported frequency %q", table.Variable, table.Frequency)
	}

	kept := out[:0]
	for _, r := range out {
		if (!from.IsZero() && r.Date.Before(from)) || (!to.IsZero() && r.Date.After(to)) {
			stats.Clamped++
			continue
		}
		kept = append(kept, r)
	}
	out = kept

	sort.SliceStable(out, func(i, j int) bool { return out[i].Key().Less(out[j].Key()) })
	for i := 1; i < len(out); i++ {
		if out[i].Key() == out[i-1].Key() {
			return nil, stats, fmt.Errorf("%s: internal error: month %s produced twice", table.Variable, out[i].Key())
		}
	}
	stats.OutputRecords = len(out)

	n.logger.Debug("Series normalized",
		slog.String("variable", table.Variable),
		slog.String("frequency", string(table.Frequency)),
		slog.Int("input_records", stats.InputRecords),
		slog.Int("duplicates", stats.Duplicates),
		slog.Int("conflicts", stats.Conflicts),
		slog.Int("output_records", stats.OutputRecords),
		slog.Int("forward_filled", stats.ForwardFilled),
		slog.Int("clamped", stats.Clamped))

	return &domain.Table{
		Variable:  table.Variable,
		Source:    table.Source,
		Frequency: domain.FrequencyMonthly,
		Records:   out,
	}, stats, nil
}

// expand repeats each period's value over its constituent months
func expand(records []domain.LongRecord, freq domain.Frequency) ([]domain.LongRecord, error) {
	months := freq.MonthsPerPeriod()
	out := make([]domain.LongRecord, 0, len(records)*months)
	for _, r := range records {
		start := domain.MonthStart(r.Date)
		produced := 0
		for cur := start; cur.Before(start.AddDate(0, months, 0)); cur = cur.AddDate(0, 1, 0) {
			out = append(out, domain.LongRecord{
				Country:  r.Country,
				Date:     cur,
				Variable: r.Variable,
				Value:    r.Value,
			})
			produced++
		}
		if produced != months {
			return nil, fmt.Errorf("internal error: %s period %s expanded to %d months, want %d",
				r.Country, start.Format(domain.DateLayout), produced, months)
		}
	}
	return out, nil
}

// monthlyMean averages the non-null daily values of each country-month.
// A month whose days are all null yields a null value.
func monthlyMean(records []domain.LongRecord) []domain.LongRecord {
	type acc struct {
		record domain.LongRecord
		sum    float64
		n      int
	}
	index := make(map[domain.ObservationKey]int)
	var accs []*acc

	for _, r := range records {
		key := r.Key()
		i, ok := index[key]
		if !ok {
			i = len(accs)
			index[key] = i
			accs = append(accs, &acc{record: domain.LongRecord{
				Country:  r.Country,
				Date:     key.Date,
				Variable: r.Variable,
			}})
		}
		if r.Value.Valid {
			accs[i].sum += r.Value.Float64
			accs[i].n++
		}
	}

	out := make([]domain.LongRecord, len(accs))
	for i, a := range accs {
		out[i] = a.record
		if a.n > 0 {
			out[i].Value = domain.Float(a.sum / float64(a.n))
		}
	}
	return out
}

func (n *Normalizer) logConflicts(table *domain.Table, policy Policy, conflicts []*ConflictError) {
	if len(conflicts) == 0 {
		return
	}
	const sample = 5
	examples := make([]string, 0, sample)
	for i, c := range conflicts {
		if i == sample {
			break
		}
		examples = append(examples, fmt.Sprintf("%s@%s", c.Country, c.Period.Format(domain.DateLayout)))
	}
	n.logger.Warn("Conflicting duplicate observations",
		slog.String("variable", table.Variable),
		slog.String("source", table.Source),
		slog.String("policy", string(policy)),
		slog.Int("conflicts", len(conflicts)),
		slog.Any("examples", examples))
}
