package panel

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sovpanel/pkg/contracts/domain"
)

var (
	jan = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	feb = time.Date(2020, 2, 1, 0, 0, 0, 0, time.UTC)
	mar = time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)
)

func key(c string, t time.Time) domain.ObservationKey {
	return domain.NewObservationKey(domain.CountryCode(c), t)
}

func monthly(variable string, cells ...any) *domain.Table {
	t := &domain.Table{Variable: variable, Frequency: domain.FrequencyMonthly}
	for i := 0; i < len(cells); i += 3 {
		r := domain.LongRecord{
			Country:  domain.CountryCode(cells[i].(string)),
			Date:     cells[i+1].(time.Time),
			Variable: variable,
		}
		if v, ok := cells[i+2].(float64); ok {
			r.Value = domain.Float(v)
		}
		t.Records = append(t.Records, r)
	}
	return t
}

func TestOuterMergeUnionOfKeys(t *testing.T) {
	p := New()

	a := monthly("a", "X", jan, 1.0, "X", feb, 2.0, "Y", jan, 3.0, "Y", feb, 4.0)
	b := monthly("b", "Y", feb, 10.0, "Y", mar, 11.0, "Z", feb, 12.0, "Z", mar, 13.0)

	ra, err := p.Merge(a, MergeOptions{})
	require.NoError(t, err)
	assert.Equal(t, MergeReport{Variable: "a", Kind: JoinOuter, RowsBefore: 0, RowsAfter: 4, Incoming: 4, NewKeys: 4}, ra)

	rb, err := p.Merge(b, MergeOptions{Kind: JoinOuter})
	require.NoError(t, err)
	assert.Equal(t, 4, rb.RowsBefore)
	assert.Equal(t, 7, rb.RowsAfter)
	assert.Equal(t, 1, rb.Matched)
	assert.Equal(t, 3, rb.NewKeys)

	want := []domain.ObservationKey{
		key("X", jan), key("X", feb),
		key("Y", jan), key("Y", feb), key("Y", mar),
		key("Z", feb), key("Z", mar),
	}
	if diff := cmp.Diff(want, p.Keys()); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"a", "b"}, p.Columns())

	v, ok := p.Value(key("X", jan), "b")
	assert.True(t, ok)
	assert.False(t, v.Valid, "keys absent from a source are null")
	v, _ = p.Value(key("Y", feb), "b")
	assert.Equal(t, domain.Float(10), v)
	v, _ = p.Value(key("Z", mar), "a")
	assert.False(t, v.Valid)
}

func TestOuterMergeCardinality(t *testing.T) {
	p := New()
	_, err := p.Merge(monthly("a", "X", jan, 1.0, "Y", jan, 2.0, "Y", feb, 3.0), MergeOptions{})
	require.NoError(t, err)
	r, err := p.Merge(monthly("b", "Y", feb, 4.0, "Z", feb, 5.0, "Z", mar, 6.0), MergeOptions{})
	require.NoError(t, err)

	assert.Equal(t, 5, r.RowsAfter)
	assert.Equal(t, 5, p.Len())
	assert.Equal(t, []domain.CountryCode{"X", "Y", "Z"}, p.Countries())
	if diff := cmp.Diff([]domain.ObservationKey{
		key("X", jan), key("Y", jan), key("Y", feb), key("Z", feb), key("Z", mar),
	}, p.Keys()); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
}

func TestLeftMerge(t *testing.T) {
	p := New()
	_, err := p.Merge(monthly("a", "X", jan, 1.0, "Y", jan, 2.0), MergeOptions{Kind: JoinLeft})
	require.NoError(t, err)
	assert.Equal(t, 2, p.Len(), "the first merge seeds the panel")

	r, err := p.Merge(monthly("b", "X", jan, 3.0, "Z", jan, 4.0), MergeOptions{Kind: JoinLeft})
	require.NoError(t, err)
	assert.Equal(t, 2, r.RowsAfter)
	assert.Equal(t, 1, r.Matched)
	assert.Equal(t, 1, r.Dropped)
	assert.Equal(t, 0, r.NewKeys)

	_, ok := p.Row(key("Z", jan))
	assert.False(t, ok)
}

func TestMergeRejectsDuplicateKeys(t *testing.T) {
	p := New()
	_, err := p.Merge(monthly("a", "X", jan, 1.0), MergeOptions{})
	require.NoError(t, err)

	_, err = p.Merge(monthly("b", "X", jan, 1.0, "Y", jan, 2.0, "X", jan, 1.5), MergeOptions{})
	var dup *DuplicateKeyError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, key("X", jan), dup.Key)
	assert.Equal(t, 2, dup.Count)

	// the failed merge left the panel untouched
	assert.Equal(t, []string{"a"}, p.Columns())
	assert.Equal(t, 1, p.Len())
}

func TestMergeRejectsBadInput(t *testing.T) {
	p := New()
	_, err := p.Merge(monthly("a", "X", jan, 1.0), MergeOptions{})
	require.NoError(t, err)

	_, err = p.Merge(monthly("a", "Y", jan, 1.0), MergeOptions{})
	assert.ErrorIs(t, err, ErrDuplicateColumn)

	_, err = p.Merge(monthly("b", "Y", time.Date(2020, 1, 15, 0, 0, 0, 0, time.UTC), 1.0), MergeOptions{})
	assert.ErrorIs(t, err, ErrNotMonthAligned)

	_, err = p.Merge(monthly("", "Y", jan, 1.0), MergeOptions{})
	assert.Error(t, err)

	_, err = p.Merge(monthly("c", "Y", jan, 1.0), MergeOptions{Kind: "inner"})
	assert.Error(t, err)

	assert.Equal(t, 1, p.Len())
	assert.Equal(t, []string{"a"}, p.Columns(), "rejected input adds no column")
}

func TestMergeGrowthTolerance(t *testing.T) {
	p := New()
	_, err := p.Merge(monthly("a", "X", jan, 1.0, "X", feb, 1.0, "X", mar, 1.0, "Y", jan, 1.0), MergeOptions{})
	require.NoError(t, err)

	_, err = p.Merge(monthly("b", "Z", jan, 1.0, "Z", feb, 1.0, "Z", mar, 1.0), MergeOptions{MaxGrowth: 0.5})
	var growth *GrowthError
	require.True(t, errors.As(err, &growth))
	assert.Equal(t, 3, growth.NewKeys)
	assert.False(t, p.HasColumn("b"))

	r, err := p.Merge(monthly("b", "Z", jan, 1.0, "X", jan, 2.0), MergeOptions{MaxGrowth: 0.5})
	require.NoError(t, err)
	assert.Equal(t, 5, r.RowsAfter)
}

func TestCardinalityErrorMessage(t *testing.T) {
	err := &CardinalityError{Variable: "cpi", Before: 10, Expected: 12, After: 14}
	assert.Equal(t, "cpi: merge produced 14 rows from 10, expected 12", err.Error())
}

func TestDeriveSpread(t *testing.T) {
	p := New()
	_, err := p.Merge(monthly("yield",
		"USA", jan, 1.5, "USA", feb, 1.6,
		"BRA", jan, 6.5, "BRA", feb, nil, "BRA", mar, 7.0,
	), MergeOptions{})
	require.NoError(t, err)

	n, err := p.DeriveSpread("yield", "USA", "spread")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	v, _ := p.Value(key("BRA", jan), "spread")
	require.True(t, v.Valid)
	assert.InDelta(t, 5.0, v.Float64, 1e-12)
	v, _ = p.Value(key("BRA", feb), "spread")
	assert.False(t, v.Valid, "null yield gives null spread")
	v, _ = p.Value(key("BRA", mar), "spread")
	assert.False(t, v.Valid, "no benchmark that month")
	v, _ = p.Value(key("USA", jan), "spread")
	assert.False(t, v.Valid)

	_, err = p.DeriveSpread("yield", "USA", "spread")
	assert.ErrorIs(t, err, ErrDuplicateColumn)
	_, err = p.DeriveSpread("missing", "USA", "spread2")
	assert.Error(t, err)
	_, err = p.DeriveSpread("yield", "DEU", "spread2")
	assert.Error(t, err)
}

func TestDeriveLag(t *testing.T) {
	apr := time.Date(2020, 4, 1, 0, 0, 0, 0, time.UTC)
	p := New()
	// BRA has no March row; URY starts in February
	_, err := p.Merge(monthly("cpi",
		"BRA", jan, 1.0, "BRA", feb, 2.0, "BRA", apr, 4.0,
		"URY", feb, 10.0, "URY", mar, nil, "URY", apr, 12.0,
	), MergeOptions{})
	require.NoError(t, err)

	n, err := p.DeriveLag("cpi", 1, "cpi_l1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	cell := func(c string, m time.Time, col string) (float64, bool) {
		v, ok := p.Value(key(c, m), col)
		require.True(t, ok)
		return v.Float64, v.Valid
	}

	_, valid := cell("BRA", jan, "cpi_l1")
	assert.False(t, valid, "first month of a country is null")
	v, valid := cell("BRA", feb, "cpi_l1")
	assert.True(t, valid)
	assert.InDelta(t, 1.0, v, 1e-12)
	_, valid = cell("BRA", apr, "cpi_l1")
	assert.False(t, valid, "the previous row is February, not March")
	_, valid = cell("URY", feb, "cpi_l1")
	assert.False(t, valid, "no value leaks across countries")
	v, valid = cell("URY", mar, "cpi_l1")
	assert.True(t, valid)
	assert.InDelta(t, 10.0, v, 1e-12)
	_, valid = cell("URY", apr, "cpi_l1")
	assert.False(t, valid, "lagged value is null")

	n, err = p.DeriveLag("cpi", 2, "cpi_l2")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	v, valid = cell("BRA", apr, "cpi_l2")
	assert.True(t, valid)
	assert.InDelta(t, 2.0, v, 1e-12)
	_, valid = cell("BRA", feb, "cpi_l2")
	assert.False(t, valid)

	_, err = p.DeriveLag("cpi", 1, "cpi_l1")
	assert.ErrorIs(t, err, ErrDuplicateColumn)
	_, err = p.DeriveLag("missing", 1, "x")
	assert.Error(t, err)
	_, err = p.DeriveLag("cpi", 0, "x")
	assert.Error(t, err)
	assert.False(t, p.HasColumn("x"))
}

func TestSpan(t *testing.T) {
	p := New()
	_, _, ok := p.Span()
	assert.False(t, ok)

	_, err := p.Merge(monthly("a", "Y", feb, 1.0, "X", mar, 1.0, "Z", jan, 1.0), MergeOptions{})
	require.NoError(t, err)
	first, last, ok := p.Span()
	assert.True(t, ok)
	assert.Equal(t, jan, first.Date)
	assert.Equal(t, mar, last.Date)
}

func TestReadCSV(t *testing.T) {
	in := "\ufeffiso3,date,yield,cpi\n" +
		"BRA,2020-01-01,6.5,\n" +
		"BRA,2020-02-01,,3.25\n" +
		"URY,2020-01-01,5,-1e-2\n"

	p, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, 3, p.Len())
	assert.Equal(t, []string{"yield", "cpi"}, p.Columns())

	row, ok := p.Row(key("BRA", jan))
	require.True(t, ok)
	assert.Equal(t, domain.Float(6.5), row[0])
	assert.False(t, row[1].Valid)
	v, _ := p.Value(key("URY", jan), "cpi")
	assert.InDelta(t, -0.01, v.Float64, 1e-12)

	bad := map[string]string{
		"empty":         "",
		"bad header":    "country,date,x\n",
		"bad date":      "iso3,date,x\nBRA,2020/01,1\n",
		"bad country":   "iso3,date,x\nBrazil,2020-01-01,1\n",
		"bad value":     "iso3,date,x\nBRA,2020-01-01,abc\n",
		"duplicate key": "iso3,date,x\nBRA,2020-01-01,1\nBRA,2020-01-01,2\n",
		"short row":     "iso3,date,x\nBRA,2020-01-01\n",
		"dup column":    "iso3,date,x,x\n",
	}
	for name, content := range bad {
		t.Run(name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(content))
			assert.Error(t, err)
		})
	}
}
