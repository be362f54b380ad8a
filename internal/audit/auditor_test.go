package audit

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sovpanel/internal/panel"
	"sovpanel/pkg/contracts/domain"
)

var (
	jan = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	feb = time.Date(2020, 2, 1, 0, 0, 0, 0, time.UTC)
)

func buildPanel(t *testing.T) *panel.Panel {
	t.Helper()
	p := panel.New()
	yield := &domain.Table{Variable: "yield", Records: []domain.LongRecord{
		{Country: "BRA", Date: jan, Value: domain.Float(6.5)},
		{Country: "BRA", Date: feb, Value: domain.Float(6.6)},
		{Country: "URY", Date: jan, Value: domain.Float(5.0)},
		{Country: "URY", Date: feb},
	}}
	cpi := &domain.Table{Variable: "cpi", Records: []domain.LongRecord{
		{Country: "BRA", Date: jan, Value: domain.Float(4.0)},
		{Country: "BRA", Date: feb, Value: domain.Float(4.1)},
	}}
	for _, tbl := range []*domain.Table{yield, cpi} {
		_, err := p.Merge(tbl, panel.MergeOptions{})
		require.NoError(t, err)
	}
	return p
}

func TestAudit(t *testing.T) {
	a := Auditor{Expected: []domain.CountryCode{"URY", "BRA", "CIV"}, MinCompleteness: 50}
	r := a.Audit(buildPanel(t))

	assert.Equal(t, 4, r.Rows)
	assert.Equal(t, 2, r.Columns)
	assert.Equal(t, 8, r.Cells)
	assert.Equal(t, 5, r.NonNull)
	assert.InDelta(t, 62.5, r.Overall, 1e-9)

	require.Len(t, r.Countries, 2)
	bra, ury := r.Countries[0], r.Countries[1]
	assert.Equal(t, domain.CountryCode("BRA"), bra.Country)
	assert.InDelta(t, 100, bra.Completeness, 1e-9)
	assert.Empty(t, bra.EmptyVariables)
	assert.Equal(t, jan, bra.FirstMonth)
	assert.Equal(t, feb, bra.LastMonth)

	assert.Equal(t, 2, ury.Rows)
	assert.Equal(t, 1, ury.NonNull)
	assert.InDelta(t, 25, ury.Completeness, 1e-9)
	assert.Equal(t, []string{"cpi"}, ury.EmptyVariables)

	require.Len(t, r.Variables, 2)
	assert.Equal(t, "yield", r.Variables[0].Variable)
	assert.InDelta(t, 75, r.Variables[0].Completeness, 1e-9)
	assert.Equal(t, 2, r.Variables[0].Countries)
	assert.Equal(t, "cpi", r.Variables[1].Variable)
	assert.Equal(t, 1, r.Variables[1].Countries)

	// a country with no rows is absent, not 0% complete
	assert.Equal(t, []domain.CountryCode{"CIV"}, r.Absent)
	assert.Empty(t, r.Unexpected)
	assert.False(t, r.Ready)
	require.Len(t, r.Issues, 1)
	assert.Contains(t, r.Issues[0], "CIV")
}

func TestAuditIsIdempotent(t *testing.T) {
	p := buildPanel(t)
	a := Auditor{Expected: []domain.CountryCode{"BRA", "URY"}, MinCompleteness: 90}

	first := a.Audit(p)
	second := a.Audit(p)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("reports differ (-first +second):\n%s", diff)
	}
	assert.Equal(t, 4, p.Len(), "auditing does not change the panel")
}

func TestAuditReadiness(t *testing.T) {
	p := buildPanel(t)

	r := Auditor{MinCompleteness: 60}.Audit(p)
	assert.True(t, r.Ready)
	assert.Empty(t, r.Issues)
	assert.Nil(t, r.Absent)

	r = Auditor{MinCompleteness: 70}.Audit(p)
	assert.False(t, r.Ready)
	assert.Contains(t, r.Issues[0], "below 70.0%")

	r = Auditor{Expected: []domain.CountryCode{"BRA"}}.Audit(p)
	assert.Equal(t, []domain.CountryCode{"URY"}, r.Unexpected)
	assert.True(t, r.Ready)
}

func TestAuditEmptyPanel(t *testing.T) {
	r := Auditor{}.Audit(panel.New())
	assert.Equal(t, 0, r.Rows)
	assert.Equal(t, 0.0, r.Overall)
	assert.False(t, r.Ready)
	assert.Equal(t, []string{"panel is empty"}, r.Issues)
}

func TestAuditEmptyVariable(t *testing.T) {
	p := panel.New()
	_, err := p.Merge(&domain.Table{Variable: "rating", Records: []domain.LongRecord{
		{Country: "ARG", Date: jan},
	}}, panel.MergeOptions{})
	require.NoError(t, err)

	r := Auditor{}.Audit(p)
	assert.Equal(t, []string{"variable rating has no values"}, r.Issues)
	assert.Equal(t, 0, r.Variables[0].Countries)
}
