package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePeriod(t *testing.T) {
	date := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}

	tests := []struct {
		in      string
		formats []string
		want    time.Time
		wantErr bool
	}{
		{in: "2019", want: date(2019, 1, 1)},
		{in: "2019.0", want: date(2019, 1, 1)},
		{in: "2019-Q1", want: date(2019, 1, 1)},
		{in: "2019Q3", want: date(2019, 7, 1)},
		{in: "2019 q4", want: date(2019, 10, 1)},
		{in: "2019M07", want: date(2019, 7, 1)},
		{in: "2019M7", want: date(2019, 7, 1)},
		{in: "2019-11", want: date(2019, 11, 1)},
		{in: "2019-11-30", want: date(2019, 11, 30)},
		{in: "01/02/2020", want: date(2020, 1, 2)},
		{in: "Mar 2021", want: date(2021, 3, 1)},
		{in: "2020-03-31T00:00:00Z", want: date(2020, 3, 31)},
		{in: "2020-03-01T00:00:00+02:00", want: date(2020, 3, 1)},
		{in: "2020-01-31T23:30:00-05:00", want: date(2020, 1, 31)},
		{in: "2020-06-15 18:45:00", want: date(2020, 6, 15)},
		{in: "31|12|2020", formats: []string{"02|01|2006"}, want: date(2020, 12, 31)},
		{in: "2019M13", wantErr: true},
		{in: "2019-Q5", wantErr: true},
		{in: "", wantErr: true},
		{in: "yesterday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePeriod(tt.in, tt.formats)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestParsePeriodCell(t *testing.T) {
	got, err := parsePeriodCell("43921", nil, true)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2020, 3, 31, 0, 0, 0, 0, time.UTC), got)

	got, err = parsePeriodCell("43921.75", nil, true)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2020, 3, 31, 0, 0, 0, 0, time.UTC), got)

	got, err = parsePeriodCell("2020", nil, true)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), got, "four digits stay a year")

	_, err = parsePeriodCell("43921", nil, false)
	assert.Error(t, err, "serials are only read from workbooks")
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		null    bool
		wantErr bool
	}{
		{in: "1.5", want: 1.5},
		{in: " -0.25 ", want: -0.25},
		{in: "1,234.5", want: 1234.5},
		{in: `"3.1"`, want: 3.1},
		{in: "4.2%", want: 4.2},
		{in: "1e-3", want: 0.001},
		{in: "", null: true},
		{in: "n/a", null: true},
		{in: "N/A", null: true},
		{in: "..", null: true},
		{in: "-", null: true},
		{in: "#N/A", null: true},
		{in: "NaN", null: true},
		{in: "null", null: true},
		{in: "abc", wantErr: true},
		{in: "12abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseValue(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.null {
				assert.False(t, got.Valid)
				return
			}
			assert.True(t, got.Valid)
			assert.InDelta(t, tt.want, got.Float64, 1e-12)
		})
	}
}

func TestLayoutValidate(t *testing.T) {
	valid := func() Layout {
		return Layout{
			Name:      "wgi",
			Variable:  "wgi_voice",
			Path:      "wgi.csv",
			Frequency: "annual",
			Country:   CountrySpec{Column: "Country"},
			Date:      DateSpec{Column: "Year"},
			Value:     ValueSpec{Column: "Estimate"},
		}
	}
	require.NoError(t, func() *Layout { l := valid(); return &l }().Validate())

	tests := []struct {
		name   string
		mutate func(*Layout)
	}{
		{"missing name", func(l *Layout) { l.Name = "" }},
		{"missing variable", func(l *Layout) { l.Variable = "" }},
		{"bad frequency", func(l *Layout) { l.Frequency = "weekly" }},
		{"bad format", func(l *Layout) { l.Format = "parquet" }},
		{"bad shape", func(l *Layout) { l.Shape = "tall" }},
		{"two country sources", func(l *Layout) { l.Country.Fixed = "USA" }},
		{"no country source", func(l *Layout) { l.Country.Column = "" }},
		{"long without value", func(l *Layout) { l.Value.Column = "" }},
		{"bad country pattern", func(l *Layout) { l.Country.Pattern = "([A-Z" }},
		{"pattern without column", func(l *Layout) { l.Country = CountrySpec{Fixed: "USA", Pattern: "(.*)"} }},
		{"wide without pattern", func(l *Layout) { l.Shape = ShapeWide }},
		{"wide country with country column", func(l *Layout) {
			l.Shape = ShapeWide
			l.Wide = WideSpec{ColumnPattern: `^NEER_(\w\w)$`, Axis: AxisCountry}
		}},
		{"inverted year range", func(l *Layout) { l.FromYear, l.ToYear = 2020, 1990 }},
		{"filter without column", func(l *Layout) { l.Filters = []Filter{{Equals: "x"}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := valid()
			tt.mutate(&l)
			assert.Error(t, l.Validate())
		})
	}
}

func TestFilterMatch(t *testing.T) {
	assert.True(t, Filter{Equals: "quarterly"}.match(" Quarterly "))
	assert.False(t, Filter{Equals: "quarterly"}.match("Monthly"))
	assert.True(t, Filter{Contains: "yoy"}.match("Year-over-year (YOY) percent change"))
	assert.True(t, Filter{Prefix: "URY."}.match("ury.cpi"))
	assert.False(t, Filter{Contains: "yoy", Not: true}.match("YOY"))
	assert.True(t, Filter{Contains: "yoy", Not: true}.match("Index"))
}

func TestFormatOf(t *testing.T) {
	l := &Layout{}
	assert.Equal(t, "xlsx", l.FormatOf("wgi.XLSX"))
	assert.Equal(t, "csv", l.FormatOf("cpi.csv"))
	assert.Equal(t, "csv", l.FormatOf("cpi.txt"))
	l.Format = "xlsx"
	assert.Equal(t, "xlsx", l.FormatOf("export.dat"))
}
