package ingest

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"sovpanel/internal/countries"
	"sovpanel/internal/files"
	"sovpanel/internal/shared/testutil"
	"sovpanel/pkg/contracts/domain"
)

const cpiCSV = `COUNTRY,SERIES_CODE,TYPE_OF_TRANSFORMATION,FREQUENCY,2020-Q1,2020-Q2
Uruguay,URY.CPI.YOY,Year-over-year (YOY) percent change,Quarterly,8.5,10.1
Uruguay,URY.CPI.IX,Index,Quarterly,100,101
Uruguay,URY.CPI.YOY,Year-over-year (YOY) percent change,Monthly,1,2
Atlantis,ATL.CPI.YOY,Year-over-year (YOY) percent change,Quarterly,1,n/a
`

const yieldCSV = `Global Financial Data
Ticker: IGURY10D
"Source: GFD, daily close"

Date,Ticker,Open,High,Low,Close
01/02/2020,IGURY10D,5.1,5.2,5.0,5.15
01/03/2020,IGURY10D,5.1,5.2,5.0,
not a date,IGURY10D,1,1,1,1
01/06/2020,IGURY10D,5.1,5.2,5.0,abc
`

const neerCSV = `Date,NEER_US,NEER_UY,NEER_XX
2020M01,"1,234.5",99.1,1
2020M02,"1,240.0",,2
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func newTestLoader(t *testing.T, dir string) (*Loader, *testutil.BufferedSlogHandler) {
	t.Helper()
	logger, handler := testutil.NewTestLogger(t)
	return NewLoader(nil, nil, files.NewDiscovery(dir), logger), handler
}

func cpiLayout() Layout {
	return Layout{
		Name:      "imf_cpi",
		Variable:  "cpi_yoy",
		Path:      "cpi.csv",
		Frequency: domain.FrequencyQuarterly,
		Shape:     ShapeWide,
		Country:   CountrySpec{Column: "SERIES_CODE", Pattern: `^([A-Z]{3})\.`},
		Wide:      WideSpec{ColumnPattern: `^(\d{4}-Q[1-4])$`, Axis: AxisPeriod},
		Filters: []Filter{
			{Column: "TYPE_OF_TRANSFORMATION", Contains: "YOY"},
			{Column: "FREQUENCY", Equals: "quarterly"},
		},
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestLoadWideByPeriod(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "cpi.csv", cpiCSV)
	loader, handler := newTestLoader(t, dir)

	table, stats, err := loader.Load(context.Background(), cpiLayout())
	require.NoError(t, err)

	assert.Equal(t, "cpi_yoy", table.Variable)
	assert.Equal(t, domain.FrequencyQuarterly, table.Frequency)
	require.Len(t, table.Records, 2)
	assert.Equal(t, domain.CountryCode("URY"), table.Records[0].Country)
	assert.True(t, day(2020, 1, 1).Equal(table.Records[0].Date))
	assert.InDelta(t, 8.5, table.Records[0].Value.Float64, 1e-9)
	assert.True(t, day(2020, 4, 1).Equal(table.Records[1].Date))
	assert.InDelta(t, 10.1, table.Records[1].Value.Float64, 1e-9)

	assert.Equal(t, 1, stats.Files)
	assert.Equal(t, 4, stats.RowsRead)
	assert.Equal(t, 2, stats.Filtered)
	assert.Equal(t, 2, stats.Kept)
	assert.Equal(t, 2, stats.Drops[DropUnresolvedCountry])

	entries := loader.Tracker().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "ATL", entries[0].Raw)
	assert.Equal(t, "cpi.csv", entries[0].Source)
	assert.Equal(t, 2, entries[0].Count)

	testutil.AssertLogContains(t, handler, slog.LevelWarn, "Unresolved country identifier")
	testutil.AssertLogAttr(t, handler, "raw", "ATL")
	testutil.AssertLogAttr(t, handler, "rows", int64(2))
	testutil.AssertLogContains(t, handler, slog.LevelInfo, "Source loaded")
	testutil.AssertLogAttr(t, handler, "component", "ingest")
}

func TestLoadLongWithSentinelAndFilenameCountry(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "yields/IGURY10D.csv", yieldCSV)
	loader, _ := newTestLoader(t, dir)

	layout := Layout{
		Name:           "gfd_yields",
		Variable:       "yield_10y",
		Path:           "yields/IG*.csv",
		Frequency:      domain.FrequencyDaily,
		HeaderSentinel: []string{"Date", "Ticker", "Open", "High", "Low", "Close"},
		Country:        CountrySpec{FromFilename: `^IG([A-Z]{3})`},
		Date:           DateSpec{Column: "Date", Formats: []string{"01/02/2006"}},
		Value:          ValueSpec{Column: "Close"},
	}

	table, stats, err := loader.Load(context.Background(), layout)
	require.NoError(t, err)

	require.Len(t, table.Records, 2)
	first, second := table.Records[0], table.Records[1]
	assert.Equal(t, domain.CountryCode("URY"), first.Country)
	assert.True(t, day(2020, 1, 2).Equal(first.Date))
	assert.True(t, first.Value.Valid)
	assert.InDelta(t, 5.15, first.Value.Float64, 1e-9)
	assert.True(t, day(2020, 1, 3).Equal(second.Date))
	assert.False(t, second.Value.Valid, "empty close is kept as an explicit null")

	assert.Equal(t, 4, stats.RowsRead)
	assert.Equal(t, 1, stats.NullValues)
	assert.Equal(t, 1, stats.Drops[DropBadDate])
	assert.Equal(t, 1, stats.Drops[DropBadValue])
	assert.Equal(t, 2, stats.Dropped())
}

func TestLoadDropNull(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "IGURY10D.csv", yieldCSV)
	loader, _ := newTestLoader(t, dir)

	layout := Layout{
		Name:           "gfd_yields",
		Variable:       "yield_10y",
		Path:           "IGURY10D.csv",
		Frequency:      domain.FrequencyDaily,
		HeaderSentinel: []string{"Date", "Ticker"},
		Country:        CountrySpec{Fixed: "Uruguay"},
		Date:           DateSpec{Column: "Date"},
		Value:          ValueSpec{Column: "Close"},
		DropNull:       true,
	}

	table, stats, err := loader.Load(context.Background(), layout)
	require.NoError(t, err)
	require.Len(t, table.Records, 1)
	assert.Equal(t, 1, stats.Drops[DropNullValue])
}

func TestLoadWideByCountry(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "neer.csv", neerCSV)
	loader, _ := newTestLoader(t, dir)

	layout := Layout{
		Name:      "bis_neer",
		Variable:  "neer",
		Path:      "neer.csv",
		Frequency: domain.FrequencyMonthly,
		Shape:     ShapeWide,
		Date:      DateSpec{Column: "Date"},
		Wide:      WideSpec{ColumnPattern: `^NEER_([A-Z]{2})$`, Axis: AxisCountry},
	}

	table, stats, err := loader.Load(context.Background(), layout)
	require.NoError(t, err)

	require.Len(t, table.Records, 4)
	assert.Equal(t, []domain.CountryCode{"USA", "URY"}, table.Countries())
	assert.InDelta(t, 1234.5, table.Records[0].Value.Float64, 1e-9)
	assert.True(t, day(2020, 1, 1).Equal(table.Records[0].Date))
	assert.True(t, day(2020, 2, 1).Equal(table.Records[3].Date))
	assert.False(t, table.Records[3].Value.Valid)
	assert.Equal(t, 2, stats.Drops[DropUnresolvedCountry])
	assert.Equal(t, 1, stats.NullValues)
}

func TestLoadExcel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wgi.xlsx")

	f := excelize.NewFile()
	_, err := f.NewSheet("Data")
	require.NoError(t, err)
	rows := [][]interface{}{
		{"Worldwide Governance Indicators"},
		{},
		{"Country Name", "Year", "Estimate"},
		{"Côte d'Ivoire", 2019, -0.5},
		{"Ivory Coast", 2020, -0.4},
		{"Korea, Rep.", 2019, ".."},
		{"Turkey", 1990, 0.1},
	}
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cellRef, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Data", cellRef, &row))
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	loader, _ := newTestLoader(t, dir)
	layout := Layout{
		Name:      "wgi",
		Variable:  "wgi_voice",
		Path:      "wgi.xlsx",
		Frequency: domain.FrequencyAnnual,
		Country:   CountrySpec{Column: "Country Name"},
		Date:      DateSpec{Column: "Year"},
		Value:     ValueSpec{Column: "Estimate"},
		FromYear:  2000,
	}

	table, stats, err := loader.Load(context.Background(), layout)
	require.NoError(t, err)

	require.Len(t, table.Records, 3)
	assert.Equal(t, domain.CountryCode("CIV"), table.Records[0].Country)
	assert.Equal(t, domain.CountryCode("CIV"), table.Records[1].Country)
	assert.Equal(t, domain.CountryCode("KOR"), table.Records[2].Country)
	assert.False(t, table.Records[2].Value.Valid)
	assert.True(t, day(2020, 1, 1).Equal(table.Records[1].Date))
	assert.Equal(t, 1, stats.Drops[DropOutOfRange])
}

func TestLoadExcelDateCells(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ratings.xlsx")

	f := excelize.NewFile()
	rows := [][]interface{}{
		{"Country", "Date", "Rating"},
		{"Brazil", time.Date(2020, 3, 31, 0, 0, 0, 0, time.UTC), 1.5},
		{"Brazil", time.Date(2020, 4, 30, 0, 0, 0, 0, time.UTC), 1.25},
		{"NA", time.Date(2020, 4, 30, 0, 0, 0, 0, time.UTC), 9},
		{"Namibia", time.Date(2020, 4, 30, 0, 0, 0, 0, time.UTC), 2},
	}
	for i, row := range rows {
		cellRef, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cellRef, &row))
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	loader, _ := newTestLoader(t, dir)
	table, stats, err := loader.Load(context.Background(), Layout{
		Name:      "ratings",
		Variable:  "rating",
		Path:      "ratings.xlsx",
		Frequency: domain.FrequencyEvent,
		Country:   CountrySpec{Column: "Country"},
		Date:      DateSpec{Column: "Date"},
		Value:     ValueSpec{Column: "Rating"},
	})
	require.NoError(t, err)

	require.Len(t, table.Records, 3)
	assert.Equal(t, domain.CountryCode("BRA"), table.Records[0].Country)
	assert.True(t, day(2020, 3, 31).Equal(table.Records[0].Date), "got %s", table.Records[0].Date)
	assert.True(t, day(2020, 4, 30).Equal(table.Records[1].Date))
	assert.Equal(t, domain.CountryCode("NAM"), table.Records[2].Country)
	assert.Zero(t, stats.Drops[DropBadDate])
	assert.Equal(t, 1, stats.Drops[DropMissingCountry])
	assert.Empty(t, loader.Tracker().Entries())
}

func TestLoadMissingCountryCells(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "long.csv", `iso,month,value
NA,2020-01,1
,2020-01,2
n/a,2020-01,3
URY,2020-01,4
`)
	writeFile(t, dir, "neer.csv", `Date,NEER_NA,NEER_UY
2020M01,1,2
`)
	loader, _ := newTestLoader(t, dir)

	table, stats, err := loader.Load(context.Background(), Layout{
		Name:      "long",
		Variable:  "x",
		Path:      "long.csv",
		Frequency: domain.FrequencyMonthly,
		Country:   CountrySpec{Column: "iso"},
		Date:      DateSpec{Column: "month"},
		Value:     ValueSpec{Column: "value"},
	})
	require.NoError(t, err)
	require.Len(t, table.Records, 1)
	assert.Equal(t, domain.CountryCode("URY"), table.Records[0].Country)
	assert.Equal(t, 3, stats.Drops[DropMissingCountry])
	assert.Zero(t, stats.Drops[DropUnresolvedCountry])

	// alpha-2 header tokens still resolve
	table, _, err = loader.Load(context.Background(), Layout{
		Name:      "neer",
		Variable:  "neer",
		Path:      "neer.csv",
		Frequency: domain.FrequencyMonthly,
		Shape:     ShapeWide,
		Date:      DateSpec{Column: "Date"},
		Wide:      WideSpec{ColumnPattern: `^NEER_([A-Z]{2})$`, Axis: AxisCountry},
	})
	require.NoError(t, err)
	require.Len(t, table.Records, 2)
	assert.Equal(t, domain.CountryCode("NAM"), table.Records[0].Country)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "cpi.csv", cpiCSV)
	writeFile(t, dir, "other.csv", "a,b,c\n1,2,3\n")

	t.Run("empty source", func(t *testing.T) {
		loader, _ := newTestLoader(t, dir)
		layout := cpiLayout()
		layout.Filters = append(layout.Filters, Filter{Column: "COUNTRY", Equals: "Narnia"})

		_, stats, err := loader.Load(context.Background(), layout)
		assert.ErrorIs(t, err, ErrEmptySource)
		assert.Equal(t, 4, stats.Filtered)
	})

	t.Run("no files", func(t *testing.T) {
		loader, _ := newTestLoader(t, dir)
		layout := cpiLayout()
		layout.Path = "missing/*.csv"

		_, _, err := loader.Load(context.Background(), layout)
		assert.ErrorIs(t, err, ErrNoFiles)
	})

	t.Run("header not found", func(t *testing.T) {
		loader, _ := newTestLoader(t, dir)
		layout := cpiLayout()
		layout.Path = "other.csv"

		_, _, err := loader.Load(context.Background(), layout)
		assert.ErrorIs(t, err, errHeaderNotFound)
	})

	t.Run("sentinel without required column", func(t *testing.T) {
		loader, _ := newTestLoader(t, dir)
		layout := Layout{
			Name:           "other",
			Variable:       "x",
			Path:           "other.csv",
			Frequency:      domain.FrequencyAnnual,
			HeaderSentinel: []string{"a", "b"},
			Country:        CountrySpec{Fixed: "USA"},
			Date:           DateSpec{Column: "a"},
			Value:          ValueSpec{Column: "missing"},
		}
		_, _, err := loader.Load(context.Background(), layout)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `column "missing" not found`)
	})

	t.Run("invalid layout", func(t *testing.T) {
		loader, _ := newTestLoader(t, dir)
		_, _, err := loader.Load(context.Background(), Layout{Name: "broken"})
		assert.Error(t, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		loader, _ := newTestLoader(t, dir)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, _, err := loader.Load(ctx, cpiLayout())
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestLoadAll(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "cpi.csv", cpiCSV)
	writeFile(t, dir, "neer.csv", neerCSV)

	neer := Layout{
		Name:      "bis_neer",
		Variable:  "neer",
		Path:      "neer.csv",
		Frequency: domain.FrequencyMonthly,
		Shape:     ShapeWide,
		Date:      DateSpec{Column: "Date"},
		Wide:      WideSpec{ColumnPattern: `^NEER_([A-Z]{2})$`, Axis: AxisCountry},
	}

	t.Run("keeps layout order", func(t *testing.T) {
		tracker := countries.NewTracker()
		loader := NewLoader(nil, tracker, files.NewDiscovery(dir), nil)
		loader.SetParallelism(4)

		results, err := loader.LoadAll(context.Background(), []Layout{neer, cpiLayout()})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "neer", results[0].Table.Variable)
		assert.Equal(t, "cpi_yoy", results[1].Table.Variable)
		assert.Equal(t, "bis_neer", results[0].Stats.Source)

		// both sources report into the shared tracker
		assert.Equal(t, 4, tracker.Total())
	})

	t.Run("fails on a broken source", func(t *testing.T) {
		loader := NewLoader(nil, nil, files.NewDiscovery(dir), nil)
		broken := neer
		broken.Name = "missing"
		broken.Path = "nope.csv"

		_, err := loader.LoadAll(context.Background(), []Layout{neer, broken})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "source missing")
		assert.False(t, errors.Is(err, ErrEmptySource))
	})
}
