package worldbank

import (
	"context"
	"log/slog"
	"time"

	"sovpanel/pkg/contracts/domain"
)

// SourceName is the Table.Source of fetched series
const SourceName = "worldbank"

// Indicator maps an API indicator code to a panel variable
type Indicator struct {
	Code     string `yaml:"code" json:"code" validate:"required"`
	Variable string `yaml:"variable" json:"variable" validate:"required"`
}

// DefaultIndicators are the macro controls fetched when none are configured
func DefaultIndicators() []Indicator {
	return []Indicator{
		{Code: "NY.GDP.MKTP.KD.ZG", Variable: "gdp_growth"},
		{Code: "FP.CPI.TOTL.ZG", Variable: "inflation"},
		{Code: "SL.UEM.TOTL.ZS", Variable: "unemployment"},
		{Code: "GC.BAL.CASH.GD.ZS", Variable: "fiscal_balance"},
		{Code: "GC.DOD.TOTL.GD.ZS", Variable: "public_debt"},
	}
}

// Failure is one country and indicator pair that could not be fetched
type Failure struct {
	Country   domain.CountryCode `json:"country"`
	Indicator string             `json:"indicator"`
	Err       error              `json:"-"`
}

// BatchResult holds one annual table per indicator plus the skipped pairs
type BatchResult struct {
	Tables   []*domain.Table
	Failures []Failure
	Requests int
}

// FetchBatch fetches every indicator for every country. A failing pair is
// logged and recorded in Failures and never stops the batch; only a
// cancelled context does. Tables follow the order of indicators.
func (c *Client) FetchBatch(ctx context.Context, countries []domain.CountryCode, indicators []Indicator, fromYear, toYear int) (BatchResult, error) {
	var res BatchResult
	start := time.Now()
	before := c.Requests()

	for _, ind := range indicators {
		table := &domain.Table{
			Variable:  ind.Variable,
			Source:    SourceName,
			Frequency: domain.FrequencyAnnual,
		}
		for _, country := range countries {
			if err := ctx.Err(); err != nil {
				res.Requests = c.Requests() - before
				return res, err
			}
			obs, err := c.FetchIndicator(ctx, country, ind.Code, fromYear, toYear)
			if err != nil {
				if ctx.Err() != nil {
					res.Requests = c.Requests() - before
					return res, ctx.Err()
				}
				c.logger.Warn("World Bank fetch failed, skipping",
					slog.String("country", string(country)),
					slog.String("indicator", ind.Code),
					slog.String("error", err.Error()))
				res.Failures = append(res.Failures, Failure{Country: country, Indicator: ind.Code, Err: err})
				continue
			}
			for _, o := range obs {
				table.Records = append(table.Records, domain.LongRecord{
					Country:  country,
					Date:     time.Date(o.Year, time.January, 1, 0, 0, 0, 0, time.UTC),
					Variable: ind.Variable,
					Value:    domain.Float(o.Value),
				})
			}
		}
		res.Tables = append(res.Tables, table)
	}

	res.Requests = c.Requests() - before
	c.logger.Info("World Bank batch complete",
		slog.Int("countries", len(countries)),
		slog.Int("indicators", len(indicators)),
		slog.Int("requests", res.Requests),
		slog.Int("failures", len(res.Failures)),
		slog.Duration("duration", time.Since(start)))
	return res, nil
}
