package worldbank

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sovpanel/internal/shared/testutil"
	"sovpanel/pkg/contracts/domain"
)

func testClient(t *testing.T, srv *httptest.Server, mutate func(*Config)) *Client {
	t.Helper()
	cfg := Config{
		BaseURL:           srv.URL,
		Timeout:           time.Second,
		RequestsPerSecond: 1000,
		MaxTries:          3,
		RetryInterval:     time.Millisecond,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewClient(cfg, srv.Client(), nil)
}

const pageOne = `[{"page":1,"pages":2,"per_page":"2","total":3},[
 {"indicator":{"id":"FP.CPI.TOTL.ZG","value":"Inflation"},"countryiso3code":"URY","date":"2021","value":7.75},
 {"indicator":{"id":"FP.CPI.TOTL.ZG","value":"Inflation"},"countryiso3code":"URY","date":"2020","value":null}]]`

const pageTwo = `[{"page":2,"pages":2,"per_page":"2","total":3},[
 {"indicator":{"id":"FP.CPI.TOTL.ZG","value":"Inflation"},"countryiso3code":"URY","date":"2019","value":7.88}]]`

func TestFetchIndicatorPaginates(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "2019:2021", r.URL.Query().Get("date"))
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, pageTwo)
			return
		}
		fmt.Fprint(w, pageOne)
	}))
	defer srv.Close()

	c := testClient(t, srv, nil)
	obs, err := c.FetchIndicator(context.Background(), "URY", "FP.CPI.TOTL.ZG", 2019, 2021)
	require.NoError(t, err)

	assert.Equal(t, []Observation{{Year: 2021, Value: 7.75}, {Year: 2019, Value: 7.88}}, obs)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/country/URY/indicator/FP.CPI.TOTL.ZG", "/country/URY/indicator/FP.CPI.TOTL.ZG"}, paths)
	assert.Equal(t, 2, c.Requests())
}

func TestParsePage(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    []Observation
		pages   int
		wantErr error
	}{
		{
			name:  "null data page",
			body:  `[{"page":1,"pages":0,"per_page":50,"total":0},null]`,
			pages: 0,
		},
		{
			name:  "header only",
			body:  `[{"page":1,"pages":1}]`,
			pages: 1,
		},
		{
			name:  "bad dates skipped",
			body:  `[{"page":1,"pages":1},[{"date":"2020Q1","value":1},{"date":"2018","value":-0.5}]]`,
			want:  []Observation{{Year: 2018, Value: -0.5}},
			pages: 1,
		},
		{
			name:    "not json",
			body:    `<html>oops</html>`,
			wantErr: ErrMalformedResponse,
		},
		{
			name:    "empty array",
			body:    `[]`,
			wantErr: ErrMalformedResponse,
		},
		{
			name:    "object instead of array",
			body:    `{"page":1}`,
			wantErr: ErrMalformedResponse,
		},
		{
			name:    "string values",
			body:    `[{"page":1,"pages":1},[{"date":"2020","value":"1.5"}]]`,
			wantErr: ErrMalformedResponse,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs, pages, err := parsePage([]byte(tt.body))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.pages, pages)
			if tt.want == nil {
				assert.Empty(t, obs)
			} else {
				assert.Equal(t, tt.want, obs)
			}
		})
	}
}

func TestFetchIndicatorErrorEnvelope(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, `[{"message":[{"id":"120","key":"Invalid value","value":"The provided parameter value is not valid"}]}]`)
	}))
	defer srv.Close()

	_, err := testClient(t, srv, nil).FetchIndicator(context.Background(), "XKX", "BAD.CODE", 0, 0)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "120", apiErr.ID)
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetchIndicatorRetries(t *testing.T) {
	t.Run("server errors are retried", func(t *testing.T) {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hits.Add(1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			fmt.Fprint(w, `[{"page":1,"pages":1},[{"date":"2020","value":2}]]`)
		}))
		defer srv.Close()

		obs, err := testClient(t, srv, nil).FetchIndicator(context.Background(), "BRA", "X", 2020, 2020)
		require.NoError(t, err)
		assert.Len(t, obs, 1)
		assert.Equal(t, int32(2), hits.Load())
	})

	t.Run("malformed bodies are retried", func(t *testing.T) {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hits.Add(1) == 1 {
				fmt.Fprint(w, `<html>gateway hiccup</html>`)
				return
			}
			fmt.Fprint(w, `[{"page":1,"pages":1},[{"date":"2020","value":2}]]`)
		}))
		defer srv.Close()

		obs, err := testClient(t, srv, nil).FetchIndicator(context.Background(), "BRA", "X", 2020, 2020)
		require.NoError(t, err)
		assert.Equal(t, []Observation{{Year: 2020, Value: 2}}, obs)
		assert.Equal(t, int32(2), hits.Load())
	})

	t.Run("persistently malformed bodies fail", func(t *testing.T) {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			fmt.Fprint(w, `{"not":"an array"}`)
		}))
		defer srv.Close()

		_, err := testClient(t, srv, nil).FetchIndicator(context.Background(), "BRA", "X", 2020, 2020)
		assert.ErrorIs(t, err, ErrMalformedResponse)
		assert.Contains(t, err.Error(), "BRA X")
		assert.Equal(t, int32(3), hits.Load())
	})

	t.Run("client errors are not", func(t *testing.T) {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		_, err := testClient(t, srv, nil).FetchIndicator(context.Background(), "BRA", "X", 2020, 2020)
		var statusErr *StatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
		assert.Equal(t, int32(1), hits.Load())
	})

	t.Run("the retry budget is bounded", func(t *testing.T) {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := testClient(t, srv, func(c *Config) { c.MaxTries = 2 }).
			FetchIndicator(context.Background(), "BRA", "X", 2020, 2020)
		assert.Error(t, err)
		assert.Equal(t, int32(2), hits.Load())
	})
}

func TestFetchIndicatorTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := testClient(t, srv, func(c *Config) {
		c.Timeout = 20 * time.Millisecond
		c.MaxTries = 1
	})
	start := time.Now()
	_, err := c.FetchIndicator(context.Background(), "BRA", "X", 2020, 2020)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestFetchBatchIsolatesFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "/country/ARG/"):
			w.WriteHeader(http.StatusBadRequest)
		case strings.Contains(r.URL.Path, "/indicator/GDP"):
			fmt.Fprint(w, `[{"page":1,"pages":1},[{"date":"2020","value":-4.1},{"date":"2019","value":null}]]`)
		default:
			fmt.Fprint(w, `[{"page":1,"pages":1},null]`)
		}
	}))
	defer srv.Close()

	logger, handler := testutil.NewTestLogger(t)
	c := NewClient(Config{BaseURL: srv.URL, RequestsPerSecond: 1000, RetryInterval: time.Millisecond}, srv.Client(), logger)

	res, err := c.FetchBatch(context.Background(),
		[]domain.CountryCode{"ARG", "URY"},
		[]Indicator{{Code: "GDP", Variable: "gdp_growth"}, {Code: "CPI", Variable: "inflation"}},
		2019, 2020)
	require.NoError(t, err)

	require.Len(t, res.Tables, 2)
	gdp := res.Tables[0]
	assert.Equal(t, "gdp_growth", gdp.Variable)
	assert.Equal(t, domain.FrequencyAnnual, gdp.Frequency)
	assert.Equal(t, SourceName, gdp.Source)
	require.Len(t, gdp.Records, 1)
	assert.Equal(t, domain.CountryCode("URY"), gdp.Records[0].Country)
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), gdp.Records[0].Date)
	assert.Equal(t, domain.Float(-4.1), gdp.Records[0].Value)
	assert.Empty(t, res.Tables[1].Records)

	require.Len(t, res.Failures, 2)
	assert.Equal(t, domain.CountryCode("ARG"), res.Failures[0].Country)
	assert.Equal(t, "GDP", res.Failures[0].Indicator)
	assert.Equal(t, 4, res.Requests)

	testutil.AssertLogContains(t, handler, slog.LevelWarn, "World Bank fetch failed")
	testutil.AssertLogAttr(t, handler, "country", "ARG")
	testutil.AssertLogAttr(t, handler, "failures", int64(2))
}

func TestFetchBatchStopsOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"page":1,"pages":1},null]`)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := testClient(t, srv, nil).FetchBatch(ctx, []domain.CountryCode{"URY"}, DefaultIndicators(), 2019, 2020)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIndicatorURL(t *testing.T) {
	c := NewClient(Config{BaseURL: "https://example.test/v2/", PerPage: 50}, nil, nil)
	u := c.indicatorURL("URY", "NY.GDP.MKTP.KD.ZG", 1990, 2025, 3)
	assert.Equal(t,
		"https://example.test/v2/country/URY/indicator/NY.GDP.MKTP.KD.ZG?date=1990%3A2025&format=json&page=3&per_page=50",
		u)
}
