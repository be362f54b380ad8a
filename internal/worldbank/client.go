package worldbank

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"

	"sovpanel/pkg/contracts/domain"
)

// DefaultBaseURL is the public v2 API root
const DefaultBaseURL = "https://api.worldbank.org/v2"

var (
	// ErrMalformedResponse is returned when a body is not the expected JSON shape
	ErrMalformedResponse = errors.New("malformed World Bank response")
)

// APIError is an error envelope returned by the API with a 200 status
type APIError struct {
	ID      string
	Key     string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("world bank API error %s (%s): %s", e.ID, e.Key, e.Message)
}

// StatusError is a non-200 HTTP response
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// Config tunes the client
type Config struct {
	BaseURL           string        `yaml:"base_url" json:"base_url"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second" json:"requests_per_second"`
	MaxTries          uint          `yaml:"max_tries" json:"max_tries"`
	RetryInterval     time.Duration `yaml:"retry_interval" json:"retry_interval"`
	PerPage           int           `yaml:"per_page" json:"per_page"`
}

// DefaultConfig returns the settings used when none are given
func DefaultConfig() Config {
	return Config{
		BaseURL:           DefaultBaseURL,
		Timeout:           10 * time.Second,
		RequestsPerSecond: 4,
		MaxTries:          2,
		RetryInterval:     500 * time.Millisecond,
		PerPage:           1000,
	}
}

// Observation is one annual value
type Observation struct {
	Year  int
	Value float64
}

// Client queries indicator series one country at a time
type Client struct {
	http     *http.Client
	cfg      Config
	limiter  *rate.Limiter
	logger   *slog.Logger
	requests atomic.Int64
}

// NewClient creates a client. Zero config fields take their defaults.
func NewClient(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = def.RequestsPerSecond
	}
	if cfg.MaxTries == 0 {
		cfg.MaxTries = def.MaxTries
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = def.RetryInterval
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = def.PerPage
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		http:    httpClient,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		logger:  logger.With(slog.String("component", "worldbank")),
	}
}

// Requests returns the number of HTTP requests sent so far
func (c *Client) Requests() int {
	return int(c.requests.Load())
}

// FetchIndicator returns the non-null annual values of one indicator for one
// country between fromYear and toYear inclusive, following pagination.
func (c *Client) FetchIndicator(ctx context.Context, country domain.CountryCode, indicator string, fromYear, toYear int) ([]Observation, error) {
	var out []Observation
	for page := 1; ; page++ {
		u := c.indicatorURL(country, indicator, fromYear, toYear, page)
		res, err := c.fetchPage(ctx, u)
		if err != nil {
			if errors.Is(err, ErrMalformedResponse) {
				return nil, fmt.Errorf("%s %s: %w", country, indicator, err)
			}
			return nil, err
		}
		out = append(out, res.obs...)
		if page >= res.pages {
			break
		}
	}
	return out, nil
}

func (c *Client) indicatorURL(country domain.CountryCode, indicator string, fromYear, toYear, page int) string {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("per_page", strconv.Itoa(c.cfg.PerPage))
	q.Set("page", strconv.Itoa(page))
	if fromYear > 0 && toYear > 0 {
		q.Set("date", fmt.Sprintf("%d:%d", fromYear, toYear))
	}
	return fmt.Sprintf("%s/country/%s/indicator/%s?%s",
		c.cfg.BaseURL, url.PathEscape(string(country)), url.PathEscape(indicator), q.Encode())
}

// pageData is one decoded response page
type pageData struct {
	obs   []Observation
	pages int
}

// fetchPage performs one GET under the rate limit and per-request timeout
// and decodes the body. Server errors, timeouts and malformed bodies are
// retried up to MaxTries attempts; client errors and API error envelopes
// are not.
func (c *Client) fetchPage(ctx context.Context, u string) (pageData, error) {
	attempt := 0
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.cfg.RetryInterval

	return backoff.Retry(ctx, func() (pageData, error) {
		attempt++
		if attempt > 1 {
			c.logger.Debug("Retrying World Bank request", slog.String("url", u), slog.Int("attempt", attempt))
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return pageData{}, backoff.Permanent(err)
		}
		body, err := c.get(ctx, u)
		if err != nil {
			return pageData{}, err
		}
		obs, pages, err := parsePage(body)
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return pageData{}, backoff.Permanent(err)
			}
			return pageData{}, err
		}
		return pageData{obs: obs, pages: pages}, nil
	}, backoff.WithBackOff(exp), backoff.WithMaxTries(c.cfg.MaxTries))
}

func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	c.requests.Add(1)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		statusErr := &StatusError{StatusCode: resp.StatusCode, URL: u}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, statusErr
		}
		return nil, backoff.Permanent(statusErr)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, err
	}
	return body, nil
}

// pageHeader is the first element of a response array
type pageHeader struct {
	Page    flexInt `json:"page"`
	Pages   flexInt `json:"pages"`
	Message []struct {
		ID    string `json:"id"`
		Key   string `json:"key"`
		Value string `json:"value"`
	} `json:"message"`
}

type entry struct {
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
}

// parsePage decodes one response page. Null values and undated entries are
// skipped. A missing or null data element means no data.
func parsePage(body []byte) ([]Observation, int, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(body, &parts); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(parts) == 0 {
		return nil, 0, fmt.Errorf("%w: empty array", ErrMalformedResponse)
	}

	var hdr pageHeader
	if err := json.Unmarshal(parts[0], &hdr); err != nil {
		return nil, 0, fmt.Errorf("%w: header: %v", ErrMalformedResponse, err)
	}
	if len(hdr.Message) > 0 {
		m := hdr.Message[0]
		return nil, 0, &APIError{ID: m.ID, Key: m.Key, Message: m.Value}
	}
	if len(parts) < 2 || string(parts[1]) == "null" {
		return nil, int(hdr.Pages), nil
	}

	var entries []entry
	if err := json.Unmarshal(parts[1], &entries); err != nil {
		return nil, 0, fmt.Errorf("%w: data: %v", ErrMalformedResponse, err)
	}
	out := make([]Observation, 0, len(entries))
	for _, e := range entries {
		if e.Value == nil {
			continue
		}
		year, err := strconv.Atoi(strings.TrimSpace(e.Date))
		if err != nil {
			continue
		}
		out = append(out, Observation{Year: year, Value: *e.Value})
	}
	return out, int(hdr.Pages), nil
}

// flexInt accepts a JSON number or a numeric string
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}
