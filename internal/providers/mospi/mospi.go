package mospi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"macropulse/internal/catalog"
	"macropulse/internal/model"
	"macropulse/internal/providers"
	"macropulse/internal/schedule"
	"macropulse/internal/series"
)

const (
	defaultBaseURL       = "https://api.mospi.gov.in/"
	defaultDataPath      = "v1/series/{code}"
	defaultHealthPath    = "v1/ping"
	defaultAPIKeyHeader  = "X-Api-Key"
	defaultUserAgent     = "MacroPulse/0.1"
	defaultTimeout       = 15 * time.Second
	defaultCacheTTL      = 30 * time.Minute
	defaultCacheSize     = 128
	defaultRatePerMinute = 60
	defaultRateBurst     = 10
)

// seriesCodes maps catalog ids to the upstream series codes this source can
// serve. Presence here is the capability predicate.
var seriesCodes = map[string]string{
	"cpi-inflation":   "CPI-C-ALL",
	"wpi-inflation":   "WPI-ALL",
	"iip-growth":      "IIP-GEN",
	"gdp-growth":      "NAS-GDP-Q",
	"trade-balance":   "FT-TRD-BAL",
	"gst-collections": "GST-GROSS",
}

// fields enumerates every spelling the upstream has been seen using per
// endpoint generation. Kept in one place so parsing stays free of ad hoc
// fallback chains.
var fields = providers.FieldVariants{
	"period": {"period", "refPeriod", "ref_period", "date", "month"},
	"value":  {"value", "val", "indexValue", "index_value", "figure"},
}

var wrapperKeys = []string{"records", "data", "result", "rows"}

type Config struct {
	BaseURL       string
	DataPath      string
	HealthPath    string
	APIKey        string
	APIKeyHeader  string
	UserAgent     string
	Timeout       time.Duration
	CacheTTL      time.Duration
	RatePerMinute int
	RateBurst     int
}

// Provider is the statistics-agency adapter. Highest priority in the
// default chain; serves the official price, output and fiscal series.
type Provider struct {
	config    Config
	client    *http.Client
	catalog   *catalog.Catalog
	admission *providers.Admission
	cache     *expirable.LRU[string, []model.SeriesPoint]
	logger    *slog.Logger
}

func New(cat *catalog.Catalog, cfg Config, logger *slog.Logger) *Provider {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if strings.TrimSpace(cfg.DataPath) == "" {
		cfg.DataPath = defaultDataPath
	}
	if strings.TrimSpace(cfg.HealthPath) == "" {
		cfg.HealthPath = defaultHealthPath
	}
	if strings.TrimSpace(cfg.APIKeyHeader) == "" {
		cfg.APIKeyHeader = defaultAPIKeyHeader
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.RatePerMinute <= 0 {
		cfg.RatePerMinute = defaultRatePerMinute
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Provider{
		config:    cfg,
		client:    &http.Client{Timeout: cfg.Timeout},
		catalog:   cat,
		admission: providers.NewAdmission(string(model.SourceMoSPI), cfg.RatePerMinute, cfg.RateBurst),
		cache:     expirable.NewLRU[string, []model.SeriesPoint](defaultCacheSize, nil, cfg.CacheTTL),
		logger:    logger,
	}
}

func (p *Provider) Name() model.SourceID {
	return model.SourceMoSPI
}

// ListIndicators is empty by contract: metadata lives in the catalog.
func (p *Provider) ListIndicators(_ context.Context, _ catalog.Filter) ([]model.Indicator, error) {
	return nil, nil
}

func (p *Provider) Supports(indicatorID string) bool {
	_, ok := seriesCodes[indicatorID]
	return ok && p.catalog.Has(indicatorID)
}

func (p *Provider) CheckHealth(ctx context.Context) error {
	endpoint := strings.TrimRight(p.config.BaseURL, "/") + "/" + strings.TrimLeft(p.config.HealthPath, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	p.setHeaders(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("mospi: health check returned %s", resp.Status)
	}
	return nil
}

func (p *Provider) Latest(ctx context.Context, indicatorID string) (model.Observation, error) {
	points, err := p.levelSeries(ctx, indicatorID)
	if err != nil {
		return model.Observation{}, err
	}
	if len(points) == 0 {
		return model.Observation{}, fmt.Errorf("%w: mospi returned no records for %s", providers.ErrUpstreamUnavailable, indicatorID)
	}

	last := points[len(points)-1]
	observation := model.Observation{
		IndicatorID: indicatorID,
		Date:        last.Date,
		Value:       last.Value,
	}
	if len(points) >= 2 {
		prior := points[len(points)-2].Value
		observation.Prior = &prior
	}
	return observation, nil
}

func (p *Provider) Series(ctx context.Context, indicatorID string, opts providers.SeriesOptions) ([]model.SeriesPoint, error) {
	points, err := p.levelSeries(ctx, indicatorID)
	if err != nil {
		return nil, err
	}
	ind, err := p.catalog.Get(indicatorID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", providers.ErrUnsupportedEntity, indicatorID)
	}

	copied := make([]model.SeriesPoint, len(points))
	copy(copied, points)
	return series.ApplyTransform(copied, ind.Frequency, opts.From, opts.To, opts.Transform), nil
}

func (p *Provider) NextScheduledUpdate(_ context.Context, indicatorID string) (*time.Time, error) {
	if !p.Supports(indicatorID) {
		return nil, fmt.Errorf("%w: %s", providers.ErrUnsupportedEntity, indicatorID)
	}
	ind, err := p.catalog.Get(indicatorID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", providers.ErrUnsupportedEntity, indicatorID)
	}
	return schedule.NextUpdate(ind, time.Now()), nil
}

// levelSeries fetches (or serves from cache) the untransformed series.
func (p *Provider) levelSeries(ctx context.Context, indicatorID string) ([]model.SeriesPoint, error) {
	code, ok := seriesCodes[indicatorID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", providers.ErrUnsupportedEntity, indicatorID)
	}

	if points, ok := p.cache.Get(indicatorID); ok {
		return points, nil
	}

	if err := p.admission.Allow(indicatorID); err != nil {
		return nil, err
	}

	body, err := p.fetch(ctx, code)
	if err != nil {
		return nil, err
	}

	points, err := parseSeries(body, indicatorID)
	if err != nil {
		return nil, err
	}
	series.SortByDate(points)
	p.cache.Add(indicatorID, points)
	return points, nil
}

func (p *Provider) fetch(ctx context.Context, code string) ([]byte, error) {
	path := strings.ReplaceAll(strings.TrimLeft(p.config.DataPath, "/"), "{code}", url.PathEscape(code))
	endpoint := strings.TrimRight(p.config.BaseURL, "/") + "/" + path + "?format=json"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	p.setHeaders(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", providers.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", providers.ErrUpstreamUnavailable, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &providers.RateLimitError{
			Source:     string(model.SourceMoSPI),
			RetryAfter: retryAfter(resp),
		}
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: mospi request failed (%s)", providers.ErrUpstreamUnavailable, resp.Status)
	}
	return body, nil
}

func (p *Provider) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if p.config.UserAgent != "" {
		req.Header.Set("User-Agent", p.config.UserAgent)
	}
	if strings.TrimSpace(p.config.APIKey) != "" {
		req.Header.Set(p.config.APIKeyHeader, p.config.APIKey)
	}
}

func retryAfter(resp *http.Response) time.Duration {
	if value := strings.TrimSpace(resp.Header.Get("Retry-After")); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		if when, err := time.Parse(http.TimeFormat, value); err == nil {
			if wait := time.Until(when); wait > 0 {
				return wait
			}
		}
	}
	return time.Minute
}

func parseSeries(body []byte, indicatorID string) ([]model.SeriesPoint, error) {
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	var payload any
	if err := decoder.Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", providers.ErrMalformedResponse, err)
	}

	rows, err := providers.ExtractRows(payload, wrapperKeys...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", providers.ErrMalformedResponse, err)
	}

	points := make([]model.SeriesPoint, 0, len(rows))
	for _, row := range rows {
		raw, ok := fields.FieldString(row, "period")
		if !ok {
			continue
		}
		date, ok := normalizePeriod(raw)
		if !ok {
			continue
		}
		value, ok := fields.FieldFloat(row, "value")
		if !ok {
			continue
		}
		points = append(points, model.SeriesPoint{Date: date, Value: value})
	}

	if len(points) == 0 {
		return nil, fmt.Errorf("%w: no parsable records for %s", providers.ErrUpstreamUnavailable, indicatorID)
	}
	return points, nil
}

// normalizePeriod accepts the period spellings the upstream mixes across
// endpoints: 2025-07, 202507, Jul-2025 and full ISO dates.
func normalizePeriod(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}

	if t, err := time.Parse("2006-01-02", trimmed); err == nil {
		return t.Format("2006-01-02"), true
	}
	if t, err := time.Parse("2006-01", trimmed); err == nil {
		return t.Format("2006-01"), true
	}
	if t, err := time.Parse("200601", trimmed); err == nil {
		return t.Format("2006-01"), true
	}
	if t, err := time.Parse("Jan-2006", trimmed); err == nil {
		return t.Format("2006-01"), true
	}
	if t, err := time.Parse("Jan 2006", trimmed); err == nil {
		return t.Format("2006-01"), true
	}
	return "", false
}

var _ providers.Provider = (*Provider)(nil)
