package rbi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"macropulse/internal/catalog"
	"macropulse/internal/model"
	"macropulse/internal/providers"
	"macropulse/internal/schedule"
	"macropulse/internal/series"
)

const (
	defaultBaseURL       = "https://data.rbi.org.in/api/"
	defaultLoginPath     = "auth/token"
	defaultDataPath      = "series/{code}/observations"
	defaultHealthPath    = "status"
	defaultUserAgent     = "MacroPulse/0.1"
	defaultTimeout       = 20 * time.Second
	defaultCacheTTL      = 20 * time.Minute
	defaultCacheSize     = 128
	defaultRatePerMinute = 30
	defaultRateBurst     = 5
	defaultTokenLifetime = 30 * time.Minute

	loginFlightKey = "login"
)

// seriesCodes is the capability set. CPI appears here too: the data
// warehouse republishes it, making this the second-priority origin for the
// headline inflation card.
var seriesCodes = map[string]string{
	"repo-rate":          "DBIE-REPO",
	"forex-reserves":     "WSS-FXR-TOT",
	"usd-inr":            "REF-RATE-USD",
	"bank-credit-growth": "SCB-NFC-GROWTH",
	"cpi-inflation":      "DBIE-CPI-C",
}

var fields = providers.FieldVariants{
	"date":  {"date", "obsDate", "obs_date", "forDate", "period"},
	"value": {"value", "obsValue", "obs_value", "rate", "amount"},
}

var wrapperKeys = []string{"observations", "series", "data", "records"}

type Config struct {
	BaseURL       string
	LoginPath     string
	DataPath      string
	HealthPath    string
	ClientID      string
	ClientSecret  string
	UserAgent     string
	Timeout       time.Duration
	CacheTTL      time.Duration
	TokenLifetime time.Duration
	RatePerMinute int
	RateBurst     int
}

// Provider is the central-bank data-gateway adapter. The upstream issues
// short-lived bearer tokens; acquisition is deduplicated so concurrent
// callers share one login, and a rejected token is renewed exactly once
// before the failure surfaces.
type Provider struct {
	config    Config
	client    *http.Client
	catalog   *catalog.Catalog
	admission *providers.Admission
	cache     *expirable.LRU[string, []model.SeriesPoint]
	logger    *slog.Logger

	flight singleflight.Group

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func New(cat *catalog.Catalog, cfg Config, logger *slog.Logger) *Provider {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if strings.TrimSpace(cfg.LoginPath) == "" {
		cfg.LoginPath = defaultLoginPath
	}
	if strings.TrimSpace(cfg.DataPath) == "" {
		cfg.DataPath = defaultDataPath
	}
	if strings.TrimSpace(cfg.HealthPath) == "" {
		cfg.HealthPath = defaultHealthPath
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
	if cfg.TokenLifetime == 0 {
		cfg.TokenLifetime = defaultTokenLifetime
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
		admission: providers.NewAdmission(string(model.SourceRBI), cfg.RatePerMinute, cfg.RateBurst),
		cache:     expirable.NewLRU[string, []model.SeriesPoint](defaultCacheSize, nil, cfg.CacheTTL),
		logger:    logger,
	}
}

func (p *Provider) Name() model.SourceID {
	return model.SourceRBI
}

func (p *Provider) ListIndicators(_ context.Context, _ catalog.Filter) ([]model.Indicator, error) {
	return nil, nil
}

func (p *Provider) Supports(indicatorID string) bool {
	_, ok := seriesCodes[indicatorID]
	return ok && p.catalog.Has(indicatorID)
}

func (p *Provider) CheckHealth(ctx context.Context) error {
	endpoint := p.endpoint(p.config.HealthPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", p.config.UserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("rbi: health check returned %s", resp.Status)
	}
	return nil
}

func (p *Provider) Latest(ctx context.Context, indicatorID string) (model.Observation, error) {
	points, err := p.levelSeries(ctx, indicatorID)
	if err != nil {
		return model.Observation{}, err
	}
	if len(points) == 0 {
		return model.Observation{}, fmt.Errorf("%w: rbi returned no records for %s", providers.ErrUpstreamUnavailable, indicatorID)
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

	path := strings.ReplaceAll(p.config.DataPath, "{code}", url.PathEscape(code))
	body, err := p.doAuthenticated(ctx, path)
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

// doAuthenticated performs a bearer-authenticated GET. On a 401 the cached
// token is invalidated and the request retried exactly once with a freshly
// acquired session before the failure escalates.
func (p *Provider) doAuthenticated(ctx context.Context, path string) ([]byte, error) {
	token, err := p.ensureToken(ctx)
	if err != nil {
		return nil, err
	}

	body, err := p.doGet(ctx, path, token)
	if !errors.Is(err, providers.ErrAuthExpired) {
		return body, err
	}

	p.invalidateToken(token)
	p.logger.Info("rbi session rejected, renewing once", slog.String("path", path))

	token, err = p.ensureToken(ctx)
	if err != nil {
		return nil, err
	}
	body, err = p.doGet(ctx, path, token)
	if errors.Is(err, providers.ErrAuthExpired) {
		return nil, fmt.Errorf("%w: session renewal did not stick", providers.ErrUpstreamUnavailable)
	}
	return body, err
}

func (p *Provider) doGet(ctx context.Context, path, token string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint(path), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", p.config.UserAgent)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", providers.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", providers.ErrUpstreamUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, providers.ErrAuthExpired
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &providers.RateLimitError{Source: string(model.SourceRBI), RetryAfter: time.Minute}
	case resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices:
		return nil, fmt.Errorf("%w: rbi request failed (%s)", providers.ErrUpstreamUnavailable, resp.Status)
	}
	return body, nil
}

// ensureToken returns the cached token while it is valid; otherwise all
// concurrent callers join one login flight.
func (p *Provider) ensureToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	if p.token != "" && time.Now().Before(p.tokenExpiry) {
		token := p.token
		p.mu.Unlock()
		return token, nil
	}
	p.mu.Unlock()

	result, err, _ := p.flight.Do(loginFlightKey, func() (any, error) {
		p.mu.Lock()
		if p.token != "" && time.Now().Before(p.tokenExpiry) {
			token := p.token
			p.mu.Unlock()
			return token, nil
		}
		p.mu.Unlock()
		return p.login(ctx)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (p *Provider) invalidateToken(rejected string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	// Keep a newer token another caller may have acquired meanwhile.
	if p.token == rejected {
		p.token = ""
		p.tokenExpiry = time.Time{}
	}
}

func (p *Provider) login(ctx context.Context) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"clientId":     p.config.ClientID,
		"clientSecret": p.config.ClientSecret,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(p.config.LoginPath), bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", p.config.UserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: login: %v", providers.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: login: %v", providers.ErrUpstreamUnavailable, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("%w: login failed (%s)", providers.ErrUpstreamUnavailable, resp.Status)
	}

	var parsed struct {
		Token     string `json:"token"`
		ExpiresIn int    `json:"expiresIn"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: login: %v", providers.ErrMalformedResponse, err)
	}
	if strings.TrimSpace(parsed.Token) == "" {
		return "", fmt.Errorf("%w: login response had no token", providers.ErrMalformedResponse)
	}

	lifetime := p.config.TokenLifetime
	if parsed.ExpiresIn > 0 {
		lifetime = time.Duration(parsed.ExpiresIn) * time.Second
	}

	p.mu.Lock()
	p.token = parsed.Token
	p.tokenExpiry = time.Now().Add(lifetime)
	p.mu.Unlock()

	return parsed.Token, nil
}

func (p *Provider) endpoint(path string) string {
	return strings.TrimRight(p.config.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
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
		raw, ok := fields.FieldString(row, "date")
		if !ok {
			continue
		}
		date, ok := normalizeDate(raw)
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

// normalizeDate handles the warehouse's two date spellings: ISO and the
// legacy dd-MMM-2006 export format.
func normalizeDate(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if t, err := time.Parse("2006-01-02", trimmed); err == nil {
		return t.Format("2006-01-02"), true
	}
	if t, err := time.Parse("02-Jan-2006", trimmed); err == nil {
		return t.Format("2006-01-02"), true
	}
	if t, err := time.Parse("2006-01", trimmed); err == nil {
		return t.Format("2006-01"), true
	}
	return "", false
}

var _ providers.Provider = (*Provider)(nil)
