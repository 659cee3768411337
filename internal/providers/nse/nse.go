package nse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
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
	defaultBaseURL       = "https://feeds.nseindia.com/"
	defaultSessionPath   = "session/new"
	defaultDataPath      = "chart-data"
	defaultHealthPath    = "marketStatus"
	defaultUserAgent     = "MacroPulse/0.1"
	defaultTimeout       = 15 * time.Second
	defaultCacheTTL      = 10 * time.Minute
	defaultCacheSize     = 64
	defaultRatePerMinute = 60
	defaultRateBurst     = 10

	sessionFlightKey = "session"
)

var symbols = map[string]string{
	"nifty-50":  "NIFTY 50",
	"india-vix": "INDIA VIX",
	"usd-inr":   "USDINR",
}

type Config struct {
	BaseURL       string
	SessionPath   string
	DataPath      string
	HealthPath    string
	UserAgent     string
	Timeout       time.Duration
	CacheTTL      time.Duration
	RatePerMinute int
	RateBurst     int
}

// Provider is the market-data adapter. The gateway requires a session
// cookie and moves chart payloads inside an AES envelope (see crypto.go).
type Provider struct {
	config    Config
	client    *http.Client
	catalog   *catalog.Catalog
	admission *providers.Admission
	cache     *expirable.LRU[string, []model.SeriesPoint]
	logger    *slog.Logger

	flight singleflight.Group

	mu      sync.Mutex
	session string
}

func New(cat *catalog.Catalog, cfg Config, logger *slog.Logger) *Provider {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if strings.TrimSpace(cfg.SessionPath) == "" {
		cfg.SessionPath = defaultSessionPath
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
		admission: providers.NewAdmission(string(model.SourceNSE), cfg.RatePerMinute, cfg.RateBurst),
		cache:     expirable.NewLRU[string, []model.SeriesPoint](defaultCacheSize, nil, cfg.CacheTTL),
		logger:    logger,
	}
}

func (p *Provider) Name() model.SourceID {
	return model.SourceNSE
}

func (p *Provider) ListIndicators(_ context.Context, _ catalog.Filter) ([]model.Indicator, error) {
	return nil, nil
}

func (p *Provider) Supports(indicatorID string) bool {
	_, ok := symbols[indicatorID]
	return ok && p.catalog.Has(indicatorID)
}

func (p *Provider) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint(p.config.HealthPath), nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", p.config.UserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("nse: health check returned %s", resp.Status)
	}
	return nil
}

func (p *Provider) Latest(ctx context.Context, indicatorID string) (model.Observation, error) {
	points, err := p.levelSeries(ctx, indicatorID)
	if err != nil {
		return model.Observation{}, err
	}
	if len(points) == 0 {
		return model.Observation{}, fmt.Errorf("%w: nse returned no candles for %s", providers.ErrUpstreamUnavailable, indicatorID)
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
	symbol, ok := symbols[indicatorID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", providers.ErrUnsupportedEntity, indicatorID)
	}

	if points, ok := p.cache.Get(indicatorID); ok {
		return points, nil
	}

	if err := p.admission.Allow(indicatorID); err != nil {
		return nil, err
	}

	body, err := p.fetchChart(ctx, symbol)
	if err != nil {
		return nil, err
	}

	points, err := parseCandles(body, indicatorID)
	if err != nil {
		return nil, err
	}
	series.SortByDate(points)
	p.cache.Add(indicatorID, points)
	return points, nil
}

// fetchChart posts an encrypted symbol request and decrypts the response.
// A rejected session is renewed once before the failure surfaces.
func (p *Provider) fetchChart(ctx context.Context, symbol string) ([]byte, error) {
	session, err := p.ensureSession(ctx)
	if err != nil {
		return nil, err
	}

	body, err := p.postEnvelope(ctx, symbol, session)
	if !errors.Is(err, providers.ErrAuthExpired) {
		return body, err
	}

	p.invalidateSession(session)
	p.logger.Info("nse session rejected, renewing once", slog.String("symbol", symbol))

	session, err = p.ensureSession(ctx)
	if err != nil {
		return nil, err
	}
	body, err = p.postEnvelope(ctx, symbol, session)
	if errors.Is(err, providers.ErrAuthExpired) {
		return nil, fmt.Errorf("%w: session renewal did not stick", providers.ErrUpstreamUnavailable)
	}
	return body, err
}

func (p *Provider) postEnvelope(ctx context.Context, symbol, session string) ([]byte, error) {
	request, err := json.Marshal(map[string]string{"symbol": symbol})
	if err != nil {
		return nil, err
	}
	sealed, err := sealPayload(request)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(map[string]string{"payload": sealed})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(p.config.DataPath), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", p.config.UserAgent)
	req.AddCookie(&http.Cookie{Name: "nse_session", Value: session})

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
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, providers.ErrAuthExpired
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &providers.RateLimitError{Source: string(model.SourceNSE), RetryAfter: time.Minute}
	case resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices:
		return nil, fmt.Errorf("%w: nse request failed (%s)", providers.ErrUpstreamUnavailable, resp.Status)
	}

	var envelope struct {
		Payload string `json:"payload"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", providers.ErrMalformedResponse, err)
	}
	if envelope.Payload == "" {
		return nil, fmt.Errorf("%w: response envelope was empty", providers.ErrMalformedResponse)
	}

	plain, err := openPayload(envelope.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", providers.ErrMalformedResponse, err)
	}
	return plain, nil
}

// ensureSession returns the cached session cookie value, deduplicating
// concurrent acquisitions behind one flight.
func (p *Provider) ensureSession(ctx context.Context) (string, error) {
	p.mu.Lock()
	if p.session != "" {
		session := p.session
		p.mu.Unlock()
		return session, nil
	}
	p.mu.Unlock()

	result, err, _ := p.flight.Do(sessionFlightKey, func() (any, error) {
		p.mu.Lock()
		if p.session != "" {
			session := p.session
			p.mu.Unlock()
			return session, nil
		}
		p.mu.Unlock()
		return p.newSession(ctx)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (p *Provider) invalidateSession(rejected string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == rejected {
		p.session = ""
	}
}

func (p *Provider) newSession(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint(p.config.SessionPath), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", p.config.UserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: session: %v", providers.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("%w: session request failed (%s)", providers.ErrUpstreamUnavailable, resp.Status)
	}
	for _, cookie := range resp.Cookies() {
		if cookie.Name == "nse_session" && cookie.Value != "" {
			p.mu.Lock()
			p.session = cookie.Value
			p.mu.Unlock()
			return cookie.Value, nil
		}
	}
	return "", fmt.Errorf("%w: session response had no cookie", providers.ErrMalformedResponse)
}

func (p *Provider) endpoint(path string) string {
	return strings.TrimRight(p.config.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

func parseCandles(plain []byte, indicatorID string) ([]model.SeriesPoint, error) {
	var parsed struct {
		Candles []struct {
			Date  string  `json:"date"`
			Close float64 `json:"close"`
		} `json:"candles"`
	}
	if err := json.Unmarshal(plain, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", providers.ErrMalformedResponse, err)
	}

	points := make([]model.SeriesPoint, 0, len(parsed.Candles))
	for _, candle := range parsed.Candles {
		t, err := time.Parse("2006-01-02", strings.TrimSpace(candle.Date))
		if err != nil {
			continue
		}
		points = append(points, model.SeriesPoint{Date: t.Format("2006-01-02"), Value: candle.Close})
	}

	if len(points) == 0 {
		return nil, fmt.Errorf("%w: no parsable candles for %s", providers.ErrUpstreamUnavailable, indicatorID)
	}
	return points, nil
}

var _ providers.Provider = (*Provider)(nil)
