package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"macropulse/internal/catalog"
	"macropulse/internal/health"
	"macropulse/internal/model"
	"macropulse/internal/providers"
	"macropulse/internal/providers/mospi"
	"macropulse/internal/providers/nse"
	"macropulse/internal/providers/rbi"
	"macropulse/internal/providers/synthetic"
	"macropulse/internal/router"
)

// Mode selects the active top-level provider graph.
type Mode string

const (
	// ModeMock serves everything from the synthetic baseline.
	ModeMock Mode = "mock"
	// Single-source modes exist for isolated adapter testing.
	ModeMoSPI Mode = "mospi"
	ModeRBI   Mode = "rbi"
	ModeNSE   Mode = "nse"
	// ModeHybrid is the full priority chain.
	ModeHybrid Mode = "hybrid"
)

// Config is the process-wide runtime configuration, loaded once at startup
// and passed by reference. There is no global provider singleton.
type Config struct {
	Mode              string        `env:"DASH_PROVIDER_MODE" envDefault:"mock"`
	SourcePriority    []string      `env:"DASH_SOURCE_PRIORITY" envSeparator:"," envDefault:"mospi,rbi,nse"`
	StrictEmptySeries bool          `env:"DASH_STRICT_EMPTY_SERIES" envDefault:"false"`
	ProbeTTL          time.Duration `env:"DASH_PROBE_TTL" envDefault:"5m"`
	ProbeTimeout      time.Duration `env:"DASH_PROBE_TIMEOUT" envDefault:"5s"`

	MoSPIBaseURL string `env:"DASH_MOSPI_BASE_URL"`
	MoSPIAPIKey  string `env:"DASH_MOSPI_API_KEY"`

	RBIBaseURL      string `env:"DASH_RBI_BASE_URL"`
	RBIClientID     string `env:"DASH_RBI_CLIENT_ID"`
	RBIClientSecret string `env:"DASH_RBI_CLIENT_SECRET"`

	NSEBaseURL string `env:"DASH_NSE_BASE_URL"`

	CatalogDBPath string `env:"DASH_CATALOG_DB"`
}

// Parse loads configuration from the environment.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// ResolvedMode normalizes the mode selector. Unrecognized values warn and
// fall back to mock; they never crash startup.
func (c Config) ResolvedMode(logger *slog.Logger) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(c.Mode))) {
	case ModeMock:
		return ModeMock
	case ModeMoSPI:
		return ModeMoSPI
	case ModeRBI:
		return ModeRBI
	case ModeNSE:
		return ModeNSE
	case ModeHybrid:
		return ModeHybrid
	default:
		if logger != nil {
			logger.Warn("unrecognized provider mode, using mock", slog.String("mode", c.Mode))
		}
		return ModeMock
	}
}

// priorityOrder validates the configured chain, dropping unknown entries
// with a warning. An empty result falls back to the default order.
func (c Config) priorityOrder(logger *slog.Logger) []model.SourceID {
	known := map[string]model.SourceID{
		"mospi": model.SourceMoSPI,
		"rbi":   model.SourceRBI,
		"nse":   model.SourceNSE,
	}
	order := make([]model.SourceID, 0, len(c.SourcePriority))
	for _, entry := range c.SourcePriority {
		id, ok := known[strings.ToLower(strings.TrimSpace(entry))]
		if !ok {
			if logger != nil {
				logger.Warn("unknown source in priority list, skipping", slog.String("source", entry))
			}
			continue
		}
		order = append(order, id)
	}
	if len(order) == 0 {
		order = []model.SourceID{model.SourceMoSPI, model.SourceRBI, model.SourceNSE}
	}
	return order
}

// Build assembles the provider graph for the resolved mode. The synthetic
// baseline always backs the chain regardless of mode.
func (c Config) Build(cat *catalog.Catalog, logger *slog.Logger) *router.Router {
	if logger == nil {
		logger = slog.Default()
	}
	baseline := synthetic.New(cat)

	live := map[model.SourceID]providers.Provider{
		model.SourceMoSPI: mospi.New(cat, mospi.Config{BaseURL: c.MoSPIBaseURL, APIKey: c.MoSPIAPIKey}, logger),
		model.SourceRBI: rbi.New(cat, rbi.Config{
			BaseURL:      c.RBIBaseURL,
			ClientID:     c.RBIClientID,
			ClientSecret: c.RBIClientSecret,
		}, logger),
		model.SourceNSE: nse.New(cat, nse.Config{BaseURL: c.NSEBaseURL}, logger),
	}

	var order []model.SourceID
	switch c.ResolvedMode(logger) {
	case ModeHybrid:
		order = c.priorityOrder(logger)
	case ModeMoSPI:
		order = []model.SourceID{model.SourceMoSPI}
	case ModeRBI:
		order = []model.SourceID{model.SourceRBI}
	case ModeNSE:
		order = []model.SourceID{model.SourceNSE}
	default:
		order = nil
	}

	sources := make([]providers.Provider, 0, len(order))
	for _, id := range order {
		sources = append(sources, live[id])
	}
	allForProber := append(sources, baseline)

	prober := health.New(allForProber,
		health.WithTTL(c.ProbeTTL),
		health.WithProbeTimeout(c.ProbeTimeout),
		health.WithLogger(logger),
	)

	return router.New(order, sources, baseline, prober,
		router.WithStrictEmptySeries(c.StrictEmptySeries),
		router.WithLogger(logger),
	)
}
