package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"macropulse/internal/catalog"
	"macropulse/internal/config"
	"macropulse/internal/model"
	"macropulse/internal/providers"
	"macropulse/internal/series"
	"macropulse/internal/store/sqlite"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "show":
		show(os.Args[2:])
	case "probe":
		probe(os.Args[2:])
	case "seed":
		seed(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: dashboard <command> [options]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  show   fetch and print latest indicator values")
	fmt.Fprintln(os.Stderr, "  probe  print per-source availability")
	fmt.Fprintln(os.Stderr, "  seed   write the built-in catalog to sqlite")
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func show(args []string) {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	mode := fs.String("mode", "", "provider mode override (mock|mospi|rbi|nse|hybrid)")
	category := fs.String("category", "", "filter by category")
	transform := fs.String("transform", "", "series transform for change column (yoy|mom)")
	dbPath := fs.String("db", "", "sqlite catalog path (empty uses the built-in catalog)")
	asJSON := fs.Bool("json", false, "emit JSON instead of a table")
	verbose := fs.Bool("verbose", false, "debug logging")
	fs.Parse(args)

	logger := newLogger(*verbose)
	if err := runShow(*mode, *category, *transform, *dbPath, *asJSON, logger); err != nil {
		fmt.Fprintln(os.Stderr, "show failed:", err)
		os.Exit(1)
	}
}

func runShow(mode, category, transform, dbPath string, asJSON bool, logger *slog.Logger) error {
	cfg, err := config.Parse()
	if err != nil {
		return err
	}
	if strings.TrimSpace(mode) != "" {
		cfg.Mode = mode
	}
	if strings.TrimSpace(dbPath) != "" {
		cfg.CatalogDBPath = dbPath
	}

	cat, err := loadCatalog(cfg.CatalogDBPath)
	if err != nil {
		return err
	}

	r := cfg.Build(cat, logger)
	ctx := context.Background()

	indicators, err := r.ListIndicators(ctx, catalog.Filter{Category: model.Category(category)})
	if err != nil {
		return err
	}

	type card struct {
		ID        string     `json:"id"`
		Name      string     `json:"name"`
		Date      string     `json:"date"`
		Value     float64    `json:"value"`
		ChangePct *float64   `json:"change_pct,omitempty"`
		Status    string     `json:"status,omitempty"`
		Source    string     `json:"source"`
		NextDue   *time.Time `json:"next_due,omitempty"`
	}

	cards := make([]card, 0, len(indicators))
	for _, ind := range indicators {
		observation, err := r.Latest(ctx, ind.ID)
		if err != nil {
			return fmt.Errorf("latest %s: %w", ind.ID, err)
		}

		entry := card{
			ID:    ind.ID,
			Name:  ind.Name,
			Date:  observation.Date,
			Value: observation.Value,
		}

		if t := parseTransform(transform); t != "" && ind.SupportsTransform(t) {
			points, err := r.Series(ctx, ind.ID, providers.SeriesOptions{Transform: t})
			if err == nil && len(points) > 0 {
				change := points[len(points)-1].Value
				entry.ChangePct = &change
				entry.Status = string(series.ClassifyStatus(change))
			}
		}

		if next, err := r.NextScheduledUpdate(ctx, ind.ID); err == nil && next != nil {
			entry.NextDue = next
		}
		entry.Source = string(r.LastUsedSource(ind.ID).ID)
		cards = append(cards, entry)
	}

	if asJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(cards)
	}

	for _, entry := range cards {
		line := fmt.Sprintf("%-20s %-10s %12.2f", entry.ID, entry.Date, entry.Value)
		if entry.ChangePct != nil {
			line += fmt.Sprintf("  %+6.2f%% %-8s", *entry.ChangePct, entry.Status)
		}
		line += fmt.Sprintf("  [%s]", entry.Source)
		fmt.Println(line)
	}
	fmt.Printf("show complete (indicators=%d)\n", len(cards))
	return nil
}

func probe(args []string) {
	fs := flag.NewFlagSet("probe", flag.ExitOnError)
	mode := fs.String("mode", "hybrid", "provider mode")
	verbose := fs.Bool("verbose", false, "debug logging")
	fs.Parse(args)

	logger := newLogger(*verbose)
	cfg, err := config.Parse()
	if err != nil {
		fmt.Fprintln(os.Stderr, "probe failed:", err)
		os.Exit(1)
	}
	cfg.Mode = *mode

	cat, err := loadCatalog(cfg.CatalogDBPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "probe failed:", err)
		os.Exit(1)
	}

	r := cfg.Build(cat, logger)
	ctx := context.Background()

	// Resolving any indicator warms the prober for every source.
	for _, ind := range cat.List(catalog.Filter{}) {
		r.Resolve(ctx, ind.ID)
		break
	}

	for id, record := range r.SourceHealth() {
		checked := "-"
		if !record.CheckedAt.IsZero() {
			checked = record.CheckedAt.Format(time.RFC3339)
		}
		fmt.Printf("%-12s %-8s last-check=%s\n", id, record.State, checked)
	}
}

func seed(args []string) {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	dbPath := fs.String("db", "macropulse.db", "sqlite catalog path")
	fs.Parse(args)

	st, err := sqlite.New(*dbPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "seed failed:", err)
		os.Exit(1)
	}
	defer st.Close()

	indicators := catalog.Default().List(catalog.Filter{})
	if err := st.SeedIndicators(context.Background(), indicators); err != nil {
		fmt.Fprintln(os.Stderr, "seed failed:", err)
		os.Exit(1)
	}
	fmt.Printf("seed complete (indicators=%d db=%s)\n", len(indicators), *dbPath)
}

func loadCatalog(dbPath string) (*catalog.Catalog, error) {
	if strings.TrimSpace(dbPath) == "" {
		return catalog.Default(), nil
	}
	st, err := sqlite.New(dbPath)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	indicators, err := st.ListIndicators(context.Background())
	if err != nil {
		return nil, err
	}
	if len(indicators) == 0 {
		return catalog.Default(), nil
	}
	return catalog.New(indicators), nil
}

func parseTransform(value string) model.Transform {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "yoy":
		return model.TransformYoY
	case "mom":
		return model.TransformMoM
	default:
		return ""
	}
}
