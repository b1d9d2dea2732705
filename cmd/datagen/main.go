package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/vanshika/lifetrace/internal/generator"
)

func main() {
	cfg := generator.DefaultConfig()
	var (
		start          = flag.String("start", cfg.Start.Format("2006-01-02"), "first generated day (YYYY-MM-DD, UTC)")
		days           = flag.Int("days", cfg.Days, "number of days to generate")
		visitsPerDay   = flag.Int("visits-per-day", cfg.VisitsPerDay, "place visits per day")
		paymentsPerDay = flag.Int("payments-per-day", cfg.PaymentsPerDay, "payment cards per day")
		geotagChance   = flag.Float64("geotag-chance", cfg.GeotagChance, "probability that a payment card carries a map link")
		noiseChance    = flag.Float64("noise-chance", cfg.NoiseChance, "probability of emitting records the importer must skip")
		centerLat      = flag.Float64("lat", cfg.CenterLat, "latitude the generated places cluster around")
		centerLng      = flag.Float64("lng", cfg.CenterLng, "longitude the generated places cluster around")
		seed           = flag.Int64("seed", cfg.Seed, "random seed for deterministic generation")
		outputDir      = flag.String("output-dir", "takeout", "takeout root to write the export into")
	)
	flag.Parse()

	startDay, err := time.Parse("2006-01-02", *start)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -start %q: %v\n", *start, err)
		os.Exit(1)
	}

	genCfg := generator.Config{
		Start:          startDay,
		Days:           *days,
		VisitsPerDay:   *visitsPerDay,
		PaymentsPerDay: *paymentsPerDay,
		GeotagChance:   clampProbability(*geotagChance),
		NoiseChance:    clampProbability(*noiseChance),
		CenterLat:      *centerLat,
		CenterLng:      *centerLng,
		Seed:           *seed,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	export, err := generator.New(genCfg).Generate(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generation failed: %v\n", err)
		os.Exit(1)
	}

	if err := generator.WriteExport(export, *outputDir); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write export: %v\n", err)
		os.Exit(1)
	}

	s := export.Stats
	fmt.Fprintf(os.Stdout, "Generated %d movements (%d waypoints), %d visits and %d payments (%d geotagged, %d noise records) into %s\n",
		s.Movements, s.Waypoints, s.Visits, s.Payments, s.Geotagged, s.Skipped+s.NoiseSegments, *outputDir)
}

func clampProbability(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
