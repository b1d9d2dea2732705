package generator

import "time"

// Config drives the synthetic takeout generator.
type Config struct {
	Start          time.Time
	Days           int
	VisitsPerDay   int
	PaymentsPerDay int
	// GeotagChance is the share of payment cards carrying a map link.
	GeotagChance float64
	// NoiseChance is the share of extra records a real export carries that the
	// importer must skip: informational cards and segments without an end.
	NoiseChance float64
	CenterLat   float64
	CenterLng   float64
	Seed        int64
}

// DefaultConfig returns one month of activity around Bengaluru.
func DefaultConfig() Config {
	return Config{
		Start:          time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC),
		Days:           31,
		VisitsPerDay:   4,
		PaymentsPerDay: 3,
		GeotagChance:   0.3,
		NoiseChance:    0.1,
		CenterLat:      12.9716,
		CenterLng:      77.5946,
		Seed:           42,
	}
}
