package generator

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// TimelineObject is one entry of a semantic location history month file.
type TimelineObject struct {
	ActivitySegment *ActivitySegment `json:"activitySegment,omitempty"`
	PlaceVisit      *PlaceVisit      `json:"placeVisit,omitempty"`
}

type ActivitySegment struct {
	StartLocation *E7Location   `json:"startLocation,omitempty"`
	EndLocation   *E7Location   `json:"endLocation,omitempty"`
	Duration      Duration      `json:"duration"`
	WaypointPath  *WaypointPath `json:"waypointPath,omitempty"`
}

type PlaceVisit struct {
	Location E7Location `json:"location"`
	Duration Duration   `json:"duration"`
}

type E7Location struct {
	LatitudeE7  int64 `json:"latitudeE7"`
	LongitudeE7 int64 `json:"longitudeE7"`
}

type Duration struct {
	StartTimestamp string `json:"startTimestamp"`
	EndTimestamp   string `json:"endTimestamp,omitempty"`
}

type WaypointPath struct {
	Waypoints []E7Waypoint `json:"waypoints"`
}

type E7Waypoint struct {
	LatE7 int64 `json:"latE7"`
	LngE7 int64 `json:"lngE7"`
}

// MonthFile holds the timeline objects starting in one calendar month.
type MonthFile struct {
	Year    int
	Month   time.Month
	Objects []TimelineObject
}

// ActivityCard is one entry of the payment activity page.
type ActivityCard struct {
	Content string
	// MapQuery is "lat,lng" when the card links to a map.
	MapQuery string
}

// Stats counts what an importer should store from an export.
type Stats struct {
	Movements int
	Waypoints int
	Visits    int
	Payments  int
	Geotagged int
	Skipped   int
	// NoiseSegments counts segments without an end location.
	NoiseSegments int
}

// Export is a generated takeout tree.
type Export struct {
	Months []MonthFile
	Cards  []ActivityCard
	Stats  Stats
}

// Generator produces synthetic takeout exports.
type Generator struct {
	cfg  Config
	rand *rand.Rand
}

// New returns a configured Generator instance.
func New(cfg Config) *Generator {
	def := DefaultConfig()
	if cfg.Start.IsZero() {
		cfg.Start = def.Start
	}
	if cfg.Days <= 0 {
		cfg.Days = def.Days
	}
	if cfg.VisitsPerDay <= 0 {
		cfg.VisitsPerDay = def.VisitsPerDay
	}
	if cfg.PaymentsPerDay < 0 {
		cfg.PaymentsPerDay = 0
	}
	if cfg.CenterLat == 0 && cfg.CenterLng == 0 {
		cfg.CenterLat, cfg.CenterLng = def.CenterLat, def.CenterLng
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	cfg.Start = cfg.Start.UTC().Truncate(24 * time.Hour)

	return &Generator{
		cfg:  cfg,
		rand: rand.New(rand.NewSource(cfg.Seed)),
	}
}

type place struct {
	lat, lng float64
}

type stay struct {
	at         place
	start, end time.Time
}

// Generate synthesises the export day by day. It respects context cancellation.
func (g *Generator) Generate(ctx context.Context) (Export, error) {
	var (
		export  Export
		objects []TimelineObject
		starts  []time.Time
	)
	places := g.places(8)

	for d := 0; d < g.cfg.Days; d++ {
		if err := ctx.Err(); err != nil {
			return Export{}, err
		}
		day := g.cfg.Start.AddDate(0, 0, d)
		cursor := day.Add(time.Duration(7+g.rand.Intn(3)) * time.Hour)
		current := places[g.rand.Intn(len(places))]
		var stays []stay

		for v := 0; v < g.cfg.VisitsPerDay; v++ {
			end := cursor.Add(time.Duration(30+g.rand.Intn(90)) * time.Minute)
			stays = append(stays, stay{at: current, start: cursor, end: end})
			objects = append(objects, TimelineObject{PlaceVisit: &PlaceVisit{
				Location: toE7(current),
				Duration: Duration{StartTimestamp: isoTime(cursor), EndTimestamp: isoTime(end)},
			}})
			starts = append(starts, cursor)
			export.Stats.Visits++
			cursor = end

			if v == g.cfg.VisitsPerDay-1 {
				break
			}
			next := places[g.rand.Intn(len(places))]
			arrive := cursor.Add(time.Duration(10+g.rand.Intn(30)) * time.Minute)
			seg := g.segment(current, next, cursor, arrive)
			objects = append(objects, TimelineObject{ActivitySegment: seg})
			starts = append(starts, cursor)
			export.Stats.Movements++
			export.Stats.Waypoints += len(seg.WaypointPath.Waypoints)
			current, cursor = next, arrive.Add(time.Minute)

			if g.rand.Float64() < g.cfg.NoiseChance {
				// A segment without an end location is dropped by the importer.
				loc := toE7(current)
				objects = append(objects, TimelineObject{ActivitySegment: &ActivitySegment{
					StartLocation: &loc,
					Duration:      Duration{StartTimestamp: isoTime(cursor)},
				}})
				starts = append(starts, cursor)
				export.Stats.NoiseSegments++
			}
		}

		for p := 0; p < g.cfg.PaymentsPerDay; p++ {
			s := stays[g.rand.Intn(len(stays))]
			at := s.start.Add(time.Duration(g.rand.Int63n(int64(s.end.Sub(s.start)) + 1))).Truncate(time.Second)
			export.Cards = append(export.Cards, g.paymentCard(at, s.at, &export.Stats))
		}
		if g.rand.Float64() < g.cfg.NoiseChance {
			export.Cards = append(export.Cards, ActivityCard{
				Content: "Viewed the rewards page " + cardTime(day.Add(21*time.Hour)),
			})
			export.Stats.Skipped++
		}
	}

	export.Months = groupByMonth(objects, starts)
	// The activity page lists the newest entry first.
	for i, j := 0, len(export.Cards)-1; i < j; i, j = i+1, j-1 {
		export.Cards[i], export.Cards[j] = export.Cards[j], export.Cards[i]
	}
	return export, nil
}

func (g *Generator) places(n int) []place {
	out := make([]place, n)
	for i := range out {
		out[i] = place{
			lat: g.cfg.CenterLat + (g.rand.Float64()-0.5)*0.1,
			lng: g.cfg.CenterLng + (g.rand.Float64()-0.5)*0.1,
		}
	}
	return out
}

func (g *Generator) segment(from, to place, start, end time.Time) *ActivitySegment {
	startLoc, endLoc := toE7(from), toE7(to)
	n := 2 + g.rand.Intn(5)
	path := &WaypointPath{Waypoints: make([]E7Waypoint, 0, n)}
	for i := 1; i <= n; i++ {
		f := float64(i) / float64(n+1)
		p := toE7(place{lat: from.lat + (to.lat-from.lat)*f, lng: from.lng + (to.lng-from.lng)*f})
		path.Waypoints = append(path.Waypoints, E7Waypoint{LatE7: p.LatitudeE7, LngE7: p.LongitudeE7})
	}
	return &ActivitySegment{
		StartLocation: &startLoc,
		EndLocation:   &endLoc,
		Duration:      Duration{StartTimestamp: isoTime(start), EndTimestamp: isoTime(end)},
		WaypointPath:  path,
	}
}

var (
	sentVerbs      = []string{"Paid", "Sent", "Used Google Pay to pay"}
	counterparties = []string{"Cafe Coffee Day", "Namma Metro", "BigBasket", "Asha Rao", "Ravi Kumar"}
)

func (g *Generator) paymentCard(at time.Time, where place, stats *Stats) ActivityCard {
	amount := decimal.New(int64(1000+g.rand.Intn(499000)), -2)
	who := counterparties[g.rand.Intn(len(counterparties))]

	var content string
	if g.rand.Intn(4) == 0 {
		content = fmt.Sprintf("Received ₹%s from %s %s", formatAmount(amount), who, cardTime(at))
	} else {
		verb := sentVerbs[g.rand.Intn(len(sentVerbs))]
		content = fmt.Sprintf("%s ₹%s to %s %s", verb, formatAmount(amount), who, cardTime(at))
	}

	card := ActivityCard{Content: content}
	stats.Payments++
	if g.rand.Float64() < g.cfg.GeotagChance {
		card.MapQuery = fmt.Sprintf("%.7f,%.7f", where.lat, where.lng)
		stats.Geotagged++
	}
	return card
}

// formatAmount renders amounts the way the activity page does, with
// thousands separators and two decimals.
func formatAmount(d decimal.Decimal) string {
	fixed := d.StringFixed(2)
	whole, frac := fixed[:len(fixed)-3], fixed[len(fixed)-3:]
	var out []byte
	for i := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, whole[i])
	}
	return string(out) + frac
}

func groupByMonth(objects []TimelineObject, starts []time.Time) []MonthFile {
	index := make(map[string]int)
	var months []MonthFile
	for i, obj := range objects {
		t := starts[i]
		key := fmt.Sprintf("%04d-%02d", t.Year(), t.Month())
		m, ok := index[key]
		if !ok {
			m = len(months)
			index[key] = m
			months = append(months, MonthFile{Year: t.Year(), Month: t.Month()})
		}
		months[m].Objects = append(months[m].Objects, obj)
	}
	sort.Slice(months, func(i, j int) bool {
		if months[i].Year != months[j].Year {
			return months[i].Year < months[j].Year
		}
		return months[i].Month < months[j].Month
	})
	return months
}

func toE7(p place) E7Location {
	return E7Location{
		LatitudeE7:  int64(math.Round(p.lat * 1e7)),
		LongitudeE7: int64(math.Round(p.lng * 1e7)),
	}
}

func isoTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

func cardTime(t time.Time) string {
	return t.UTC().Format("Jan 2, 2006, 3:04:05 PM") + " UTC"
}
