// Package takeout reads the location history and payment activity exports
// into canonical timeline records.
package takeout

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/vanshika/lifetrace/internal/domain"
)

// e7Scale is the fixed-point factor used by the location history export.
const e7Scale = 1e7

var (
	// "Jan 5, 2023, 3:15:00 PM UTC"; the zone may carry an offset ("GMT+05:30").
	monthFirstPattern = regexp.MustCompile(`\w+\s\d{1,2},\s\d{4},\s\d{1,2}:\d{2}:\d{2}\s[APM]+\s[\w+:-]+`)
	// "5 Jan 2023, 15:15:00 IST"
	dayFirstPattern = regexp.MustCompile(`\d{1,2}\s\w+\s\d{4},\s\d{2}:\d{2}:\d{2}\s[\w+:-]+`)

	// en-GB and en-IN exports abbreviate September as "Sept".
	septPattern = regexp.MustCompile(`\bSept\b`)

	offsetZonePattern = regexp.MustCompile(`^(?:GMT|UTC)([+-])(\d{1,2})(?::?(\d{2}))?$`)

	errUnrecognizedTimestamp = errors.New("unrecognized timestamp format")
)

var localeLayouts = []string{
	"Jan 2, 2006, 3:04:05 PM",
	"January 2, 2006, 3:04:05 PM",
	"2 Jan 2006, 15:04:05",
	"2 January 2006, 15:04:05",
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
}

// zoneOffsets resolves the abbreviations seen in activity exports. Abbreviations
// are ambiguous in general; this table picks the common reading.
var zoneOffsets = map[string]int{
	"UTC":  0,
	"GMT":  0,
	"Z":    0,
	"IST":  5*3600 + 1800,
	"PST":  -8 * 3600,
	"PDT":  -7 * 3600,
	"MST":  -7 * 3600,
	"MDT":  -6 * 3600,
	"CST":  -6 * 3600,
	"CDT":  -5 * 3600,
	"EST":  -5 * 3600,
	"EDT":  -4 * 3600,
	"BST":  1 * 3600,
	"CET":  1 * 3600,
	"CEST": 2 * 3600,
	"JST":  9 * 3600,
	"SGT":  8 * 3600,
	"AEST": 10 * 3600,
	"AEDT": 11 * 3600,
}

// ToDegrees converts an E7 fixed-point coordinate to decimal degrees.
func ToDegrees(e7 int64) float64 {
	return float64(e7) / e7Scale
}

// ParseTimestamp reads an ISO-8601 instant or one of the two activity export
// formats and returns it in UTC.
func ParseTimestamp(text string) (time.Time, error) {
	ts, _, err := parseTimestamp(text)
	return ts, err
}

// FindTimestamp returns the first activity-export timestamp embedded in text.
func FindTimestamp(text string) (string, bool) {
	if match := monthFirstPattern.FindString(text); match != "" {
		return match, true
	}
	if match := dayFirstPattern.FindString(text); match != "" {
		return match, true
	}
	return "", false
}

// parseTimestamp also reports whether the zone was recognised; unknown zone
// abbreviations are read as UTC.
func parseTimestamp(text string) (time.Time, bool, error) {
	text = strings.TrimSpace(text)
	for _, layout := range isoLayouts {
		if ts, err := time.Parse(layout, text); err == nil {
			return ts.UTC(), true, nil
		}
	}

	idx := strings.LastIndexByte(text, ' ')
	if idx > 0 {
		body, zone := septPattern.ReplaceAllString(text[:idx], "Sep"), text[idx+1:]
		loc, known := zoneLocation(zone)
		for _, layout := range localeLayouts {
			if ts, err := time.ParseInLocation(layout, body, loc); err == nil {
				return ts.UTC(), known, nil
			}
		}
	}

	return time.Time{}, false, &domain.ParseError{Source: "timestamp", Record: text, Err: errUnrecognizedTimestamp}
}

func zoneLocation(zone string) (*time.Location, bool) {
	zone = strings.ToUpper(strings.TrimSpace(zone))
	if offset, ok := zoneOffsets[zone]; ok {
		if offset == 0 {
			return time.UTC, true
		}
		return time.FixedZone(zone, offset), true
	}
	if m := offsetZonePattern.FindStringSubmatch(zone); m != nil {
		hours, _ := strconv.Atoi(m[2])
		minutes, _ := strconv.Atoi(m[3])
		offset := hours*3600 + minutes*60
		if m[1] == "-" {
			offset = -offset
		}
		return time.FixedZone(zone, offset), true
	}
	return time.UTC, false
}
