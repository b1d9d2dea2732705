package takeout

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/vanshika/lifetrace/internal/domain"
)

func TestToDegrees(t *testing.T) {
	cases := []int64{0, 1, -1, 123456789, -987654321, 1800000000, -1800000000, 10000000}
	for _, c := range cases {
		got := ToDegrees(c)
		want := float64(c) / 1e7
		if math.Abs(got-want) > 1e-12 {
			t.Errorf("ToDegrees(%d) = %v, want %v", c, got, want)
		}
	}
	if got := ToDegrees(10000000); got != 1.0 {
		t.Errorf("expected exactly 1.0, got %v", got)
	}
}

func TestParseTimestamp(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"Jan 5, 2023, 3:15:00 PM UTC", time.Date(2023, 1, 5, 15, 15, 0, 0, time.UTC)},
		{"Jan 5, 2023, 11:05:09 AM GMT", time.Date(2023, 1, 5, 11, 5, 9, 0, time.UTC)},
		{"Sep 5, 2023, 3:15:00 PM PDT", time.Date(2023, 9, 5, 22, 15, 0, 0, time.UTC)},
		{"5 Jan 2023, 15:15:00 IST", time.Date(2023, 1, 5, 9, 45, 0, 0, time.UTC)},
		{"05 Jan 2023, 15:15:00 UTC", time.Date(2023, 1, 5, 15, 15, 0, 0, time.UTC)},
		{"5 Jan 2023, 15:15:00 GMT+05:30", time.Date(2023, 1, 5, 9, 45, 0, 0, time.UTC)},
		{"5 Sept 2023, 15:15:00 IST", time.Date(2023, 9, 5, 9, 45, 0, 0, time.UTC)},
		{"Sept 5, 2023, 3:15:00 PM IST", time.Date(2023, 9, 5, 9, 45, 0, 0, time.UTC)},
		{"September 5, 2023, 3:15:00 PM UTC", time.Date(2023, 9, 5, 15, 15, 0, 0, time.UTC)},
		{"2023-01-05T15:00:00Z", time.Date(2023, 1, 5, 15, 0, 0, 0, time.UTC)},
		{"2023-01-05T15:00:00.123Z", time.Date(2023, 1, 5, 15, 0, 0, 123000000, time.UTC)},
		{"2023-01-05T15:00:00+05:30", time.Date(2023, 1, 5, 9, 30, 0, 0, time.UTC)},
		{"2023-01-05T15:00:00", time.Date(2023, 1, 5, 15, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got, err := ParseTimestamp(tc.in)
		if err != nil {
			t.Errorf("ParseTimestamp(%q) unexpected error: %v", tc.in, err)
			continue
		}
		if !got.Equal(tc.want) || got.Location() != time.UTC {
			t.Errorf("ParseTimestamp(%q) = %v, want %v in UTC", tc.in, got, tc.want)
		}
	}
}

func TestParseTimestampRejectsUnknownFormats(t *testing.T) {
	for _, in := range []string{"", "yesterday", "2023/01/05 15:00", "Jan 5 2023 3pm"} {
		_, err := ParseTimestamp(in)
		var pe *domain.ParseError
		if !errors.As(err, &pe) {
			t.Errorf("ParseTimestamp(%q) expected *domain.ParseError, got %v", in, err)
		}
	}
}

func TestParseTimestampUnknownZoneIsUTC(t *testing.T) {
	ts, known, err := parseTimestamp("Jan 5, 2023, 3:15:00 PM XYZ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if known {
		t.Error("expected zone to be reported unknown")
	}
	if !ts.Equal(time.Date(2023, 1, 5, 15, 15, 0, 0, time.UTC)) {
		t.Errorf("unexpected instant %v", ts)
	}
}

func TestFindTimestamp(t *testing.T) {
	cases := map[string]string{
		"Paid $12.50 at Shop X · Jan 5, 2023, 3:15:00 PM UTC": "Jan 5, 2023, 3:15:00 PM UTC",
		"Received ₹500.00 5 Jan 2023, 15:15:00 IST":           "5 Jan 2023, 15:15:00 IST",
		"Received ₹500.00 5 Jan 2023, 15:15:00 GMT+05:30 ok":  "5 Jan 2023, 15:15:00 GMT+05:30",
		"Paid ₹90 to Stall Sept 5, 2023, 3:15:00 PM IST":      "Sept 5, 2023, 3:15:00 PM IST",
	}
	for text, want := range cases {
		got, ok := FindTimestamp(text)
		if !ok || got != want {
			t.Errorf("FindTimestamp(%q) = %q, %v; want %q", text, got, ok, want)
		}
	}
	if _, ok := FindTimestamp("Sent ₹20 to Alex"); ok {
		t.Error("expected no timestamp")
	}
}

func TestFindTimestampKeepsZoneOffset(t *testing.T) {
	raw, ok := FindTimestamp("Paid ₹90 to Stall Jan 5, 2023, 3:15:00 PM GMT+05:30")
	if !ok {
		t.Fatal("expected a timestamp")
	}
	ts, known, err := parseTimestamp(raw)
	if err != nil || !known {
		t.Fatalf("parseTimestamp(%q) = %v, known %v", raw, err, known)
	}
	if !ts.Equal(time.Date(2023, 1, 5, 9, 45, 0, 0, time.UTC)) {
		t.Errorf("unexpected instant %v", ts)
	}
}
