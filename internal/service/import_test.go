package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vanshika/lifetrace/internal/domain"
	"github.com/vanshika/lifetrace/internal/logging"
)

const visitJanuary = `{"timelineObjects": [
  {"placeVisit": {
    "location": {"latitudeE7": 10000000, "longitudeE7": 20000000},
    "duration": {"startTimestamp": "2023-01-05T15:00:00Z", "endTimestamp": "2023-01-05T15:30:00Z"}
  }}
]}`

const segmentsJanuary = `{"timelineObjects": [
  {"activitySegment": {
    "startLocation": {"latitudeE7": 515000000, "longitudeE7": -1200000},
    "endLocation": {"latitudeE7": 515100000, "longitudeE7": -1300000},
    "duration": {"startTimestamp": "2023-01-05T08:00:00.000Z", "endTimestamp": "2023-01-05T08:40:00.000Z"},
    "waypointPath": {"waypoints": [
      {"latE7": 515010000, "lngE7": -1210000},
      {"latE7": 515020000, "lngE7": -1220000},
      {"latE7": 515030000, "lngE7": -1230000}
    ]}
  }},
  {"activitySegment": {
    "startLocation": {"latitudeE7": 515000000, "longitudeE7": -1200000},
    "duration": {"startTimestamp": "2023-01-05T09:00:00.000Z", "endTimestamp": "2023-01-05T09:40:00.000Z"},
    "waypointPath": {"waypoints": [{"latE7": 1, "lngE7": 1}]}
  }}
]}`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// writeLocationHistory writes files keyed by "<year>/<file>.json".
func writeLocationHistory(t *testing.T, root string, files map[string]string) {
	t.Helper()
	dir := filepath.Join(root, "Location History", "Semantic Location History")
	for name, content := range files {
		writeFile(t, filepath.Join(dir, filepath.FromSlash(name)), content)
	}
}

func writeActivity(t *testing.T, root string, cards ...string) {
	t.Helper()
	var b strings.Builder
	b.WriteString(`<html><body><div class="mdl-grid">`)
	for _, c := range cards {
		b.WriteString(c)
	}
	b.WriteString(`</div></body></html>`)
	writeFile(t, filepath.Join(root, "Google Pay", "My Activity", "My Activity.html"), b.String())
}

func card(content, caption string) string {
	return `<div class="outer-cell mdl-cell mdl-cell--12-col mdl-shadow--2dp"><div class="mdl-grid">` +
		`<div class="content-cell mdl-cell mdl-cell--6-col mdl-typography--body-1">` + content + `</div>` +
		`<div class="content-cell mdl-cell mdl-cell--12-col mdl-typography--caption">` + caption + `</div>` +
		`</div></div>`
}

func newImportFixture(t *testing.T) (*ImportService, *memStore, int64) {
	t.Helper()
	store := newMemStore()
	id, err := store.InsertUser(context.Background(), "ana")
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
	svc := NewImportService(store, nil, logging.Discard())
	svc.newRunID = func() string { return "run-1" }
	return svc, store, id
}

func TestImportTakeoutMatchesPaymentToVisit(t *testing.T) {
	svc, store, userID := newImportFixture(t)
	root := t.TempDir()
	writeLocationHistory(t, root, map[string]string{"2023/2023_JANUARY.json": visitJanuary})
	writeActivity(t, root, card(`Paid $12.50 at Shop X · Jan 5, 2023, 3:15:00 PM UTC`, ""))

	report, err := svc.ImportTakeout(context.Background(), userID, root)
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	if report.RunID != "run-1" || report.Visits != 1 || report.Payments != 1 || report.Matched != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if len(store.payments) != 1 {
		t.Fatalf("expected 1 stored payment, got %d", len(store.payments))
	}
	tx := store.payments[0]
	if tx.Type != domain.TransactionSent || !tx.Amount.Equal(decimal.RequireFromString("12.50")) || tx.UserID != userID {
		t.Fatalf("unexpected transaction %+v", tx)
	}
	if tx.Location == nil || *tx.Location != (domain.Coordinates{Lat: 1.0, Lng: 2.0}) {
		t.Fatalf("expected location (1.0, 2.0), got %v", tx.Location)
	}
}

func TestImportLocationHistoryStoresWaypointsUnderMovement(t *testing.T) {
	svc, store, userID := newImportFixture(t)
	root := t.TempDir()
	writeLocationHistory(t, root, map[string]string{"2023/2023_JANUARY.json": segmentsJanuary})

	report, err := svc.ImportLocationHistory(context.Background(), userID, root)
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	// The segment without an end location is counted but not warned about.
	if report.Movements != 1 || report.Waypoints != 3 || report.Skipped != 1 || len(report.Warnings) != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	movementID := store.movements[0].ID
	for i, wp := range store.waypoints {
		if wp.Order != i+1 || wp.MovementID != movementID || wp.UserID != userID {
			t.Fatalf("waypoint %d = %+v", i, wp)
		}
	}
}

func TestImportLocationHistoryMalformedFileAbortsWithoutRollback(t *testing.T) {
	svc, store, userID := newImportFixture(t)
	root := t.TempDir()
	writeLocationHistory(t, root, map[string]string{
		"2023/2023_JANUARY.json":  visitJanuary,
		"2023/2023_FEBRUARY.json": `{"timelineObjects": [`,
		"2024/2024_JANUARY.json":  segmentsJanuary,
	})

	report, err := svc.ImportLocationHistory(context.Background(), userID, root)
	if !domain.IsFatalParse(err) {
		t.Fatalf("expected fatal parse error, got %v", err)
	}
	if report.Visits != 1 || len(store.visits) != 1 {
		t.Fatalf("expected the January visit to stay stored, report %+v", report)
	}
	if len(store.movements) != 0 {
		t.Fatal("expected files after the malformed one to be left unread")
	}
}

func TestImportRejectsBadRequests(t *testing.T) {
	svc, _, userID := newImportFixture(t)
	ctx := context.Background()

	if _, err := svc.ImportPayments(ctx, 0, t.TempDir()); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.ImportPayments(ctx, 42, t.TempDir()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected unknown user to be not found, got %v", err)
	}
	if _, err := svc.ImportLocationHistory(ctx, userID, t.TempDir()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected missing export to be not found, got %v", err)
	}
	if _, err := svc.ImportTakeout(ctx, userID, t.TempDir()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected empty takeout to be not found, got %v", err)
	}
}

func TestImportPaymentsKeepsGeotagsAndUnresolved(t *testing.T) {
	svc, store, userID := newImportFixture(t)
	root := t.TempDir()
	writeActivity(t, root,
		card(`Received $40.00<br>Jan 5, 2023, 9:00:00 AM UTC`,
			`<b>Locations:</b><br><a href="https://www.google.com/maps/search/?api=1&amp;query=12.9716,77.5946">area</a><br>`),
		card(`Sent $5.00<br>Jan 6, 2023, 9:00:00 AM UTC`, ""),
		card(`Viewed the offers page<br>Jan 6, 2023, 9:05:00 AM UTC`, ""),
		card(`Requested $9.00<br>Jan 6, 2023, 9:10:00 AM UTC`, ""),
	)

	report, err := svc.ImportPayments(context.Background(), userID, root)
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	if report.Payments != 2 || report.Geotagged != 1 || report.Unresolved != 1 || report.Matched != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.Skipped != 2 || len(report.Warnings) != 1 {
		t.Fatalf("expected 2 skipped cards and 1 warning, got %+v", report)
	}
	if store.payments[0].Location == nil || store.payments[0].Location.Lat != 12.9716 {
		t.Fatalf("expected geotag location, got %v", store.payments[0].Location)
	}
	if store.payments[1].Location != nil {
		t.Fatal("expected unresolved location to stay nil")
	}
}

func TestImportPaymentsSkipsIntervalLookupWhenAllGeotagged(t *testing.T) {
	svc, store, userID := newImportFixture(t)
	root := t.TempDir()
	writeActivity(t, root, card(`Paid $3.00<br>Jan 5, 2023, 9:00:00 AM UTC`,
		`<a href="https://www.google.com/maps/search/?api=1&amp;query=1.5,2.5">area</a>`))

	if _, err := svc.ImportPayments(context.Background(), userID, root); err != nil {
		t.Fatalf("import: %v", err)
	}
	if store.intervalCalls != 0 {
		t.Fatalf("expected no interval lookup, got %d", store.intervalCalls)
	}
}

func TestImportPaymentsSurfacesStoreErrors(t *testing.T) {
	svc, store, userID := newImportFixture(t)
	store.paymentErr = errors.New("disk full")
	root := t.TempDir()
	writeActivity(t, root, card(`Paid $3.00<br>Jan 5, 2023, 9:00:00 AM UTC`, ""))

	report, err := svc.ImportPayments(context.Background(), userID, root)
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected store error, got %v", err)
	}
	if report.Payments != 0 {
		t.Fatalf("expected no payments counted, got %d", report.Payments)
	}
}

func TestImportTakeoutWarnsAboutMissingPart(t *testing.T) {
	svc, _, userID := newImportFixture(t)
	root := t.TempDir()
	writeLocationHistory(t, root, map[string]string{"2023/2023_JANUARY.json": visitJanuary})

	report, err := svc.ImportTakeout(context.Background(), userID, root)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if report.Visits != 1 || len(report.Warnings) != 1 || !strings.Contains(report.Warnings[0], "payment activity") {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestImportReportCapsWarnings(t *testing.T) {
	var report ImportReport
	for i := 0; i < maxReportWarnings+5; i++ {
		report.warn("w")
	}
	if len(report.Warnings) != maxReportWarnings || report.WarningsDropped != 5 {
		t.Fatalf("got %d warnings, %d dropped", len(report.Warnings), report.WarningsDropped)
	}
}
