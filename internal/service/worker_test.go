package service

import (
	"context"
	"errors"
	"testing"

	"github.com/vanshika/lifetrace/internal/domain"
	"github.com/vanshika/lifetrace/internal/logging"
)

func TestBulkImporterCreatesUsersOncePerName(t *testing.T) {
	store := newMemStore()
	imports := NewImportService(store, nil, logging.Discard())
	users := NewTimelineService(store, logging.Discard())

	first, second, third := t.TempDir(), t.TempDir(), t.TempDir()
	writeLocationHistory(t, first, map[string]string{"2023/2023_JANUARY.json": visitJanuary})
	writeLocationHistory(t, second, map[string]string{"2023/2023_JANUARY.json": segmentsJanuary})
	writeActivity(t, third, card(`Paid $12.50 at Shop X · Jan 5, 2023, 3:15:00 PM UTC`, ""))

	jobs := []ImportJob{
		{UserName: "ana", Root: first},
		{UserName: "ben", Root: second},
		{UserName: "ana", Root: third},
	}
	outcomes, err := NewBulkImporter(imports, users, 2).Import(context.Background(), jobs)
	if err != nil {
		t.Fatalf("bulk import: %v", err)
	}

	if len(store.users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(store.users))
	}
	if outcomes[0].Job.UserID != outcomes[2].Job.UserID || outcomes[0].Job.UserID == outcomes[1].Job.UserID {
		t.Fatalf("unexpected user assignment %+v", outcomes)
	}
	if outcomes[0].Report.Visits != 1 || outcomes[1].Report.Movements != 1 {
		t.Fatalf("unexpected reports %+v / %+v", outcomes[0].Report, outcomes[1].Report)
	}
	// The third job runs after the first on the same worker, so the visit is there to match.
	if outcomes[2].Report.Matched != 1 {
		t.Fatalf("expected the payment to match the earlier visit, got %+v", outcomes[2].Report)
	}
}

func TestBulkImporterAggregatesFailures(t *testing.T) {
	store := newMemStore()
	imports := NewImportService(store, nil, logging.Discard())
	users := NewTimelineService(store, logging.Discard())

	good := t.TempDir()
	writeLocationHistory(t, good, map[string]string{"2023/2023_JANUARY.json": visitJanuary})

	jobs := []ImportJob{
		{UserName: "ana", Root: t.TempDir()},
		{UserName: "ben", Root: good},
		{UserName: "cleo", Root: t.TempDir()},
	}
	outcomes, err := NewBulkImporter(imports, users, 0).Import(context.Background(), jobs)

	var taskErr *TaskError
	if !errors.As(err, &taskErr) || len(taskErr.Errors) != 2 {
		t.Fatalf("expected 2 aggregated errors, got %v", err)
	}
	if !errors.Is(outcomes[0].Err, domain.ErrNotFound) || outcomes[1].Err != nil {
		t.Fatalf("unexpected outcomes %+v", outcomes)
	}
}

func TestBulkImporterRejectsNamelessJob(t *testing.T) {
	store := newMemStore()
	bi := NewBulkImporter(NewImportService(store, nil, logging.Discard()), NewTimelineService(store, logging.Discard()), 1)

	_, err := bi.Import(context.Background(), []ImportJob{{Root: t.TempDir()}})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTaskErrorMessage(t *testing.T) {
	var te TaskError
	if te.asError() != nil {
		t.Fatal("expected empty task error to be nil")
	}
	te.append(errors.New("a"))
	te.append(nil)
	te.append(errors.New("b"))
	if got := te.Error(); got != "multiple errors: a; b;" {
		t.Fatalf("unexpected message %q", got)
	}
}
