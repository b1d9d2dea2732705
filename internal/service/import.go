package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/vanshika/lifetrace/internal/domain"
	"github.com/vanshika/lifetrace/internal/takeout"
)

const maxReportWarnings = 100

// ImportReport summarises one import run.
type ImportReport struct {
	RunID     string
	UserID    int64
	Movements int
	Waypoints int
	Visits    int
	Payments  int
	// Geotagged, Matched and Unresolved partition Payments by how the
	// location was obtained.
	Geotagged  int
	Matched    int
	Unresolved int
	// Skipped counts records and cards that produced nothing.
	Skipped  int
	Warnings []string
	// WarningsDropped counts warnings beyond the reported limit.
	WarningsDropped int
}

func (r *ImportReport) warn(msg string) {
	if len(r.Warnings) >= maxReportWarnings {
		r.WarningsDropped++
		return
	}
	r.Warnings = append(r.Warnings, msg)
}

// ImportService loads takeout exports into the timeline store.
type ImportService struct {
	store    TimelineStore
	location *takeout.LocationHistoryParser
	payments *takeout.PaymentActivityParser
	logger   *slog.Logger
	newRunID func() string
}

// NewImportService wires an import service. A nil finder reads HTML exports.
func NewImportService(store TimelineStore, finder takeout.CardFinder, logger *slog.Logger) *ImportService {
	logger = logger.With("component", "import")
	return &ImportService{
		store:    store,
		location: takeout.NewLocationHistoryParser(logger),
		payments: takeout.NewPaymentActivityParser(finder, logger),
		logger:   logger,
		newRunID: uuid.NewString,
	}
}

// ImportLocationHistory stores every movement, waypoint and visit of the
// semantic location history under root. A malformed file aborts the run and
// leaves earlier files stored.
func (s *ImportService) ImportLocationHistory(ctx context.Context, userID int64, root string) (ImportReport, error) {
	report, logger, err := s.begin(ctx, userID, "location_history")
	if err != nil {
		return report, err
	}
	dir, err := takeout.Layout{Root: root}.SemanticLocationHistoryDir()
	if err != nil {
		return report, s.finish(logger, &report, err)
	}
	return report, s.finish(logger, &report, s.importLocationHistory(ctx, logger, dir, &report))
}

// ImportPayments parses the payment activity under root, resolves missing
// locations against the stored location history and stores the batch.
func (s *ImportService) ImportPayments(ctx context.Context, userID int64, root string) (ImportReport, error) {
	report, logger, err := s.begin(ctx, userID, "payments")
	if err != nil {
		return report, err
	}
	path, err := takeout.Layout{Root: root}.PaymentActivityFile()
	if err != nil {
		return report, s.finish(logger, &report, err)
	}
	return report, s.finish(logger, &report, s.importPayments(ctx, logger, path, &report))
}

// ImportTakeout imports the location history and then the payments of one
// takeout tree, so that payments can be matched against this run's intervals.
// A part missing from the tree is reported as a warning; the run fails with
// domain.ErrNotFound only when both are missing.
func (s *ImportService) ImportTakeout(ctx context.Context, userID int64, root string) (ImportReport, error) {
	report, logger, err := s.begin(ctx, userID, "takeout")
	if err != nil {
		return report, err
	}
	layout := takeout.Layout{Root: root}
	dir, dirErr := layout.SemanticLocationHistoryDir()
	path, pathErr := layout.PaymentActivityFile()
	if dirErr != nil && pathErr != nil {
		return report, s.finish(logger, &report, fmt.Errorf("takeout %s: %w", root, domain.ErrNotFound))
	}

	if dirErr != nil {
		report.warn(dirErr.Error())
	} else if err := s.importLocationHistory(ctx, logger, dir, &report); err != nil {
		return report, s.finish(logger, &report, err)
	}

	if pathErr != nil {
		report.warn(pathErr.Error())
		return report, s.finish(logger, &report, nil)
	}
	return report, s.finish(logger, &report, s.importPayments(ctx, logger, path, &report))
}

func (s *ImportService) begin(ctx context.Context, userID int64, kind string) (ImportReport, *slog.Logger, error) {
	report := ImportReport{RunID: s.newRunID(), UserID: userID}
	if userID <= 0 {
		return report, s.logger, fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return report, s.logger, fmt.Errorf("user %d: %w", userID, err)
	}
	logger := s.logger.With("run_id", report.RunID, "user_id", userID, "kind", kind)
	logger.Info("import started")
	return report, logger, nil
}

func (s *ImportService) finish(logger *slog.Logger, report *ImportReport, err error) error {
	if err != nil {
		logger.Error("import failed", "error", err,
			"movements", report.Movements, "visits", report.Visits, "payments", report.Payments)
		return err
	}
	logger.Info("import finished",
		"movements", report.Movements,
		"waypoints", report.Waypoints,
		"visits", report.Visits,
		"payments", report.Payments,
		"matched", report.Matched,
		"unresolved", report.Unresolved,
		"skipped", report.Skipped,
	)
	return nil
}

func (s *ImportService) importLocationHistory(ctx context.Context, logger *slog.Logger, dir string, report *ImportReport) error {
	sink := &storeSink{store: s.store, logger: logger, report: report}
	if err := s.location.Walk(ctx, dir, report.UserID, sink); err != nil {
		return fmt.Errorf("import location history: %w", err)
	}
	return nil
}

func (s *ImportService) importPayments(ctx context.Context, logger *slog.Logger, path string, report *ImportReport) error {
	result, err := s.payments.ParseFile(ctx, path, report.UserID)
	if err != nil {
		return fmt.Errorf("import payments: %w", err)
	}
	for _, w := range result.Warnings {
		report.warn(w.Error())
	}
	report.Skipped += result.Cards - len(result.Transactions)
	if len(result.Transactions) == 0 {
		logger.Info("no payment transactions found", "cards", result.Cards)
		return nil
	}

	var intervals []domain.LocationInterval
	if needsResolution(result.Transactions) {
		intervals, err = s.store.LocationIntervals(ctx, report.UserID)
		if err != nil {
			return fmt.Errorf("load location intervals: %w", err)
		}
	}
	res := ResolveLocations(result.Transactions, SortIntervals(intervals))

	if err := s.store.InsertPaymentTransactions(ctx, result.Transactions); err != nil {
		return fmt.Errorf("insert payment transactions: %w", err)
	}
	report.Payments += len(result.Transactions)
	report.Geotagged += res.Geotagged
	report.Matched += res.Matched
	report.Unresolved += res.Unresolved
	return nil
}

func needsResolution(txs []domain.PaymentTransaction) bool {
	for _, tx := range txs {
		if tx.Location == nil {
			return true
		}
	}
	return false
}

// storeSink persists location records as the parser produces them: a movement
// first, then its waypoints under the id the store assigned.
type storeSink struct {
	store  TimelineStore
	logger *slog.Logger
	report *ImportReport
}

func (s *storeSink) Movement(ctx context.Context, m domain.Movement) error {
	id, err := s.store.InsertMovement(ctx, m)
	if err != nil {
		return fmt.Errorf("insert movement starting %s: %w", m.StartTime.Format("2006-01-02T15:04:05Z"), err)
	}
	s.report.Movements++
	if len(m.Waypoints) == 0 {
		return nil
	}

	waypoints := make([]domain.Waypoint, len(m.Waypoints))
	for i, wp := range m.Waypoints {
		wp.MovementID = id
		wp.UserID = m.UserID
		waypoints[i] = wp
	}
	if err := s.store.InsertWaypoints(ctx, waypoints); err != nil {
		return fmt.Errorf("insert waypoints of movement %d: %w", id, err)
	}
	s.report.Waypoints += len(waypoints)
	return nil
}

func (s *storeSink) Visit(ctx context.Context, v domain.Visit) error {
	if _, err := s.store.InsertVisit(ctx, v); err != nil {
		return fmt.Errorf("insert visit starting %s: %w", v.StartTime.Format("2006-01-02T15:04:05Z"), err)
	}
	s.report.Visits++
	return nil
}

func (s *storeSink) Ignore(string, string) {
	s.report.Skipped++
}

func (s *storeSink) Skip(err *domain.ParseError) {
	s.logger.Warn("skipping location record", "source", err.Source, "record", err.Record, "error", err.Err)
	s.report.Skipped++
	s.report.warn(err.Error())
}
