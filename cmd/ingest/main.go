package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/vanshika/lifetrace/internal/config"
	"github.com/vanshika/lifetrace/internal/graph"
	"github.com/vanshika/lifetrace/internal/logging"
	"github.com/vanshika/lifetrace/internal/repository"
	"github.com/vanshika/lifetrace/internal/service"
)

var errNoJobs = errors.New("nothing to import: pass -manifest or -user with -root")

// manifestEntry is one line item of an import manifest. Relative roots are
// resolved against the manifest's directory.
type manifestEntry struct {
	UserID int64  `json:"userId"`
	User   string `json:"user"`
	Root   string `json:"root"`
}

func main() {
	var (
		manifestPath = flag.String("manifest", "", "JSON file listing {\"user\", \"userId\", \"root\"} import jobs")
		userName     = flag.String("user", "", "user name for a single import (created if needed)")
		userID       = flag.Int64("user-id", 0, "existing user id for a single import")
		root         = flag.String("root", "", "takeout root for a single import (defaults to TAKEOUT_DIR)")
		workers      = flag.Int("workers", 4, "number of users imported concurrently")
		initSchema   = flag.Bool("init-schema", true, "create the storage schema before importing")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging).With("component", "ingest")

	jobs, err := loadJobs(*manifestPath, *userName, *userID, *root, cfg.Import.TakeoutDir)
	if err != nil {
		logger.Error("failed to resolve import jobs", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := buildStore(ctx, logger, cfg)
	if err != nil {
		logger.Error("failed to open timeline store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			logger.Warn("closing timeline store failed", "error", err)
		}
	}()

	timeline := service.NewTimelineService(store, logger)
	if *initSchema {
		if err := timeline.InitSchema(ctx); err != nil {
			logger.Error("schema initialisation failed", "error", err)
			os.Exit(1)
		}
	}
	importer := service.NewBulkImporter(service.NewImportService(store, nil, logger), timeline, *workers)

	start := time.Now()
	logger.Info("importing takeout exports", "jobs", len(jobs), "workers", *workers)
	outcomes, err := importer.Import(ctx, jobs)
	for _, o := range outcomes {
		if o.Report.RunID == "" {
			continue
		}
		logger.Info("import summary",
			"run_id", o.Report.RunID,
			"user_id", o.Job.UserID,
			"root", o.Job.Root,
			"movements", o.Report.Movements,
			"visits", o.Report.Visits,
			"payments", o.Report.Payments,
			"matched", o.Report.Matched,
			"unresolved", o.Report.Unresolved,
			"warnings", len(o.Report.Warnings)+o.Report.WarningsDropped,
			"ok", o.Err == nil,
		)
	}
	if err != nil {
		logger.Error("import failed", "error", err, "duration", time.Since(start).String())
		os.Exit(1)
	}
	logger.Info("import complete", "duration", time.Since(start).String(), "jobs", len(jobs))
}

func loadJobs(manifestPath, userName string, userID int64, root, defaultRoot string) ([]service.ImportJob, error) {
	if manifestPath == "" {
		if userName == "" && userID == 0 {
			return nil, errNoJobs
		}
		if root == "" {
			root = defaultRoot
		}
		return []service.ImportJob{{UserID: userID, UserName: userName, Root: root}}, nil
	}

	file, err := os.Open(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", manifestPath, err)
	}
	defer file.Close()

	var entries []manifestEntry
	if err := json.NewDecoder(file).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode %s: %w", manifestPath, err)
	}
	if len(entries) == 0 {
		return nil, errNoJobs
	}

	base := filepath.Dir(manifestPath)
	jobs := make([]service.ImportJob, 0, len(entries))
	for i, e := range entries {
		if e.Root == "" {
			return nil, fmt.Errorf("manifest entry %d: root is required", i+1)
		}
		jobRoot := e.Root
		if !filepath.IsAbs(jobRoot) {
			jobRoot = filepath.Join(base, jobRoot)
		}
		jobs = append(jobs, service.ImportJob{UserID: e.UserID, UserName: e.User, Root: jobRoot})
	}
	return jobs, nil
}

func buildStore(ctx context.Context, logger *slog.Logger, cfg config.Config) (service.TimelineStore, error) {
	if cfg.Storage.Driver != config.DriverGraph {
		return repository.OpenSQLite(ctx, cfg.Storage.SQLitePath)
	}
	client, err := graph.NewNeo4jClient(ctx, graph.Options{
		URI:            cfg.Graph.URI,
		Database:       cfg.Graph.Database,
		Username:       cfg.Graph.Username,
		Password:       cfg.Graph.Password,
		MaxConnections: cfg.Graph.MaxConnections,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("connected to graph", "uri", cfg.Graph.URI, "database", cfg.Graph.Database)
	return repository.NewGraphStore(client), nil
}
