package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// TaskError accumulates multiple errors produced during a bulk import.
type TaskError struct {
	Errors []error
}

func (e *TaskError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msg := "multiple errors:"
	for _, err := range e.Errors {
		msg += " " + err.Error() + ";"
	}
	return msg
}

func (e *TaskError) append(err error) {
	if err == nil {
		return
	}
	e.Errors = append(e.Errors, err)
}

func (e *TaskError) asError() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

// ImportJob names one takeout tree to import. UserName is used to create the
// user when UserID is zero; jobs naming the same user share one account.
type ImportJob struct {
	UserID   int64
	UserName string
	Root     string
}

// ImportOutcome pairs a job with the report of its run.
type ImportOutcome struct {
	Job    ImportJob
	Report ImportReport
	Err    error
}

// BulkImporter runs many takeout imports on a worker pool. Jobs of one user
// run one after another on the same worker, in manifest order.
type BulkImporter struct {
	imports *ImportService
	users   *TimelineService
	workers int
}

// NewBulkImporter creates a new BulkImporter instance with the provided concurrency.
func NewBulkImporter(imports *ImportService, users *TimelineService, workers int) *BulkImporter {
	if workers <= 0 {
		workers = 4
	}
	return &BulkImporter{
		imports: imports,
		users:   users,
		workers: workers,
	}
}

// Import resolves the user of every job, then imports the jobs concurrently
// across users. Outcomes are returned in job order; the error aggregates the
// failed jobs.
func (bi *BulkImporter) Import(ctx context.Context, jobs []ImportJob) ([]ImportOutcome, error) {
	outcomes := make([]ImportOutcome, len(jobs))
	for i, job := range jobs {
		outcomes[i].Job = job
	}
	if err := bi.resolveUsers(ctx, outcomes); err != nil {
		return outcomes, err
	}

	groups := groupByUser(outcomes)
	err := bi.run(ctx, len(groups), func(idx int) error {
		var taskErr TaskError
		for _, i := range groups[idx] {
			job := outcomes[i].Job
			report, err := bi.imports.ImportTakeout(ctx, job.UserID, job.Root)
			outcomes[i].Report = report
			if err != nil {
				outcomes[i].Err = err
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				taskErr.append(fmt.Errorf("import %s for user %d: %w", job.Root, job.UserID, err))
			}
		}
		return taskErr.asError()
	})
	return outcomes, err
}

func (bi *BulkImporter) resolveUsers(ctx context.Context, outcomes []ImportOutcome) error {
	created := make(map[string]int64)
	for i := range outcomes {
		job := &outcomes[i].Job
		if job.UserID > 0 {
			continue
		}
		name := strings.TrimSpace(job.UserName)
		if id, ok := created[name]; ok {
			job.UserID = id
			continue
		}
		user, err := bi.users.CreateUser(ctx, name)
		if err != nil {
			return fmt.Errorf("job %d: %w", i+1, err)
		}
		created[name] = user.ID
		job.UserID = user.ID
	}
	return nil
}

// groupByUser returns job indexes grouped per user, users in order of first
// appearance.
func groupByUser(outcomes []ImportOutcome) [][]int {
	var groups [][]int
	index := make(map[int64]int)
	for i, o := range outcomes {
		g, ok := index[o.Job.UserID]
		if !ok {
			g = len(groups)
			index[o.Job.UserID] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	return groups
}

func (bi *BulkImporter) run(ctx context.Context, total int, workerFn func(idx int) error) error {
	if total == 0 {
		return nil
	}
	indexCh := make(chan int)
	errCh := make(chan error, total)
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for idx := range indexCh {
			if err := workerFn(idx); err != nil {
				select {
				case errCh <- err:
				case <-ctx.Done():
					return
				}
			}
		}
	}

	for i := 0; i < bi.workers; i++ {
		wg.Add(1)
		go worker()
	}

Loop:
	for i := 0; i < total; i++ {
		select {
		case indexCh <- i:
		case <-ctx.Done():
			break Loop
		}
	}
	close(indexCh)
	wg.Wait()
	close(errCh)

	var taskErr TaskError
	for err := range errCh {
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		var nested *TaskError
		if errors.As(err, &nested) {
			taskErr.Errors = append(taskErr.Errors, nested.Errors...)
			continue
		}
		taskErr.append(err)
	}
	if taskErr.asError() == nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return taskErr.asError()
}
