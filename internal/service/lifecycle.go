package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/insightloop/reportd/internal/model"
	"github.com/insightloop/reportd/internal/pkg/apperr"
	"github.com/insightloop/reportd/internal/repository"
	"github.com/insightloop/reportd/internal/schedule"
)

// Lifecycle owns the report status/schedule state machine and run triggering.
// Execution is serialized per report: a report never has two runs in flight,
// while different reports run fully in parallel.
type Lifecycle struct {
	store    *repository.Store
	executor RunExecutor
	loc      *time.Location
	timeout  time.Duration

	mu       sync.Mutex
	runLocks map[int64]*sync.Mutex
}

// NewLifecycle creates the report lifecycle service
func NewLifecycle(store *repository.Store, executor RunExecutor, loc *time.Location, timeout time.Duration) *Lifecycle {
	if loc == nil {
		loc = time.UTC
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Lifecycle{
		store:    store,
		executor: executor,
		loc:      loc,
		timeout:  timeout,
		runLocks: make(map[int64]*sync.Mutex),
	}
}

// runLock returns the per-report execution lock, creating it on first use
func (l *Lifecycle) runLock(reportID int64) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.runLocks[reportID]
	if !ok {
		lock = &sync.Mutex{}
		l.runLocks[reportID] = lock
	}
	return lock
}

// Create persists a new report in draft status with a one-shot schedule
func (l *Lifecycle) Create(userID int64, def model.ReportDefinition) (*model.Report, error) {
	if err := validateDefinition(def); err != nil {
		return nil, err
	}

	report := &model.Report{
		UserID:       userID,
		Title:        strings.TrimSpace(def.Title),
		Description:  def.Description,
		Status:       model.StatusDraft,
		ScheduleType: schedule.TypeOnce,
		SQLQueries:   def.SQLQueries,
		UserPrompt:   def.UserPrompt,
	}

	created, err := l.store.CreateReport(report)
	if err != nil {
		return nil, err
	}

	zap.L().Info("Report created",
		zap.Int64("report_id", created.ID),
		zap.Int64("user_id", userID))

	return created, nil
}

// Get returns a report owned by the user
func (l *Lifecycle) Get(userID, reportID int64) (*model.Report, error) {
	report, err := l.store.GetUserReport(userID, reportID)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, apperr.NotFoundf("report %d not found", reportID)
	}
	return report, nil
}

// List returns the user's reports, pinned first then newest first
func (l *Lifecycle) List(userID int64) ([]model.Report, error) {
	return l.store.ListReports(userID)
}

// UpdateSchedule replaces a report's schedule, validating the config against
// the schedule type. Switching to "once" clears any stored config. The status
// may be changed in the same call (for example pausing without touching the
// schedule shape).
func (l *Lifecycle) UpdateSchedule(userID, reportID int64, scheduleType schedule.Type, spec *schedule.Spec, status *model.ReportStatus) (*model.Report, error) {
	report, err := l.Get(userID, reportID)
	if err != nil {
		return nil, err
	}

	if err := schedule.Validate(scheduleType, spec); err != nil {
		return nil, err
	}
	if scheduleType == schedule.TypeOnce {
		spec = nil
	}

	if err := l.store.UpdateReportSchedule(report.ID, scheduleType, spec, status); err != nil {
		return nil, err
	}

	return l.Get(userID, reportID)
}

// UpdateQueries replaces a report's query list and regeneration prompt
func (l *Lifecycle) UpdateQueries(userID, reportID int64, queries []model.QuerySpec, userPrompt string) (*model.Report, error) {
	report, err := l.Get(userID, reportID)
	if err != nil {
		return nil, err
	}
	if err := validateQueries(queries); err != nil {
		return nil, err
	}

	if err := l.store.UpdateReportQueries(report.ID, queries, userPrompt); err != nil {
		return nil, err
	}

	return l.Get(userID, reportID)
}

// TogglePin flips the pin flag
func (l *Lifecycle) TogglePin(userID, reportID int64) (*model.Report, error) {
	report, err := l.Get(userID, reportID)
	if err != nil {
		return nil, err
	}

	if err := l.store.SetReportPinned(report.ID, !report.IsPinned); err != nil {
		return nil, err
	}

	return l.Get(userID, reportID)
}

// Delete removes a report and all of its runs
func (l *Lifecycle) Delete(userID, reportID int64) error {
	report, err := l.Get(userID, reportID)
	if err != nil {
		return err
	}

	deleted, err := l.store.DeleteReport(report.ID)
	if err != nil {
		return err
	}
	if !deleted {
		return apperr.NotFoundf("report %d not found", reportID)
	}

	zap.L().Info("Report deleted",
		zap.Int64("report_id", reportID),
		zap.Int64("user_id", userID))

	return nil
}

// TriggerManualRun runs a report immediately, regardless of its status. The
// failed run record is persisted even when the error is surfaced to the caller.
func (l *Lifecycle) TriggerManualRun(ctx context.Context, userID, reportID int64) (*model.ReportRun, error) {
	report, err := l.Get(userID, reportID)
	if err != nil {
		return nil, err
	}

	lock := l.runLock(report.ID)
	lock.Lock()
	defer lock.Unlock()

	return l.executeRun(ctx, report, model.TriggerManual)
}

// TriggerDueRuns evaluates every active scheduled report against now and runs
// the due ones. Due reports execute in parallel; failures are recorded on the
// run and the report, never returned as an error of the sweep itself.
func (l *Lifecycle) TriggerDueRuns(ctx context.Context, now time.Time) ([]model.ReportRun, error) {
	candidates, err := l.store.ListActiveScheduled()
	if err != nil {
		return nil, err
	}

	var (
		wg      sync.WaitGroup
		runsMu  sync.Mutex
		started []model.ReportRun
	)

	for i := range candidates {
		report := candidates[i]
		if !l.isDue(&report, now) {
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()

			lock := l.runLock(report.ID)
			lock.Lock()
			defer lock.Unlock()

			// A manual run may have finished while we waited for the lock;
			// re-read and re-evaluate before firing.
			current, err := l.store.GetReport(report.ID)
			if err != nil || current == nil || current.Status != model.StatusActive || !l.isDue(current, now) {
				return
			}

			run, execErr := l.executeRun(ctx, current, model.TriggerScheduled)
			if execErr != nil {
				zap.L().Warn("Scheduled run failed",
					zap.Int64("report_id", current.ID),
					zap.Error(execErr))
			}
			if run != nil {
				runsMu.Lock()
				started = append(started, *run)
				runsMu.Unlock()
			}
		}()
	}

	wg.Wait()
	return started, nil
}

// isDue reports whether the report's next scheduled instant has passed
func (l *Lifecycle) isDue(report *model.Report, now time.Time) bool {
	base := report.CreatedAt
	if report.LastRunAt != nil {
		base = *report.LastRunAt
	}

	next, ok := schedule.Next(report.ScheduleType, schedule.Resolve(report.ScheduleSpec), base, l.loc)
	return ok && !next.After(now)
}

// executeRun owns the full pending → running → terminal transition for one
// run. Callers must hold the report's run lock.
func (l *Lifecycle) executeRun(ctx context.Context, report *model.Report, trigger model.TriggerType) (*model.ReportRun, error) {
	runID, err := l.store.CreateRun(report.ID, trigger)
	if err != nil {
		return nil, err
	}

	if err := l.store.MarkRunRunning(runID); err != nil {
		return nil, err
	}

	execCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	def := model.ReportDefinition{
		Title:       report.Title,
		Description: report.Description,
		SQLQueries:  report.SQLQueries,
		UserPrompt:  report.UserPrompt,
	}

	start := time.Now()
	outcome, execErr := l.executor.Execute(execCtx, def)
	duration := time.Since(start).Milliseconds()

	run := &model.ReportRun{
		ID:          runID,
		ReportID:    report.ID,
		TriggerType: trigger,
		DurationMS:  &duration,
	}

	var failure string
	switch {
	case execErr != nil:
		failure = execErr.Error()
	case outcome == nil:
		failure = "executor returned no outcome"
	case outcome.ErrorMessage != "":
		failure = outcome.ErrorMessage
	}

	if outcome != nil {
		run.QueriesExecuted = outcome.Queries
		run.ResultMarkdown = outcome.Markdown
		run.ResultData = outcome.Data
		run.LLMPrompt = outcome.Prompt
	}

	if failure != "" {
		run.Status = model.RunFailed
		run.ErrorMessage = failure
	} else {
		// Individual query errors inside the outcome do not fail the run;
		// only an aggregate executor failure does.
		run.Status = model.RunCompleted
	}

	if err := l.store.FinishRun(run); err != nil {
		return nil, err
	}

	if run.Status == model.RunFailed {
		if err := l.store.UpdateReportStatus(report.ID, model.StatusError); err != nil {
			zap.L().Error("Failed to mark report errored",
				zap.Int64("report_id", report.ID),
				zap.Error(err))
		}
		stored, _ := l.store.GetRun(runID)
		if stored != nil {
			run = stored
		}
		return run, apperr.Executionf("%s", failure)
	}

	if err := l.store.TouchReportLastRun(report.ID, time.Now()); err != nil {
		zap.L().Error("Failed to update last_run_at",
			zap.Int64("report_id", report.ID),
			zap.Error(err))
	}
	// a successful run clears a previous error state
	if report.Status == model.StatusError {
		if err := l.store.UpdateReportStatus(report.ID, model.StatusActive); err != nil {
			zap.L().Error("Failed to clear report error state",
				zap.Int64("report_id", report.ID),
				zap.Error(err))
		}
	}

	stored, err := l.store.GetRun(runID)
	if err != nil {
		return run, nil
	}
	return stored, nil
}

// GetRun returns a run for a report the user owns
func (l *Lifecycle) GetRun(userID, runID int64) (*model.ReportRun, error) {
	run, err := l.store.GetRun(runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, apperr.NotFoundf("run %d not found", runID)
	}
	if _, err := l.Get(userID, run.ReportID); err != nil {
		return nil, apperr.NotFoundf("run %d not found", runID)
	}
	return run, nil
}

// ListRuns returns one page of a report's runs, newest first
func (l *Lifecycle) ListRuns(userID, reportID int64, page, perPage int) ([]model.ReportRun, int, error) {
	report, err := l.Get(userID, reportID)
	if err != nil {
		return nil, 0, err
	}

	runs, err := l.store.ListRunsByReport(report.ID, page, perPage)
	if err != nil {
		return nil, 0, err
	}
	total, err := l.store.CountRunsByReport(report.ID)
	if err != nil {
		return nil, 0, err
	}
	return runs, total, nil
}

func validateDefinition(def model.ReportDefinition) error {
	if strings.TrimSpace(def.Title) == "" {
		return apperr.Validationf("title must not be blank")
	}
	return validateQueries(def.SQLQueries)
}

func validateQueries(queries []model.QuerySpec) error {
	if len(queries) == 0 {
		return apperr.Validationf("sql_queries must not be empty")
	}
	for i, q := range queries {
		if strings.TrimSpace(q.Query) == "" {
			return apperr.Validationf("sql_queries[%d] has no query text", i)
		}
	}
	return nil
}
