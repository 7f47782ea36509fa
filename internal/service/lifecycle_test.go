package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/insightloop/reportd/internal/model"
	"github.com/insightloop/reportd/internal/pkg/apperr"
	"github.com/insightloop/reportd/internal/repository"
	"github.com/insightloop/reportd/internal/schedule"
)

func newTestStore(t *testing.T) *repository.Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	store, err := repository.Open(fmt.Sprintf("file:svc_%s?mode=memory&cache=shared&_busy_timeout=5000", name))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestUser(t *testing.T, store *repository.Store) int64 {
	t.Helper()
	id, err := store.CreateUser("tester", "hash", "")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return id
}

// fakeExecutor tracks concurrency and returns a canned outcome or error.
type fakeExecutor struct {
	mu        sync.Mutex
	active    int
	maxActive int
	calls     int

	delay   time.Duration
	outcome *RunOutcome
	err     error
}

func (f *fakeExecutor) Execute(ctx context.Context, def model.ReportDefinition) (*RunOutcome, error) {
	f.mu.Lock()
	f.calls++
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.active--
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	if f.outcome != nil {
		out := *f.outcome
		return &out, nil
	}
	return &RunOutcome{Markdown: "# ok"}, nil
}

func newLifecycle(t *testing.T, store *repository.Store, exec RunExecutor) *Lifecycle {
	t.Helper()
	return NewLifecycle(store, exec, time.UTC, time.Minute)
}

func validDefinition() model.ReportDefinition {
	return model.ReportDefinition{
		Title:      "Sales Q1",
		SQLQueries: []model.QuerySpec{{Purpose: "totals", Query: "SELECT 1"}},
	}
}

func TestCreateValidation(t *testing.T) {
	store := newTestStore(t)
	userID := newTestUser(t, store)
	l := newLifecycle(t, store, &fakeExecutor{})

	if _, err := l.Create(userID, model.ReportDefinition{
		Title:      "  ",
		SQLQueries: []model.QuerySpec{{Query: "SELECT 1"}},
	}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("blank title: expected validation error, got %v", err)
	}

	if _, err := l.Create(userID, model.ReportDefinition{Title: "T"}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("empty queries: expected validation error, got %v", err)
	}

	report, err := l.Create(userID, validDefinition())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if report.Status != model.StatusDraft || report.ScheduleType != schedule.TypeOnce {
		t.Fatalf("new report must be draft/once, got %s/%s", report.Status, report.ScheduleType)
	}
}

func TestUpdateScheduleRoundTrip(t *testing.T) {
	store := newTestStore(t)
	userID := newTestUser(t, store)
	l := newLifecycle(t, store, &fakeExecutor{})

	report, err := l.Create(userID, validDefinition())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	hour, dow := 9, "mon"
	active := model.StatusActive
	updated, err := l.UpdateSchedule(userID, report.ID, schedule.TypeWeekly,
		&schedule.Spec{Hour: &hour, DayOfWeek: &dow}, &active)
	if err != nil {
		t.Fatalf("update schedule: %v", err)
	}
	if updated.Status != model.StatusActive || updated.ScheduleType != schedule.TypeWeekly {
		t.Fatalf("unexpected report: %+v", updated)
	}
	// minute was legitimately absent and resolves to 0
	r := schedule.Resolve(updated.ScheduleSpec)
	if r.Hour != 9 || r.Minute != 0 || r.Weekday != time.Monday {
		t.Fatalf("unexpected resolved schedule: %+v", r)
	}

	// incomplete config is rejected before any mutation
	if _, err := l.UpdateSchedule(userID, report.ID, schedule.TypeMonthly, &schedule.Spec{Hour: &hour}, nil); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	unchanged, _ := l.Get(userID, report.ID)
	if unchanged.ScheduleType != schedule.TypeWeekly {
		t.Fatalf("failed update mutated the report")
	}

	// switching to once clears the stored config
	cleared, err := l.UpdateSchedule(userID, report.ID, schedule.TypeOnce, nil, nil)
	if err != nil {
		t.Fatalf("switch to once: %v", err)
	}
	if cleared.ScheduleSpec != nil {
		t.Fatalf("once schedule kept a config: %+v", cleared.ScheduleSpec)
	}
}

func TestManualRunSuccess(t *testing.T) {
	store := newTestStore(t)
	userID := newTestUser(t, store)
	exec := &fakeExecutor{outcome: &RunOutcome{
		Markdown: "# result",
		Data:     json.RawMessage(`[{"total": 42}]`),
		Queries:  []model.QueryExecution{{Purpose: "totals", Query: "SELECT 1", RowCount: 1, ElapsedMS: 3}},
		Prompt:   "summarize",
	}}
	l := newLifecycle(t, store, exec)

	report, _ := l.Create(userID, validDefinition())

	run, err := l.TriggerManualRun(context.Background(), userID, report.ID)
	if err != nil {
		t.Fatalf("manual run: %v", err)
	}
	if run.Status != model.RunCompleted || run.TriggerType != model.TriggerManual {
		t.Fatalf("unexpected run: %+v", run)
	}
	if run.ResultMarkdown != "# result" || run.LLMPrompt != "summarize" {
		t.Fatalf("outcome not persisted: %+v", run)
	}
	if run.DurationMS == nil {
		t.Fatalf("duration missing")
	}

	after, _ := l.Get(userID, report.ID)
	if after.LastRunAt == nil {
		t.Fatalf("last_run_at not updated on success")
	}
}

func TestManualRunFailureIsRecordedAndSurfaced(t *testing.T) {
	store := newTestStore(t)
	userID := newTestUser(t, store)
	exec := &fakeExecutor{err: errors.New("query engine exploded")}
	l := newLifecycle(t, store, exec)

	report, _ := l.Create(userID, validDefinition())

	run, err := l.TriggerManualRun(context.Background(), userID, report.ID)
	if !apperr.Is(err, apperr.KindExecution) {
		t.Fatalf("expected execution error, got %v", err)
	}
	if run == nil || run.Status != model.RunFailed {
		t.Fatalf("failed run not returned: %+v", run)
	}

	// the failure is recorded, never dropped
	stored, _ := store.GetRun(run.ID)
	if stored == nil || stored.Status != model.RunFailed || stored.ErrorMessage == "" {
		t.Fatalf("failed run not persisted: %+v", stored)
	}

	after, _ := l.Get(userID, report.ID)
	if after.Status != model.StatusError {
		t.Fatalf("report should be in error state, got %s", after.Status)
	}

	// a subsequent successful manual run clears the error state
	exec.err = nil
	if _, err := l.TriggerManualRun(context.Background(), userID, report.ID); err != nil {
		t.Fatalf("recovery run: %v", err)
	}
	after, _ = l.Get(userID, report.ID)
	if after.Status != model.StatusActive {
		t.Fatalf("error state not cleared, got %s", after.Status)
	}
}

func TestPartialQueryFailureStillCompletes(t *testing.T) {
	store := newTestStore(t)
	userID := newTestUser(t, store)
	exec := &fakeExecutor{outcome: &RunOutcome{
		Markdown: "# partial",
		Queries: []model.QueryExecution{
			{Purpose: "a", Query: "SELECT 1", RowCount: 10, ElapsedMS: 2},
			{Purpose: "b", Query: "SELECT nope", Error: "no such column: nope"},
			{Purpose: "c", Query: "SELECT 2", RowCount: 3, ElapsedMS: 1},
		},
	}}
	l := newLifecycle(t, store, exec)

	report, _ := l.Create(userID, validDefinition())

	run, err := l.TriggerManualRun(context.Background(), userID, report.ID)
	if err != nil {
		t.Fatalf("partial failure must not fail the run: %v", err)
	}
	if run.Status != model.RunCompleted {
		t.Fatalf("expected completed, got %s", run.Status)
	}
	if len(run.QueriesExecuted) != 3 || run.QueriesExecuted[1].Error == "" {
		t.Fatalf("per-query failure not preserved: %+v", run.QueriesExecuted)
	}
}

func TestConcurrentManualRunsAreSerialized(t *testing.T) {
	store := newTestStore(t)
	userID := newTestUser(t, store)
	exec := &fakeExecutor{delay: 30 * time.Millisecond}
	l := newLifecycle(t, store, exec)

	report, _ := l.Create(userID, validDefinition())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.TriggerManualRun(context.Background(), userID, report.ID)
		}()
	}
	wg.Wait()

	if exec.maxActive != 1 {
		t.Fatalf("report had %d runs executing concurrently", exec.maxActive)
	}
	if exec.calls != 4 {
		t.Fatalf("expected 4 runs, got %d", exec.calls)
	}
}

func TestTriggerDueRuns(t *testing.T) {
	store := newTestStore(t)
	userID := newTestUser(t, store)
	exec := &fakeExecutor{}
	l := newLifecycle(t, store, exec)

	hour := 9
	active := model.StatusActive
	paused := model.StatusPaused
	longAgo := time.Now().Add(-72 * time.Hour)

	mkReport := func(title string, status *model.ReportStatus) *model.Report {
		def := validDefinition()
		def.Title = title
		report, err := l.Create(userID, def)
		if err != nil {
			t.Fatalf("create %s: %v", title, err)
		}
		report, err = l.UpdateSchedule(userID, report.ID, schedule.TypeDaily, &schedule.Spec{Hour: &hour}, status)
		if err != nil {
			t.Fatalf("schedule %s: %v", title, err)
		}
		if err := store.TouchReportLastRun(report.ID, longAgo); err != nil {
			t.Fatalf("touch %s: %v", title, err)
		}
		return report
	}

	due1 := mkReport("Due One", &active)
	due2 := mkReport("Due Two", &active)
	mkReport("Paused", &paused)

	// draft reports are never auto-triggered either
	draft, _ := l.Create(userID, validDefinition())

	runs, err := l.TriggerDueRuns(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("trigger due runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 due runs, got %d", len(runs))
	}
	for _, run := range runs {
		if run.TriggerType != model.TriggerScheduled {
			t.Fatalf("expected scheduled trigger, got %s", run.TriggerType)
		}
		if run.ReportID != due1.ID && run.ReportID != due2.ID {
			t.Fatalf("unexpected report %d ran", run.ReportID)
		}
	}

	// both active reports have fresh last_run_at and are no longer due
	runs, err = l.TriggerDueRuns(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("reports re-fired immediately: %d runs", len(runs))
	}

	if n, _ := store.CountRunsByReport(draft.ID); n != 0 {
		t.Fatalf("draft report was auto-triggered")
	}
}

func TestScheduledRunFailureMarksReportErrored(t *testing.T) {
	store := newTestStore(t)
	userID := newTestUser(t, store)
	exec := &fakeExecutor{err: errors.New("timeout")}
	l := newLifecycle(t, store, exec)

	hour := 9
	active := model.StatusActive
	report, _ := l.Create(userID, validDefinition())
	report, err := l.UpdateSchedule(userID, report.ID, schedule.TypeDaily, &schedule.Spec{Hour: &hour}, &active)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	store.TouchReportLastRun(report.ID, time.Now().Add(-72*time.Hour))

	// the sweep itself must not fail
	runs, err := l.TriggerDueRuns(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("sweep errored: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != model.RunFailed {
		t.Fatalf("expected one failed run, got %+v", runs)
	}

	after, _ := l.Get(userID, report.ID)
	if after.Status != model.StatusError {
		t.Fatalf("report not errored, got %s", after.Status)
	}

	// errored reports drop out of the due set
	runs, _ = l.TriggerDueRuns(context.Background(), time.Now())
	if len(runs) != 0 {
		t.Fatalf("errored report re-fired")
	}
}

func TestDeleteCascadesRunsAndTogglePin(t *testing.T) {
	store := newTestStore(t)
	userID := newTestUser(t, store)
	l := newLifecycle(t, store, &fakeExecutor{})

	report, _ := l.Create(userID, validDefinition())
	run, err := l.TriggerManualRun(context.Background(), userID, report.ID)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	pinned, err := l.TogglePin(userID, report.ID)
	if err != nil || !pinned.IsPinned {
		t.Fatalf("toggle pin on: %v %+v", err, pinned)
	}
	unpinned, _ := l.TogglePin(userID, report.ID)
	if unpinned.IsPinned {
		t.Fatalf("toggle pin off failed")
	}

	if err := l.Delete(userID, report.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := l.Delete(userID, report.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if stored, _ := store.GetRun(run.ID); stored != nil {
		t.Fatalf("runs survived report deletion")
	}
}
