package sync

import (
	"context"
	"fmt"
	"strings"
	gosync "sync"
	"time"

	"priceradar/domain"
	"priceradar/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ExecutionRepository persists run lifecycle records. Every transition is
// written immediately so a crash mid-run leaves an accurate last known state.
type ExecutionRepository interface {
	CreateExecution(ctx context.Context, exec *domain.Execution) error
	UpdateExecution(ctx context.Context, exec *domain.Execution) error
	CreateCompetitorRun(ctx context.Context, run *domain.CompetitorRun) error
	UpdateCompetitorRun(ctx context.Context, run *domain.CompetitorRun) error
}

// Tracker drives the state machine for one execution and its per-competitor
// sub-runs. Each worker only ever touches its own competitor's run; the
// tracker's mutex serializes the shared execution-level transitions.
type Tracker struct {
	repo ExecutionRepository

	mu   gosync.Mutex
	exec *domain.Execution
	runs map[string]*domain.CompetitorRun
}

func NewTracker(repo ExecutionRepository) *Tracker {
	return &Tracker{repo: repo}
}

// Begin creates the execution and one pending sub-run per competitor.
func (t *Tracker) Begin(ctx context.Context, trigger string, competitors []string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	exec := &domain.Execution{
		ID:            uuid.NewString(),
		Status:        domain.StatusPending,
		TriggerSource: trigger,
		StartTime:     time.Now().UTC(),
	}
	if err := t.repo.CreateExecution(ctx, exec); err != nil {
		return "", fmt.Errorf("failed to create execution: %w", err)
	}

	runs := make(map[string]*domain.CompetitorRun, len(competitors))
	for _, name := range competitors {
		run := &domain.CompetitorRun{
			ID:          uuid.NewString(),
			ExecutionID: exec.ID,
			Competitor:  name,
			Status:      domain.StatusPending,
		}
		if err := t.repo.CreateCompetitorRun(ctx, run); err != nil {
			return "", fmt.Errorf("failed to create competitor run: %w", err)
		}
		runs[name] = run
	}

	t.exec = exec
	t.runs = runs

	return exec.ID, nil
}

func (t *Tracker) ExecutionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.exec == nil {
		return ""
	}
	return t.exec.ID
}

// StartCompetitor moves a sub-run to running; the first competitor to start
// also moves the execution itself to running.
func (t *Tracker) StartCompetitor(ctx context.Context, competitor string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	run, err := t.run(competitor)
	if err != nil {
		return err
	}

	if t.exec.Status == domain.StatusPending {
		if err := t.transitionExecution(ctx, domain.StatusRunning); err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	run.StartTime = &now

	return t.transitionRun(ctx, run, domain.StatusRunning)
}

// RunStats carries a finished competitor's counters onto its run record.
type RunStats struct {
	ProcessedKeys int
	SucceededKeys int
	OfferCount    int
	KeyErrors     []datatypes.JSONMap
}

// CompleteCompetitor marks a sub-run completed. Per-key skips are recorded on
// the run but do not fail it.
func (t *Tracker) CompleteCompetitor(ctx context.Context, competitor string, stats RunStats) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	run, err := t.run(competitor)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	run.EndTime = &now
	run.ProcessedKeys = stats.ProcessedKeys
	run.SucceededKeys = stats.SucceededKeys
	run.OfferCount = stats.OfferCount
	run.ErrorCount = len(stats.KeyErrors)
	if len(stats.KeyErrors) > 0 {
		run.Error = datatypes.JSONMap{"key_errors": stats.KeyErrors}
	}

	return t.transitionRun(ctx, run, domain.StatusCompleted)
}

// FailCompetitor marks a sub-run failed with the unrecoverable error that
// killed it. Other competitors' runs are unaffected.
func (t *Tracker) FailCompetitor(ctx context.Context, competitor string, cause error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	run, err := t.run(competitor)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	run.EndTime = &now
	run.Error = datatypes.JSONMap{"message": cause.Error()}

	return t.transitionRun(ctx, run, domain.StatusFailed)
}

// Finish closes the execution once every competitor reached a terminal state:
// completed only when all sub-runs completed; otherwise failed, with a note
// naming the failed competitors. A partial run is a valid outcome, not a
// process error.
func (t *Tracker) Finish(ctx context.Context) (domain.ExecutionStatus, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.exec == nil {
		return "", fmt.Errorf("tracker not started")
	}

	var failed []string
	for name, run := range t.runs {
		if !run.Status.Terminal() {
			return "", fmt.Errorf("competitor %s has not reached a terminal state", name)
		}
		if run.Status == domain.StatusFailed {
			failed = append(failed, name)
		}
	}

	target := domain.StatusCompleted
	if len(failed) > 0 {
		target = domain.StatusFailed
		if len(failed) < len(t.runs) {
			t.exec.Notes = fmt.Sprintf("partial run: %s failed, remaining competitors completed", strings.Join(failed, ", "))
		} else {
			t.exec.Notes = "all competitors failed"
		}
	}

	// an execution that never left pending (no competitor started) still
	// needs to pass through running to reach a terminal state
	if t.exec.Status == domain.StatusPending {
		if err := t.transitionExecution(ctx, domain.StatusRunning); err != nil {
			return "", err
		}
	}

	now := time.Now().UTC()
	t.exec.EndTime = &now
	if err := t.transitionExecution(ctx, target); err != nil {
		return "", err
	}

	return target, nil
}

// Abort force-fails the execution after scraping, when a downstream stage
// (matching, persistence) dies. Runs that already completed keep their
// terminal state; anything still open is failed with the same cause.
func (t *Tracker) Abort(ctx context.Context, cause error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.exec == nil {
		return fmt.Errorf("tracker not started")
	}

	for _, run := range t.runs {
		if run.Status.Terminal() {
			continue
		}
		if run.Status == domain.StatusPending {
			if err := t.transitionRun(ctx, run, domain.StatusRunning); err != nil {
				return err
			}
		}
		now := time.Now().UTC()
		run.EndTime = &now
		run.Error = datatypes.JSONMap{"message": cause.Error()}
		if err := t.transitionRun(ctx, run, domain.StatusFailed); err != nil {
			return err
		}
	}

	if t.exec.Status == domain.StatusPending {
		if err := t.transitionExecution(ctx, domain.StatusRunning); err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	t.exec.EndTime = &now
	t.exec.Notes = fmt.Sprintf("aborted: %s", cause.Error())

	return t.transitionExecution(ctx, domain.StatusFailed)
}

// Runs returns a snapshot of the per-competitor records.
func (t *Tracker) Runs() []domain.CompetitorRun {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]domain.CompetitorRun, 0, len(t.runs))
	for _, run := range t.runs {
		out = append(out, *run)
	}

	return out
}

func (t *Tracker) run(competitor string) (*domain.CompetitorRun, error) {
	if t.exec == nil {
		return nil, fmt.Errorf("tracker not started")
	}
	run, ok := t.runs[competitor]
	if !ok {
		return nil, fmt.Errorf("unknown competitor %q", competitor)
	}

	return run, nil
}

func (t *Tracker) transitionExecution(ctx context.Context, to domain.ExecutionStatus) error {
	if !t.exec.Status.CanTransition(to) {
		return fmt.Errorf("invalid execution transition %s -> %s", t.exec.Status, to)
	}

	prev := t.exec.Status
	t.exec.Status = to
	if err := t.repo.UpdateExecution(ctx, t.exec); err != nil {
		// roll the in-memory status back so a later force-fail is still a
		// legal transition
		t.exec.Status = prev
		return fmt.Errorf("failed to persist execution transition: %w", err)
	}

	logger.Debug("execution transition", "execution_id", t.exec.ID, "status", to)
	return nil
}

func (t *Tracker) transitionRun(ctx context.Context, run *domain.CompetitorRun, to domain.ExecutionStatus) error {
	if !run.Status.CanTransition(to) {
		return fmt.Errorf("invalid run transition %s -> %s for %s", run.Status, to, run.Competitor)
	}

	prev := run.Status
	run.Status = to
	if err := t.repo.UpdateCompetitorRun(ctx, run); err != nil {
		run.Status = prev
		return fmt.Errorf("failed to persist run transition: %w", err)
	}

	logger.Debug("competitor run transition", "execution_id", run.ExecutionID, "competitor", run.Competitor, "status", to)
	return nil
}
