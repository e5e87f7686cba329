package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusops/student-funds-api/internal/models"
	"github.com/campusops/student-funds-api/pkg/config"
	appErrors "github.com/campusops/student-funds-api/pkg/errors"
)

// TermSource resolves the active term for a calendar day.
type TermSource interface {
	FindCurrent(ctx context.Context, day time.Time) (*models.Term, error)
}

// PopulationSource lists the current enrollment per student.
type PopulationSource interface {
	ListCurrent(ctx context.Context, statuses []models.EnrollmentStatus) ([]models.Enrollment, error)
}

// NameSource resolves directory names for funding rows.
type NameSource interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// FactsEngine derives the funding facts for one enrollment.
type FactsEngine interface {
	Compute(ctx context.Context, term models.Term, enrollment models.Enrollment, opts FactOptions) models.FundingFacts
}

// SnapshotPublisher atomically replaces the served dataset pair.
type SnapshotPublisher interface {
	Publish(rows, duplicates []models.FundingGapRow) error
}

// RunMetrics records run-level outcomes.
type RunMetrics interface {
	RunCompleted(outcome string, duration time.Duration, rows int)
}

// ProgressFunc receives (processed, total) after every reconciled row.
type ProgressFunc func(processed, total int)

// StartOptions are the per-run parameters of a reconciliation run.
// ExcludeCancelled overrides the configured default when set.
type StartOptions struct {
	ExcludeCancelled *bool
	Progress         ProgressFunc
}

// ReconciliationService owns the single-writer run lifecycle: at most one
// run executes at a time, readers keep seeing the previous snapshot until a
// new run finishes in full, and a failed or cancelled run leaves the served
// snapshot untouched.
type ReconciliationService struct {
	terms       TermSource
	enrollments PopulationSource
	students    NameSource
	facts       FactsEngine
	snapshots   SnapshotPublisher
	metrics     RunMetrics
	cfg         config.FundingConfig
	logger      *zap.Logger
	now         func() time.Time

	mu      sync.Mutex
	current *models.RunStatus
	cancel  context.CancelFunc
}

// NewReconciliationService wires the run orchestrator.
func NewReconciliationService(
	terms TermSource,
	enrollments PopulationSource,
	students NameSource,
	facts FactsEngine,
	snapshots SnapshotPublisher,
	metrics RunMetrics,
	cfg config.FundingConfig,
	logger *zap.Logger,
) *ReconciliationService {
	return &ReconciliationService{
		terms:       terms,
		enrollments: enrollments,
		students:    students,
		facts:       facts,
		snapshots:   snapshots,
		metrics:     metrics,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// StartRun launches a reconciliation run in the background and returns its
// initial status. Returns ErrRunInProgress while a previous run is still
// executing.
func (s *ReconciliationService) StartRun(opts StartOptions) (models.RunStatus, error) {
	s.mu.Lock()
	if s.current != nil && !s.current.Done() {
		status := *s.current
		s.mu.Unlock()
		return status, appErrors.ErrRunInProgress
	}

	status := models.RunStatus{
		ID:        uuid.NewString(),
		State:     models.RunStateRunning,
		StartedAt: s.now(),
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.current = &status
	s.cancel = cancel
	started := status
	s.mu.Unlock()

	s.logger.Info("reconciliation run started", zap.String("run_id", started.ID))
	go s.execute(ctx, cancel, started.ID, opts)

	return started, nil
}

// Status returns the most recent run's status. Returns ErrNoRun before the
// first run of the process lifetime.
func (s *ReconciliationService) Status() (models.RunStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return models.RunStatus{}, appErrors.ErrNoRun
	}
	return *s.current, nil
}

// Cancel requests cooperative cancellation of the in-flight run. The run
// stops at the next row boundary; partial results are discarded.
func (s *ReconciliationService) Cancel() (models.RunStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return models.RunStatus{}, appErrors.ErrNoRun
	}
	if s.current.Done() {
		return *s.current, appErrors.Clone(appErrors.ErrConflict, "reconciliation run already finished")
	}
	s.cancel()
	return *s.current, nil
}

func (s *ReconciliationService) execute(ctx context.Context, cancel context.CancelFunc, runID string, opts StartOptions) {
	defer cancel()
	start := s.now()

	rows, err := s.reconcile(ctx, opts)
	duration := s.now().Sub(start)

	switch {
	case err == nil:
		s.finish(func(status *models.RunStatus) {
			status.State = models.RunStateFinished
		})
		s.logger.Info("reconciliation run finished",
			zap.String("run_id", runID),
			zap.Int("rows", len(rows)),
			zap.Duration("duration", duration))
		s.observe("finished", duration, len(rows))
	case errors.Is(err, context.Canceled):
		s.finish(func(status *models.RunStatus) {
			status.State = models.RunStateCancelled
		})
		s.logger.Info("reconciliation run cancelled",
			zap.String("run_id", runID),
			zap.Duration("duration", duration))
		s.observe("cancelled", duration, 0)
	default:
		s.finish(func(status *models.RunStatus) {
			status.State = models.RunStateFailed
			status.Error = appErrors.FromError(err).Message
		})
		s.logger.Error("reconciliation run failed",
			zap.String("run_id", runID),
			zap.Error(err))
		s.observe("failed", duration, 0)
	}
}

func (s *ReconciliationService) reconcile(ctx context.Context, opts StartOptions) ([]models.FundingGapRow, error) {
	term, err := s.terms.FindCurrent(ctx, s.now())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNoActiveTerm
		}
		return nil, fmt.Errorf("resolve active term: %w", err)
	}
	s.update(func(status *models.RunStatus) {
		status.TermCode = term.Code
	})

	statuses := acceptedStatuses(s.cfg.AcceptedStatuses)
	population, err := s.enrollments.ListCurrent(ctx, statuses)
	if err != nil {
		return nil, fmt.Errorf("list enrolled population: %w", err)
	}

	total := len(population)
	s.update(func(status *models.RunStatus) {
		status.Total = total
	})

	factOpts := FactOptions{
		AcceptedStatuses: statuses,
		ExcludeCancelled: s.cfg.ExcludeCancelled,
		CancelledStatus:  s.cfg.CancelledStatus,
	}
	if opts.ExcludeCancelled != nil {
		factOpts.ExcludeCancelled = *opts.ExcludeCancelled
	}

	rows := make([]models.FundingGapRow, 0, total)
	for i, enrollment := range population {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		facts := s.facts.Compute(ctx, *term, enrollment, factOpts)
		rows = append(rows, s.buildRow(ctx, *term, enrollment, facts))

		processed := i + 1
		s.update(func(status *models.RunStatus) {
			status.Processed = processed
		})
		if opts.Progress != nil {
			opts.Progress(processed, total)
		}
	}

	duplicates := FindDuplicateRows(rows)
	s.update(func(status *models.RunStatus) {
		status.Duplicates = len(duplicates)
	})

	if err := s.snapshots.Publish(rows, duplicates); err != nil {
		return nil, fmt.Errorf("publish snapshot: %w", err)
	}
	return rows, nil
}

func (s *ReconciliationService) buildRow(ctx context.Context, term models.Term, enrollment models.Enrollment, facts models.FundingFacts) models.FundingGapRow {
	row := models.FundingGapRow{
		StudentID:       enrollment.StudentID,
		ProgramCode:     enrollment.ProgramCode,
		EnrollmentStart: enrollment.StartDate.Format("2006-01-02"),
		TermCode:        term.Code,
		Status:          enrollment.Status,
		Tuition:         facts.Tuition,
		TermExpected:    models.Amount(facts.TermScheduled),
		TotalExpected:   models.Amount(facts.TotalScheduled),
		TermCredits:     models.Amount(facts.TermCredits),
		PricePerCredit:  models.Amount(facts.PricePerCredit),
		SemesterPrice:   models.Amount(facts.SemesterPrice),
		OverallCredits:  models.Amount(facts.OverallCredits),
		OverallPrice:    models.Amount(facts.OverallPrice),
		RemainingNeed:   models.Amount(facts.RemainingNeed),
		ProfileLink:     fmt.Sprintf(s.cfg.ProfileLinkTemplate, enrollment.StudentID),
	}

	student, err := s.students.FindByID(ctx, enrollment.StudentID)
	switch {
	case err == nil:
		row.FirstName = student.FirstName
		row.LastName = student.LastName
	case errors.Is(err, sql.ErrNoRows):
		// Row keeps empty names; a directory gap is not a run failure.
	default:
		s.logger.Warn("student name lookup failed",
			zap.String("student_id", enrollment.StudentID),
			zap.Error(err))
	}

	return row
}

func (s *ReconciliationService) update(mutate func(*models.RunStatus)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		mutate(s.current)
	}
}

func (s *ReconciliationService) finish(mutate func(*models.RunStatus)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return
	}
	mutate(s.current)
	finished := s.now()
	s.current.FinishedAt = &finished
}

func (s *ReconciliationService) observe(outcome string, duration time.Duration, rows int) {
	if s.metrics != nil {
		s.metrics.RunCompleted(outcome, duration, rows)
	}
}

func acceptedStatuses(raw []string) []models.EnrollmentStatus {
	statuses := make([]models.EnrollmentStatus, 0, len(raw))
	for _, value := range raw {
		statuses = append(statuses, models.EnrollmentStatus(value))
	}
	return statuses
}
