package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campusops/student-funds-api/internal/models"
	"github.com/campusops/student-funds-api/pkg/config"
	appErrors "github.com/campusops/student-funds-api/pkg/errors"
)

type stubTerms struct {
	term  *models.Term
	err   error
	block chan struct{}
}

func (s *stubTerms) FindCurrent(_ context.Context, _ time.Time) (*models.Term, error) {
	if s.block != nil {
		<-s.block
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.term, nil
}

type stubPopulation struct {
	list []models.Enrollment
	err  error
}

func (s *stubPopulation) ListCurrent(_ context.Context, _ []models.EnrollmentStatus) ([]models.Enrollment, error) {
	return s.list, s.err
}

type stubNames struct {
	students map[string]*models.Student
}

func (s *stubNames) FindByID(_ context.Context, id string) (*models.Student, error) {
	student, ok := s.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return student, nil
}

type constantFacts struct {
	facts models.FundingFacts
}

func (s *constantFacts) Compute(_ context.Context, _ models.Term, _ models.Enrollment, _ FactOptions) models.FundingFacts {
	return s.facts
}

type stubPublisher struct {
	mu         sync.Mutex
	calls      int
	rows       []models.FundingGapRow
	duplicates []models.FundingGapRow
	err        error
}

func (s *stubPublisher) Publish(rows, duplicates []models.FundingGapRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.calls++
	s.rows = rows
	s.duplicates = duplicates
	return nil
}

func (s *stubPublisher) published() ([]models.FundingGapRow, []models.FundingGapRow, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows, s.duplicates, s.calls
}

func testFundingConfig() config.FundingConfig {
	return config.FundingConfig{
		AcceptedStatuses:    []string{"C", "P", "W"},
		ExcludeCancelled:    true,
		CancelledStatus:     "X",
		ProfileLinkTemplate: "https://mediatechcloud.com/index.php?name=%s",
		SnapshotFilename:    "student_funds.csv",
		DuplicatesFilename:  "duplicate_student_funds.csv",
	}
}

func newRunService(terms TermSource, population PopulationSource, names NameSource, facts FactsEngine, publisher SnapshotPublisher) *ReconciliationService {
	svc := NewReconciliationService(terms, population, names, facts, publisher, nil, testFundingConfig(), zap.NewNop())
	svc.now = func() time.Time { return time.Date(2024, 2, 15, 12, 0, 0, 0, time.UTC) }
	return svc
}

func enrollmentFor(studentID string, day time.Time) models.Enrollment {
	return models.Enrollment{
		StudentID:      studentID,
		StartDate:      day,
		ProgramCode:    "BIZ100",
		Status:         models.EnrollmentStatusContinuing,
		SequenceNumber: 1,
		Type:           models.EnrollmentTypeEnrollment,
	}
}

func waitForDone(t *testing.T, svc *ReconciliationService) models.RunStatus {
	t.Helper()
	require.Eventually(t, func() bool {
		status, err := svc.Status()
		return err == nil && status.Done()
	}, 2*time.Second, 5*time.Millisecond)
	status, err := svc.Status()
	require.NoError(t, err)
	return status
}

func TestReconciliationStatusBeforeFirstRun(t *testing.T) {
	svc := newRunService(&stubTerms{term: &testTerm}, &stubPopulation{}, &stubNames{}, &constantFacts{}, &stubPublisher{})

	_, err := svc.Status()
	require.ErrorIs(t, err, appErrors.ErrNoRun)

	_, err = svc.Cancel()
	require.ErrorIs(t, err, appErrors.ErrNoRun)
}

func TestReconciliationSuccessfulRun(t *testing.T) {
	day := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	population := &stubPopulation{list: []models.Enrollment{
		enrollmentFor("1001", day),
		enrollmentFor("1002", day.AddDate(0, 0, 1)),
		enrollmentFor("1001", day.AddDate(0, 0, 2)),
	}}
	names := &stubNames{students: map[string]*models.Student{
		"1001": {ID: "1001", FirstName: "Dana", LastName: "Reyes"},
	}}
	publisher := &stubPublisher{}
	svc := newRunService(&stubTerms{term: &testTerm}, population, names, &constantFacts{}, publisher)

	var mu sync.Mutex
	var progress [][2]int
	started, err := svc.StartRun(StartOptions{Progress: func(processed, total int) {
		mu.Lock()
		progress = append(progress, [2]int{processed, total})
		mu.Unlock()
	}})
	require.NoError(t, err)
	require.Equal(t, models.RunStateRunning, started.State)
	require.NotEmpty(t, started.ID)

	status := waitForDone(t, svc)
	require.Equal(t, models.RunStateFinished, status.State)
	require.Equal(t, "2024SP", status.TermCode)
	require.Equal(t, 3, status.Processed)
	require.Equal(t, 3, status.Total)
	require.Equal(t, 2, status.Duplicates)
	require.NotNil(t, status.FinishedAt)

	mu.Lock()
	require.Equal(t, [][2]int{{1, 3}, {2, 3}, {3, 3}}, progress)
	mu.Unlock()

	rows, duplicates, calls := publisher.published()
	require.Equal(t, 1, calls)
	require.Len(t, rows, 3)
	require.Len(t, duplicates, 2)

	require.Equal(t, "Dana", rows[0].FirstName)
	require.Equal(t, "Reyes", rows[0].LastName)
	require.Empty(t, rows[1].FirstName)
	require.Empty(t, rows[1].LastName)
	require.Equal(t, "2024-01-08", rows[0].EnrollmentStart)
	require.Equal(t, "https://mediatechcloud.com/index.php?name=1001", rows[0].ProfileLink)
	for _, row := range duplicates {
		require.Equal(t, "1001", row.StudentID)
	}
}

func TestReconciliationNoActiveTermLeavesSnapshotUntouched(t *testing.T) {
	publisher := &stubPublisher{}
	svc := newRunService(&stubTerms{err: sql.ErrNoRows}, &stubPopulation{}, &stubNames{}, &constantFacts{}, publisher)

	_, err := svc.StartRun(StartOptions{})
	require.NoError(t, err)

	status := waitForDone(t, svc)
	require.Equal(t, models.RunStateFailed, status.State)
	require.Equal(t, appErrors.ErrNoActiveTerm.Message, status.Error)

	_, _, calls := publisher.published()
	require.Zero(t, calls)
}

func TestReconciliationRejectsConcurrentRuns(t *testing.T) {
	block := make(chan struct{})
	svc := newRunService(&stubTerms{term: &testTerm, block: block}, &stubPopulation{}, &stubNames{}, &constantFacts{}, &stubPublisher{})

	_, err := svc.StartRun(StartOptions{})
	require.NoError(t, err)

	_, err = svc.StartRun(StartOptions{})
	require.ErrorIs(t, err, appErrors.ErrRunInProgress)

	close(block)
	waitForDone(t, svc)

	_, err = svc.StartRun(StartOptions{})
	require.NoError(t, err)
	waitForDone(t, svc)
}

func TestReconciliationCancelStopsAtRowBoundary(t *testing.T) {
	block := make(chan struct{})
	day := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	population := &stubPopulation{list: []models.Enrollment{enrollmentFor("1001", day)}}
	publisher := &stubPublisher{}
	svc := newRunService(&stubTerms{term: &testTerm, block: block}, population, &stubNames{}, &constantFacts{}, publisher)

	_, err := svc.StartRun(StartOptions{})
	require.NoError(t, err)

	_, err = svc.Cancel()
	require.NoError(t, err)
	close(block)

	status := waitForDone(t, svc)
	require.Equal(t, models.RunStateCancelled, status.State)
	require.Zero(t, status.Processed)

	_, _, calls := publisher.published()
	require.Zero(t, calls)

	_, err = svc.Cancel()
	require.Error(t, err)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestReconciliationPublishFailureFailsRun(t *testing.T) {
	day := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	population := &stubPopulation{list: []models.Enrollment{enrollmentFor("1001", day)}}
	publisher := &stubPublisher{err: errors.New("disk full")}
	svc := newRunService(&stubTerms{term: &testTerm}, population, &stubNames{}, &constantFacts{}, publisher)

	_, err := svc.StartRun(StartOptions{})
	require.NoError(t, err)

	status := waitForDone(t, svc)
	require.Equal(t, models.RunStateFailed, status.State)
	require.NotEmpty(t, status.Error)
}
