package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/campusops/student-funds-api/internal/dto"
	"github.com/campusops/student-funds-api/internal/models"
	"github.com/campusops/student-funds-api/internal/service"
	appErrors "github.com/campusops/student-funds-api/pkg/errors"
)

type stubRunService struct {
	status    models.RunStatus
	startErr  error
	statusErr error
	cancelErr error
	gotOpts   service.StartOptions
}

func (s *stubRunService) StartRun(opts service.StartOptions) (models.RunStatus, error) {
	s.gotOpts = opts
	return s.status, s.startErr
}

func (s *stubRunService) Status() (models.RunStatus, error) {
	return s.status, s.statusErr
}

func (s *stubRunService) Cancel() (models.RunStatus, error) {
	return s.status, s.cancelErr
}

type stubSnapshotReader struct {
	rows       []models.FundingGapRow
	pagination *models.Pagination
	err        error
	gotQuery   dto.ReportQuery
}

func (s *stubSnapshotReader) Report(_ context.Context, query dto.ReportQuery) ([]models.FundingGapRow, *models.Pagination, error) {
	s.gotQuery = query
	return s.rows, s.pagination, s.err
}

func (s *stubSnapshotReader) Duplicates(_ context.Context) ([]models.FundingGapRow, error) {
	return s.rows, s.err
}

func (s *stubSnapshotReader) DownloadCSV(_ context.Context, _ bool) ([]byte, string, error) {
	if s.err != nil {
		return nil, "", s.err
	}
	return []byte("Student ID\n1001\n"), "student_funds.csv", nil
}

func (s *stubSnapshotReader) DownloadPDF(_ context.Context, _ bool) ([]byte, string, error) {
	if s.err != nil {
		return nil, "", s.err
	}
	return []byte("%PDF-1.4"), "student_funds.pdf", nil
}

func newTestRouter(runs RunService, snapshots SnapshotReader) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewFundingHandler(runs, snapshots).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func perform(r *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func runningStatus() models.RunStatus {
	return models.RunStatus{
		ID:        "run-1",
		State:     models.RunStateRunning,
		StartedAt: time.Date(2024, 2, 15, 12, 0, 0, 0, time.UTC),
	}
}

func TestTriggerRunAccepted(t *testing.T) {
	runs := &stubRunService{status: runningStatus()}
	r := newTestRouter(runs, &stubSnapshotReader{})

	w := perform(r, http.MethodPost, "/api/v1/funding/runs", "")
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Contains(t, w.Body.String(), "run-1")
	require.Nil(t, runs.gotOpts.ExcludeCancelled)
}

func TestTriggerRunFilterOverride(t *testing.T) {
	runs := &stubRunService{status: runningStatus()}
	r := newTestRouter(runs, &stubSnapshotReader{})

	w := perform(r, http.MethodPost, "/api/v1/funding/runs", `{"exclude_cancelled_disbursements": false}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	require.NotNil(t, runs.gotOpts.ExcludeCancelled)
	require.False(t, *runs.gotOpts.ExcludeCancelled)
}

func TestTriggerRunConflict(t *testing.T) {
	runs := &stubRunService{status: runningStatus(), startErr: appErrors.ErrRunInProgress}
	r := newTestRouter(runs, &stubSnapshotReader{})

	w := perform(r, http.MethodPost, "/api/v1/funding/runs", "")
	require.Equal(t, http.StatusConflict, w.Code)
	require.Contains(t, w.Body.String(), appErrors.ErrRunInProgress.Code)
}

func TestRunStatusBeforeFirstRun(t *testing.T) {
	runs := &stubRunService{statusErr: appErrors.ErrNoRun}
	r := newTestRouter(runs, &stubSnapshotReader{})

	w := perform(r, http.MethodGet, "/api/v1/funding/runs/current", "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestRunStatusOK(t *testing.T) {
	runs := &stubRunService{status: runningStatus()}
	r := newTestRouter(runs, &stubSnapshotReader{})

	w := perform(r, http.MethodGet, "/api/v1/funding/runs/current", "")
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data models.RunStatus `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Equal(t, models.RunStateRunning, envelope.Data.State)
}

func TestCancelRunAccepted(t *testing.T) {
	runs := &stubRunService{status: runningStatus()}
	r := newTestRouter(runs, &stubSnapshotReader{})

	w := perform(r, http.MethodDelete, "/api/v1/funding/runs/current", "")
	require.Equal(t, http.StatusAccepted, w.Code)
}

func TestReportReturnsPage(t *testing.T) {
	snapshots := &stubSnapshotReader{
		rows:       []models.FundingGapRow{{StudentID: "1001"}},
		pagination: &models.Pagination{Page: 1, PageSize: 50, TotalCount: 1},
	}
	r := newTestRouter(&stubRunService{}, snapshots)

	w := perform(r, http.MethodGet, "/api/v1/funding/report?q=dana&page=1&pageSize=50", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "dana", snapshots.gotQuery.Q)
	require.Equal(t, 50, snapshots.gotQuery.PageSize)
	require.Contains(t, w.Body.String(), "pagination")
}

func TestReportNoSnapshot(t *testing.T) {
	snapshots := &stubSnapshotReader{err: appErrors.ErrNoSnapshot}
	r := newTestRouter(&stubRunService{}, snapshots)

	w := perform(r, http.MethodGet, "/api/v1/funding/report", "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestDownloadReportCSV(t *testing.T) {
	r := newTestRouter(&stubRunService{}, &stubSnapshotReader{})

	w := perform(r, http.MethodGet, "/api/v1/funding/report/download", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	require.Contains(t, w.Header().Get("Content-Disposition"), "student_funds.csv")
}

func TestDownloadReportPDF(t *testing.T) {
	r := newTestRouter(&stubRunService{}, &stubSnapshotReader{})

	w := perform(r, http.MethodGet, "/api/v1/funding/report/download?format=pdf", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
}

func TestDownloadReportBadFormat(t *testing.T) {
	r := newTestRouter(&stubRunService{}, &stubSnapshotReader{})

	w := perform(r, http.MethodGet, "/api/v1/funding/report/download?format=xlsx", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDuplicatesEndpoint(t *testing.T) {
	snapshots := &stubSnapshotReader{rows: []models.FundingGapRow{{StudentID: "1001"}, {StudentID: "1001"}}}
	r := newTestRouter(&stubRunService{}, snapshots)

	w := perform(r, http.MethodGet, "/api/v1/funding/duplicates", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "1001")
}
