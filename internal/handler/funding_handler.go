package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campusops/student-funds-api/internal/dto"
	"github.com/campusops/student-funds-api/internal/models"
	"github.com/campusops/student-funds-api/internal/service"
	appErrors "github.com/campusops/student-funds-api/pkg/errors"
	"github.com/campusops/student-funds-api/pkg/response"
)

// RunService drives the reconciliation run lifecycle.
type RunService interface {
	StartRun(opts service.StartOptions) (models.RunStatus, error)
	Status() (models.RunStatus, error)
	Cancel() (models.RunStatus, error)
}

// SnapshotReader serves the published dataset pair.
type SnapshotReader interface {
	Report(ctx context.Context, query dto.ReportQuery) ([]models.FundingGapRow, *models.Pagination, error)
	Duplicates(ctx context.Context) ([]models.FundingGapRow, error)
	DownloadCSV(ctx context.Context, duplicates bool) ([]byte, string, error)
	DownloadPDF(ctx context.Context, duplicates bool) ([]byte, string, error)
}

// FundingHandler exposes the reconciliation run and snapshot endpoints.
type FundingHandler struct {
	runs      RunService
	snapshots SnapshotReader
}

// NewFundingHandler constructs the handler.
func NewFundingHandler(runs RunService, snapshots SnapshotReader) *FundingHandler {
	return &FundingHandler{runs: runs, snapshots: snapshots}
}

// RegisterRoutes mounts the funding endpoints on the given group.
func (h *FundingHandler) RegisterRoutes(group *gin.RouterGroup) {
	funding := group.Group("/funding")
	funding.POST("/runs", h.TriggerRun)
	funding.GET("/runs/current", h.RunStatus)
	funding.DELETE("/runs/current", h.CancelRun)
	funding.GET("/report", h.Report)
	funding.GET("/report/download", h.DownloadReport)
	funding.GET("/duplicates", h.Duplicates)
	funding.GET("/duplicates/download", h.DownloadDuplicates)
}

// TriggerRun starts a reconciliation run. The optional body may override the
// cancelled disbursement filter for this run only.
func (h *FundingHandler) TriggerRun(c *gin.Context) {
	var req dto.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid run request"))
		return
	}

	status, err := h.runs.StartRun(service.StartOptions{
		ExcludeCancelled: req.ExcludeCancelledDisbursements,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, status)
}

// RunStatus reports the most recent run.
func (h *FundingHandler) RunStatus(c *gin.Context) {
	status, err := h.runs.Status()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// CancelRun requests cancellation of the in-flight run.
func (h *FundingHandler) CancelRun(c *gin.Context) {
	status, err := h.runs.Cancel()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, status)
}

// Report serves a page of the primary funding dataset.
func (h *FundingHandler) Report(c *gin.Context) {
	var query dto.ReportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report query"))
		return
	}

	rows, pagination, err := h.snapshots.Report(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, pagination)
}

// Duplicates serves the duplicates dataset in snapshot order.
func (h *FundingHandler) Duplicates(c *gin.Context) {
	rows, err := h.snapshots.Duplicates(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// DownloadReport streams the primary snapshot as CSV or PDF.
func (h *FundingHandler) DownloadReport(c *gin.Context) {
	h.download(c, false)
}

// DownloadDuplicates streams the duplicates snapshot as CSV or PDF.
func (h *FundingHandler) DownloadDuplicates(c *gin.Context) {
	h.download(c, true)
}

func (h *FundingHandler) download(c *gin.Context, duplicates bool) {
	var (
		data        []byte
		filename    string
		contentType string
		err         error
	)

	switch c.DefaultQuery("format", "csv") {
	case "csv":
		data, filename, err = h.snapshots.DownloadCSV(c.Request.Context(), duplicates)
		contentType = "text/csv"
	case "pdf":
		data, filename, err = h.snapshots.DownloadPDF(c.Request.Context(), duplicates)
		contentType = "application/pdf"
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf"))
		return
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, data)
}
