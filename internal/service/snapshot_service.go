package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campusops/student-funds-api/internal/dto"
	"github.com/campusops/student-funds-api/internal/models"
	"github.com/campusops/student-funds-api/pkg/config"
	appErrors "github.com/campusops/student-funds-api/pkg/errors"
)

// SnapshotCodec encodes row slices to CSV bytes and back.
type SnapshotCodec interface {
	Marshal(rows interface{}) ([]byte, error)
	Unmarshal(data []byte, rows interface{}) error
}

// SnapshotStore persists snapshot files across restarts.
type SnapshotStore interface {
	Save(filename string, data []byte) (string, error)
	Read(filename string) ([]byte, error)
	Exists(filename string) bool
}

// SnapshotCache is an optional read-through cache over snapshot rows.
type SnapshotCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// TableRenderer renders a dataset into a downloadable document.
type TableRenderer interface {
	Render(title string, headers []string, records [][]string) ([]byte, error)
}

const (
	cacheKeyReport     = "funding:snapshot:report"
	cacheKeyDuplicates = "funding:snapshot:duplicates"
	cacheKeyPattern    = "funding:snapshot:*"

	defaultPageSize = 50
)

// snapshotColumns is the served column order of both datasets. It matches
// the `csv` tags on FundingGapRow.
var snapshotColumns = []string{
	"Student ID", "First Name", "Last Name", "Program", "Start Date",
	"Term Code", "Status", "Tuition", "Term Expected", "Total Expected",
	"Credits", "Price per Credit", "Semester Price",
	"Overall Enrollment Credits", "Overall Price", "Remaining Need", "Link",
}

// SnapshotService serves the most recently published dataset pair and
// survives restarts by restoring rows from the CSV files on disk. Publishing
// replaces both files and the in-memory copies together; readers in between
// keep the previous snapshot.
type SnapshotService struct {
	codec    SnapshotCodec
	store    SnapshotStore
	cache    SnapshotCache
	pdf      TableRenderer
	validate *validator.Validate
	cfg      config.FundingConfig
	cacheTTL time.Duration
	logger   *zap.Logger

	mu         sync.RWMutex
	rows       []models.FundingGapRow
	duplicates []models.FundingGapRow
	loaded     bool
}

// NewSnapshotService wires the snapshot read model.
func NewSnapshotService(
	codec SnapshotCodec,
	store SnapshotStore,
	cache SnapshotCache,
	pdf TableRenderer,
	cfg config.FundingConfig,
	cacheTTL time.Duration,
	logger *zap.Logger,
) *SnapshotService {
	return &SnapshotService{
		codec:    codec,
		store:    store,
		cache:    cache,
		pdf:      pdf,
		validate: validator.New(),
		cfg:      cfg,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// Publish writes both snapshot files and swaps the served rows. The previous
// snapshot stays visible until both writes succeed.
func (s *SnapshotService) Publish(rows, duplicates []models.FundingGapRow) error {
	if rows == nil {
		rows = []models.FundingGapRow{}
	}
	if duplicates == nil {
		duplicates = []models.FundingGapRow{}
	}

	primary, err := s.codec.Marshal(rows)
	if err != nil {
		return fmt.Errorf("encode funding snapshot: %w", err)
	}
	secondary, err := s.codec.Marshal(duplicates)
	if err != nil {
		return fmt.Errorf("encode duplicates snapshot: %w", err)
	}

	if _, err := s.store.Save(s.cfg.SnapshotFilename, primary); err != nil {
		return fmt.Errorf("store funding snapshot: %w", err)
	}
	if _, err := s.store.Save(s.cfg.DuplicatesFilename, secondary); err != nil {
		return fmt.Errorf("store duplicates snapshot: %w", err)
	}

	s.mu.Lock()
	s.rows = rows
	s.duplicates = duplicates
	s.loaded = true
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.DeleteByPattern(context.Background(), cacheKeyPattern); err != nil {
			s.logger.Warn("snapshot cache invalidation failed", zap.Error(err))
		}
	}

	s.logger.Info("funding snapshot published",
		zap.Int("rows", len(rows)),
		zap.Int("duplicate_rows", len(duplicates)))
	return nil
}

// Report returns one page of the primary dataset, optionally narrowed by a
// case-insensitive search across id, names and program code.
func (s *SnapshotService) Report(ctx context.Context, query dto.ReportQuery) ([]models.FundingGapRow, *models.Pagination, error) {
	if err := s.validate.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report query")
	}

	rows, err := s.latest(ctx)
	if err != nil {
		return nil, nil, err
	}

	filtered := filterRows(rows, query.Q)

	page := query.Page
	if page < 1 {
		page = 1
	}
	pageSize := query.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}

	pagination := &models.Pagination{Page: page, PageSize: pageSize, TotalCount: len(filtered)}

	offset := (page - 1) * pageSize
	if offset >= len(filtered) {
		return []models.FundingGapRow{}, pagination, nil
	}
	end := offset + pageSize
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[offset:end], pagination, nil
}

// Duplicates returns the full duplicates dataset in snapshot order.
func (s *SnapshotService) Duplicates(ctx context.Context) ([]models.FundingGapRow, error) {
	_, duplicates, err := s.datasets(ctx)
	if err != nil {
		return nil, err
	}
	return duplicates, nil
}

// DownloadCSV returns the stored snapshot file bytes and filename.
func (s *SnapshotService) DownloadCSV(ctx context.Context, duplicates bool) ([]byte, string, error) {
	filename := s.cfg.SnapshotFilename
	if duplicates {
		filename = s.cfg.DuplicatesFilename
	}
	if !s.store.Exists(filename) {
		return nil, "", appErrors.ErrNoSnapshot
	}
	data, err := s.store.Read(filename)
	if err != nil {
		return nil, "", fmt.Errorf("read snapshot file: %w", err)
	}
	return data, filename, nil
}

// DownloadPDF renders the requested dataset as a PDF document.
func (s *SnapshotService) DownloadPDF(ctx context.Context, duplicates bool) ([]byte, string, error) {
	primary, dupes, err := s.datasets(ctx)
	if err != nil {
		return nil, "", err
	}

	rows, title, filename := primary, "Student Funding Report", "student_funds.pdf"
	if duplicates {
		rows, title, filename = dupes, "Duplicate Student Funding Rows", "duplicate_student_funds.pdf"
	}

	data, err := s.pdf.Render(title, snapshotColumns, rowRecords(rows))
	if err != nil {
		return nil, "", fmt.Errorf("render snapshot pdf: %w", err)
	}
	return data, filename, nil
}

func (s *SnapshotService) latest(ctx context.Context) ([]models.FundingGapRow, error) {
	rows, _, err := s.datasets(ctx)
	return rows, err
}

func (s *SnapshotService) datasets(ctx context.Context) ([]models.FundingGapRow, []models.FundingGapRow, error) {
	s.mu.RLock()
	if s.loaded {
		rows, duplicates := s.rows, s.duplicates
		s.mu.RUnlock()
		return rows, duplicates, nil
	}
	s.mu.RUnlock()

	if rows, duplicates, ok := s.fromCache(ctx); ok {
		return rows, duplicates, nil
	}

	rows, duplicates, err := s.fromDisk()
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	s.rows = rows
	s.duplicates = duplicates
	s.loaded = true
	s.mu.Unlock()

	s.fillCache(ctx, rows, duplicates)
	return rows, duplicates, nil
}

func (s *SnapshotService) fromCache(ctx context.Context) ([]models.FundingGapRow, []models.FundingGapRow, bool) {
	if s.cache == nil {
		return nil, nil, false
	}
	var rows []models.FundingGapRow
	if err := s.cache.Get(ctx, cacheKeyReport, &rows); err != nil {
		return nil, nil, false
	}
	var duplicates []models.FundingGapRow
	if err := s.cache.Get(ctx, cacheKeyDuplicates, &duplicates); err != nil {
		return nil, nil, false
	}
	return rows, duplicates, true
}

func (s *SnapshotService) fillCache(ctx context.Context, rows, duplicates []models.FundingGapRow) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKeyReport, rows, s.cacheTTL); err != nil {
		s.logger.Warn("snapshot cache write failed", zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, cacheKeyDuplicates, duplicates, s.cacheTTL); err != nil {
		s.logger.Warn("snapshot cache write failed", zap.Error(err))
	}
}

// fromDisk restores the dataset pair written by a previous process. A
// missing duplicates file alongside a present primary file restores as an
// empty duplicates set.
func (s *SnapshotService) fromDisk() ([]models.FundingGapRow, []models.FundingGapRow, error) {
	if !s.store.Exists(s.cfg.SnapshotFilename) {
		return nil, nil, appErrors.ErrNoSnapshot
	}

	data, err := s.store.Read(s.cfg.SnapshotFilename)
	if err != nil {
		return nil, nil, fmt.Errorf("read snapshot file: %w", err)
	}
	var rows []models.FundingGapRow
	if err := s.codec.Unmarshal(data, &rows); err != nil {
		return nil, nil, fmt.Errorf("restore funding snapshot: %w", err)
	}

	var duplicates []models.FundingGapRow
	if s.store.Exists(s.cfg.DuplicatesFilename) {
		data, err := s.store.Read(s.cfg.DuplicatesFilename)
		if err != nil {
			return nil, nil, fmt.Errorf("read duplicates file: %w", err)
		}
		if err := s.codec.Unmarshal(data, &duplicates); err != nil {
			return nil, nil, fmt.Errorf("restore duplicates snapshot: %w", err)
		}
	}

	s.logger.Info("funding snapshot restored from disk",
		zap.Int("rows", len(rows)),
		zap.Int("duplicate_rows", len(duplicates)))
	return rows, duplicates, nil
}

func filterRows(rows []models.FundingGapRow, q string) []models.FundingGapRow {
	if q == "" {
		return rows
	}
	needle := strings.ToLower(q)
	filtered := make([]models.FundingGapRow, 0, len(rows))
	for _, row := range rows {
		if strings.Contains(strings.ToLower(row.StudentID), needle) ||
			strings.Contains(strings.ToLower(row.FirstName), needle) ||
			strings.Contains(strings.ToLower(row.LastName), needle) ||
			strings.Contains(strings.ToLower(row.ProgramCode), needle) {
			filtered = append(filtered, row)
		}
	}
	return filtered
}

func rowRecords(rows []models.FundingGapRow) [][]string {
	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		records = append(records, []string{
			row.StudentID,
			row.FirstName,
			row.LastName,
			row.ProgramCode,
			row.EnrollmentStart,
			row.TermCode,
			string(row.Status),
			row.Tuition.String(),
			row.TermExpected.String(),
			row.TotalExpected.String(),
			row.TermCredits.String(),
			row.PricePerCredit.String(),
			row.SemesterPrice.String(),
			row.OverallCredits.String(),
			row.OverallPrice.String(),
			row.RemainingNeed.String(),
			row.ProfileLink,
		})
	}
	return records
}
