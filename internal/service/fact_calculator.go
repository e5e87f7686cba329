package service

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/campusops/student-funds-api/internal/models"
)

// EnrollmentFactSource exposes the enrollment-history reads needed to derive
// per-student facts.
type EnrollmentFactSource interface {
	LatestAcceptedCredits(ctx context.Context, studentID string, statuses []models.EnrollmentStatus) (sql.NullFloat64, error)
	MaxSequence(ctx context.Context, studentID string) (sql.NullInt64, error)
}

// ProgramPriceSource resolves the active per-credit price of a program.
type ProgramPriceSource interface {
	FindActivePrice(ctx context.Context, programCode string) (sql.NullString, error)
}

// TuitionSource sums tuition ledger transactions inside a date window.
type TuitionSource interface {
	SumTuition(ctx context.Context, studentID string, start, end time.Time) (sql.NullFloat64, error)
}

// DisbursementSource sums scheduled aid by window and by enrollment episode.
type DisbursementSource interface {
	SumScheduledBetween(ctx context.Context, studentID string, start, end time.Time, excludeStatus string) (sql.NullFloat64, error)
	SumByEnrollmentSequence(ctx context.Context, studentID string, sequence int64, excludeStatus string) (sql.NullFloat64, error)
}

// TranscriptSource sums transcript credits overlapping a date window.
type TranscriptSource interface {
	SumCreditsOverlapping(ctx context.Context, studentID string, start, end time.Time) (sql.NullFloat64, error)
}

// FactMetrics records fact-level degradations for observability.
type FactMetrics interface {
	DegradedFact(fact string)
}

// FactOptions carries the per-run knobs of fact derivation. The cancelled
// filter travels here explicitly instead of living in shared mutable state,
// so concurrent readers of previous snapshots are never affected by the
// filter of an in-flight run.
type FactOptions struct {
	AcceptedStatuses []models.EnrollmentStatus
	ExcludeCancelled bool
	CancelledStatus  string
}

func (o FactOptions) excludeStatus() string {
	if !o.ExcludeCancelled {
		return ""
	}
	return o.CancelledStatus
}

// FactCalculator derives the seven funding facts for one student against a
// resolved term. Every fact degrades independently: a failed or empty read
// yields the fact's zero value (or the no-tuition marker) and the remaining
// facts are still derived, so one broken record set never aborts a run.
type FactCalculator struct {
	enrollments   EnrollmentFactSource
	programs      ProgramPriceSource
	ledger        TuitionSource
	disbursements DisbursementSource
	transcripts   TranscriptSource
	metrics       FactMetrics
	logger        *zap.Logger
}

// NewFactCalculator wires the calculator to its five record sources.
func NewFactCalculator(
	enrollments EnrollmentFactSource,
	programs ProgramPriceSource,
	ledger TuitionSource,
	disbursements DisbursementSource,
	transcripts TranscriptSource,
	metrics FactMetrics,
	logger *zap.Logger,
) *FactCalculator {
	return &FactCalculator{
		enrollments:   enrollments,
		programs:      programs,
		ledger:        ledger,
		disbursements: disbursements,
		transcripts:   transcripts,
		metrics:       metrics,
		logger:        logger,
	}
}

// Compute derives the funding facts for one enrollment within the term.
func (c *FactCalculator) Compute(ctx context.Context, term models.Term, enrollment models.Enrollment, opts FactOptions) models.FundingFacts {
	facts := models.FundingFacts{Tuition: models.NoTuition()}
	studentID := enrollment.StudentID
	exclude := opts.excludeStatus()

	if sum, err := c.ledger.SumTuition(ctx, studentID, term.StartDate, term.EndDate); err != nil {
		c.degrade(studentID, "tuition", err)
	} else if sum.Valid {
		facts.Tuition = models.TuitionOf(sum.Float64)
	}

	if sum, err := c.disbursements.SumScheduledBetween(ctx, studentID, term.StartDate, term.EndDate, exclude); err != nil {
		c.degrade(studentID, "term_scheduled", err)
	} else if sum.Valid {
		facts.TermScheduled = sum.Float64
	}

	facts.TotalScheduled = c.totalScheduled(ctx, studentID, exclude)

	if sum, err := c.transcripts.SumCreditsOverlapping(ctx, studentID, term.StartDate, term.EndDate); err != nil {
		c.degrade(studentID, "term_credits", err)
	} else if sum.Valid {
		facts.TermCredits = sum.Float64
	}

	if credits, err := c.enrollments.LatestAcceptedCredits(ctx, studentID, opts.AcceptedStatuses); err != nil {
		c.degrade(studentID, "overall_credits", err)
	} else if credits.Valid {
		facts.OverallCredits = credits.Float64
	}

	facts.PricePerCredit = c.pricePerCredit(ctx, studentID, enrollment.ProgramCode)
	facts.SemesterPrice = facts.PricePerCredit * facts.TermCredits
	facts.OverallPrice = facts.PricePerCredit * facts.OverallCredits
	facts.RemainingNeed = facts.OverallPrice - facts.TotalScheduled

	return facts
}

// totalScheduled sums aid across the student's latest enrollment episode.
// The episode is resolved over the full history regardless of status or
// record type, so aid attached to a superseded or non-enrollment sequence
// never leaks into the total.
func (c *FactCalculator) totalScheduled(ctx context.Context, studentID, exclude string) float64 {
	seq, err := c.enrollments.MaxSequence(ctx, studentID)
	if err != nil {
		c.degrade(studentID, "total_scheduled", err)
		return 0
	}
	if !seq.Valid {
		return 0
	}

	sum, err := c.disbursements.SumByEnrollmentSequence(ctx, studentID, seq.Int64, exclude)
	if err != nil {
		c.degrade(studentID, "total_scheduled", err)
		return 0
	}
	if !sum.Valid {
		return 0
	}
	return sum.Float64
}

// pricePerCredit parses the program's textual price field. A missing
// program, an empty field, or a non-numeric value all price the program at
// zero, which in turn zeroes both derived price facts.
func (c *FactCalculator) pricePerCredit(ctx context.Context, studentID, programCode string) float64 {
	raw, err := c.programs.FindActivePrice(ctx, programCode)
	if err != nil {
		if err != sql.ErrNoRows {
			c.degrade(studentID, "price_per_credit", err)
		}
		return 0
	}
	if !raw.Valid {
		return 0
	}

	trimmed := strings.TrimSpace(raw.String)
	if trimmed == "" {
		return 0
	}

	price, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		c.logger.Warn("non-numeric program price treated as zero",
			zap.String("program_code", programCode),
			zap.String("raw_price", raw.String))
		return 0
	}
	return price
}

func (c *FactCalculator) degrade(studentID, fact string, err error) {
	c.logger.Warn("funding fact degraded to zero value",
		zap.String("student_id", studentID),
		zap.String("fact", fact),
		zap.Error(err))
	if c.metrics != nil {
		c.metrics.DegradedFact(fact)
	}
}
