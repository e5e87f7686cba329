package models

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// NoTuitionMarker is the literal written to exports when no tuition
// transaction exists for a student within the term window. It is a distinct
// marker, not a zero amount.
const NoTuitionMarker = "No Tuition"

// Amount is a monetary or credit quantity. It renders with a fixed two
// decimal places so repeated runs over identical data produce byte-identical
// exports.
type Amount float64

func (a Amount) String() string {
	return strconv.FormatFloat(float64(a), 'f', 2, 64)
}

// MarshalCSV implements csvutil.Marshaler.
func (a Amount) MarshalCSV() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalCSV implements csvutil.Unmarshaler.
func (a *Amount) UnmarshalCSV(data []byte) error {
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("parse amount %q: %w", string(data), err)
	}
	*a = Amount(v)
	return nil
}

// TuitionAmount is either a summed tuition amount or the "No Tuition"
// marker. Found is false when the ledger sum was NULL, meaning no tuition
// transaction was found, which callers must not conflate with a zero charge.
type TuitionAmount struct {
	Amount float64
	Found  bool
}

// TuitionOf builds a present tuition amount.
func TuitionOf(amount float64) TuitionAmount {
	return TuitionAmount{Amount: amount, Found: true}
}

// NoTuition builds the absent-tuition marker.
func NoTuition() TuitionAmount {
	return TuitionAmount{}
}

func (t TuitionAmount) String() string {
	if !t.Found {
		return NoTuitionMarker
	}
	return Amount(t.Amount).String()
}

// MarshalCSV implements csvutil.Marshaler.
func (t TuitionAmount) MarshalCSV() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalCSV implements csvutil.Unmarshaler.
func (t *TuitionAmount) UnmarshalCSV(data []byte) error {
	if string(data) == NoTuitionMarker {
		*t = NoTuition()
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("parse tuition %q: %w", string(data), err)
	}
	*t = TuitionOf(v)
	return nil
}

// MarshalJSON renders the marker as a string and amounts as numbers.
func (t TuitionAmount) MarshalJSON() ([]byte, error) {
	if !t.Found {
		return json.Marshal(NoTuitionMarker)
	}
	return json.Marshal(t.Amount)
}

// UnmarshalJSON accepts either form produced by MarshalJSON.
func (t *TuitionAmount) UnmarshalJSON(data []byte) error {
	var marker string
	if err := json.Unmarshal(data, &marker); err == nil {
		if marker != NoTuitionMarker {
			return fmt.Errorf("unexpected tuition marker %q", marker)
		}
		*t = NoTuition()
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("parse tuition: %w", err)
	}
	*t = TuitionOf(v)
	return nil
}

// FundingFacts are the seven numeric facts derived for one student against a
// resolved term. RemainingNeed is always OverallPrice minus TotalScheduled,
// never clamped.
type FundingFacts struct {
	Tuition        TuitionAmount
	TermScheduled  float64
	TotalScheduled float64
	TermCredits    float64
	OverallCredits float64
	PricePerCredit float64
	SemesterPrice  float64
	OverallPrice   float64
	RemainingNeed  float64
}

// FundingGapRow is one reconciled output row per student per run. CSV tags
// fix the exported column set and order.
type FundingGapRow struct {
	StudentID       string           `csv:"Student ID" json:"student_id"`
	FirstName       string           `csv:"First Name" json:"first_name"`
	LastName        string           `csv:"Last Name" json:"last_name"`
	ProgramCode     string           `csv:"Program" json:"program_code"`
	EnrollmentStart string           `csv:"Start Date" json:"enrollment_start_date"`
	TermCode        string           `csv:"Term Code" json:"term_code"`
	Status          EnrollmentStatus `csv:"Status" json:"status"`
	Tuition         TuitionAmount    `csv:"Tuition" json:"tuition"`
	TermExpected    Amount           `csv:"Term Expected" json:"term_scheduled_funds"`
	TotalExpected   Amount           `csv:"Total Expected" json:"total_scheduled_funds"`
	TermCredits     Amount           `csv:"Credits" json:"term_credits"`
	PricePerCredit  Amount           `csv:"Price per Credit" json:"price_per_credit"`
	SemesterPrice   Amount           `csv:"Semester Price" json:"semester_price"`
	OverallCredits  Amount           `csv:"Overall Enrollment Credits" json:"overall_enrollment_credits"`
	OverallPrice    Amount           `csv:"Overall Price" json:"overall_price"`
	RemainingNeed   Amount           `csv:"Remaining Need" json:"remaining_need"`
	ProfileLink     string           `csv:"Link" json:"profile_link"`
}
