package service

import "github.com/campusops/student-funds-api/internal/models"

// FindDuplicateRows returns every row whose student id appears more than
// once in the input, first occurrences included, in the order the rows were
// encountered. Counting happens in a separate pass before any row is
// selected, so a student's later rows never change whether their earlier
// rows qualify.
func FindDuplicateRows(rows []models.FundingGapRow) []models.FundingGapRow {
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.StudentID]++
	}

	var duplicates []models.FundingGapRow
	for _, row := range rows {
		if counts[row.StudentID] > 1 {
			duplicates = append(duplicates, row)
		}
	}
	return duplicates
}
