package dto

// RunRequest is the optional body of a run trigger. A nil override keeps the
// configured default for cancelled disbursement filtering.
type RunRequest struct {
	ExcludeCancelledDisbursements *bool `json:"exclude_cancelled_disbursements"`
}

// ReportQuery carries the paging and search parameters of report reads.
type ReportQuery struct {
	Q        string `form:"q" validate:"omitempty,max=100"`
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"pageSize" validate:"omitempty,min=1,max=200"`
}
