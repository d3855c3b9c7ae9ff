package model

const (
	// DefaultPerPage is the job list page size when none is given.
	DefaultPerPage = 20
	// MaxPerPage caps the job list page size.
	MaxPerPage = 100
)

// JobListOptions groups parameters for listing a tenant's jobs.
type JobListOptions struct {
	TenantID     string
	DeploymentID *string   // Optional filter by deployment
	Finished     TimeRange // Optional finished_at window; unlike DeleteRange both bounds may be nil
	Page         int
	PerPage      int
}

// Normalize clamps paging to sane values.
func (o *JobListOptions) Normalize() {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.PerPage < 1 {
		o.PerPage = DefaultPerPage
	}
	if o.PerPage > MaxPerPage {
		o.PerPage = MaxPerPage
	}
}

// Offset returns the row offset for the current page.
func (o *JobListOptions) Offset() int {
	return (o.Page - 1) * o.PerPage
}

// Pagination describes the position of a page within a listing.
type Pagination struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Total   int `json:"total"`
	Pages   int `json:"pages"`
}

// NewPagination computes the page count for total rows.
func NewPagination(page, perPage, total int) Pagination {
	pages := 0
	if perPage > 0 {
		pages = (total + perPage - 1) / perPage
	}
	return Pagination{Page: page, PerPage: perPage, Total: total, Pages: pages}
}

// JobPage is one page of a job listing.
type JobPage struct {
	Jobs       []*Job     `json:"jobs"`
	Pagination Pagination `json:"pagination"`
}
