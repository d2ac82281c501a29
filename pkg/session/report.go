package session

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// errUnknownFailure stands in for a failure recorded without an error.
var errUnknownFailure = errors.New("unknown error")

// Report is the tally of a deletion batch. Errors holds one "tag: message"
// entry per failed tag, in request order.
type Report struct {
	Repository  string   `json:"repository"`
	Deleted     int      `json:"deleted"`
	Failed      int      `json:"failed"`
	Errors      []string `json:"errors"`
	DeletedTags []string `json:"deleted_tags"`

	errs *multierror.Error
}

// NewReport creates an empty report for a repository.
func NewReport(repository string) *Report {
	return &Report{
		Repository:  repository,
		Errors:      []string{},
		DeletedTags: []string{},
	}
}

// AddDeleted counts a successful deletion.
func (r *Report) AddDeleted(tag string) {
	r.Deleted++
	r.DeletedTags = append(r.DeletedTags, tag)
}

// AddFailed counts a failed deletion.
func (r *Report) AddFailed(tag string, err error) {
	if err == nil {
		err = errUnknownFailure
	}

	r.Failed++
	r.Errors = append(r.Errors, fmt.Sprintf("%s: %s", tag, err))
	r.errs = multierror.Append(r.errs, fmt.Errorf("%s: %w", tag, err))
}

// Total returns the number of tags that were processed.
func (r *Report) Total() int {
	return r.Deleted + r.Failed
}

// Err returns the combined per-tag failures, or nil when every tag was deleted.
func (r *Report) Err() error {
	return r.errs.ErrorOrNil()
}

// String summarises the tally.
func (r *Report) String() string {
	return fmt.Sprintf("%s: %d deleted, %d failed", r.Repository, r.Deleted, r.Failed)
}
