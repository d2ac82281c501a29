package session

import (
	"github.com/sirupsen/logrus"
)

// Progress tracks tag statuses during a deletion batch, in request order.
type Progress struct {
	repository string
	order      []*TagStatus
	byTag      map[string]*TagStatus
}

// NewProgress creates a progress tracker with every tag pending.
// Duplicate tags are tracked once.
func NewProgress(repository string, tags []string) *Progress {
	progress := &Progress{
		repository: repository,
		order:      make([]*TagStatus, 0, len(tags)),
		byTag:      make(map[string]*TagStatus, len(tags)),
	}

	for _, tag := range tags {
		if _, exists := progress.byTag[tag]; exists {
			continue
		}

		status := &TagStatus{tag: tag, state: PendingState}
		progress.order = append(progress.order, status)
		progress.byTag[tag] = status
	}

	return progress
}

// Repository returns the repository the batch operates on.
func (p *Progress) Repository() string {
	return p.repository
}

// Tags returns the tags in request order.
func (p *Progress) Tags() []string {
	tags := make([]string, 0, len(p.order))
	for _, status := range p.order {
		tags = append(tags, status.tag)
	}

	return tags
}

// MarkDeleting records that work on a tag has started.
func (p *Progress) MarkDeleting(tag string) {
	if status := p.lookup(tag, "deleting"); status != nil {
		status.state = DeletingState
	}
}

// MarkDeleted records a successful deletion.
func (p *Progress) MarkDeleted(tag, digest string) {
	status := p.lookup(tag, "deleted")
	if status == nil {
		return
	}

	status.digest = digest
	status.state = DeletedState

	logrus.WithFields(logrus.Fields{
		"repo":   p.repository,
		"tag":    tag,
		"digest": digest,
	}).Debug("Marked tag as deleted")
}

// MarkFailed records a failed deletion.
func (p *Progress) MarkFailed(tag, digest string, err error) {
	status := p.lookup(tag, "failed")
	if status == nil {
		return
	}

	status.digest = digest
	status.err = err
	status.state = FailedState

	logrus.WithFields(logrus.Fields{
		"repo": p.repository,
		"tag":  tag,
	}).WithError(err).Warn("Failed to delete tag")
}

func (p *Progress) lookup(tag, target string) *TagStatus {
	status, exists := p.byTag[tag]
	if !exists {
		logrus.WithFields(logrus.Fields{
			"repo": p.repository,
			"tag":  tag,
		}).Debugf("Attempted to mark unknown tag as %s", target)

		return nil
	}

	return status
}

// Statuses returns the tag statuses in request order.
func (p *Progress) Statuses() []*TagStatus {
	return append([]*TagStatus(nil), p.order...)
}

// Status returns the status of a tag.
func (p *Progress) Status(tag string) (*TagStatus, bool) {
	status, ok := p.byTag[tag]

	return status, ok
}

// Total returns the number of tags in the batch.
func (p *Progress) Total() int {
	return len(p.order)
}

// Completed returns the number of tags that reached a final state.
func (p *Progress) Completed() int {
	completed := 0

	for _, status := range p.order {
		if status.Done() {
			completed++
		}
	}

	return completed
}

// Report tallies the final states into a Report.
func (p *Progress) Report() *Report {
	report := NewReport(p.repository)

	for _, status := range p.order {
		switch status.state {
		case DeletedState:
			report.AddDeleted(status.tag)
		case FailedState:
			report.AddFailed(status.tag, status.err)
		case PendingState, DeletingState:
		}
	}

	logrus.WithFields(logrus.Fields{
		"repo":    p.repository,
		"deleted": report.Deleted,
		"failed":  report.Failed,
	}).Debug("Generated deletion report")

	return report
}
