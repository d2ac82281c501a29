package session

// State enum values.
const (
	PendingState  State = iota // Tag not yet processed.
	DeletingState              // Manifest lookup or deletion in flight.
	DeletedState               // Tag deleted.
	FailedState                // Tag deletion failed.
)

// State indicates the current state of a tag during a deletion batch.
type State int

// String returns a lowercase name for the state.
func (s State) String() string {
	switch s {
	case PendingState:
		return "pending"
	case DeletingState:
		return "deleting"
	case DeletedState:
		return "deleted"
	case FailedState:
		return "failed"
	default:
		return "unknown"
	}
}

// TagStatus holds a tag's state during a deletion batch.
//
//nolint:errname // TagStatus is not an error type, it contains an error field.
type TagStatus struct {
	tag    string // Tag name.
	digest string // Manifest digest, once known.
	err    error  // Error encountered, if any.
	state  State  // Current state.
}

// Tag returns the tag name.
func (s *TagStatus) Tag() string {
	return s.tag
}

// Digest returns the manifest digest resolved for the tag, if any.
func (s *TagStatus) Digest() string {
	return s.digest
}

// Error returns the failure message, or an empty string.
func (s *TagStatus) Error() string {
	if s.err == nil {
		return ""
	}

	return s.err.Error()
}

// State returns the current state.
func (s *TagStatus) State() State {
	return s.state
}

// Done reports whether the tag has reached a final state.
func (s *TagStatus) Done() bool {
	return s.state == DeletedState || s.state == FailedState
}
