package domain

import "fmt"

type DiagramStatus string

const (
	StatusPending    DiagramStatus = "pending"
	StatusProcessing DiagramStatus = "processing"
	StatusCompleted  DiagramStatus = "completed"
	StatusError      DiagramStatus = "error"
)

var allowedTransitions = map[DiagramStatus][]DiagramStatus{
	StatusPending:    {StatusProcessing, StatusCompleted, StatusError},
	StatusProcessing: {StatusCompleted, StatusError},
}

func (s DiagramStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusError:
		return true
	default:
		return false
	}
}

func (s DiagramStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}

// CanTransition reports whether a diagram in status from may move to to.
// Staying in the same non-terminal status is allowed and has no effect.
func CanTransition(from, to DiagramStatus) bool {
	if from == to {
		return !from.IsTerminal()
	}
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckTransition returns ErrInvalidTransition for moves the lifecycle does
// not allow, including any move out of a terminal status.
func CheckTransition(from, to DiagramStatus) error {
	if !from.Valid() || !to.Valid() {
		return WrapError(ErrInvalidTransition, "check transition", fmt.Errorf("unknown status %q -> %q", from, to))
	}
	if !CanTransition(from, to) {
		return WrapError(ErrInvalidTransition, "check transition", fmt.Errorf("%s -> %s", from, to))
	}
	return nil
}

// SourcesFor lists the statuses a diagram may be in for a move to target to
// be applied. Stores use it to guard conditional updates.
func SourcesFor(to DiagramStatus) []DiagramStatus {
	var sources []DiagramStatus
	for _, from := range []DiagramStatus{StatusPending, StatusProcessing} {
		if CanTransition(from, to) {
			sources = append(sources, from)
		}
	}
	return sources
}
