package resolver

import (
	"fmt"

	"github.com/nsoperations/depforge/core"
	"github.com/nsoperations/depforge/version"
)

// EventKind classifies resolver progress events.
type EventKind int

const (
	// EventConsidering - a dependency's candidate set is being examined.
	EventConsidering EventKind = iota
	// EventAttempting - a candidate version is tentatively pinned.
	EventAttempting
	// EventRejected - a candidate was discarded after a downstream conflict.
	EventRejected
	// EventBacktracking - the search unwound to an earlier decision point.
	EventBacktracking
	// EventPinned - a dependency was committed to one version.
	EventPinned
)

func (k EventKind) String() string {
	switch k {
	case EventConsidering:
		return "considering"
	case EventAttempting:
		return "attempting"
	case EventRejected:
		return "rejected"
	case EventBacktracking:
		return "backtracking"
	case EventPinned:
		return "pinned"
	default:
		return "unknown"
	}
}

// Event is one diagnostic occurrence during resolution. Events are an
// informational side channel: consuming or ignoring them never changes
// the resolution outcome.
type Event struct {
	// Session identifies the resolution run the event belongs to.
	Session string

	Kind       EventKind
	Dependency core.Dependency

	// Version is set for Attempting, Rejected, and Pinned events.
	Version version.Pinned

	// Remaining is the candidate count after the event, where meaningful.
	Remaining int
}

func (e Event) String() string {
	switch e.Kind {
	case EventAttempting, EventRejected, EventPinned:
		return fmt.Sprintf("%s %s @ %s", e.Kind, e.Dependency, e.Version)
	default:
		return fmt.Sprintf("%s %s", e.Kind, e.Dependency)
	}
}

// EventSink receives resolver progress events. Implementations must be
// fast; the resolver invokes them synchronously on its search loop.
type EventSink interface {
	ResolutionEvent(Event)
}

// EventSinkFunc adapts a function to the EventSink interface.
type EventSinkFunc func(Event)

// ResolutionEvent implements EventSink.
func (f EventSinkFunc) ResolutionEvent(e Event) { f(e) }
