package resolver

import "github.com/nsoperations/depforge/observability"

// LoggingSink returns an EventSink that forwards resolver events to a
// structured logger at Verbose level. It composes with other sinks via
// MultiSink.
func LoggingSink(log observability.Logger) EventSink {
	log = log.ForContext("Component", "resolver")
	return EventSinkFunc(func(e Event) {
		log.Verbose("{Event} {Dependency} at {Version} ({Remaining} remaining)",
			e.Kind.String(), e.Dependency.Name(), e.Version.Commitish, e.Remaining)
	})
}

// MultiSink fans one event stream out to several sinks in order.
func MultiSink(sinks ...EventSink) EventSink {
	return EventSinkFunc(func(e Event) {
		for _, s := range sinks {
			s.ResolutionEvent(e)
		}
	})
}
