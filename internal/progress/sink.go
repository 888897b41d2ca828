package progress

import "context"

// Sink consumes batches of progress events. Implementations must be safe for
// repeated calls, honor ctx deadlines, and may be invoked concurrently.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

// Emitter publishes individual events; Hub satisfies this interface so the
// scrape workers can remain agnostic about how events are buffered or
// consumed. A nil Emitter is valid and discards everything.
type Emitter interface {
	Emit(evt Event)
}
