package progress

import "context"

// Sink consumes batches of events. Implementations must tolerate being called
// from a single background goroutine and should not block for long.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}
