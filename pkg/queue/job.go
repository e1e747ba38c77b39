package queue

import "context"

// Job consumes one message type off the queue.
type Job interface {
	// Name identifies the job in logs.
	Name() string

	// Type is the message type this job handles.
	Type() string

	// Handle processes one payload. An error requeues the message until
	// the retry limit.
	Handle(ctx context.Context, payload interface{}) error
}
