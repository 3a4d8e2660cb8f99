package llm

import "context"

// Provider defines the interface for LLM providers.
type Provider interface {
	// Complete sends a completion request and returns the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	// Stream sends a completion request and returns an incremental token
	// stream. The stream is lazy and non-restartable; cancelling ctx aborts
	// it mid-flight.
	Stream(ctx context.Context, req CompletionRequest) (Stream, error)
	// Name returns the name of this provider.
	Name() string
}

// Stream is a finite pull-based sequence of content fragments. Recv returns
// io.EOF when the stream is exhausted; Usage is only meaningful after EOF
// and may be nil if the provider did not report token counts.
type Stream interface {
	Recv() (string, error)
	Usage() *Usage
	Close() error
}
