// Package inference defines the boundary to the local inference service:
// two small capability interfaces (embedding and chat) plus an HTTP client
// speaking the OpenAI-compatible API that local runtimes (ollama, llama.cpp,
// vLLM) expose. Swapping providers must not touch the embedding index, the
// search layer, or the conversation loop.
package inference

import "context"

// Message is one chat turn sent to the completion endpoint.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Chatter produces completions, buffered or streamed.
type Chatter interface {
	Complete(ctx context.Context, messages []Message) (string, error)
	CompleteStream(ctx context.Context, messages []Message) (Stream, error)
}

// Stream is a pull-based, finite sequence of text increments. Recv returns
// io.EOF after the final increment. Cancellation is simply ceasing to pull
// and closing the stream.
type Stream interface {
	Recv() (string, error)
	Close() error
}
