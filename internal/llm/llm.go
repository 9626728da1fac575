// Package llm sends chat-completion requests to an OpenAI-compatible endpoint.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrMissingAPIKey is returned when no API key is configured or stored.
var ErrMissingAPIKey = errors.New("no API key configured; set one with `apuntes key set`")

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat message.
type Message struct {
	Role    Role
	Content string
}

// Request is a single chat-completion call. An empty Model uses the client's default.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
}

// Client completes chat requests and returns the first choice's text, trimmed.
type Client interface {
	Complete(ctx context.Context, req *Request) (string, error)
}

// RemoteError wraps a failed or unusable response from the remote endpoint.
type RemoteError struct {
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("chat completion failed: %v", e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }
