// Package ai talks to chat-completion backends. A provider receives the
// whole conversation context (system turn first) and returns the assistant
// text. An empty reply with a nil error means the upstream answered but
// produced no usable content; callers decide what to substitute.
package ai

import "context"

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}
