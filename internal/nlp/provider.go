package nlp

import (
	"context"
	"fmt"
)

// Role is the sender of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one prior message in the student's active session.
type Turn struct {
	Role    Role
	Content string
}

// TextProvider answers a text-only question given the conversation so far.
type TextProvider interface {
	Complete(ctx context.Context, system string, turns []Turn, maxTokens int) (string, error)
	Name() string
}

// VisionProvider answers a question about an image.
type VisionProvider interface {
	Analyze(ctx context.Context, prompt string, image []byte, maxTokens int) (string, error)
	Name() string
}

// ErrRateLimit indicates the provider returned a rate limit error (429).
type ErrRateLimit struct {
	Err error
}

func (e *ErrRateLimit) Error() string {
	return fmt.Sprintf("rate limited: %v", e.Err)
}

func (e *ErrRateLimit) Unwrap() error { return e.Err }

// ErrProviderUnavailable indicates the provider is down or unreachable.
type ErrProviderUnavailable struct {
	Err error
}

func (e *ErrProviderUnavailable) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider unavailable: %v", e.Err)
	}
	return "provider unavailable"
}

func (e *ErrProviderUnavailable) Unwrap() error { return e.Err }

// ErrMissingCredential indicates the provider has no API key configured.
type ErrMissingCredential struct {
	Provider string
}

func (e *ErrMissingCredential) Error() string {
	return fmt.Sprintf("missing API credential for %s", e.Provider)
}
