package nlp

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

const tutorSystemPrompt = "You are a helpful academic tutor. Explain concepts clearly " +
	"using Markdown (bold, lists) and LaTeX where it helps."

// User-displayable failure strings. Provider failures are absorbed here
// and stored as the answer content so the chat flow never breaks.
const (
	msgQuotaExceeded = "The AI tutor has hit its usage limit. Please try again in a few minutes."
	msgServiceBusy   = "All AI models are currently busy. Please try again later."
	msgBadImage      = "I couldn't read the attached image. Please re-upload it and try again."
	msgNotConfigured = "The AI tutor is not configured yet. Please contact an administrator."
)

// Router picks a text or vision backend for a question and converts
// every provider failure into a user-displayable answer string.
type Router struct {
	text      []TextProvider
	vision    VisionProvider
	maxTokens int
	logger    *logrus.Logger
}

// NewRouter builds a router over a prioritized list of text providers
// and an optional vision provider.
func NewRouter(text []TextProvider, vision VisionProvider, maxTokens int, logger *logrus.Logger) *Router {
	return &Router{
		text:      text,
		vision:    vision,
		maxTokens: maxTokens,
		logger:    logger,
	}
}

// GenerateAnswer produces the answer text for a student question. The
// routing is a hard branch: any image goes to the vision backend, plain
// text goes to the text backends in priority order. Each provider is
// attempted once; there is no retry.
func (r *Router) GenerateAnswer(ctx context.Context, question, imageBase64 string, history []Turn) string {
	if imageBase64 != "" {
		return r.answerWithImage(ctx, question, imageBase64)
	}
	return r.answerText(ctx, question, history)
}

func (r *Router) answerText(ctx context.Context, question string, history []Turn) string {
	if len(r.text) == 0 {
		return msgNotConfigured
	}

	turns := make([]Turn, 0, len(history)+1)
	turns = append(turns, history...)
	turns = append(turns, Turn{Role: RoleUser, Content: question})

	var lastErr error
	for _, provider := range r.text {
		answer, err := provider.Complete(ctx, tutorSystemPrompt, turns, r.maxTokens)
		if err == nil {
			return answer
		}

		lastErr = err
		r.logger.WithError(err).WithField("provider", provider.Name()).Warn("Text provider failed, trying next")
	}

	return r.failureMessage(lastErr)
}

func (r *Router) answerWithImage(ctx context.Context, question, imageBase64 string) string {
	if r.vision == nil {
		return msgNotConfigured
	}

	raw, err := decodeImagePayload(imageBase64)
	if err != nil {
		r.logger.WithError(err).Warn("Failed to decode image payload")
		return msgBadImage
	}

	prompt := fmt.Sprintf("Analyze this image and answer the question: %s", question)

	answer, err := r.vision.Analyze(ctx, prompt, raw, r.maxTokens)
	if err != nil {
		r.logger.WithError(err).WithField("provider", r.vision.Name()).Warn("Vision provider failed")
		return r.failureMessage(err)
	}

	return answer
}

// decodeImagePayload strips any data-URL header and decodes the base64
// body to raw bytes.
func decodeImagePayload(payload string) ([]byte, error) {
	if strings.HasPrefix(payload, "data:") {
		if idx := strings.Index(payload, ","); idx >= 0 {
			payload = payload[idx+1:]
		}
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, fmt.Errorf("invalid base64 image payload: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty image payload")
	}
	return raw, nil
}

// failureMessage maps a classified provider error to the string shown
// to the student.
func (r *Router) failureMessage(err error) string {
	var rateLimit *ErrRateLimit
	if errors.As(err, &rateLimit) {
		return msgQuotaExceeded
	}

	var missing *ErrMissingCredential
	if errors.As(err, &missing) {
		return msgNotConfigured
	}

	return msgServiceBusy
}
