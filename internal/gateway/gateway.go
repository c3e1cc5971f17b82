// Package gateway performs the remote generation calls and translates
// external failures into the pipeline's error vocabulary. The rest of
// the system only sees the Generator contract; which model sits behind
// it is a configuration detail.
package gateway

import "context"

// Narration is the result of one narrate call.
type Narration struct {
	Narrative   string   `json:"story"`
	FunFacts    []string `json:"funFacts"`
	ImagePrompt string   `json:"imagePrompt"`
}

// Generator is the boundary the orchestrator drives. All three
// operations are single network round trips with no retries; a failure
// leaves no side effect.
type Generator interface {
	// Narrate turns a user's car memory into a story, fun facts and a
	// derived image prompt.
	Narrate(ctx context.Context, userPrompt string) (*Narration, error)

	// Illustrate produces a self-contained image reference (data URI)
	// for a scene description.
	Illustrate(ctx context.Context, imagePrompt string) (string, error)

	// Revise produces a new image reference by applying an instruction
	// to the current image. imageURL must be a well-formed data URI.
	Revise(ctx context.Context, imageURL, instruction string) (string, error)
}

// UpstreamError reports that the generation capability was unreachable,
// errored, or returned a response with no usable payload. Message is
// safe to show users.
type UpstreamError struct {
	Message string
	Err     error
}

func (e *UpstreamError) Error() string { return e.Message }

func (e *UpstreamError) Unwrap() error { return e.Err }

// upstreamErr prefers the underlying error's own message, falling back
// to the operation's themed copy when there is none.
func upstreamErr(fallback string, err error) *UpstreamError {
	msg := fallback
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return &UpstreamError{Message: msg, Err: err}
}

// upstreamMsg reports a usable-payload failure with a fixed message.
func upstreamMsg(message string) *UpstreamError {
	return &UpstreamError{Message: message}
}

// InvalidImageError reports a revision target that is not a well-formed
// embedded-image reference.
type InvalidImageError struct {
	Reason string
}

func (e *InvalidImageError) Error() string { return e.Reason }
