package completion

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrMissingCredentials is returned before any network call when the
	// backend family of the selected model has no configured provider.
	ErrMissingCredentials = errors.New("missing API credentials")

	// ErrUnsupported is returned when a backend lacks the capability a mode needs.
	ErrUnsupported = errors.New("capability not supported by backend")

	// ErrVideoTimeout means the job was still pending when the poll bound ran out.
	ErrVideoTimeout = errors.New("video generation timed out")

	// ErrVideoJobFailed means the provider reported the job as failed.
	ErrVideoJobFailed = errors.New("video generation failed")

	// ErrUnknownTab is returned by Start when the tab does not exist.
	ErrUnknownTab = errors.New("unknown tab")

	// ErrCancelled marks a request stopped by Cancel or by a newer send.
	ErrCancelled = errors.New("request cancelled")
)

// describe turns a pipeline error into the text shown inline in the message.
func describe(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, ErrCancelled):
		return "Request cancelled."
	case errors.Is(err, ErrVideoTimeout):
		return "Video generation timed out: the job was still running when we stopped waiting."
	default:
		return err.Error()
	}
}

func missingCredentials(f Family) error {
	return fmt.Errorf("%w for %s backend (set %s)", ErrMissingCredentials, f, f.EnvHint())
}
