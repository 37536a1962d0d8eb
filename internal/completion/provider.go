package completion

import (
	"context"
	"iter"

	"github.com/MrSnakeDoc/orbit/internal/domain"
)

// TextRequest is a single streaming text completion call.
type TextRequest struct {
	Model string
	Mode  domain.Mode

	// History is the conversation up to and including the new user turn.
	// The placeholder response is not part of it.
	History []*domain.Message

	SystemInstruction string

	// Tools enables search grounding and code execution.
	Tools bool
}

// Chunk is one incremental piece of a text stream.
// Sources holds every citation seen so far, or only new ones; the
// pipeline merges either way.
type Chunk struct {
	Text    string
	Sources []domain.Source
}

// MediaRequest is an image or video generation call.
type MediaRequest struct {
	Prompt      string
	Model       string
	Attachments []domain.Attachment
}

// TextStreamer streams a text completion. The sequence ends after the
// first non-nil error.
type TextStreamer interface {
	StreamText(ctx context.Context, req TextRequest) iter.Seq2[Chunk, error]
}

// ImageGenerator produces a single image.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req MediaRequest) (domain.GeneratedMedia, error)
}

// VideoGenerator produces a video in one blocking call.
type VideoGenerator interface {
	GenerateVideo(ctx context.Context, req MediaRequest) (domain.GeneratedMedia, error)
}

// JobState is the state of an asynchronous generation job.
type JobState int

const (
	JobPending JobState = iota
	JobDone
	JobFailed
)

// JobStatus is the result of one poll.
type JobStatus struct {
	State  JobState
	Media  domain.GeneratedMedia
	Reason string
}

// VideoJobs is an asynchronous video backend: submit, then poll by job id.
type VideoJobs interface {
	SubmitVideo(ctx context.Context, req MediaRequest) (jobID string, err error)
	PollVideo(ctx context.Context, jobID string) (JobStatus, error)
}

// TitleGenerator summarizes a conversation into a short tab title.
type TitleGenerator interface {
	GenerateTitle(ctx context.Context, history []*domain.Message) (string, error)
}

// Backend groups the capabilities of one provider family.
// Nil fields are unsupported capabilities.
type Backend struct {
	Text  TextStreamer
	Image ImageGenerator
	Video VideoGenerator
	Jobs  VideoJobs
	Title TitleGenerator
}
