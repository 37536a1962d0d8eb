package completion

import (
	"context"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/orbit/internal/domain"
)

// PollPolicy bounds the wait on an asynchronous video job.
type PollPolicy struct {
	Interval    time.Duration
	MaxAttempts int
}

// DefaultPollPolicy polls every 10s for up to 10 minutes.
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{Interval: 10 * time.Second, MaxAttempts: 60}
}

// Await polls the job until it finishes, fails, or the attempt bound is
// reached. Each poll is preceded by one interval. A poll transport error
// ends the wait.
func (p PollPolicy) Await(ctx context.Context, jobs VideoJobs, jobID string) (domain.GeneratedMedia, error) {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		timer := time.NewTimer(p.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return domain.GeneratedMedia{}, ctx.Err()
		case <-timer.C:
		}

		st, err := jobs.PollVideo(ctx, jobID)
		if err != nil {
			return domain.GeneratedMedia{}, fmt.Errorf("poll video job %s: %w", jobID, err)
		}
		switch st.State {
		case JobDone:
			return st.Media, nil
		case JobFailed:
			reason := st.Reason
			if reason == "" {
				reason = "no reason given"
			}
			return domain.GeneratedMedia{}, fmt.Errorf("%w: %s", ErrVideoJobFailed, reason)
		}
	}
	return domain.GeneratedMedia{}, fmt.Errorf("%w after %d attempts", ErrVideoTimeout, attempts)
}
