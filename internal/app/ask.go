package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/MrSnakeDoc/orbit/internal/browser"
	"github.com/MrSnakeDoc/orbit/internal/completion"
	"github.com/MrSnakeDoc/orbit/internal/config"
	"github.com/MrSnakeDoc/orbit/internal/domain"
	"github.com/MrSnakeDoc/orbit/internal/logger"
	"github.com/MrSnakeDoc/orbit/internal/persist"
	"github.com/MrSnakeDoc/orbit/internal/session"
)

// AskRequest is a one-shot address bar submission from the command line.
type AskRequest struct {
	Input string
	Mode  domain.Mode
}

// Ask submits one input against a throwaway in-memory session and
// writes the streamed answer to out. Navigation prints the target URL.
func Ask(ctx context.Context, cfg *config.Config, req AskRequest, out io.Writer, log logger.Logger) error {
	store := persist.NewStore(persist.NewMemoryBackend(), log)
	defer func() { _ = store.Close() }()

	c, err := newCore(ctx, cfg, store, log)
	if err != nil {
		return err
	}
	defer c.pipeline.Close()

	if err := c.browser.Restore(ctx); err != nil {
		return err
	}

	tabID := c.session.ActiveTabID()
	var (
		mu       sync.Mutex
		streamed bool
	)
	unsubscribe := c.session.Subscribe(func(ch session.Change) {
		if ch.Kind != session.ChangeChunk || ch.TabID != tabID || ch.Delta == "" {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		streamed = true
		_, _ = io.WriteString(out, ch.Delta)
	})
	defer unsubscribe()

	outcome, err := c.browser.Submit(ctx, browser.SubmitRequest{
		TabID: tabID,
		Input: req.Input,
		Mode:  req.Mode,
	})
	if err != nil {
		return err
	}

	if outcome.Job == nil {
		target := outcome.Destination.URL
		if outcome.OpenExternal != "" {
			target = outcome.OpenExternal
		}
		_, err := fmt.Fprintln(out, target)
		return err
	}

	var res completion.Result
	select {
	case <-outcome.Job.Done():
		res = outcome.Job.Wait()
	case <-ctx.Done():
		c.pipeline.Cancel(tabID)
		res = outcome.Job.Wait()
	}

	mu.Lock()
	defer mu.Unlock()

	if res.Redirect != "" {
		_, err := fmt.Fprintln(out, res.Redirect)
		return err
	}
	if res.Err != nil {
		if streamed {
			_, _ = fmt.Fprintln(out)
		}
		return res.Err
	}

	msg, ok := c.session.Message(tabID, res.MessageID)
	if !ok {
		return errors.New("response message is missing")
	}
	switch {
	case msg.GeneratedMedia != nil:
		if _, err := fmt.Fprintf(out, "%s (%s)\n", msg.GeneratedMedia.URI, msg.GeneratedMedia.Type); err != nil {
			return err
		}
	case !streamed:
		if _, err := io.WriteString(out, msg.Content); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(out)
	default:
		_, _ = fmt.Fprintln(out)
	}

	for _, src := range msg.Sources {
		if _, err := fmt.Fprintf(out, "  [%s] %s\n", src.Title, src.URI); err != nil {
			return err
		}
	}
	return ctx.Err()
}
