// Package openai talks to OpenAI-compatible chat and image endpoints over
// plain HTTP with server-sent events.
package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/MrSnakeDoc/orbit/internal/completion"
	"github.com/MrSnakeDoc/orbit/internal/domain"
	"github.com/MrSnakeDoc/orbit/internal/logger"
)

const (
	DefaultBaseURL    = "https://api.openai.com/v1"
	DefaultTitleModel = "gpt-4o-mini"

	maxRetries = 2
)

// Options configures the client.
type Options struct {
	APIKey     string
	BaseURL    string
	TitleModel string
	HTTPClient *http.Client

	// RetryWait is the first backoff on 429 or transport errors before
	// the stream starts. It doubles per attempt.
	RetryWait time.Duration
}

// Client implements the text, image and title capabilities.
type Client struct {
	apiKey     string
	baseURL    string
	titleModel string
	http       *http.Client
	retryWait  time.Duration
	log        logger.Logger
}

// New returns a client. An empty key is a configuration error.
func New(opts Options, log logger.Logger) (*Client, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("openai: %w", completion.ErrMissingCredentials)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.TitleModel == "" {
		opts.TitleModel = DefaultTitleModel
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = time.Second
	}
	return &Client{
		apiKey:     opts.APIKey,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		titleModel: opts.TitleModel,
		http:       opts.HTTPClient,
		retryWait:  opts.RetryWait,
		log:        log,
	}, nil
}

// Backend exposes the supported capabilities. Video is not offered.
func (c *Client) Backend() completion.Backend {
	return completion.Backend{Text: c, Image: c, Title: c}
}

// ─────────────────────────────────────────────────────────────────
// Wire types
// ─────────────────────────────────────────────────────────────────

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Delta *struct {
			Content     string `json:"content"`
			Annotations []struct {
				Type        string `json:"type"`
				URLCitation *struct {
					URL   string `json:"url"`
					Title string `json:"title"`
				} `json:"url_citation"`
			} `json:"annotations"`
		} `json:"delta"`
		Message *struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type imageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	ResponseFormat string `json:"response_format,omitempty"`
}

type imageResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
		URL     string `json:"url"`
	} `json:"data"`
	Error *apiError `json:"error"`
}

// ─────────────────────────────────────────────────────────────────
// Text
// ─────────────────────────────────────────────────────────────────

// StreamText streams a chat completion. Retries happen only before the
// first byte of the stream.
func (c *Client) StreamText(ctx context.Context, req completion.TextRequest) iter.Seq2[completion.Chunk, error] {
	return func(yield func(completion.Chunk, error) bool) {
		body := chatRequest{
			Model:    req.Model,
			Messages: toMessages(req.SystemInstruction, req.History),
			Stream:   true,
		}
		resp, err := c.post(ctx, "/chat/completions", body, "text/event-stream")
		if err != nil {
			yield(completion.Chunk{}, err)
			return
		}
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "" {
				continue
			}
			if data == "[DONE]" {
				return
			}

			var chunk chatResponse
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				c.log.Debug("openai: skipping malformed stream line", logger.Error(err))
				continue
			}
			if chunk.Error != nil {
				yield(completion.Chunk{}, fmt.Errorf("openai: %s", chunk.Error.Message))
				return
			}
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta == nil {
				continue
			}
			delta := chunk.Choices[0].Delta
			out := completion.Chunk{Text: delta.Content}
			for _, a := range delta.Annotations {
				if a.URLCitation != nil {
					out.Sources = append(out.Sources, domain.Source{URI: a.URLCitation.URL, Title: a.URLCitation.Title})
				}
			}
			if out.Text == "" && len(out.Sources) == 0 {
				continue
			}
			if !yield(out, nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			if ctx.Err() != nil {
				err = ctx.Err()
			}
			yield(completion.Chunk{}, fmt.Errorf("openai: stream error: %w", err))
		}
	}
}

// GenerateTitle asks a small model for a tab title.
func (c *Client) GenerateTitle(ctx context.Context, history []*domain.Message) (string, error) {
	msgs := toMessages("", history)
	msgs = append(msgs, chatMessage{Role: "user", Content: "Write a short title (3 to 6 words) for this conversation. Reply with the title only."})

	resp, err := c.post(ctx, "/chat/completions", chatRequest{Model: c.titleModel, Messages: msgs}, "application/json")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("openai: decode title: %w", err)
	}
	if len(out.Choices) == 0 || out.Choices[0].Message == nil {
		return "", fmt.Errorf("openai: empty title response")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

// ─────────────────────────────────────────────────────────────────
// Images
// ─────────────────────────────────────────────────────────────────

// GenerateImage calls the images endpoint and returns a data URI.
// Attachments are not supported by this endpoint and are ignored.
func (c *Client) GenerateImage(ctx context.Context, req completion.MediaRequest) (domain.GeneratedMedia, error) {
	body := imageRequest{Model: req.Model, Prompt: req.Prompt, N: 1}
	if strings.HasPrefix(req.Model, "dall-e") {
		body.ResponseFormat = "b64_json"
	}
	resp, err := c.post(ctx, "/images/generations", body, "application/json")
	if err != nil {
		return domain.GeneratedMedia{}, err
	}
	defer resp.Body.Close()

	var out imageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.GeneratedMedia{}, fmt.Errorf("openai: decode image: %w", err)
	}
	if out.Error != nil {
		return domain.GeneratedMedia{}, fmt.Errorf("openai: %s", out.Error.Message)
	}
	if len(out.Data) == 0 {
		return domain.GeneratedMedia{}, fmt.Errorf("openai: no image returned")
	}
	d := out.Data[0]
	if d.B64JSON != "" {
		if _, err := base64.StdEncoding.DecodeString(d.B64JSON); err != nil {
			return domain.GeneratedMedia{}, fmt.Errorf("openai: invalid image payload: %w", err)
		}
		return domain.GeneratedMedia{Type: domain.MediaImage, MimeType: "image/png", URI: "data:image/png;base64," + d.B64JSON}, nil
	}
	return domain.GeneratedMedia{Type: domain.MediaImage, MimeType: "image/png", URI: d.URL}, nil
}

// ─────────────────────────────────────────────────────────────────
// Transport
// ─────────────────────────────────────────────────────────────────

// post sends body as JSON and returns a 200 response. 429 and transport
// errors are retried with exponential backoff.
func (c *Client) post(ctx context.Context, path string, body any, accept string) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", err)
	}

	wait := c.retryWait
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
			wait *= 2
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("openai: create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Accept", accept)

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("openai: request failed: %w", err)
			continue
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			msg := readError(resp)
			lastErr = fmt.Errorf("openai: rate limit exceeded (429): %s", msg)
			c.log.Warn("openai rate limited, retrying", logger.Int("attempt", attempt+1))
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("openai: request failed with status %d: %s", resp.StatusCode, readError(resp))
		}
		return resp, nil
	}
	return nil, fmt.Errorf("openai: max retries exceeded: %w", lastErr)
}

func readError(resp *http.Response) string {
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var wrapped struct {
		Error *apiError `json:"error"`
	}
	if json.Unmarshal(raw, &wrapped) == nil && wrapped.Error != nil && wrapped.Error.Message != "" {
		return wrapped.Error.Message
	}
	return strings.TrimSpace(string(raw))
}

func toMessages(system string, history []*domain.Message) []chatMessage {
	out := make([]chatMessage, 0, len(history)+1)
	if system != "" {
		out = append(out, chatMessage{Role: "system", Content: system})
	}
	for _, m := range history {
		role := "user"
		if m.Role == domain.RoleModel {
			role = "assistant"
		}
		var images []contentPart
		for _, a := range m.Attachments {
			if strings.HasPrefix(a.MimeType, "image/") {
				images = append(images, contentPart{
					Type:     "image_url",
					ImageURL: &imageURL{URL: "data:" + a.MimeType + ";base64," + base64.StdEncoding.EncodeToString(a.Data)},
				})
			}
		}
		if len(images) == 0 {
			if m.Content == "" {
				continue
			}
			out = append(out, chatMessage{Role: role, Content: m.Content})
			continue
		}
		parts := append([]contentPart{{Type: "text", Text: m.Content}}, images...)
		out = append(out, chatMessage{Role: role, Content: parts})
	}
	return out
}
