// Package gemini serves text, image, video and title requests through the
// Google Gen AI SDK.
package gemini

import (
	"context"
	"encoding/base64"
	"fmt"
	"iter"
	"strings"

	"google.golang.org/genai"

	"github.com/MrSnakeDoc/orbit/internal/completion"
	"github.com/MrSnakeDoc/orbit/internal/domain"
	"github.com/MrSnakeDoc/orbit/internal/logger"
)

// DefaultTitleModel is the cheap model used for tab titles.
const DefaultTitleModel = "gemini-2.5-flash-lite"

const titlePrompt = "Write a short title (3 to 6 words) for this conversation. Reply with the title only, no quotes."

// Provider implements the completion capabilities on top of genai.
type Provider struct {
	client     *genai.Client
	titleModel string
	log        logger.Logger
}

// Options configures the provider.
type Options struct {
	APIKey     string
	BaseURL    string // optional, for proxies and tests
	TitleModel string
}

// New creates a Gemini API client. An empty key is a configuration error.
func New(ctx context.Context, opts Options, log logger.Logger) (*Provider, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("gemini: %w", completion.ErrMissingCredentials)
	}
	cfg := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	if opts.TitleModel == "" {
		opts.TitleModel = DefaultTitleModel
	}
	return &Provider{client: client, titleModel: opts.TitleModel, log: log}, nil
}

// Backend exposes every capability of the provider.
func (p *Provider) Backend() completion.Backend {
	return completion.Backend{Text: p, Image: p, Jobs: p, Title: p}
}

// StreamText streams a chat completion with optional search grounding
// and code execution.
func (p *Provider) StreamText(ctx context.Context, req completion.TextRequest) iter.Seq2[completion.Chunk, error] {
	return func(yield func(completion.Chunk, error) bool) {
		cfg := &genai.GenerateContentConfig{}
		if req.SystemInstruction != "" {
			cfg.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
		}
		if req.Tools {
			cfg.Tools = []*genai.Tool{
				{GoogleSearch: &genai.GoogleSearch{}},
				{CodeExecution: &genai.ToolCodeExecution{}},
			}
		}

		p.log.Debug("gemini stream opened", logger.Model(req.Model), logger.Bool("tools", req.Tools))
		for resp, err := range p.client.Models.GenerateContentStream(ctx, req.Model, toContents(req.History), cfg) {
			if err != nil {
				yield(completion.Chunk{}, fmt.Errorf("gemini stream: %w", err))
				return
			}
			c := completion.Chunk{Text: textOf(resp), Sources: sourcesOf(resp)}
			if c.Text == "" && len(c.Sources) == 0 {
				continue
			}
			if !yield(c, nil) {
				return
			}
		}
	}
}

// GenerateImage uses the Imagen endpoint for imagen models and native
// image output for Gemini image models, which also accept attachments.
func (p *Provider) GenerateImage(ctx context.Context, req completion.MediaRequest) (domain.GeneratedMedia, error) {
	if strings.HasPrefix(req.Model, "imagen") {
		resp, err := p.client.Models.GenerateImages(ctx, req.Model, req.Prompt, &genai.GenerateImagesConfig{NumberOfImages: 1})
		if err != nil {
			return domain.GeneratedMedia{}, fmt.Errorf("gemini images: %w", err)
		}
		if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
			return domain.GeneratedMedia{}, fmt.Errorf("gemini images: no image returned")
		}
		img := resp.GeneratedImages[0].Image
		return dataMedia(domain.MediaImage, img.MIMEType, "image/png", img.ImageBytes), nil
	}

	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	for _, a := range req.Attachments {
		parts = append(parts, genai.NewPartFromBytes(a.Data, a.MimeType))
	}
	resp, err := p.client.Models.GenerateContent(ctx, req.Model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
		&genai.GenerateContentConfig{ResponseModalities: []string{"TEXT", "IMAGE"}})
	if err != nil {
		return domain.GeneratedMedia{}, fmt.Errorf("gemini image content: %w", err)
	}
	for _, part := range firstParts(resp) {
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return dataMedia(domain.MediaImage, part.InlineData.MIMEType, "image/png", part.InlineData.Data), nil
		}
	}
	return domain.GeneratedMedia{}, fmt.Errorf("gemini image content: model returned no image")
}

// SubmitVideo starts a Veo job and returns the operation name.
func (p *Provider) SubmitVideo(ctx context.Context, req completion.MediaRequest) (string, error) {
	var image *genai.Image
	for _, a := range req.Attachments {
		if strings.HasPrefix(a.MimeType, "image/") {
			image = &genai.Image{ImageBytes: a.Data, MIMEType: a.MimeType}
			break
		}
	}
	op, err := p.client.Models.GenerateVideos(ctx, req.Model, req.Prompt, image, nil)
	if err != nil {
		return "", fmt.Errorf("gemini videos: %w", err)
	}
	return op.Name, nil
}

// PollVideo fetches the operation state; finished videos are downloaded
// and returned inline.
func (p *Provider) PollVideo(ctx context.Context, jobID string) (completion.JobStatus, error) {
	op, err := p.client.Operations.GetVideosOperation(ctx, &genai.GenerateVideosOperation{Name: jobID}, nil)
	if err != nil {
		return completion.JobStatus{}, fmt.Errorf("gemini operation: %w", err)
	}
	if !op.Done {
		return completion.JobStatus{State: completion.JobPending}, nil
	}
	if op.Error != nil {
		return completion.JobStatus{State: completion.JobFailed, Reason: operationError(op.Error)}, nil
	}
	if op.Response == nil || len(op.Response.GeneratedVideos) == 0 || op.Response.GeneratedVideos[0].Video == nil {
		reason := "no video returned"
		if op.Response != nil && len(op.Response.RAIMediaFilteredReasons) > 0 {
			reason = strings.Join(op.Response.RAIMediaFilteredReasons, "; ")
		}
		return completion.JobStatus{State: completion.JobFailed, Reason: reason}, nil
	}

	gv := op.Response.GeneratedVideos[0]
	data := gv.Video.VideoBytes
	if len(data) == 0 {
		data, err = p.client.Files.Download(ctx, genai.NewDownloadURIFromGeneratedVideo(gv), nil)
		if err != nil {
			return completion.JobStatus{}, fmt.Errorf("gemini download video: %w", err)
		}
	}
	return completion.JobStatus{
		State: completion.JobDone,
		Media: dataMedia(domain.MediaVideo, gv.Video.MIMEType, "video/mp4", data),
	}, nil
}

// GenerateTitle asks a small model for a tab title.
func (p *Provider) GenerateTitle(ctx context.Context, history []*domain.Message) (string, error) {
	contents := append(toContents(history), genai.NewContentFromText(titlePrompt, genai.RoleUser))
	resp, err := p.client.Models.GenerateContent(ctx, p.titleModel, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini title: %w", err)
	}
	return strings.TrimSpace(textOf(resp)), nil
}

// ─────────────────────────────────────────────────────────────────
// Conversion helpers
// ─────────────────────────────────────────────────────────────────

func toContents(history []*domain.Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		var parts []*genai.Part
		if m.Content != "" {
			parts = append(parts, genai.NewPartFromText(m.Content))
		}
		for _, a := range m.Attachments {
			parts = append(parts, genai.NewPartFromBytes(a.Data, a.MimeType))
		}
		if len(parts) == 0 {
			continue
		}
		role := genai.RoleUser
		if m.Role == domain.RoleModel {
			role = genai.RoleModel
		}
		out = append(out, genai.NewContentFromParts(parts, genai.Role(role)))
	}
	return out
}

func firstParts(resp *genai.GenerateContentResponse) []*genai.Part {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	return resp.Candidates[0].Content.Parts
}

// textOf renders text, executed code and code output of one response.
// Thought parts are dropped.
func textOf(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	for _, part := range firstParts(resp) {
		switch {
		case part.Thought:
		case part.Text != "":
			b.WriteString(part.Text)
		case part.ExecutableCode != nil:
			lang := strings.ToLower(string(part.ExecutableCode.Language))
			if lang == "" || lang == "language_unspecified" {
				lang = "python"
			}
			fmt.Fprintf(&b, "\n```%s\n%s\n```\n", lang, part.ExecutableCode.Code)
		case part.CodeExecutionResult != nil && part.CodeExecutionResult.Output != "":
			fmt.Fprintf(&b, "\n```\n%s\n```\n", part.CodeExecutionResult.Output)
		}
	}
	return b.String()
}

func sourcesOf(resp *genai.GenerateContentResponse) []domain.Source {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].GroundingMetadata == nil {
		return nil
	}
	var out []domain.Source
	for _, c := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
		if c == nil || c.Web == nil {
			continue
		}
		out = append(out, domain.Source{URI: c.Web.URI, Title: c.Web.Title})
	}
	return out
}

func dataMedia(kind domain.MediaType, mime, fallback string, data []byte) domain.GeneratedMedia {
	if mime == "" {
		mime = fallback
	}
	return domain.GeneratedMedia{
		Type:     kind,
		MimeType: mime,
		URI:      "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data),
	}
}

func operationError(e map[string]any) string {
	if msg, ok := e["message"].(string); ok && msg != "" {
		return msg
	}
	return fmt.Sprint(e)
}
