// Package completion drives model requests for a tab: it picks a backend
// and model for the requested mode, opens the provider call, and turns
// every outcome into a session store mutation.
package completion

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/MrSnakeDoc/orbit/internal/domain"
	"github.com/MrSnakeDoc/orbit/internal/logger"
)

// DefaultSearchEngineURL is the simple-mode redirect prefix.
const DefaultSearchEngineURL = "https://www.google.com/search?q="

const titleTimeout = 20 * time.Second

// Store is the part of the session store the pipeline mutates.
type Store interface {
	AppendUserMessage(tabID, content string, attachments []domain.Attachment) (string, bool)
	AppendPlaceholderResponse(tabID string) (string, bool)
	ApplyStreamChunk(tabID, msgID, delta string, sources []domain.Source) bool
	FinalizeStream(tabID, msgID string) bool
	FailStream(tabID, msgID, errText string) bool
	CompleteMedia(tabID, msgID string, media domain.GeneratedMedia) bool
	Tab(id string) (*domain.Tab, bool)
	Message(tabID, msgID string) (*domain.Message, bool)
	SetTabTitle(tabID, title string) bool
	AddDownload(d domain.Download) string
}

// Profile is the read-only user context applied to a request.
type Profile struct {
	PreferredModel      string
	PreferredImageModel string
	Extensions          []domain.Extension
	CustomInstructions  string
}

// Request is one user send.
type Request struct {
	TabID       string
	Content     string
	Attachments []domain.Attachment
	Mode        domain.Mode
	Profile     Profile
}

// Result describes what a send did.
type Result struct {
	TabID         string
	UserMessageID string
	MessageID     string
	Model         string

	// Duplicate is set when the send was dropped by the dedup guard.
	Duplicate bool

	// Redirect is the external search URL for simple mode.
	Redirect string

	// Err is the failure recorded on the message, if any.
	Err error
}

// Config wires a pipeline.
type Config struct {
	// Backends by family. A missing family means missing credentials.
	Backends map[Family]Backend

	Models          Models
	Poll            PollPolicy
	SearchEngineURL string
}

// Pipeline runs requests. Requests in different tabs run concurrently; a
// new request in a tab cancels the one in flight there.
type Pipeline struct {
	store    Store
	backends map[Family]Backend
	models   Models
	poll     PollPolicy
	search   string
	log      logger.Logger

	root     context.Context
	stopRoot context.CancelFunc
	wg       sync.WaitGroup

	mu      sync.Mutex
	flights map[string]*Job // by tab id
}

// New creates a pipeline. Zero-valued Config fields take defaults.
func New(store Store, cfg Config, log logger.Logger) *Pipeline {
	if cfg.Models == (Models{}) {
		cfg.Models = DefaultModels()
	}
	if cfg.Poll == (PollPolicy{}) {
		cfg.Poll = DefaultPollPolicy()
	}
	if cfg.SearchEngineURL == "" {
		cfg.SearchEngineURL = DefaultSearchEngineURL
	}
	if cfg.Backends == nil {
		cfg.Backends = map[Family]Backend{}
	}
	root, stop := context.WithCancel(context.Background())
	return &Pipeline{
		store:    store,
		backends: cfg.Backends,
		models:   cfg.Models,
		poll:     cfg.Poll,
		search:   cfg.SearchEngineURL,
		log:      log,
		root:     root,
		stopRoot: stop,
		flights:  make(map[string]*Job),
	}
}

// Job is a started request.
type Job struct {
	res    Result
	cancel context.CancelFunc
	done   chan struct{}
}

// IDs returns the result before completion; only ids and Redirect are set.
func (j *Job) IDs() Result {
	return Result{
		TabID:         j.res.TabID,
		UserMessageID: j.res.UserMessageID,
		MessageID:     j.res.MessageID,
		Model:         j.res.Model,
		Duplicate:     j.res.Duplicate,
		Redirect:      j.res.Redirect,
	}
}

// Done is closed once the outcome is recorded in the store.
func (j *Job) Done() <-chan struct{} { return j.done }

// Wait blocks until the job is done and returns its result.
func (j *Job) Wait() Result {
	<-j.done
	return j.res
}

func finishedJob(res Result) *Job {
	j := &Job{res: res, cancel: func() {}, done: make(chan struct{})}
	close(j.done)
	return j
}

// Send starts a request and waits for it. Cancelling ctx cancels the request.
func (p *Pipeline) Send(ctx context.Context, req Request) (Result, error) {
	j, err := p.Start(ctx, req)
	if err != nil {
		return Result{}, err
	}
	stop := context.AfterFunc(ctx, j.cancel)
	defer stop()
	return j.Wait(), nil
}

// Start appends the user turn and the placeholder response, then runs the
// provider call in the background. The job outlives ctx; only Cancel, a
// newer send in the same tab, or Close stop it. ctx values are kept.
func (p *Pipeline) Start(ctx context.Context, req Request) (*Job, error) {
	userID, ok := p.store.AppendUserMessage(req.TabID, req.Content, req.Attachments)
	if !ok {
		if userID == "" {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTab, req.TabID)
		}
		return finishedJob(Result{TabID: req.TabID, UserMessageID: userID, Duplicate: true}), nil
	}

	tab, _ := p.store.Tab(req.TabID)
	history := conversation(tab)

	msgID, ok := p.store.AppendPlaceholderResponse(req.TabID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTab, req.TabID)
	}
	res := Result{TabID: req.TabID, UserMessageID: userID, MessageID: msgID}

	if req.Mode == domain.ModeSimple {
		p.cancelFlight(req.TabID)
		p.store.FinalizeStream(req.TabID, msgID)
		res.Redirect = p.search + url.QueryEscape(strings.TrimSpace(req.Content))
		return finishedJob(res), nil
	}

	model, backend, err := p.route(req)
	res.Model = model
	if err != nil {
		p.cancelFlight(req.TabID)
		p.log.Warn("request rejected before dispatch",
			logger.TabID(req.TabID), logger.MessageID(msgID),
			logger.Mode(req.Mode.String()), logger.Model(model), logger.Error(err))
		p.store.FailStream(req.TabID, msgID, describe(err))
		res.Err = err
		return finishedJob(res), nil
	}

	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stopOnClose := context.AfterFunc(p.root, cancel)
	j := &Job{res: res, cancel: cancel, done: make(chan struct{})}

	p.mu.Lock()
	if prev, ok := p.flights[req.TabID]; ok {
		prev.cancel()
	}
	p.flights[req.TabID] = j
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer close(j.done)
		defer stopOnClose()
		defer cancel()
		defer p.release(req.TabID, j)

		j.res.Err = p.run(jobCtx, j.res, req, backend, history)
	}()
	return j, nil
}

// Cancel stops the request in flight in the tab. The partial output is
// kept and marked cancelled.
func (p *Pipeline) Cancel(tabID string) bool {
	return p.cancelFlight(tabID)
}

func (p *Pipeline) cancelFlight(tabID string) bool {
	p.mu.Lock()
	j, ok := p.flights[tabID]
	p.mu.Unlock()
	if ok {
		j.cancel()
	}
	return ok
}

// InFlight reports whether the tab has a running request.
func (p *Pipeline) InFlight(tabID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.flights[tabID]
	return ok
}

// Drain cancels every running request and waits until each has recorded
// its outcome. The pipeline stays usable.
func (p *Pipeline) Drain() {
	p.mu.Lock()
	jobs := make([]*Job, 0, len(p.flights))
	for _, j := range p.flights {
		jobs = append(jobs, j)
	}
	p.mu.Unlock()

	for _, j := range jobs {
		j.cancel()
	}
	for _, j := range jobs {
		<-j.done
	}
}

// Close cancels every running request and waits for them to record
// their outcome.
func (p *Pipeline) Close() {
	p.stopRoot()
	p.wg.Wait()
}

func (p *Pipeline) release(tabID string, j *Job) {
	p.mu.Lock()
	if p.flights[tabID] == j {
		delete(p.flights, tabID)
	}
	p.mu.Unlock()
}

// route resolves model and backend for the request before any network call.
func (p *Pipeline) route(req Request) (string, Backend, error) {
	var model string
	switch req.Mode {
	case domain.ModeImage:
		model = p.models.ImageModel(req.Profile.PreferredImageModel)
	case domain.ModeVideo:
		model = p.models.VideoModel("")
	default:
		model = p.models.TextModel(req.Mode, req.Profile.PreferredModel)
	}

	fam := ClassifyModel(model)
	b, ok := p.backends[fam]
	if !ok {
		return model, Backend{}, missingCredentials(fam)
	}

	var supported bool
	switch req.Mode {
	case domain.ModeImage:
		supported = b.Image != nil
	case domain.ModeVideo:
		supported = b.Video != nil || b.Jobs != nil
	default:
		supported = b.Text != nil
	}
	if !supported {
		return model, b, fmt.Errorf("%w: %s cannot serve %s mode", ErrUnsupported, fam, req.Mode)
	}
	return model, b, nil
}

func (p *Pipeline) run(ctx context.Context, res Result, req Request, b Backend, history []*domain.Message) error {
	log := p.log.With(logger.TabID(res.TabID), logger.MessageID(res.MessageID),
		logger.Mode(req.Mode.String()), logger.Model(res.Model))

	var err error
	switch req.Mode {
	case domain.ModeImage:
		err = p.runMedia(ctx, res, func() (domain.GeneratedMedia, error) {
			return b.Image.GenerateImage(ctx, MediaRequest{Prompt: req.Content, Model: res.Model, Attachments: req.Attachments})
		})
		if err != nil && !isCancel(err) {
			err = fmt.Errorf("image generation failed: %w", err)
		}
	case domain.ModeVideo:
		err = p.runMedia(ctx, res, func() (domain.GeneratedMedia, error) {
			return p.video(ctx, b, MediaRequest{Prompt: req.Content, Model: res.Model, Attachments: req.Attachments})
		})
	default:
		err = p.runText(ctx, res, req, b, history)
	}

	if err != nil {
		if isCancel(err) {
			log.Info("request cancelled")
		} else {
			log.Warn("provider request failed", logger.Error(err))
		}
		p.store.FailStream(res.TabID, res.MessageID, describe(err))
		return err
	}
	log.Debug("request finished")
	return nil
}

func (p *Pipeline) runMedia(ctx context.Context, res Result, generate func() (domain.GeneratedMedia, error)) error {
	media, err := generate()
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	p.store.CompleteMedia(res.TabID, res.MessageID, media)
	return nil
}

func (p *Pipeline) video(ctx context.Context, b Backend, req MediaRequest) (domain.GeneratedMedia, error) {
	if b.Video != nil {
		return b.Video.GenerateVideo(ctx, req)
	}
	id, err := b.Jobs.SubmitVideo(ctx, req)
	if err != nil {
		return domain.GeneratedMedia{}, fmt.Errorf("submit video job: %w", err)
	}
	return p.poll.Await(ctx, b.Jobs, id)
}

func (p *Pipeline) runText(ctx context.Context, res Result, req Request, b Backend, history []*domain.Message) error {
	treq := TextRequest{
		Model:             res.Model,
		Mode:              req.Mode,
		History:           history,
		SystemInstruction: BuildSystemInstruction(req.Profile.Extensions, req.Profile.CustomInstructions),
		Tools:             req.Mode != domain.ModeDirect,
	}

	for chunk, err := range b.Text.StreamText(ctx, treq) {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.store.ApplyStreamChunk(res.TabID, res.MessageID, chunk.Text, chunk.Sources)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if !p.store.FinalizeStream(res.TabID, res.MessageID) {
		// superseded or removed while streaming
		return nil
	}

	p.collectDownloads(res)
	p.generateTitle(ctx, res, b)
	return nil
}

// collectDownloads records file markers of the finalized message.
func (p *Pipeline) collectDownloads(res Result) {
	msg, ok := p.store.Message(res.TabID, res.MessageID)
	if !ok {
		return
	}
	for _, f := range domain.ExtractFiles(msg.Content) {
		p.store.AddDownload(domain.Download{
			Name:      f.FileName,
			MimeType:  f.MimeType,
			Data:      f.Data,
			TabID:     res.TabID,
			MessageID: res.MessageID,
		})
	}
}

// generateTitle replaces the derived title after the first exchange.
// Failures keep the derived title.
func (p *Pipeline) generateTitle(ctx context.Context, res Result, b Backend) {
	if b.Title == nil {
		return
	}
	tab, ok := p.store.Tab(res.TabID)
	if !ok || len(tab.Messages) != 2 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, titleTimeout)
	defer cancel()

	title, err := b.Title.GenerateTitle(ctx, tab.Messages)
	title = strings.Trim(strings.TrimSpace(title), `"'`)
	if err != nil || title == "" {
		p.log.Debug("title generation skipped", logger.TabID(res.TabID), logger.Error(err))
		return
	}
	p.store.SetTabTitle(res.TabID, title)
}

// conversation returns the messages worth sending as history.
func conversation(tab *domain.Tab) []*domain.Message {
	if tab == nil {
		return nil
	}
	out := make([]*domain.Message, 0, len(tab.Messages))
	for _, m := range tab.Messages {
		if m.Role == domain.RoleModel && (m.Content == "" || m.IsError) {
			continue
		}
		out = append(out, m)
	}
	return out
}

func isCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, ErrCancelled)
}
