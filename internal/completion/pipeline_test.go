package completion

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/MrSnakeDoc/orbit/internal/domain"
	"github.com/MrSnakeDoc/orbit/internal/logger"
	"github.com/MrSnakeDoc/orbit/internal/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// ─────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────

type streamFunc func(ctx context.Context, req TextRequest) iter.Seq2[Chunk, error]

func (f streamFunc) StreamText(ctx context.Context, req TextRequest) iter.Seq2[Chunk, error] {
	return f(ctx, req)
}

// scripted yields chunks, then ends with err (if any).
func scripted(err error, chunks ...Chunk) streamFunc {
	return func(ctx context.Context, req TextRequest) iter.Seq2[Chunk, error] {
		return func(yield func(Chunk, error) bool) {
			for _, c := range chunks {
				if !yield(c, nil) {
					return
				}
			}
			if err != nil {
				yield(Chunk{}, err)
			}
		}
	}
}

// blocking yields chunks, signals started, then waits for cancellation.
func blocking(started chan<- struct{}, chunks ...Chunk) streamFunc {
	return func(ctx context.Context, req TextRequest) iter.Seq2[Chunk, error] {
		return func(yield func(Chunk, error) bool) {
			for _, c := range chunks {
				if !yield(c, nil) {
					return
				}
			}
			started <- struct{}{}
			<-ctx.Done()
			yield(Chunk{}, ctx.Err())
		}
	}
}

type recorder struct {
	mu   sync.Mutex
	reqs []TextRequest
	next TextStreamer
}

func (r *recorder) StreamText(ctx context.Context, req TextRequest) iter.Seq2[Chunk, error] {
	r.mu.Lock()
	r.reqs = append(r.reqs, req)
	r.mu.Unlock()
	return r.next.StreamText(ctx, req)
}

func (r *recorder) last() TextRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reqs[len(r.reqs)-1]
}

type imageFunc func(ctx context.Context, req MediaRequest) (domain.GeneratedMedia, error)

func (f imageFunc) GenerateImage(ctx context.Context, req MediaRequest) (domain.GeneratedMedia, error) {
	return f(ctx, req)
}

type fakeJobs struct {
	mu       sync.Mutex
	statuses []JobStatus // returned in order, last one repeats
	polls    int
}

func (f *fakeJobs) SubmitVideo(ctx context.Context, req MediaRequest) (string, error) {
	return "job-1", nil
}

func (f *fakeJobs) PollVideo(ctx context.Context, id string) (JobStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.polls
	if i >= len(f.statuses) {
		i = len(f.statuses) - 1
	}
	f.polls++
	return f.statuses[i], nil
}

type titleFunc func(ctx context.Context, history []*domain.Message) (string, error)

func (f titleFunc) GenerateTitle(ctx context.Context, h []*domain.Message) (string, error) {
	return f(ctx, h)
}

func newPipeline(t *testing.T, backends map[Family]Backend) (*Pipeline, *session.Store) {
	t.Helper()
	store := session.New()
	p := New(store, Config{
		Backends: backends,
		Poll:     PollPolicy{Interval: time.Millisecond, MaxAttempts: 3},
	}, logger.Nop())
	t.Cleanup(p.Close)
	return p, store
}

func gemini(b Backend) map[Family]Backend {
	return map[Family]Backend{FamilyGemini: b}
}

// ─────────────────────────────────────────────────────────────────
// Text
// ─────────────────────────────────────────────────────────────────

func TestSend_StreamsAndFinalizes(t *testing.T) {
	p, store := newPipeline(t, gemini(Backend{Text: scripted(nil,
		Chunk{Text: "Hel"},
		Chunk{Text: "lo", Sources: []domain.Source{{URI: "https://a", Title: "A"}}},
		Chunk{Text: " world", Sources: []domain.Source{{URI: "https://a", Title: "A"}, {URI: "https://b"}}},
	)}))
	tab := store.ActiveTabID()

	res, err := p.Send(context.Background(), Request{TabID: tab, Content: "hi", Mode: domain.ModeNormal})
	require.NoError(t, err)
	require.NoError(t, res.Err)

	msg, ok := store.Message(tab, res.MessageID)
	require.True(t, ok)
	assert.Equal(t, "Hello world", msg.Content)
	assert.False(t, msg.IsStreaming)
	assert.False(t, msg.IsError)
	assert.Len(t, msg.Sources, 2)
	assert.False(t, p.InFlight(tab))
}

func TestSend_ErrorMidStreamKeepsPartialOutput(t *testing.T) {
	p, store := newPipeline(t, gemini(Backend{Text: scripted(errors.New("connection reset"),
		Chunk{Text: "Hel"}, Chunk{Text: "lo wor"}, Chunk{Text: "ld"},
	)}))
	tab := store.ActiveTabID()

	res, err := p.Send(context.Background(), Request{TabID: tab, Content: "hi"})
	require.NoError(t, err)
	require.Error(t, res.Err)

	msg, _ := store.Message(tab, res.MessageID)
	assert.Equal(t, "Hello world\n\n*[Error: connection reset]*", msg.Content)
	assert.False(t, msg.IsStreaming)
	assert.True(t, msg.IsError)
}

func TestSend_ModeShapesRequest(t *testing.T) {
	tests := []struct {
		mode  domain.Mode
		pref  string
		model string
		tools bool
	}{
		{domain.ModeNormal, "", "gemini-2.5-flash", true},
		{domain.ModeFast, "", "gemini-2.5-flash-lite", true},
		{domain.ModePro, "", "gemini-2.5-pro", true},
		{domain.ModeDirect, "", "gemini-2.5-flash-lite", false},
		{domain.ModeNormal, "gpt-4o", "gpt-4o", true},
		{domain.ModeDirect, "gpt-4o", "gpt-4o-mini", false},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String()+"/"+tt.pref, func(t *testing.T) {
			rec := &recorder{next: scripted(nil, Chunk{Text: "ok"})}
			p, store := newPipeline(t, map[Family]Backend{
				FamilyGemini: {Text: rec},
				FamilyOpenAI: {Text: rec},
			})
			res, err := p.Send(context.Background(), Request{
				TabID:   store.ActiveTabID(),
				Content: "question",
				Mode:    tt.mode,
				Profile: Profile{
					PreferredModel:     tt.pref,
					Extensions:         []domain.Extension{{ID: "pirate", Name: "Pirate", Instruction: "Talk like a pirate."}},
					CustomInstructions: "Be brief.",
				},
			})
			require.NoError(t, err)
			require.NoError(t, res.Err)

			req := rec.last()
			assert.Equal(t, tt.model, req.Model)
			assert.Equal(t, tt.model, res.Model)
			assert.Equal(t, tt.tools, req.Tools)
			assert.Contains(t, req.SystemInstruction, "Talk like a pirate.")
			assert.Contains(t, req.SystemInstruction, "Be brief.")
			require.Len(t, req.History, 1)
			assert.Equal(t, "question", req.History[0].Content)
		})
	}
}

func TestSend_MissingCredentialsFailsBeforeDispatch(t *testing.T) {
	called := false
	p, store := newPipeline(t, map[Family]Backend{
		FamilyOpenAI: {Text: streamFunc(func(ctx context.Context, req TextRequest) iter.Seq2[Chunk, error] {
			called = true
			return scripted(nil)(ctx, req)
		})},
	})
	tab := store.ActiveTabID()

	res, err := p.Send(context.Background(), Request{TabID: tab, Content: "hi"})
	require.NoError(t, err)
	assert.ErrorIs(t, res.Err, ErrMissingCredentials)
	assert.False(t, called)

	msg, _ := store.Message(tab, res.MessageID)
	assert.True(t, msg.IsError)
	assert.False(t, msg.IsStreaming)
	assert.Contains(t, msg.Content, "ORBIT_GEMINI_API_KEY")
}

func TestSend_UnknownTab(t *testing.T) {
	p, _ := newPipeline(t, gemini(Backend{Text: scripted(nil)}))
	_, err := p.Send(context.Background(), Request{TabID: "missing", Content: "hi"})
	assert.ErrorIs(t, err, ErrUnknownTab)
}

func TestSend_DuplicateIsDropped(t *testing.T) {
	p, store := newPipeline(t, gemini(Backend{Text: scripted(nil, Chunk{Text: "ok"})}))
	tab := store.ActiveTabID()

	first, err := p.Send(context.Background(), Request{TabID: tab, Content: "hello"})
	require.NoError(t, err)
	second, err := p.Send(context.Background(), Request{TabID: tab, Content: "hello"})
	require.NoError(t, err)

	assert.False(t, first.Duplicate)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.UserMessageID, second.UserMessageID)

	cur, _ := store.Tab(tab)
	users := 0
	for _, m := range cur.Messages {
		if m.Role == domain.RoleUser {
			users++
		}
	}
	assert.Equal(t, 1, users)
}

// ─────────────────────────────────────────────────────────────────
// Simple / media
// ─────────────────────────────────────────────────────────────────

func TestSend_SimpleModeRedirects(t *testing.T) {
	p, store := newPipeline(t, nil)
	tab := store.ActiveTabID()

	res, err := p.Send(context.Background(), Request{TabID: tab, Content: "what is rust", Mode: domain.ModeSimple})
	require.NoError(t, err)
	assert.Equal(t, "https://www.google.com/search?q=what+is+rust", res.Redirect)

	msg, _ := store.Message(tab, res.MessageID)
	assert.Empty(t, msg.Content)
	assert.False(t, msg.IsStreaming)
	assert.False(t, msg.IsError)
}

func TestSend_ImageSuccess(t *testing.T) {
	var got MediaRequest
	p, store := newPipeline(t, gemini(Backend{Image: imageFunc(func(ctx context.Context, req MediaRequest) (domain.GeneratedMedia, error) {
		got = req
		return domain.GeneratedMedia{Type: domain.MediaImage, URI: "data:image/png;base64,AAAA", MimeType: "image/png"}, nil
	})}))
	tab := store.ActiveTabID()

	res, err := p.Send(context.Background(), Request{
		TabID: tab, Content: "a red fox", Mode: domain.ModeImage,
		Profile: Profile{PreferredImageModel: "imagen-3.0-generate-002"},
	})
	require.NoError(t, err)
	require.NoError(t, res.Err)
	assert.Equal(t, "a red fox", got.Prompt)
	assert.Equal(t, "imagen-3.0-generate-002", got.Model)

	msg, _ := store.Message(tab, res.MessageID)
	require.NotNil(t, msg.GeneratedMedia)
	assert.Equal(t, domain.MediaImage, msg.GeneratedMedia.Type)
	assert.Equal(t, "data:image/png;base64,AAAA", msg.GeneratedMedia.URI)
	assert.Empty(t, msg.Content)
	assert.False(t, msg.IsStreaming)

	cur, _ := store.Tab(tab)
	assert.Equal(t, "a red fox", cur.Title)
}

func TestSend_ImageFailure(t *testing.T) {
	p, store := newPipeline(t, gemini(Backend{Image: imageFunc(func(ctx context.Context, req MediaRequest) (domain.GeneratedMedia, error) {
		return domain.GeneratedMedia{}, errors.New("safety filter")
	})}))
	tab := store.ActiveTabID()

	res, _ := p.Send(context.Background(), Request{TabID: tab, Content: "x", Mode: domain.ModeImage})
	msg, _ := store.Message(tab, res.MessageID)
	assert.Equal(t, "*[Error: image generation failed: safety filter]*", msg.Content)
	assert.Nil(t, msg.GeneratedMedia)
}

func TestSend_ImageUnsupported(t *testing.T) {
	p, store := newPipeline(t, gemini(Backend{Text: scripted(nil)}))
	res, _ := p.Send(context.Background(), Request{TabID: store.ActiveTabID(), Content: "x", Mode: domain.ModeImage})
	assert.ErrorIs(t, res.Err, ErrUnsupported)
}

func TestSend_VideoOutcomes(t *testing.T) {
	video := domain.GeneratedMedia{Type: domain.MediaVideo, URI: "data:video/mp4;base64,AA", MimeType: "video/mp4"}
	tests := []struct {
		name     string
		statuses []JobStatus
		wantErr  error
		content  string
	}{
		{
			name:     "done after pending",
			statuses: []JobStatus{{State: JobPending}, {State: JobDone, Media: video}},
		},
		{
			name:     "job failed",
			statuses: []JobStatus{{State: JobPending}, {State: JobFailed, Reason: "quota exceeded"}},
			wantErr:  ErrVideoJobFailed,
			content:  "*[Error: video generation failed: quota exceeded]*",
		},
		{
			name:     "timeout",
			statuses: []JobStatus{{State: JobPending}},
			wantErr:  ErrVideoTimeout,
			content:  "*[Error: Video generation timed out: the job was still running when we stopped waiting.]*",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs := &fakeJobs{statuses: tt.statuses}
			p, store := newPipeline(t, gemini(Backend{Jobs: jobs}))
			tab := store.ActiveTabID()

			res, err := p.Send(context.Background(), Request{TabID: tab, Content: "a cat surfing", Mode: domain.ModeVideo})
			require.NoError(t, err)
			msg, _ := store.Message(tab, res.MessageID)
			assert.False(t, msg.IsStreaming)

			if tt.wantErr == nil {
				require.NoError(t, res.Err)
				require.NotNil(t, msg.GeneratedMedia)
				assert.Equal(t, video, *msg.GeneratedMedia)
				return
			}
			assert.ErrorIs(t, res.Err, tt.wantErr)
			assert.Equal(t, tt.content, msg.Content)
		})
	}
}

// ─────────────────────────────────────────────────────────────────
// Cancellation and concurrency
// ─────────────────────────────────────────────────────────────────

func TestCancelKeepsPartialOutput(t *testing.T) {
	started := make(chan struct{}, 1)
	p, store := newPipeline(t, gemini(Backend{Text: blocking(started, Chunk{Text: "partial"})}))
	tab := store.ActiveTabID()

	job, err := p.Start(context.Background(), Request{TabID: tab, Content: "long answer"})
	require.NoError(t, err)
	<-started
	require.True(t, p.InFlight(tab))

	require.True(t, p.Cancel(tab))
	res := job.Wait()

	assert.ErrorIs(t, res.Err, context.Canceled)
	msg, _ := store.Message(tab, res.MessageID)
	assert.Equal(t, "partial\n\n*[Error: Request cancelled.]*", msg.Content)
	assert.False(t, msg.IsStreaming)
	assert.False(t, p.Cancel(tab))
}

func TestSendContextCancelStopsRequest(t *testing.T) {
	started := make(chan struct{}, 1)
	p, store := newPipeline(t, gemini(Backend{Text: blocking(started)}))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan Result, 1)
	go func() {
		res, _ := p.Send(ctx, Request{TabID: store.ActiveTabID(), Content: "x"})
		done <- res
	}()
	<-started
	cancel()

	res := <-done
	assert.ErrorIs(t, res.Err, context.Canceled)
}

func TestNewSendSupersedesStreamInSameTab(t *testing.T) {
	started := make(chan struct{}, 1)
	calls := 0
	var mu sync.Mutex
	text := streamFunc(func(ctx context.Context, req TextRequest) iter.Seq2[Chunk, error] {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			return blocking(started, Chunk{Text: "first"})(ctx, req)
		}
		return scripted(nil, Chunk{Text: "second"})(ctx, req)
	})
	p, store := newPipeline(t, gemini(Backend{Text: text}))
	tab := store.ActiveTabID()

	first, err := p.Start(context.Background(), Request{TabID: tab, Content: "one"})
	require.NoError(t, err)
	<-started

	second, err := p.Send(context.Background(), Request{TabID: tab, Content: "two"})
	require.NoError(t, err)
	firstRes := first.Wait()

	assert.ErrorIs(t, firstRes.Err, context.Canceled)
	m1, _ := store.Message(tab, firstRes.MessageID)
	assert.Equal(t, "first", m1.Content, "superseded message is frozen before the cancellation lands")
	assert.False(t, m1.IsStreaming)

	m2, _ := store.Message(tab, second.MessageID)
	assert.Equal(t, "second", m2.Content)
}

func TestStreamsInDifferentTabsAreIndependent(t *testing.T) {
	p, store := newPipeline(t, gemini(Backend{Text: streamFunc(func(ctx context.Context, req TextRequest) iter.Seq2[Chunk, error] {
		q := req.History[len(req.History)-1].Content
		return scripted(nil, Chunk{Text: q}, Chunk{Text: "!"})(ctx, req)
	})}))

	const n = 8
	tabs := make([]string, n)
	jobs := make([]*Job, n)
	for i := range tabs {
		tabs[i] = store.ActiveTabID()
		j, err := p.Start(context.Background(), Request{TabID: tabs[i], Content: strings.Repeat("x", i+1)})
		require.NoError(t, err)
		jobs[i] = j
		store.ActivateNewTab()
	}
	for i, j := range jobs {
		res := j.Wait()
		require.NoError(t, res.Err)
		msg, _ := store.Message(tabs[i], res.MessageID)
		assert.Equal(t, strings.Repeat("x", i+1)+"!", msg.Content)
	}
}

func TestDrainSettlesEveryTab(t *testing.T) {
	started := make(chan struct{}, 2)
	p, store := newPipeline(t, gemini(Backend{Text: blocking(started, Chunk{Text: "part"})}))

	first := store.ActiveTabID()
	j1, err := p.Start(context.Background(), Request{TabID: first, Content: "a"})
	require.NoError(t, err)
	second := store.ActivateNewTab()
	j2, err := p.Start(context.Background(), Request{TabID: second, Content: "b"})
	require.NoError(t, err)
	<-started
	<-started

	p.Drain()

	for _, j := range []*Job{j1, j2} {
		select {
		case <-j.Done():
		default:
			t.Fatal("Drain returned before a job recorded its outcome")
		}
		res := j.Wait()
		msg, _ := store.Message(res.TabID, res.MessageID)
		assert.False(t, msg.IsStreaming)
		assert.Equal(t, "part\n\n*[Error: Request cancelled.]*", msg.Content)
	}
	assert.False(t, p.InFlight(first))
	assert.False(t, p.InFlight(second))
}

// ─────────────────────────────────────────────────────────────────
// After finalize
// ─────────────────────────────────────────────────────────────────

func TestFinalizeExtractsDownloads(t *testing.T) {
	content := "Here you go:\n$$$FILE:::notes.txt:::text/plain$$$hello$$$END_FILE$$$"
	p, store := newPipeline(t, gemini(Backend{Text: scripted(nil, Chunk{Text: content[:20]}, Chunk{Text: content[20:]})}))
	tab := store.ActiveTabID()

	res, err := p.Send(context.Background(), Request{TabID: tab, Content: "make a file"})
	require.NoError(t, err)

	dls := store.Downloads()
	require.Len(t, dls, 1)
	assert.Equal(t, "notes.txt", dls[0].Name)
	assert.Equal(t, "text/plain", dls[0].MimeType)
	assert.Equal(t, "hello", dls[0].Data)
	assert.Equal(t, res.MessageID, dls[0].MessageID)
}

func TestTitleGeneration(t *testing.T) {
	tests := []struct {
		name  string
		title TitleGenerator
		want  string
	}{
		{name: "generated", title: titleFunc(func(context.Context, []*domain.Message) (string, error) { return ` "Rust Basics" `, nil }), want: "Rust Basics"},
		{name: "failure keeps derived", title: titleFunc(func(context.Context, []*domain.Message) (string, error) { return "", errors.New("rate limited") }), want: "what is rust"},
		{name: "no generator", want: "what is rust"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, store := newPipeline(t, gemini(Backend{Text: scripted(nil, Chunk{Text: "a language"}), Title: tt.title}))
			tab := store.ActiveTabID()
			_, err := p.Send(context.Background(), Request{TabID: tab, Content: "what is rust"})
			require.NoError(t, err)

			cur, _ := store.Tab(tab)
			assert.Equal(t, tt.want, cur.Title)
		})
	}
}

func TestTitleOnlyAfterFirstExchange(t *testing.T) {
	calls := 0
	p, store := newPipeline(t, gemini(Backend{
		Text: scripted(nil, Chunk{Text: "ok"}),
		Title: titleFunc(func(context.Context, []*domain.Message) (string, error) {
			calls++
			return "Generated", nil
		}),
	}))
	tab := store.ActiveTabID()
	_, _ = p.Send(context.Background(), Request{TabID: tab, Content: "one"})
	_, _ = p.Send(context.Background(), Request{TabID: tab, Content: "two"})
	assert.Equal(t, 1, calls)
}
