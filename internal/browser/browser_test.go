package browser

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

	"github.com/MrSnakeDoc/orbit/internal/completion"
	"github.com/MrSnakeDoc/orbit/internal/domain"
	"github.com/MrSnakeDoc/orbit/internal/index"
	"github.com/MrSnakeDoc/orbit/internal/logger"
	"github.com/MrSnakeDoc/orbit/internal/navigation"
	"github.com/MrSnakeDoc/orbit/internal/persist"
	"github.com/MrSnakeDoc/orbit/internal/profile"
	"github.com/MrSnakeDoc/orbit/internal/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeText answers with a fixed chunk script and records every request.
type fakeText struct {
	mu     sync.Mutex
	chunks []string
	err    error
	reqs   []completion.TextRequest

	// gate, when set, holds the stream after its first chunk
	gate chan struct{}
}

func (f *fakeText) StreamText(ctx context.Context, req completion.TextRequest) iter.Seq2[completion.Chunk, error] {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	chunks, err, gate := f.chunks, f.err, f.gate
	f.mu.Unlock()

	return func(yield func(completion.Chunk, error) bool) {
		for i, c := range chunks {
			if !yield(completion.Chunk{Text: c}, nil) {
				return
			}
			if i == 0 && gate != nil {
				select {
				case <-gate:
				case <-ctx.Done():
					yield(completion.Chunk{}, ctx.Err())
					return
				}
			}
		}
		if err != nil {
			yield(completion.Chunk{}, err)
		}
	}
}

func (f *fakeText) last(t *testing.T) completion.TextRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.reqs)
	return f.reqs[len(f.reqs)-1]
}

type fakeImage struct{}

func (fakeImage) GenerateImage(context.Context, completion.MediaRequest) (domain.GeneratedMedia, error) {
	return domain.GeneratedMedia{Type: domain.MediaImage, URI: "data:image/png;base64,AAAA", MimeType: "image/png"}, nil
}

type fixture struct {
	browser *Browser
	store   *session.Store
	index   *index.MemoryIndex
	reg     *profile.Registry
	persist *persist.Store
	text    *fakeText
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := session.New()
	idx := index.NewMemoryIndex()
	reg := profile.New()
	text := &fakeText{chunks: []string{"ok"}}

	p := completion.New(store, completion.Config{
		Backends: map[completion.Family]completion.Backend{
			completion.FamilyGemini: {Text: text, Image: fakeImage{}},
		},
		Poll: completion.PollPolicy{Interval: time.Millisecond, MaxAttempts: 3},
	}, logger.Nop())
	t.Cleanup(p.Close)

	ps := persist.NewStore(persist.NewMemoryBackend(), logger.Nop())
	b := New(Deps{Store: store, Index: idx, Registry: reg, Pipeline: p, Persist: ps})
	return &fixture{browser: b, store: store, index: idx, reg: reg, persist: ps, text: text}
}

func wait(t *testing.T, out Outcome) completion.Result {
	t.Helper()
	require.NotNil(t, out.Job)
	return out.Job.Wait()
}

// ─────────────────────────────────────────────────────────────────
// Navigation
// ─────────────────────────────────────────────────────────────────

func TestSubmitUnembeddableOpensExternally(t *testing.T) {
	f := newFixture(t)

	out, err := f.browser.Submit(context.Background(), SubmitRequest{Input: "openai.com"})
	require.NoError(t, err)

	assert.Equal(t, navigation.KindNavigate, out.Destination.Kind)
	assert.True(t, out.Destination.ForceRedirect)
	assert.Equal(t, "https://openai.com", out.OpenExternal)
	assert.Nil(t, out.Job)

	tab := f.store.ActiveTab()
	assert.False(t, tab.Browser.IsOpen)
	assert.Equal(t, "https://openai.com", tab.Browser.URL)

	visits := f.index.History(domain.HistoryVisit, 0)
	require.Len(t, visits, 1)
	assert.Equal(t, "https://openai.com", visits[0].URL)
	assert.Equal(t, "openai.com", visits[0].Title)
}

func TestSubmitVideoHostIsEmbedded(t *testing.T) {
	f := newFixture(t)

	out, err := f.browser.Submit(context.Background(), SubmitRequest{Input: "youtu.be/dQw4w9WgXcQ"})
	require.NoError(t, err)

	const want = "https://www.youtube.com/embed/dQw4w9WgXcQ?autoplay=1"
	assert.Equal(t, want, out.Destination.URL)
	assert.Empty(t, out.OpenExternal)

	tab := f.store.ActiveTab()
	assert.True(t, tab.Browser.IsOpen)
	assert.Equal(t, []string{want}, tab.Browser.History)
	assert.Equal(t, "youtu.be/dQw4w9WgXcQ", tab.Browser.DisplayURL)
	assert.Equal(t, want, f.index.History("", 0)[0].URL, "history records the rewritten URL")
}

func TestSubmitMalformedURLChangesNothing(t *testing.T) {
	f := newFixture(t)
	before := f.store.ActiveTab()

	_, err := f.browser.Submit(context.Background(), SubmitRequest{Input: "http://[::1"})
	require.ErrorIs(t, err, navigation.ErrInvalidURL)

	assert.Equal(t, before, f.store.ActiveTab())
	assert.Zero(t, f.index.HistoryCount())
}

func TestSubmitUnknownTab(t *testing.T) {
	f := newFixture(t)
	_, err := f.browser.Submit(context.Background(), SubmitRequest{TabID: "gone", Input: "example.com"})
	assert.ErrorIs(t, err, completion.ErrUnknownTab)
	assert.Zero(t, f.index.HistoryCount())
}

// ─────────────────────────────────────────────────────────────────
// Queries
// ─────────────────────────────────────────────────────────────────

func TestSubmitQuerySchemeGoesToModel(t *testing.T) {
	f := newFixture(t)

	out, err := f.browser.Submit(context.Background(), SubmitRequest{Input: "query://what is rust", Mode: domain.ModeFast})
	require.NoError(t, err)
	res := wait(t, out)
	require.NoError(t, res.Err)

	assert.Equal(t, navigation.KindQuery, out.Destination.Kind)
	tab := f.store.ActiveTab()
	require.Len(t, tab.Messages, 2)
	assert.Equal(t, "what is rust", tab.Messages[0].Content)
	assert.Equal(t, "ok", tab.Messages[1].Content)
	assert.Equal(t, domain.ModeFast, f.text.last(t).Mode)

	searches := f.index.History(domain.HistorySearch, 0)
	require.Len(t, searches, 1)
	assert.Equal(t, "query://what is rust", searches[0].URL)
}

func TestSubmitPlainTextSearchesInNormalMode(t *testing.T) {
	f := newFixture(t)

	out, err := f.browser.Submit(context.Background(), SubmitRequest{Input: "how do lifetimes work", Mode: domain.ModeImage})
	require.NoError(t, err)
	wait(t, out)

	assert.Equal(t, navigation.KindSearch, out.Destination.Kind)
	assert.Equal(t, domain.ModeNormal, f.text.last(t).Mode)
}

func TestSendImage(t *testing.T) {
	f := newFixture(t)

	job, err := f.browser.Send(context.Background(), SendRequest{Content: "a red fox", Mode: domain.ModeImage})
	require.NoError(t, err)
	res := job.Wait()
	require.NoError(t, res.Err)

	msg, ok := f.store.Message(res.TabID, res.MessageID)
	require.True(t, ok)
	require.NotNil(t, msg.GeneratedMedia)
	assert.True(t, strings.HasPrefix(msg.GeneratedMedia.URI, "data:image/png;base64,"))
	assert.Empty(t, msg.Content)
	assert.False(t, msg.IsStreaming)
}

func TestSendTwiceIsDeduplicated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	j1, err := f.browser.Send(ctx, SendRequest{Content: "hello"})
	require.NoError(t, err)
	j2, err := f.browser.Send(ctx, SendRequest{Content: "hello"})
	require.NoError(t, err)
	j1.Wait()
	assert.True(t, j2.Wait().Duplicate)

	var users int
	for _, m := range f.store.ActiveTab().Messages {
		if m.Role == domain.RoleUser {
			users++
			assert.Equal(t, "hello", m.Content)
		}
	}
	assert.Equal(t, 1, users)
}

func TestSubmitDuplicateRecordsOneSearch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.browser.Submit(ctx, SubmitRequest{Input: "what is a tab"})
	require.NoError(t, err)
	second, err := f.browser.Submit(ctx, SubmitRequest{Input: "what is a tab"})
	require.NoError(t, err)
	wait(t, first)
	assert.True(t, wait(t, second).Duplicate)

	assert.Len(t, f.index.History(domain.HistorySearch, 0), 1)
}

func TestSendStreamErrorKeepsPartial(t *testing.T) {
	f := newFixture(t)
	f.text.chunks = []string{"Hel", "lo wor", "ld"}
	f.text.err = errors.New("connection reset")

	job, err := f.browser.Send(context.Background(), SendRequest{Content: "hi"})
	require.NoError(t, err)
	res := job.Wait()

	msg, _ := f.store.Message(res.TabID, res.MessageID)
	assert.Equal(t, "Hello world\n\n*[Error: connection reset]*", msg.Content)
	assert.False(t, msg.IsStreaming)
}

func TestSendAppliesProfileContext(t *testing.T) {
	f := newFixture(t)
	f.reg.ReplaceCatalogue([]domain.Extension{{ID: "pirate", Name: "Pirate", Instruction: "Talk like a pirate."}})
	require.NoError(t, f.reg.EnableExtension(domain.DefaultProfileID, "pirate"))
	f.store.SetCustomInstructions("Answer in French.")

	job, err := f.browser.Send(context.Background(), SendRequest{Content: "hi"})
	require.NoError(t, err)
	job.Wait()

	sys := f.text.last(t).SystemInstruction
	assert.Contains(t, sys, "Talk like a pirate.")
	assert.Contains(t, sys, "Answer in French.")
}

// ─────────────────────────────────────────────────────────────────
// State swaps
// ─────────────────────────────────────────────────────────────────

func converse(t *testing.T, f *fixture, content string) {
	t.Helper()
	job, err := f.browser.Send(context.Background(), SendRequest{Content: content})
	require.NoError(t, err)
	require.NoError(t, job.Wait().Err)
}

func TestSwitchProfileSwapsWholeSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	converse(t, f, "default question")
	f.index.AddBookmark("Rust", "https://rust-lang.org")
	work := f.reg.CreateProfile("Work")

	require.NoError(t, f.browser.SwitchProfile(ctx, work.ID))
	assert.Equal(t, work.ID, f.reg.ActiveID())
	assert.Empty(t, f.store.ActiveTab().Messages, "the target profile starts empty")
	assert.Zero(t, f.index.BookmarkCount())

	converse(t, f, "work question")

	require.NoError(t, f.browser.SwitchProfile(ctx, domain.DefaultProfileID))
	tab := f.store.ActiveTab()
	require.NotEmpty(t, tab.Messages)
	assert.Equal(t, "default question", tab.Messages[0].Content)
	assert.Equal(t, 1, f.index.BookmarkCount())

	saved, err := f.persist.LoadSnapshot(ctx, work.ID)
	require.NoError(t, err)
	require.Len(t, saved.Tabs, 1)
	assert.Equal(t, "work question", saved.Tabs[0].Messages[0].Content)
}

func TestSwitchProfileErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.browser.SwitchProfile(ctx, "missing"), profile.ErrNotFound)
	assert.NoError(t, f.browser.SwitchProfile(ctx, domain.DefaultProfileID), "switching to the active profile is a no-op")
}

func TestDeleteActiveProfileFallsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	converse(t, f, "default question")
	work := f.reg.CreateProfile("Work")
	require.NoError(t, f.browser.SwitchProfile(ctx, work.ID))
	converse(t, f, "work question")

	require.NoError(t, f.browser.DeleteProfile(ctx, work.ID))

	assert.Equal(t, domain.DefaultProfileID, f.reg.ActiveID())
	assert.Equal(t, "default question", f.store.ActiveTab().Messages[0].Content)
	_, ok := f.reg.Profile(work.ID)
	assert.False(t, ok)
	_, err := f.persist.LoadSnapshot(ctx, work.ID)
	assert.ErrorIs(t, err, persist.ErrNotFound)

	assert.ErrorIs(t, f.browser.DeleteProfile(ctx, domain.DefaultProfileID), profile.ErrLastProfile)
	assert.ErrorIs(t, f.browser.DeleteProfile(ctx, "missing"), profile.ErrNotFound)
}

func TestIncognitoLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	converse(t, f, "before")
	f.browser.SetIncognito(true)
	assert.True(t, f.store.Incognito())

	f.store.ActivateNewTab()
	out, err := f.browser.Submit(ctx, SubmitRequest{Input: "query://secret"})
	require.NoError(t, err)
	wait(t, out)
	_, err = f.browser.Submit(ctx, SubmitRequest{Input: "example.com"})
	require.NoError(t, err)
	assert.Zero(t, f.index.HistoryCount(), "incognito records no history")

	profileID, snap, _ := f.browser.Capture()
	require.NoError(t, f.persist.SaveSnapshot(ctx, profileID, snap))
	reloaded, err := f.persist.LoadSnapshot(ctx, profileID)
	require.NoError(t, err)
	for _, tab := range append(reloaded.Tabs, reloaded.ArchivedTabs...) {
		for _, m := range tab.Messages {
			assert.NotEqual(t, "secret", m.Content)
		}
	}

	f.browser.SetIncognito(false)
	assert.False(t, f.store.Incognito())
	tab := f.store.ActiveTab()
	require.NotEmpty(t, tab.Messages)
	assert.Equal(t, "before", tab.Messages[0].Content, "the pre-incognito session comes back")
	assert.Empty(t, f.store.ArchivedTabs(), "incognito tabs are discarded")
}

// firstChunk returns a channel closed once a chunk lands in the store.
func firstChunk(f *fixture) <-chan struct{} {
	ch := make(chan struct{})
	var once sync.Once
	unsubscribe := f.store.Subscribe(func(c session.Change) {
		if c.Kind == session.ChangeChunk {
			once.Do(func() { close(ch) })
		}
	})
	go func() { <-ch; unsubscribe() }()
	return ch
}

func TestIncognitoKeepsStreamStartedBefore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.text.chunks = []string{"Hel", "lo world"}
	f.text.gate = make(chan struct{})

	started := firstChunk(f)
	job, err := f.browser.Send(ctx, SendRequest{Content: "hi"})
	require.NoError(t, err)
	<-started

	f.browser.SetIncognito(true)
	close(f.text.gate)
	res := job.Wait()
	require.NoError(t, res.Err)

	_, snap, _ := f.browser.Capture()
	require.Len(t, snap.Tabs, 1)
	require.Len(t, snap.Tabs[0].Messages, 2)
	assert.Equal(t, "Hello world", snap.Tabs[0].Messages[1].Content, "saved while incognito")

	f.browser.SetIncognito(false)
	msg, ok := f.store.Message(res.TabID, res.MessageID)
	require.True(t, ok)
	assert.Equal(t, "Hello world", msg.Content)
	assert.False(t, msg.IsStreaming)
}

func TestIncognitoDropsTurnsAddedToShelteredTab(t *testing.T) {
	f := newFixture(t)

	converse(t, f, "before")
	f.browser.SetIncognito(true)
	converse(t, f, "during")
	f.browser.SetIncognito(false)

	var contents []string
	for _, m := range f.store.ActiveTab().Messages {
		contents = append(contents, m.Content)
	}
	assert.Equal(t, []string{"before", "ok"}, contents)
}

func TestCheckpointHoldsOffProfileSwitch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	work := f.reg.CreateProfile("Work")

	entered := make(chan struct{})
	release := make(chan struct{})
	saved := make(chan error, 1)
	go func() {
		saved <- f.browser.Checkpoint(func(profileID string, snap *domain.Snapshot, _ profile.State) error {
			close(entered)
			<-release
			return f.persist.SaveSnapshot(ctx, profileID, snap)
		})
	}()
	<-entered

	switched := make(chan error, 1)
	go func() { switched <- f.browser.SwitchProfile(ctx, work.ID) }()

	select {
	case <-switched:
		t.Fatal("profile switched during a checkpoint")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, domain.DefaultProfileID, f.reg.ActiveID())

	close(release)
	require.NoError(t, <-saved)
	require.NoError(t, <-switched)
	assert.Equal(t, work.ID, f.reg.ActiveID())
}

func TestRestoreLoadsActiveProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reg := profile.New()
	work := reg.CreateProfile("Work")
	require.NoError(t, reg.SetActive(work.ID))
	st := reg.Export()
	ps := persist.NewStore(persist.NewMemoryBackend(), logger.Nop())
	require.NoError(t, ps.SaveRegistry(ctx, st))

	snap := domain.EmptySnapshot()
	snap.Bookmarks = []domain.Bookmark{{ID: "b1", Title: "Docs", Query: "https://go.dev"}}
	snap.CustomBackdrop = "aurora"
	require.NoError(t, ps.SaveSnapshot(ctx, work.ID, snap))

	f.browser.persist = ps
	require.NoError(t, f.browser.Restore(ctx))

	assert.Equal(t, work.ID, f.reg.ActiveID())
	assert.Equal(t, 1, f.index.BookmarkCount())
	assert.Equal(t, "aurora", f.store.CustomBackdrop())
}

func TestRestoreWithNothingStored(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.browser.Restore(context.Background()))
	assert.Equal(t, domain.DefaultProfileID, f.reg.ActiveID())
	assert.Empty(t, f.store.ActiveTab().Messages)
}
