// Package browser is the entry point for user intent. It classifies
// address-bar input, dispatches queries to the completion pipeline and
// navigation to the session store, and swaps session state when the
// active profile or incognito mode changes.
package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/MrSnakeDoc/orbit/internal/completion"
	"github.com/MrSnakeDoc/orbit/internal/domain"
	"github.com/MrSnakeDoc/orbit/internal/index"
	"github.com/MrSnakeDoc/orbit/internal/logger"
	"github.com/MrSnakeDoc/orbit/internal/navigation"
	"github.com/MrSnakeDoc/orbit/internal/persist"
	"github.com/MrSnakeDoc/orbit/internal/profile"
	"github.com/MrSnakeDoc/orbit/internal/session"
)

// SnapshotStore is the durable side of profile switching.
type SnapshotStore interface {
	LoadSnapshot(ctx context.Context, profileID string) (*domain.Snapshot, error)
	SaveSnapshot(ctx context.Context, profileID string, snap *domain.Snapshot) error
	DeleteSnapshot(ctx context.Context, profileID string) error
	LoadRegistry(ctx context.Context) (profile.State, error)
}

// Browser ties the session components together.
type Browser struct {
	// mu serializes state swaps against captures and dispatches
	mu sync.RWMutex

	store    *session.Store
	index    *index.MemoryIndex
	registry *profile.Registry
	resolver *navigation.Resolver
	pipeline *completion.Pipeline
	persist  SnapshotStore
	log      logger.Logger

	// shelter is the session as it was when incognito was switched on
	shelter *domain.Snapshot
}

// Deps are the components a Browser drives.
type Deps struct {
	Store    *session.Store
	Index    *index.MemoryIndex
	Registry *profile.Registry
	Resolver *navigation.Resolver
	Pipeline *completion.Pipeline
	Persist  SnapshotStore
	Logger   logger.Logger
}

// New creates a browser over deps. Resolver defaults to navigation.New().
func New(d Deps) *Browser {
	if d.Resolver == nil {
		d.Resolver = navigation.New()
	}
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	return &Browser{
		store:    d.Store,
		index:    d.Index,
		registry: d.Registry,
		resolver: d.Resolver,
		pipeline: d.Pipeline,
		persist:  d.Persist,
		log:      d.Logger,
	}
}

// Store returns the session store.
func (b *Browser) Store() *session.Store { return b.store }

// Index returns the history/bookmark index.
func (b *Browser) Index() *index.MemoryIndex { return b.index }

// Registry returns the profile registry.
func (b *Browser) Registry() *profile.Registry { return b.registry }

// Pipeline returns the completion pipeline.
func (b *Browser) Pipeline() *completion.Pipeline { return b.pipeline }

// ─────────────────────────────────────────────────────────────────
// Dispatch
// ─────────────────────────────────────────────────────────────────

// SubmitRequest is one address-bar submission.
type SubmitRequest struct {
	TabID       string // empty means the active tab
	Input       string
	Mode        domain.Mode // applied to query:// input
	Attachments []domain.Attachment
}

// Outcome reports what a submission did.
type Outcome struct {
	Destination navigation.Destination

	// Job is set when the input went to the completion pipeline.
	Job *completion.Job

	// OpenExternal is the URL the caller must open in a new top-level
	// context, for navigation to pages that forbid embedding.
	OpenExternal string
}

// Submit resolves input and dispatches it. Malformed URLs return
// navigation.ErrInvalidURL and leave all state untouched.
func (b *Browser) Submit(ctx context.Context, req SubmitRequest) (Outcome, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	tabID := b.tabOrActive(req.TabID)
	dest, err := b.resolver.Resolve(req.Input)
	if err != nil {
		b.log.Warn("navigation abandoned",
			logger.TabID(tabID),
			logger.String("input", req.Input),
			logger.Error(err))
		return Outcome{}, err
	}

	switch dest.Kind {
	case navigation.KindNavigate:
		return b.navigateLocked(tabID, dest)
	default:
		mode := domain.ModeNormal
		if dest.Kind == navigation.KindQuery {
			mode = req.Mode
		}
		job, err := b.sendLocked(ctx, tabID, dest.Query, req.Attachments, mode)
		if err != nil {
			return Outcome{Destination: dest}, err
		}
		if !job.IDs().Duplicate && !b.store.Incognito() {
			b.index.RecordSearch(dest.Query)
		}
		return Outcome{Destination: dest, Job: job}, nil
	}
}

func (b *Browser) navigateLocked(tabID string, dest navigation.Destination) (Outcome, error) {
	if _, ok := b.store.Tab(tabID); !ok {
		return Outcome{}, fmt.Errorf("%w: %s", completion.ErrUnknownTab, tabID)
	}
	if !b.store.Incognito() {
		b.index.RecordVisit(hostTitle(dest.URL), dest.URL)
	}
	b.store.Navigate(tabID, dest.DisplayURL, dest.URL, !dest.ForceRedirect)

	out := Outcome{Destination: dest}
	if dest.ForceRedirect {
		out.OpenExternal = dest.URL
	}
	return out, nil
}

func hostTitle(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Hostname() != "" {
		return u.Hostname()
	}
	return raw
}

// SendRequest is one chat-box submission.
type SendRequest struct {
	TabID       string // empty means the active tab
	Content     string
	Attachments []domain.Attachment
	Mode        domain.Mode
}

// Send dispatches content to the completion pipeline without URL
// classification. The returned job is already running.
func (b *Browser) Send(ctx context.Context, req SendRequest) (*completion.Job, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sendLocked(ctx, b.tabOrActive(req.TabID), req.Content, req.Attachments, req.Mode)
}

func (b *Browser) sendLocked(ctx context.Context, tabID, content string, attachments []domain.Attachment, mode domain.Mode) (*completion.Job, error) {
	return b.pipeline.Start(ctx, completion.Request{
		TabID:       tabID,
		Content:     content,
		Attachments: attachments,
		Mode:        mode,
		Profile:     b.contextLocked(),
	})
}

// contextLocked builds the read-only profile context for a request.
func (b *Browser) contextLocked() completion.Profile {
	p := b.registry.Active()
	return completion.Profile{
		PreferredModel:      p.PreferredModel,
		PreferredImageModel: p.PreferredImageModel,
		Extensions:          b.registry.EnabledExtensions(p.ID),
		CustomInstructions:  b.store.CustomInstructions(),
	}
}

func (b *Browser) tabOrActive(id string) string {
	if id == "" {
		return b.store.ActiveTabID()
	}
	return id
}

// ─────────────────────────────────────────────────────────────────
// State swaps
// ─────────────────────────────────────────────────────────────────

// Restore loads the registry and the active profile's session. Missing
// data starts from defaults.
func (b *Browser) Restore(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, err := b.persist.LoadRegistry(ctx)
	switch {
	case err == nil:
		b.registry.Restore(st)
	case !errors.Is(err, persist.ErrNotFound):
		return fmt.Errorf("failed to load profiles: %w", err)
	}

	return b.loadLocked(ctx, b.registry.ActiveID())
}

func (b *Browser) loadLocked(ctx context.Context, profileID string) error {
	snap, err := b.persist.LoadSnapshot(ctx, profileID)
	switch {
	case errors.Is(err, persist.ErrNotFound):
		snap = domain.EmptySnapshot()
	case err != nil:
		return fmt.Errorf("failed to load session for %s: %w", profileID, err)
	}
	b.applyLocked(snap)
	b.log.Info("session loaded",
		logger.String("profile_id", profileID),
		logger.Int("archived", len(snap.ArchivedTabs)),
		logger.Int("history", len(snap.GlobalHistory)))
	return nil
}

func (b *Browser) applyLocked(snap *domain.Snapshot) {
	b.shelter = nil
	b.store.Replace(snap)
	b.index.Replace(snap.GlobalHistory, snap.Bookmarks)
}

// SwitchProfile saves the current profile's session and replaces it with
// the target's. In-flight requests are cancelled first so their outcome
// lands in the session being saved.
func (b *Browser) SwitchProfile(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	current := b.registry.ActiveID()
	if id == current {
		return nil
	}
	if _, ok := b.registry.Profile(id); !ok {
		return profile.ErrNotFound
	}

	b.pipeline.Drain()
	if err := b.persist.SaveSnapshot(ctx, current, b.captureLocked()); err != nil {
		return fmt.Errorf("failed to save session for %s: %w", current, err)
	}
	if err := b.loadLocked(ctx, id); err != nil {
		return err
	}
	return b.registry.SetActive(id)
}

// DeleteProfile removes a profile and its stored session. Deleting the
// active profile first switches to the next remaining one without saving.
func (b *Browser) DeleteProfile(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.registry.Profile(id); !ok {
		return profile.ErrNotFound
	}
	profiles := b.registry.Profiles()
	if len(profiles) == 1 {
		return profile.ErrLastProfile
	}

	if id == b.registry.ActiveID() {
		next := profiles[0].ID
		if next == id {
			next = profiles[1].ID
		}
		b.pipeline.Drain()
		if err := b.loadLocked(ctx, next); err != nil {
			return err
		}
		if err := b.registry.SetActive(next); err != nil {
			return err
		}
	}

	if err := b.registry.DeleteProfile(id); err != nil {
		return err
	}
	if err := b.persist.DeleteSnapshot(ctx, id); err != nil && !errors.Is(err, persist.ErrNotFound) {
		return fmt.Errorf("failed to delete session for %s: %w", id, err)
	}
	return nil
}

// SetIncognito toggles incognito. While on, nothing new reaches history
// and the persisted session keeps only the tabs and turns that existed
// when incognito started, with whatever their streams wrote since.
// Switching off freezes in-flight streams, discards the incognito tabs and
// brings that session back.
func (b *Browser) SetIncognito(on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if on == b.store.Incognito() {
		return
	}
	if on {
		b.shelter = b.exportLocked()
		b.store.SetIncognito(true)
		return
	}

	b.pipeline.Drain()
	snap := b.captureLocked()
	if snap.IsIncognito {
		// no shelter: incognito was restored from disk
		snap.Tabs, snap.ActiveTabID, snap.ArchivedTabs, snap.GlobalHistory = nil, "", nil, nil
		snap.IsIncognito = false
	}
	b.applyLocked(snap)
}

// Capture returns the active profile id, the session to persist for it,
// and the registry state.
func (b *Browser) Capture() (string, *domain.Snapshot, profile.State) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.registry.ActiveID(), b.captureLocked(), b.registry.Export()
}

// Checkpoint hands save a capture and holds off state swaps until save
// returns, so a background save never lands after a swap's own save.
func (b *Browser) Checkpoint(save func(profileID string, snap *domain.Snapshot, registry profile.State) error) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return save(b.registry.ActiveID(), b.captureLocked(), b.registry.Export())
}

// captureLocked is the live session. During incognito the sheltered tabs,
// archive and history stand in for the incognito ones, and the result is
// not flagged incognito so a restart ends the incognito session.
func (b *Browser) captureLocked() *domain.Snapshot {
	snap := b.exportLocked()
	if !snap.IsIncognito || b.shelter == nil {
		return snap
	}
	live := make(map[string]*domain.Tab, len(snap.Tabs)+len(snap.ArchivedTabs))
	for _, t := range append(snap.Tabs, snap.ArchivedTabs...) {
		live[t.ID] = t
	}
	snap.Tabs = syncSheltered(b.shelter.Tabs, live)
	snap.ActiveTabID = b.shelter.ActiveTabID
	snap.ArchivedTabs = syncSheltered(b.shelter.ArchivedTabs, live)
	snap.GlobalHistory = b.shelter.GlobalHistory
	snap.IsIncognito = false
	return snap
}

// syncSheltered copies the current state of every sheltered message from
// the live tabs, so output streamed into them during incognito is kept.
// Turns added during incognito are not carried over.
func syncSheltered(tabs []*domain.Tab, live map[string]*domain.Tab) []*domain.Tab {
	out := make([]*domain.Tab, 0, len(tabs))
	for _, t := range tabs {
		cur, ok := live[t.ID]
		if !ok {
			out = append(out, t)
			continue
		}
		msgs := make(map[string]*domain.Message, len(cur.Messages))
		for _, m := range cur.Messages {
			msgs[m.ID] = m
		}
		c := t.Clone()
		for i, m := range c.Messages {
			if lm, ok := msgs[m.ID]; ok {
				c.Messages[i] = lm.Clone()
			}
		}
		out = append(out, c)
	}
	return out
}

func (b *Browser) exportLocked() *domain.Snapshot {
	snap := b.store.Export()
	b.index.Export(snap)
	return snap
}

// Snapshot returns the live session, incognito tabs included.
func (b *Browser) Snapshot() *domain.Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.exportLocked()
}
