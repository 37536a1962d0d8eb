package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/MrSnakeDoc/orbit/internal/domain"
	"github.com/MrSnakeDoc/orbit/internal/logger"
	"github.com/MrSnakeDoc/orbit/internal/profile"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeSource struct {
	mu      sync.Mutex
	profile string
}

func (f *fakeSource) Checkpoint(save func(string, *domain.Snapshot, profile.State) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return save(f.profile, domain.EmptySnapshot(), profile.State{Version: profile.StateVersion})
}

type fakeSaver struct {
	mu        sync.Mutex
	snapshots []string
	registry  int
	err       error
	saved     chan struct{}
}

func newFakeSaver() *fakeSaver {
	return &fakeSaver{saved: make(chan struct{}, 16)}
}

func (f *fakeSaver) SaveSnapshot(_ context.Context, profileID string, _ *domain.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.snapshots = append(f.snapshots, profileID)
	return nil
}

func (f *fakeSaver) SaveRegistry(context.Context, profile.State) error {
	f.mu.Lock()
	f.registry++
	f.mu.Unlock()
	f.saved <- struct{}{}
	return nil
}

func (f *fakeSaver) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.snapshots)
}

func TestAutosaverCoalescesBursts(t *testing.T) {
	saver := newFakeSaver()
	a := NewAutosaver(&fakeSource{profile: "p1"}, saver, logger.Nop(), 30*time.Millisecond)
	a.Start(context.Background())
	defer a.Stop()

	for range 50 {
		a.Notify()
	}

	select {
	case <-saver.saved:
	case <-time.After(2 * time.Second):
		t.Fatal("autosave never flushed")
	}
	// give a second, unwanted flush the chance to happen
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 1, saver.count())
	saver.mu.Lock()
	assert.Equal(t, []string{"p1"}, saver.snapshots)
	saver.mu.Unlock()
}

func TestAutosaverFlushesOnStop(t *testing.T) {
	saver := newFakeSaver()
	a := NewAutosaver(&fakeSource{profile: "p1"}, saver, logger.Nop(), time.Hour)
	a.Start(context.Background())

	a.Notify()
	a.Stop()

	assert.Equal(t, 1, saver.count(), "pending changes are written on stop")
	a.Stop()
}

func TestAutosaverIdleStopWritesNothing(t *testing.T) {
	saver := newFakeSaver()
	a := NewAutosaver(&fakeSource{profile: "p1"}, saver, logger.Nop(), time.Hour)
	a.Start(context.Background())
	a.Stop()

	assert.Zero(t, saver.count())
}

func TestAutosaverFlushOnContextCancel(t *testing.T) {
	saver := newFakeSaver()
	ctx, cancel := context.WithCancel(context.Background())
	a := NewAutosaver(&fakeSource{profile: "p1"}, saver, logger.Nop(), time.Hour)
	a.Start(ctx)

	a.Notify()
	cancel()
	a.Stop()

	assert.Equal(t, 1, saver.count())
}

func TestAutosaverFlushError(t *testing.T) {
	saver := newFakeSaver()
	saver.err = errors.New("disk full")
	a := NewAutosaver(&fakeSource{profile: "p1"}, saver, logger.Nop(), time.Hour)

	assert.EqualError(t, a.Flush(context.Background()), "disk full")
}

type catalogueSink struct {
	mu     sync.Mutex
	loads  [][]domain.Extension
	loaded chan struct{}
}

func newCatalogueSink() *catalogueSink {
	return &catalogueSink{loaded: make(chan struct{}, 16)}
}

func (s *catalogueSink) ReplaceCatalogue(exts []domain.Extension) {
	s.mu.Lock()
	s.loads = append(s.loads, exts)
	s.mu.Unlock()
	s.loaded <- struct{}{}
}

func (s *catalogueSink) last() []domain.Extension {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads[len(s.loads)-1]
}

func (s *catalogueSink) wait(t *testing.T) {
	t.Helper()
	select {
	case <-s.loaded:
	case <-time.After(3 * time.Second):
		t.Fatal("catalogue was not reloaded")
	}
}

func writeCatalogue(t *testing.T, path, name string) {
	t.Helper()
	content := "extensions:\n  - id: " + name + "\n    name: " + name + "\n    instruction: be " + name + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestCatalogueReloaderInitialAndManual(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extensions.yaml")
	writeCatalogue(t, path, "first")

	sink := newCatalogueSink()
	trigger := make(chan struct{}, 1)
	cr := NewCatalogueReloader(path, sink, logger.Nop(), time.Hour, trigger)
	cr.debounce = time.Hour // isolate the manual path from file events
	require.NoError(t, cr.Start(context.Background()))
	defer cr.Stop()

	sink.wait(t)
	assert.Equal(t, "first", sink.last()[0].ID)

	writeCatalogue(t, path, "second")
	trigger <- struct{}{}
	sink.wait(t)
	assert.Equal(t, "second", sink.last()[0].ID)
}

func TestCatalogueReloaderWatchesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extensions.yaml")
	writeCatalogue(t, path, "first")

	sink := newCatalogueSink()
	cr := NewCatalogueReloader(path, sink, logger.Nop(), time.Hour, nil)
	cr.debounce = 20 * time.Millisecond
	require.NoError(t, cr.Start(context.Background()))
	defer cr.Stop()
	sink.wait(t)

	writeCatalogue(t, path, "edited")
	sink.wait(t)
	assert.Equal(t, "edited", sink.last()[0].ID)
}

func TestCatalogueReloaderKeepsPreviousOnBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extensions.yaml")
	writeCatalogue(t, path, "good")

	sink := newCatalogueSink()
	cr := NewCatalogueReloader(path, sink, logger.Nop(), time.Hour, nil)

	require.NoError(t, cr.Reload())
	require.NoError(t, os.WriteFile(path, []byte("extensions: ["), 0o644))
	assert.Error(t, cr.Reload())

	sink.wait(t)
	assert.Equal(t, "good", sink.last()[0].ID)
}

func TestCatalogueReloaderInitialFailure(t *testing.T) {
	cr := NewCatalogueReloader(filepath.Join(t.TempDir(), "missing.yaml"), newCatalogueSink(), logger.Nop(), time.Hour, nil)
	assert.Error(t, cr.Start(context.Background()))
	cr.Stop()
}
