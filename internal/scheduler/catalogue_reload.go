package scheduler

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/MrSnakeDoc/orbit/internal/domain"
	"github.com/MrSnakeDoc/orbit/internal/logger"
	"github.com/MrSnakeDoc/orbit/internal/sources/extensions"
)

// DefaultWatchDebounce coalesces the burst of events an editor save produces
const DefaultWatchDebounce = 250 * time.Millisecond

// CatalogueSink receives a freshly loaded extension catalogue
type CatalogueSink interface {
	ReplaceCatalogue(exts []domain.Extension)
}

// CatalogueReloader keeps the extension catalogue in sync with its file.
// It reloads on an interval, on manual trigger, and when the file changes.
type CatalogueReloader struct {
	loader        *extensions.Loader
	mapper        *extensions.Mapper
	sink          CatalogueSink
	logger        logger.Logger
	interval      time.Duration
	debounce      time.Duration
	stopCh        chan struct{}
	doneCh        chan struct{}
	manualTrigger chan struct{}
	stopOnce      sync.Once
}

// NewCatalogueReloader creates a new catalogue reloader
func NewCatalogueReloader(
	catalogueFile string,
	sink CatalogueSink,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *CatalogueReloader {
	return &CatalogueReloader{
		loader:        extensions.NewLoader(catalogueFile),
		mapper:        extensions.NewMapper(),
		sink:          sink,
		logger:        log,
		interval:      interval,
		debounce:      DefaultWatchDebounce,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start loads the catalogue and begins watching. A failing initial load is
// returned; later failures are logged and keep the previous catalogue.
func (cr *CatalogueReloader) Start(ctx context.Context) error {
	if err := cr.Reload(); err != nil {
		close(cr.doneCh)
		return fmt.Errorf("initial reload failed: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		cr.logger.Warn("file watching unavailable, falling back to interval reloads", logger.Error(err))
		watcher = nil
	} else if err := watcher.Add(filepath.Dir(cr.loader.Path())); err != nil {
		// the directory is watched so editors that replace the file are seen
		cr.logger.Warn("failed to watch catalogue directory", logger.Error(err))
		_ = watcher.Close()
		watcher = nil
	}

	go cr.run(ctx, watcher)
	return nil
}

func (cr *CatalogueReloader) run(ctx context.Context, watcher *fsnotify.Watcher) {
	defer close(cr.doneCh)

	var events <-chan fsnotify.Event
	var errs <-chan error
	if watcher != nil {
		defer func() { _ = watcher.Close() }()
		events, errs = watcher.Events, watcher.Errors
	}

	ticker := time.NewTicker(cr.interval)
	defer ticker.Stop()

	// nil until a file event arms it
	var debounce <-chan time.Time
	target := filepath.Clean(cr.loader.Path())

	for {
		select {
		case <-ticker.C:
			cr.reloadLogged("interval")
		case <-cr.manualTrigger:
			cr.logger.Info("manual reload triggered")
			cr.reloadLogged("manual")
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if filepath.Clean(ev.Name) != target || ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			debounce = time.After(cr.debounce)
		case <-debounce:
			debounce = nil
			cr.reloadLogged("file change")
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			cr.logger.Warn("catalogue watcher error", logger.Error(err))
		case <-cr.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (cr *CatalogueReloader) reloadLogged(reason string) {
	if err := cr.Reload(); err != nil {
		cr.logger.Error("failed to reload extensions",
			logger.String("reason", reason),
			logger.Error(err))
	}
}

// Stop stops the reloader and waits for it to exit
func (cr *CatalogueReloader) Stop() {
	cr.stopOnce.Do(func() { close(cr.stopCh) })
	<-cr.doneCh
}

// Reload loads the catalogue file and hands it to the sink
func (cr *CatalogueReloader) Reload() error {
	config, err := cr.loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load extensions: %w", err)
	}

	exts, err := cr.mapper.MapExtensions(config)
	if err != nil {
		return fmt.Errorf("failed to map extensions: %w", err)
	}

	cr.sink.ReplaceCatalogue(exts)
	cr.logger.Info("loaded extensions catalogue",
		logger.String("file", cr.loader.Path()),
		logger.Int("count", len(exts)))

	return nil
}
