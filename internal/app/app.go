package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/orbit/internal/browser"
	"github.com/MrSnakeDoc/orbit/internal/completion"
	"github.com/MrSnakeDoc/orbit/internal/config"
	"github.com/MrSnakeDoc/orbit/internal/httpserver"
	"github.com/MrSnakeDoc/orbit/internal/httpserver/deps"
	"github.com/MrSnakeDoc/orbit/internal/index"
	"github.com/MrSnakeDoc/orbit/internal/logger"
	"github.com/MrSnakeDoc/orbit/internal/persist"
	"github.com/MrSnakeDoc/orbit/internal/profile"
	"github.com/MrSnakeDoc/orbit/internal/provider/gemini"
	"github.com/MrSnakeDoc/orbit/internal/provider/openai"
	"github.com/MrSnakeDoc/orbit/internal/redis"
	"github.com/MrSnakeDoc/orbit/internal/scheduler"
	"github.com/MrSnakeDoc/orbit/internal/session"
	redisstore "github.com/MrSnakeDoc/orbit/internal/store/redis"
	"github.com/MrSnakeDoc/orbit/internal/utils"
	"github.com/MrSnakeDoc/orbit/internal/version"
)

type App struct {
	cfg       *config.Config
	logger    logger.Logger
	server    *httpserver.Server
	persist   *persist.Store
	browser   *browser.Browser
	autosaver *scheduler.Autosaver
	reloader  *scheduler.CatalogueReloader

	// unsubscribe detaches the autosaver from the store
	unsubscribe func()
}

// New wires every component and restores the active profile's session.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	backend, err := openBackend(ctx, cfg, loggerClient)
	if err != nil {
		return nil, err
	}
	store := persist.NewStore(backend, loggerClient)

	c, err := newCore(ctx, cfg, store, loggerClient)
	if err != nil {
		utils.MustClose(loggerClient, "storage", store)
		return nil, err
	}

	if err := c.browser.Restore(ctx); err != nil {
		c.pipeline.Close()
		utils.MustClose(loggerClient, "storage", store)
		return nil, fmt.Errorf("failed to restore session: %w", err)
	}
	if _, err := store.PruneSnapshots(ctx, profileIDs(c.registry)); err != nil {
		loggerClient.Warn("failed to prune orphan snapshots", logger.Error(err))
	}

	// Every committed change marks the session dirty.
	autosaver := scheduler.NewAutosaver(c.browser, store, loggerClient, cfg.AutosaveInterval)
	unsubscribe := c.session.Subscribe(func(session.Change) { autosaver.Notify() })
	c.index.OnChange(autosaver.Notify)
	c.registry.OnChange(autosaver.Notify)

	// Initialize catalogue reloader (if an extensions file is configured)
	var reloader *scheduler.CatalogueReloader
	var reloadTrigger chan struct{}
	if cfg.ExtensionsFile != "" {
		loggerClient.Info("extensions file configured, initializing catalogue reloader",
			logger.String("file", cfg.ExtensionsFile))
		reloadTrigger = make(chan struct{}, 1)
		reloader = scheduler.NewCatalogueReloader(
			cfg.ExtensionsFile,
			c.registry,
			loggerClient,
			cfg.ReloadInterval,
			reloadTrigger,
		)
	} else {
		loggerClient.Info("extensions file not configured, catalogue disabled")
	}

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:           loggerClient,
		StartTime:        time.Now(),
		Version:          version.Version,
		Commit:           version.Commit,
		BuildDate:        version.BuildDate,
		GoVersion:        version.GoVersion,
		TimeNow:          time.Now,
		AllowedHosts:     cfg.AllowedHosts,
		AllowedCIDRS:     cfg.AllowedCIDRS,
		TrustProxy:       cfg.TrustProxy,
		Browser:          c.browser,
		Storage:          cfg.Storage,
		Persist:          store,
		Providers:        c.providers,
		ExtensionsFile:   cfg.ExtensionsFile,
		ReloadTrigger:    reloadTrigger,
		SendBurst:        cfg.SendBurst,
		SendRefillPerMin: cfg.SendRefillPerMin,
	}

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      httpserver.New(cfg.ListenPort, loggerClient, d),
		persist:     store,
		browser:     c.browser,
		autosaver:   autosaver,
		reloader:    reloader,
		unsubscribe: unsubscribe,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	a.logger.Infof("🚀 Starting Orbit %s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Info(version.String())

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.autosaver.Start(ctx)
	defer a.shutdown()

	// Start catalogue reloader (loads extensions and starts watching)
	if a.reloader != nil {
		if err := a.reloader.Start(ctx); err != nil {
			return fmt.Errorf("failed to start catalogue reloader: %w", err)
		}
		a.logger.Info("catalogue reloader started",
			logger.Duration("interval", a.cfg.ReloadInterval))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.server.Start(); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("⏳ Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		if err := a.server.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("failed to stop server: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// shutdown stops background work, records the outcome of in-flight
// requests and writes the final session.
func (a *App) shutdown() {
	if a.reloader != nil {
		a.reloader.Stop()
	}

	// Cancelled streams keep their partial output and are saved below.
	a.browser.Pipeline().Close()
	a.unsubscribe()
	a.autosaver.Stop()

	utils.MustClose(a.logger, "storage", a.persist)
	a.logger.Info("✅ Orbit stopped cleanly")
	_ = a.logger.Sync()
}

// core is the session side of the app, shared by the server and the CLI.
type core struct {
	session   *session.Store
	index     *index.MemoryIndex
	registry  *profile.Registry
	pipeline  *completion.Pipeline
	browser   *browser.Browser
	providers []string
}

func newCore(ctx context.Context, cfg *config.Config, store browser.SnapshotStore, log logger.Logger) (*core, error) {
	backends, providers, err := buildBackends(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	sess := session.New()
	idx := index.NewMemoryIndex()
	reg := profile.New()

	pipeline := completion.New(sess, completion.Config{
		Backends: backends,
		Models:   models(cfg),
		Poll: completion.PollPolicy{
			Interval:    cfg.VideoPollInterval,
			MaxAttempts: cfg.VideoPollAttempts,
		},
		SearchEngineURL: cfg.SearchEngineURL,
	}, log)

	b := browser.New(browser.Deps{
		Store:    sess,
		Index:    idx,
		Registry: reg,
		Pipeline: pipeline,
		Persist:  store,
		Logger:   log,
	})
	return &core{
		session:   sess,
		index:     idx,
		registry:  reg,
		pipeline:  pipeline,
		browser:   b,
		providers: providers,
	}, nil
}

// buildBackends creates a provider for every family with credentials.
// A family without credentials is left out; requests routed to it fail
// before any network call.
func buildBackends(ctx context.Context, cfg *config.Config, log logger.Logger) (map[completion.Family]completion.Backend, []string, error) {
	backends := make(map[completion.Family]completion.Backend, 2)
	var names []string

	if cfg.GeminiAPIKey != "" {
		p, err := gemini.New(ctx, gemini.Options{APIKey: cfg.GeminiAPIKey}, log)
		if err != nil {
			return nil, nil, err
		}
		backends[completion.FamilyGemini] = p.Backend()
		names = append(names, string(completion.FamilyGemini))
	}
	if cfg.OpenAIAPIKey != "" {
		c, err := openai.New(openai.Options{APIKey: cfg.OpenAIAPIKey, BaseURL: cfg.OpenAIBaseURL}, log)
		if err != nil {
			return nil, nil, err
		}
		backends[completion.FamilyOpenAI] = c.Backend()
		names = append(names, string(completion.FamilyOpenAI))
	}

	if len(names) == 0 {
		log.Warn("no provider credentials configured, every request will fail",
			logger.String("hint", "set ORBIT_GEMINI_API_KEY or ORBIT_OPENAI_API_KEY"))
	}
	return backends, names, nil
}

func profileIDs(reg *profile.Registry) []string {
	profiles := reg.Profiles()
	ids := make([]string, 0, len(profiles))
	for _, p := range profiles {
		ids = append(ids, p.ID)
	}
	return ids
}

func models(cfg *config.Config) completion.Models {
	m := completion.DefaultModels()
	if cfg.DefaultModel != "" {
		m.Text = cfg.DefaultModel
	}
	if cfg.DefaultImageModel != "" {
		m.Image = cfg.DefaultImageModel
	}
	if cfg.DefaultVideoModel != "" {
		m.Video = cfg.DefaultVideoModel
	}
	return m
}

// openBackend opens the configured snapshot storage. Redis is dialed
// early so a misconfigured server fails fast.
func openBackend(ctx context.Context, cfg *config.Config, log logger.Logger) (persist.Backend, error) {
	switch cfg.Storage {
	case config.StorageMemory:
		log.Warn("memory storage selected, sessions will not survive a restart")
		return persist.NewMemoryBackend(), nil

	case config.StorageRedis:
		log.Infof("Connecting to Redis at %s", cfg.RedisAddr)
		client, err := redis.Connect(ctx, redis.ConnectOptions{
			Addr:           cfg.RedisAddr,
			User:           cfg.RedisUser,
			Password:       cfg.RedisPassword,
			DB:             cfg.RedisDB,
			DialTimeout:    cfg.RedisDT,
			ReadTimeout:    cfg.RedisRT,
			WriteTimeout:   cfg.RedisWT,
			PoolSize:       cfg.RedisPoolSize,
			ConnectTimeout: cfg.RedisConnectTimeout,
			RetryInterval:  cfg.RedisRetryInterval,
			MaxWait:        cfg.RedisMaxWait,
			PingTimeout:    cfg.RedisPingTimeout,
			WarnThreshold:  cfg.RedisWarnThreshold,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		log.Info("Redis initialized successfully")
		return redisstore.NewStore(client, cfg.RedisTTL), nil

	default:
		b, err := persist.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite at %s: %w", cfg.SQLitePath, err)
		}
		log.Info("sqlite storage opened", logger.String("path", cfg.SQLitePath))
		return b, nil
	}
}
