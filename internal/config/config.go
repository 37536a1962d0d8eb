package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage backends for snapshots and the profile registry.
const (
	StorageSQLite = "sqlite"
	StorageRedis  = "redis"
	StorageMemory = "memory"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	Storage    string // "sqlite" | "redis" | "memory"
	SQLitePath string // sqlite database file (default: orbit.db)

	// Providers
	GeminiAPIKey      string
	OpenAIAPIKey      string
	OpenAIBaseURL     string // optional, OpenAI-compatible endpoint
	DefaultModel      string
	DefaultImageModel string
	DefaultVideoModel string
	SearchEngineURL   string        // simple mode redirect prefix
	VideoPollInterval time.Duration // delay between video job polls (default: 10s)
	VideoPollAttempts int           // polls before giving up (default: 60)

	AutosaveInterval time.Duration // debounce before a dirty session is flushed (default: 1s)
	ExtensionsFile   string        // optional extension catalogue yaml
	ReloadInterval   time.Duration // catalogue reload interval (default: 24h)

	// Redis
	RedisAddr           string        // ex: "localhost:6379"
	RedisUser           string        // optional
	RedisPassword       string        // optional
	RedisDB             int           // Redis DB number
	RedisTTL            time.Duration // snapshot key TTL, 0 keeps keys forever
	RedisDT             time.Duration // Redis dial timeout (ex: 5s)
	RedisRT             time.Duration // Redis read timeout (ex: 3s)
	RedisWT             time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait        time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout    time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize       int           // Redis connection pool size
	RedisConnectTimeout time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval  time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold  int           // warn after this many attempts

	AllowedHosts []string // optional, restrict access to specific Host headers
	AllowedCIDRS []string // optional, restrict access to specific IP (e.g. "1.2.3.4, 5.6.7.8")
	TrustProxy   bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)

	SendBurst        int // send rate limit bucket size per client
	SendRefillPerMin int // send tokens restored per minute per client
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("ORBIT_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("ORBIT_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("ORBIT_LOG_LEVEL", "info"),
		PrettyLog: mustBool("ORBIT_PRETTY_LOG", true),

		// Persistence
		Storage:    mustStorage("ORBIT_STORAGE", StorageSQLite),
		SQLitePath: getenv("ORBIT_SQLITE_PATH", "orbit.db"),

		// Providers
		GeminiAPIKey:      getenvFallback("ORBIT_GEMINI_API_KEY", "GEMINI_API_KEY"),
		OpenAIAPIKey:      getenvFallback("ORBIT_OPENAI_API_KEY", "OPENAI_API_KEY"),
		OpenAIBaseURL:     getenv("ORBIT_OPENAI_BASE_URL", ""),
		DefaultModel:      getenv("ORBIT_DEFAULT_MODEL", ""),
		DefaultImageModel: getenv("ORBIT_DEFAULT_IMAGE_MODEL", ""),
		DefaultVideoModel: getenv("ORBIT_DEFAULT_VIDEO_MODEL", ""),
		SearchEngineURL:   getenv("ORBIT_SEARCH_ENGINE_URL", ""),
		VideoPollInterval: mustDuration("ORBIT_VIDEO_POLL_INTERVAL", 10*time.Second),
		VideoPollAttempts: getenvInt("ORBIT_VIDEO_POLL_ATTEMPTS", 60),

		AutosaveInterval: mustDuration("ORBIT_AUTOSAVE_INTERVAL", time.Second),
		ExtensionsFile:   getenv("ORBIT_EXTENSIONS_FILE", ""), // Optional, empty = catalogue disabled
		ReloadInterval:   mustDuration("ORBIT_RELOAD_INTERVAL", 24*time.Hour),

		// Access restrictions
		AllowedHosts: splitAndTrim(getenv("ORBIT_ALLOWED_HOSTS", "")),
		AllowedCIDRS: parseAllowedIPs(getenv("ORBIT_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("ORBIT_TRUST_PROXY", false),

		SendBurst:        getenvInt("ORBIT_SEND_BURST", 10),
		SendRefillPerMin: getenvInt("ORBIT_SEND_REFILL_PER_MIN", 30),
	}

	// Redis settings are only read when redis holds the sessions
	if cfg.Storage == StorageRedis {
		cfg.RedisAddr = requireEnv("ORBIT_REDIS_ADDR")
		cfg.RedisUser = getenv("ORBIT_REDIS_USERNAME", "default")
		cfg.RedisPassword = getenv("ORBIT_REDIS_PASSWORD", "")
		cfg.RedisDB = getenvInt("ORBIT_REDIS_DB", 0)
		cfg.RedisTTL = mustDuration("ORBIT_REDIS_TTL", 0)
		cfg.RedisDT = mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second)
		cfg.RedisRT = mustDuration("REDIS_READ_TIMEOUT", 3*time.Second)
		cfg.RedisWT = mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second)
		cfg.RedisMaxWait = mustDuration("REDIS_MAX_WAIT", 10*time.Second)
		cfg.RedisPingTimeout = mustDuration("REDIS_PING_TIMEOUT", 5*time.Second)
		cfg.RedisPoolSize = getenvInt("REDIS_POOL_SIZE", 10)
		cfg.RedisConnectTimeout = mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second)
		cfg.RedisRetryInterval = mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second)
		cfg.RedisWarnThreshold = getenvInt("REDIS_WARN_THRESHOLD", 3)
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		log.Printf("[DEBUG] cfg: %+v\n", cfg.Redacted())
	}

	return cfg
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() Config {
	cp := *c
	for _, s := range []*string{&cp.RedisPassword, &cp.GeminiAPIKey, &cp.OpenAIAPIKey} {
		if *s != "" {
			*s = "***REDACTED***"
		}
	}
	return cp
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getenvFallback reads key, then legacy, then returns "".
func getenvFallback(key, legacy string) string {
	return getenv(key, os.Getenv(legacy))
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func mustStorage(key, def string) string {
	v := strings.ToLower(strings.TrimSpace(getenv(key, def)))
	switch v {
	case StorageSQLite, StorageRedis, StorageMemory:
		return v
	}
	panic(fmt.Sprintf("❌ FATAL: Invalid value for %s: %s (want sqlite, redis or memory)", key, v))
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
