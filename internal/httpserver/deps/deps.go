package deps

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/orbit/internal/browser"
	"github.com/MrSnakeDoc/orbit/internal/logger"
)

// Pinger reports whether a backing service answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Logger         logger.Logger
	StartTime      time.Time
	Version        string
	Commit         string
	BuildDate      string
	GoVersion      string
	TimeNow        func() time.Time // for testing, defaults to time.Now
	RequestTimeout time.Duration    // per-request timeout for non-streaming routes
	AllowedHosts   []string         // Host headers allowed to access the server
	AllowedCIDRS   []string         // IPs allowed to access the API
	TrustProxy     bool             // true if running behind a trusted reverse proxy (e.g., cloudflared)

	Browser   *browser.Browser // session, index, registry and pipeline facade
	Storage   string           // snapshot backend name, reported by /infra
	Persist   Pinger           // snapshot backend health
	Providers []string         // configured completion backend families

	ExtensionsFile string        // catalogue file, empty when disabled
	ReloadTrigger  chan struct{} // manual catalogue reload (nil if catalogue disabled)

	SendBurst        int // send rate limit bucket size
	SendRefillPerMin int // send rate limit refill

	Closing <-chan struct{} // closed when the server begins shutting down
}
