package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/MrSnakeDoc/orbit/internal/httpserver/deps"
	"github.com/MrSnakeDoc/orbit/internal/logger"
	"github.com/MrSnakeDoc/orbit/internal/session"
)

const (
	// eventBuffer is the number of changes a slow client may lag behind
	// before it is disconnected.
	eventBuffer = 256

	keepAlive = 15 * time.Second
)

// Events streams session changes as server-sent events. A client that
// falls too far behind is dropped and should reload the session.
func Events(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rc := http.NewResponseController(w)
		if err := rc.SetWriteDeadline(time.Time{}); err != nil {
			d.Logger.Debug("event stream: no write deadline control", logger.Error(err))
		}

		changes := make(chan session.Change, eventBuffer)
		overflow := make(chan struct{})
		var once sync.Once
		unsubscribe := d.Browser.Store().Subscribe(func(c session.Change) {
			select {
			case changes <- c:
			default:
				once.Do(func() { close(overflow) })
			}
		})
		defer unsubscribe()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil {
			return
		}
		if err := rc.Flush(); err != nil {
			d.Logger.Warn("event stream: flush unsupported", logger.Error(err))
			return
		}

		ticker := time.NewTicker(keepAlive)
		defer ticker.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-d.Closing:
				return
			case <-overflow:
				d.Logger.Warn("event stream client too slow, disconnecting",
					logger.String("remote_ip", r.RemoteAddr))
				_, _ = fmt.Fprint(w, "event: overflow\ndata: {}\n\n")
				_ = rc.Flush()
				return
			case <-ticker.C:
				if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
					return
				}
			case c := <-changes:
				data, err := json.Marshal(c)
				if err != nil {
					continue
				}
				if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", c.Kind, data); err != nil {
					return
				}
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
