// Package feed serves the metering output to WebSocket clients, for
// dashboards that want the same needle the terminal shows.
package feed

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/olivier-w/vudial/internal/meter"
)

const pushInterval = 100 * time.Millisecond

// Hub records the frame emitted by each metering tick and pushes the
// latest one to every connected client at 10 fps, independent of the
// meter's own tick rate.
type Hub struct {
	log      *slog.Logger
	upgrader websocket.Upgrader

	mu     sync.Mutex
	latest meter.Frame
	stamp  time.Time
}

type levelMessage struct {
	Type string `json:"type"`
	meter.Frame
	Time string `json:"time"`
}

func NewHub(log *slog.Logger) *Hub {
	h := &Hub{log: log}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.allowOrigin}
	return h
}

// allowOrigin admits same-origin, localhost and private-network clients.
func (h *Hub) allowOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	host := r.Host
	if strings.HasPrefix(origin, "http://"+host) || strings.HasPrefix(origin, "https://"+host) {
		return true
	}
	if strings.Contains(origin, "localhost") || strings.Contains(origin, "127.0.0.1") {
		return true
	}
	if strings.Contains(origin, "192.168.") || strings.Contains(origin, "10.") {
		return true
	}
	h.log.Warn("rejected feed client", "origin", origin)
	return false
}

// Observe records the frame for the push loops. It never blocks the
// metering tick.
func (h *Hub) Observe(frame meter.Frame, now time.Time) {
	h.mu.Lock()
	h.latest = frame
	h.stamp = now
	h.mu.Unlock()
}

func (h *Hub) snapshot() levelMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	return levelMessage{
		Type:  "levels",
		Frame: h.latest,
		Time:  h.stamp.UTC().Format(time.RFC3339Nano),
	}
}

// ServeLevels streams frames to one client until it disconnects. The read
// loop exists only to notice the close.
func (h *Hub) ServeLevels(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	h.log.Info("feed client connected", "remote", r.RemoteAddr)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pushInterval)
	defer ticker.Stop()

	if err := conn.WriteJSON(h.snapshot()); err != nil {
		return
	}
	for {
		select {
		case <-done:
			h.log.Info("feed client disconnected", "remote", r.RemoteAddr)
			return
		case <-ticker.C:
			if err := conn.WriteJSON(h.snapshot()); err != nil {
				return
			}
		}
	}
}

// Start serves the feed on addr in the background and returns the server
// for shutdown.
func (h *Hub) Start(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/levels", h.ServeLevels)

	srv := &http.Server{Addr: addr, Handler: mux}
	h.log.Info("level feed listening", "addr", addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.log.Error("level feed stopped", "error", err)
		}
	}()
	return srv
}
