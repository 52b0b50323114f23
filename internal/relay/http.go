package relay

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tuftsceeo/smartmotor/internal/logging"
	"github.com/tuftsceeo/smartmotor/internal/version"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// upgrader accepts any origin: the relay serves a classroom LAN where
// devices present whatever origin their firmware hardcodes
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// router builds the relay's HTTP surface: the WebSocket channel endpoint,
// health, metrics, and channel statistics
func (s *Server) router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/api/channels", s.handleChannelStats)
	r.Get("/api/channels/{channel}", s.handleChannelJoin)

	return r
}

// Handler exposes the router for embedding the relay in another process,
// which is how the integration tests run agents against it
func (s *Server) Handler() http.Handler {
	return s.router()
}

// handleHealth answers load balancer and script probes
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

// handleChannelStats reports channels and their connected client ids
func (s *Server) handleChannelStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"channels": s.hub.Stats(),
	})
}

// handleChannelJoin upgrades the request and hands the connection to the
// hub; blocks for the connection's lifetime like any handler
func (s *Server) handleChannelJoin(w http.ResponseWriter, r *http.Request) {
	channelName := chi.URLParam(r, "channel")
	if channelName == "" {
		http.Error(w, "channel name required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response
		logging.Warn("WebSocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	s.hub.Join(channelName, conn)
}
