// Package feed exposes views over HTTP so external renderers can draw the
// live series: a WebSocket per view, a small REST surface and metrics.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/agsys/habanero-viewer/internal/engine"
	"github.com/agsys/habanero-viewer/internal/telemetry"
)

// Config holds feed server configuration
type Config struct {
	ListenAddr     string
	AllowedOrigins []string // "*" allows any origin

	PingInterval time.Duration // Interval for ping/keepalive
	WriteTimeout time.Duration // Timeout for write operations
	ReadTimeout  time.Duration // Timeout for read operations
	SendBuffer   int           // Outbound messages queued per connection

	Logger *log.Logger
}

// DefaultConfig returns default feed configuration
func DefaultConfig() Config {
	return Config{
		ListenAddr:     ":8090",
		AllowedOrigins: []string{"http://localhost:5173"},
		PingInterval:   30 * time.Second,
		WriteTimeout:   10 * time.Second,
		ReadTimeout:    60 * time.Second,
		SendBuffer:     32,
	}
}

// Server serves views of one engine
type Server struct {
	config     Config
	engine     *engine.Engine
	logger     *log.Logger
	upgrader   websocket.Upgrader
	handler    http.Handler
	httpServer *http.Server
}

// New creates a feed server for eng
func New(config Config, eng *engine.Engine) *Server {
	defaults := DefaultConfig()
	if config.PingInterval <= 0 {
		config.PingInterval = defaults.PingInterval
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = defaults.ReadTimeout
	}
	if config.SendBuffer <= 0 {
		config.SendBuffer = defaults.SendBuffer
	}
	logger := config.Logger
	if logger == nil {
		logger = log.Default()
	}

	s := &Server{
		config: config,
		engine: eng,
		logger: logger,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}

	router := mux.NewRouter()
	router.HandleFunc("/ws", s.handleWebSocket)
	router.HandleFunc("/api/sensors", s.handleSensors).Methods(http.MethodGet)
	router.HandleFunc("/api/sensors/{sensorID}/water", s.handleWater).Methods(http.MethodPost)
	router.Handle("/metrics", promhttp.Handler())
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": "ok",
			"views":  s.engine.ViewCount(),
		})
	})

	c := cors.New(cors.Options{
		AllowedOrigins: config.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	})
	s.handler = c.Handler(router)

	s.httpServer = &http.Server{
		Addr:              config.ListenAddr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler of the feed
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves until Shutdown is called
func (s *Server) ListenAndServe() error {
	s.logger.Printf("Live feed listening on %s", s.config.ListenAddr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve feed: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections. Open WebSocket sessions end when
// their views are closed by engine.Close.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.config.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	s.logger.Printf("Rejected WebSocket from origin %s", origin)
	return false
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied
		s.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	sess := newSession(s, conn)
	sess.run(r.Context())
}

type sensorsResponse struct {
	Sensors []telemetry.Sensor `json:"sensors"`
	Error   string             `json:"error,omitempty"`
}

func (s *Server) handleSensors(w http.ResponseWriter, r *http.Request) {
	sensors, err := s.engine.Sensors(r.Context())
	resp := sensorsResponse{Sensors: sensors}
	if err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWater(w http.ResponseWriter, r *http.Request) {
	sensorID := mux.Vars(r)["sensorID"]

	var req WaterPayload
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorPayload{Error: fmt.Sprintf("invalid body: %v", err)})
			return
		}
	}
	seconds := telemetry.DefaultWateringSeconds
	if req.Seconds != nil {
		seconds = *req.Seconds
	}

	result := WaterResultPayload{SensorID: sensorID, Seconds: seconds}
	err := s.engine.Activate(r.Context(), sensorID, seconds)
	switch {
	case err == nil:
		result.Success = true
		writeJSON(w, http.StatusOK, result)
	case errors.Is(err, telemetry.ErrInvalidArgument):
		result.Error = err.Error()
		writeJSON(w, http.StatusBadRequest, result)
	default:
		result.Error = err.Error()
		writeJSON(w, http.StatusBadGateway, result)
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
