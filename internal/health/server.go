package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/cloud-sandbox/notebook-agent/internal/logging"
)

// DefaultPort is the fixed port platform monitors probe.
const DefaultPort = 8000

const (
	StatusHealthy      = "healthy"
	StatusInitializing = "initializing"
)

// Response is the JSON body of GET /health.
type Response struct {
	Status        string   `json:"status"`
	Timestamp     string   `json:"timestamp"`
	LastHeartbeat string   `json:"lastHeartbeat"`
	Uptime        float64  `json:"uptime"`
	Errors        []string `json:"errors"`
}

// Options configures the HTTP server.
type Options struct {
	Addr              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	Logger            logging.Logger

	// Middleware, when set, wraps the health handler (e.g. metrics).
	Middleware func(http.Handler) http.Handler
}

// Server exposes State on GET /health.
type Server struct {
	http  *http.Server
	state *State
	log   logging.Logger
	now   func() time.Time
}

// NewServer constructs a server bound to state. It does not listen until
// Start is called.
func NewServer(state *State, opts Options) *Server {
	if state == nil {
		panic("health.NewServer: state is nil")
	}
	if opts.Addr == "" {
		opts.Addr = fmt.Sprintf(":%d", DefaultPort)
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 5 * time.Second
	}
	if opts.ReadHeaderTimeout == 0 {
		opts.ReadHeaderTimeout = 2 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.IdleTimeout == 0 {
		opts.IdleTimeout = 60 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logging.New("health")
	}

	s := &Server{
		state: state,
		log:   opts.Logger,
		now:   state.now,
	}

	var handler http.Handler = http.HandlerFunc(s.route)
	if opts.Middleware != nil {
		handler = opts.Middleware(handler)
	}

	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadTimeout:       opts.ReadTimeout,
		ReadHeaderTimeout: opts.ReadHeaderTimeout,
		WriteTimeout:      opts.WriteTimeout,
		IdleTimeout:       opts.IdleTimeout,
	}
	return s
}

// Handler returns the server's root handler, middleware included.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Addr is the configured listen address.
func (s *Server) Addr() string {
	return s.http.Addr
}

// Start binds the listen address and serves in a background goroutine. A
// bind failure is returned; the server is then unusable.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.http.Addr, err)
	}
	s.log.WithField("addr", ln.Addr().String()).Info("health server listening")
	go func() {
		if err := s.http.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("health server stopped")
		}
	}()
	return nil
}

// Stop shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) route(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/health" || r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	s.handleHealth(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	snap := s.state.Snapshot()
	now := s.now()

	resp := Response{
		Status:        StatusInitializing,
		Timestamp:     now.UTC().Format(time.RFC3339Nano),
		LastHeartbeat: snap.LastHeartbeat.UTC().Format(time.RFC3339Nano),
		Uptime:        now.Sub(snap.StartedAt).Seconds(),
		Errors:        snap.RecentErrors,
	}
	code := http.StatusServiceUnavailable
	if snap.Initialized {
		resp.Status = StatusHealthy
		code = http.StatusOK
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
