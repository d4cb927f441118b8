// Package kernelagent is the notebook runtime agent: it registers the
// kernel with the sync service over a WebSocket and keeps the session
// alive with heartbeat frames.
package kernelagent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/cloud-sandbox/notebook-agent/internal/auth"
	"github.com/cloud-sandbox/notebook-agent/internal/config"
	"github.com/cloud-sandbox/notebook-agent/internal/lifecycle"
	"github.com/cloud-sandbox/notebook-agent/internal/logging"
)

// Defaults applied when the corresponding variable is unset.
const (
	DefaultKernelID          = "python3"
	DefaultKernelType        = "pyodide"
	DefaultSyncURL           = "ws://localhost:4444/sync"
	DefaultHeartbeatInterval = 30 * time.Second
)

const (
	// writeTimeout is the deadline for a single frame write.
	writeTimeout = 10 * time.Second

	// handshakeTimeout bounds the wait for the server's reply to hello.
	handshakeTimeout = 30 * time.Second

	// readLimit caps a single inbound frame.
	readLimit = 64 << 10
)

// Options tunes an Agent beyond what the environment carries.
type Options struct {
	// AICells forces AI cell support on in the hello frame. Without it,
	// support follows whether OPENAI_API_KEY is set.
	AICells bool
	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer
	Logger logging.Logger
}

// Agent is a sync-service client for one notebook kernel.
type Agent struct {
	cfg      lifecycle.EffectiveConfig
	token    string
	packages []string
	aiCells  bool
	dialer   *websocket.Dialer
	log      logging.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// New applies defaults to cfg and validates the sync URL. It does not
// connect.
func New(cfg *config.Config, opts Options) (*Agent, error) {
	eff := lifecycle.EffectiveConfig{
		KernelID:          orDefault(cfg.KernelID, DefaultKernelID),
		KernelType:        DefaultKernelType,
		NotebookID:        cfg.NotebookID,
		SessionID:         cfg.SessionID,
		SyncURL:           orDefault(cfg.SyncURL, DefaultSyncURL),
		HeartbeatInterval: cfg.HeartbeatInterval,
	}
	if eff.SessionID == "" {
		eff.SessionID = uuid.NewString()
	}
	if eff.HeartbeatInterval <= 0 {
		eff.HeartbeatInterval = DefaultHeartbeatInterval
	}

	u, err := url.Parse(eff.SyncURL)
	if err != nil {
		return nil, fmt.Errorf("invalid sync url %q: %w", eff.SyncURL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("invalid sync url %q: scheme must be ws or wss", eff.SyncURL)
	}

	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.Logger == nil {
		opts.Logger = logging.New("kernelagent")
	}

	return &Agent{
		cfg:      eff,
		token:    cfg.AuthToken,
		packages: cfg.Packages,
		aiCells:  opts.AICells || cfg.OpenAIKeySet,
		dialer:   opts.Dialer,
		log:      opts.Logger,
	}, nil
}

// NewFactory returns a lifecycle.Factory building agents with opts.
func NewFactory(opts Options) lifecycle.Factory {
	return func(cfg *config.Config) (lifecycle.Agent, error) {
		return New(cfg, opts)
	}
}

// Config reports the configuration after defaults.
func (a *Agent) Config() lifecycle.EffectiveConfig {
	return a.cfg
}

// Start connects to the sync service, sends hello and waits for ready.
func (a *Agent) Start(ctx context.Context) error {
	conn, resp, err := a.dialer.DialContext(ctx, a.cfg.SyncURL, auth.BearerHeader(a.token))
	if err != nil {
		if resp != nil {
			return fmt.Errorf("failed to connect to sync server: %w (status %s)", err, resp.Status)
		}
		return fmt.Errorf("failed to connect to sync server: %w", err)
	}
	conn.SetReadLimit(readLimit)

	hello := Frame{
		Type:       FrameHello,
		NotebookID: a.cfg.NotebookID,
		SessionID:  a.cfg.SessionID,
		KernelID:   a.cfg.KernelID,
		KernelType: a.cfg.KernelType,
		Packages:   a.packages,
		AICells:    a.aiCells,
	}
	if err := writeFrame(conn, hello); err != nil {
		conn.Close()
		return fmt.Errorf("failed to send hello: %w", err)
	}

	deadline := time.Now().Add(handshakeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetReadDeadline(deadline)

	for {
		f, err := readFrame(conn)
		if err != nil {
			conn.Close()
			return fmt.Errorf("failed waiting for ready: %w", err)
		}
		switch f.Type {
		case FrameReady:
			conn.SetReadDeadline(time.Time{})
			a.mu.Lock()
			a.conn = conn
			a.mu.Unlock()
			a.log.WithField("session_id", a.cfg.SessionID).Info("kernel registered with sync server")
			return nil
		case FrameError:
			conn.Close()
			return fmt.Errorf("sync server rejected kernel: %s", f.Message)
		default:
			a.log.WithField("type", f.Type).Debug("ignoring frame before ready")
		}
	}
}

// KeepAlive sends a heartbeat every interval until ctx is done or the
// connection fails. It returns nil only when ctx ends it.
func (a *Agent) KeepAlive(ctx context.Context) error {
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("agent not started")
	}
	defer conn.Close()

	errc := make(chan error, 1)
	go a.readLoop(conn, errc)

	ticker := time.NewTicker(a.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutting down")
			conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout)) //nolint:errcheck
			return nil
		case err := <-errc:
			return err
		case <-ticker.C:
			hb := Frame{Type: FrameHeartbeat, SessionID: a.cfg.SessionID, Sent: time.Now().UnixMilli()}
			if err := writeFrame(conn, hb); err != nil {
				return fmt.Errorf("failed to send heartbeat: %w", err)
			}
		}
	}
}

// readLoop is the connection's single reader. It reports the first fatal
// condition on errc.
func (a *Agent) readLoop(conn *websocket.Conn, errc chan<- error) {
	for {
		f, err := readFrame(conn)
		if err != nil {
			errc <- fmt.Errorf("sync connection lost: %w", err)
			return
		}
		switch f.Type {
		case FrameError:
			errc <- fmt.Errorf("sync server error: %s", f.Message)
			return
		case FrameHeartbeatAck:
		default:
			a.log.WithField("type", f.Type).Debug("unhandled frame")
		}
	}
}

func writeFrame(conn *websocket.Conn, f Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func readFrame(conn *websocket.Conn) (Frame, error) {
	var f Frame
	_, data, err := conn.ReadMessage()
	if err != nil {
		return f, err
	}
	if err := json.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("malformed frame: %w", err)
	}
	return f, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
