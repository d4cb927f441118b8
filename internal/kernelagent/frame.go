package kernelagent

// Frame types exchanged with the sync server.
const (
	FrameHello        = "hello"
	FrameReady        = "ready"
	FrameError        = "error"
	FrameHeartbeat    = "heartbeat"
	FrameHeartbeatAck = "heartbeat_ack"
)

// Frame is the JSON envelope for every message on the sync connection.
type Frame struct {
	Type       string   `json:"type"`
	NotebookID string   `json:"notebook,omitempty"`
	SessionID  string   `json:"session,omitempty"`
	KernelID   string   `json:"kernel,omitempty"`
	KernelType string   `json:"kernelType,omitempty"`
	Packages   []string `json:"packages,omitempty"`
	AICells    bool     `json:"aiCells,omitempty"`
	Message    string   `json:"message,omitempty"`
	// Sent is the sender's clock in Unix milliseconds.
	Sent int64 `json:"sent,omitempty"`
}
