package daemon

import "github.com/npratt/growth/internal/controller"

// RPC method names.
const (
	MethodStatus     = "status"
	MethodStart      = "start"
	MethodPause      = "pause"
	MethodResume     = "resume"
	MethodStop       = "stop"
	MethodNext       = "next"
	MethodPrevious   = "previous"
	MethodSkip       = "skip"
	MethodQuick      = "quick"
	MethodPrompt     = "prompt"
	MethodReset      = "reset"
	MethodAuto       = "auto"
	MethodBackground = "background"
	MethodForeground = "foreground"
	MethodShutdown   = "shutdown"
	MethodAck        = "ack"
)

// Request represents a JSON-RPC request from a client.
type Request struct {
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
	ID     int    `json:"id,omitempty"`
}

// Response represents a JSON-RPC response to a client.
type Response struct {
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
	ID     int    `json:"id,omitempty"`
}

// StatusResponse contains daemon and engine status.
type StatusResponse struct {
	Uptime    string            `json:"uptime"`
	StartTime string            `json:"start_time"`
	PID       int               `json:"pid"`
	Engine    controller.Status `json:"engine"`
}

// StopParams contains parameters for the stop method. An empty client stops
// whichever run is live.
type StopParams struct {
	Client string `json:"client,omitempty"`
}

// QuickParams contains parameters for the quick method. Zero values use the
// configured defaults.
type QuickParams struct {
	Name       string `json:"name,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
}

// QuickResult is returned by the quick method.
type QuickResult struct {
	Owner string `json:"owner"`
}

// PromptParams answers the open completion prompt.
type PromptParams struct {
	Choice     string `json:"choice"`
	DurationMs int64  `json:"duration_ms,omitempty"`
}

// AutoParams toggles auto-progression.
type AutoParams struct {
	Enabled bool `json:"enabled"`
}
