// Package daemon runs the engine in the background with external control via
// Unix socket RPC.
package daemon

import (
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/npratt/growth/internal/config"
	"github.com/npratt/growth/internal/controller"
)

// Daemon serves the control socket for one controller.
type Daemon struct {
	config     *config.Config
	controller *controller.Controller
	sockPath   string
	startTime  time.Time
	logger     *slog.Logger
	onShutdown func()

	listener net.Listener
	running  bool
	mu       sync.RWMutex
}

// New creates a Daemon with the given configuration and controller.
func New(cfg *config.Config, ctrl *controller.Controller, logger *slog.Logger) *Daemon {
	if logger == nil {
		logger = slog.Default()
	}
	return &Daemon{
		config:     cfg,
		controller: ctrl,
		sockPath:   cfg.Paths.Socket,
		logger:     logger.With("component", "daemon"),
	}
}

// OnShutdown registers fn to run when a client asks the daemon to exit.
func (d *Daemon) OnShutdown(fn func()) {
	d.mu.Lock()
	d.onShutdown = fn
	d.mu.Unlock()
}

// Running returns whether the daemon is serving.
func (d *Daemon) Running() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}

// StartTime returns when the daemon started serving.
func (d *Daemon) StartTime() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.startTime
}

// SocketPath returns the Unix socket path.
func (d *Daemon) SocketPath() string {
	return d.sockPath
}
