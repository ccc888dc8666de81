// Package arbiter grants the single timer to at most one client at a time.
package arbiter

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Timer clients.
const (
	ClientMain          = "main"
	ClientQuickPractice = "quick-practice"
)

// ErrArbitrationDenied is returned when another client holds the timer.
var ErrArbitrationDenied = errors.New("another timer is active")

// Gate is the registry of which client holds the timer. It is advisory:
// every start path must Acquire before starting the engine.
type Gate struct {
	mu     sync.Mutex
	holder string
	logger *slog.Logger
}

// New returns an empty gate.
func New(logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{logger: logger}
}

// CanStart reports whether client could acquire the timer right now.
func (g *Gate) CanStart(client string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.holder == "" || g.holder == client
}

// Acquire grants the timer to client. Acquiring a timer the client already
// holds succeeds.
func (g *Gate) Acquire(client string) error {
	if client == "" {
		return fmt.Errorf("acquire timer: client name is required")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.holder != "" && g.holder != client {
		g.logger.Debug("timer acquisition denied", "client", client, "holder", g.holder)
		return fmt.Errorf("%w: held by %s", ErrArbitrationDenied, g.holder)
	}
	if g.holder == "" {
		g.logger.Debug("timer acquired", "client", client)
	}
	g.holder = client
	return nil
}

// Release gives up the timer. Releasing a timer held by another client, or
// not held at all, does nothing.
func (g *Gate) Release(client string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.holder != client {
		return
	}
	g.holder = ""
	g.logger.Debug("timer released", "client", client)
}

// Holder returns the client holding the timer, or "".
func (g *Gate) Holder() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.holder
}
