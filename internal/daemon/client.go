package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"
)

// DefaultClientTimeout is the default timeout for client operations.
const DefaultClientTimeout = 5 * time.Second

// Client connects to the daemon via Unix socket.
type Client struct {
	sockPath string
	timeout  time.Duration
}

// NewClient creates a new daemon client.
func NewClient(sockPath string) *Client {
	return &Client{
		sockPath: sockPath,
		timeout:  DefaultClientTimeout,
	}
}

// SetTimeout sets the timeout for client operations.
func (c *Client) SetTimeout(d time.Duration) {
	c.timeout = d
}

// call sends a request and decodes the result into out, when out is non-nil.
func (c *Client) call(method string, params any, out any) error {
	conn, err := net.DialTimeout("unix", c.sockPath, c.timeout)
	if err != nil {
		return c.wrapConnError(err)
	}
	defer func() { _ = conn.Close() }()

	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return fmt.Errorf("set deadline: %w", err)
	}

	if err := json.NewEncoder(conn).Encode(Request{Method: method, Params: params}); err != nil {
		return fmt.Errorf("send request: %w", err)
	}

	var resp struct {
		Result json.RawMessage `json:"result,omitempty"`
		Error  string          `json:"error,omitempty"`
	}
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.Error != "" {
		return fmt.Errorf("daemon error: %s", resp.Error)
	}
	if out != nil && len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, out); err != nil {
			return fmt.Errorf("unmarshal %s result: %w", method, err)
		}
	}
	return nil
}

// wrapConnError converts connection errors to user-friendly messages.
func (c *Client) wrapConnError(err error) error {
	var sysErr syscall.Errno
	if errors.As(err, &sysErr) {
		switch sysErr {
		case syscall.ENOENT:
			return errors.New("daemon not running (socket not found)")
		case syscall.ECONNREFUSED:
			return errors.New("daemon not running (connection refused)")
		}
	}
	if os.IsNotExist(err) {
		return errors.New("daemon not running (socket not found)")
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return errors.New("daemon request timed out")
	}
	return fmt.Errorf("connect to daemon: %w", err)
}

// Status returns daemon and engine status.
func (c *Client) Status() (*StatusResponse, error) {
	var status StatusResponse
	if err := c.call(MethodStatus, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Start starts, or resumes, the current method.
func (c *Client) Start() error {
	return c.call(MethodStart, nil, nil)
}

// Pause pauses the live run.
func (c *Client) Pause() error {
	return c.call(MethodPause, nil, nil)
}

// Resume resumes a paused run.
func (c *Client) Resume() error {
	return c.call(MethodResume, nil, nil)
}

// Stop stops the live run. A non-empty client limits the stop to that
// client's runs.
func (c *Client) Stop(client string) error {
	return c.call(MethodStop, StopParams{Client: client}, nil)
}

// Next moves to the next method.
func (c *Client) Next() error {
	return c.call(MethodNext, nil, nil)
}

// Previous moves back one method.
func (c *Client) Previous() error {
	return c.call(MethodPrevious, nil, nil)
}

// Skip skips the current method.
func (c *Client) Skip() error {
	return c.call(MethodSkip, nil, nil)
}

// Ack dismisses the overexertion warning of the live run.
func (c *Client) Ack() error {
	return c.call(MethodAck, nil, nil)
}

// Quick starts a quick practice countdown and returns its owner ID.
func (c *Client) Quick(name string, duration time.Duration) (string, error) {
	var res QuickResult
	err := c.call(MethodQuick, QuickParams{Name: name, DurationMs: duration.Milliseconds()}, &res)
	return res.Owner, err
}

// Prompt answers the open completion prompt.
func (c *Client) Prompt(choice string, duration time.Duration) error {
	return c.call(MethodPrompt, PromptParams{Choice: choice, DurationMs: duration.Milliseconds()}, nil)
}

// Reset clears the day's progress.
func (c *Client) Reset() error {
	return c.call(MethodReset, nil, nil)
}

// SetAutoProgression toggles auto-progression.
func (c *Client) SetAutoProgression(enabled bool) error {
	return c.call(MethodAuto, AutoParams{Enabled: enabled}, nil)
}

// Background tells the daemon its host went to the background.
func (c *Client) Background() error {
	return c.call(MethodBackground, nil, nil)
}

// Foreground tells the daemon its host is visible again.
func (c *Client) Foreground() error {
	return c.call(MethodForeground, nil, nil)
}

// Shutdown asks the daemon to exit. A live run is persisted first.
func (c *Client) Shutdown() error {
	return c.call(MethodShutdown, nil, nil)
}

// IsRunning checks if the daemon is running by attempting to connect.
func (c *Client) IsRunning() bool {
	conn, err := net.DialTimeout("unix", c.sockPath, time.Second)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
