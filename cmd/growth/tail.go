package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// tailLast reads and prints the last n lines from the log file.
func tailLast(w io.Writer, path string, n int) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			_, _ = fmt.Fprintln(w, "No events yet (log file does not exist)")
			return nil
		}
		return fmt.Errorf("open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	// Keep only the last n lines while scanning.
	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > n {
			lines = lines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read log file: %w", err)
	}

	if len(lines) == 0 {
		_, _ = fmt.Fprintln(w, "No events yet")
		return nil
	}

	for _, line := range lines {
		_, _ = fmt.Fprintln(w, formatEventLine(line))
	}
	return nil
}

// waitForFile waits for a file to be created and returns the opened file.
func waitForFile(ctx context.Context, path string) (*os.File, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(500 * time.Millisecond):
			file, err := os.Open(path)
			if err == nil {
				return file, nil
			}
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("open file: %w", err)
			}
		}
	}
}

// tailFollow follows the log file and prints new lines as they appear.
func tailFollow(ctx context.Context, w io.Writer, path string) error {
	file, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("open log file: %w", err)
		}
		_, _ = fmt.Fprintln(w, "Waiting for log file to be created...")
		file, err = waitForFile(ctx, path)
		if err != nil {
			return err
		}
	}
	defer func() { _ = file.Close() }()

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek to end: %w", err)
	}

	_, _ = fmt.Fprintln(w, "Following events (Ctrl+C to stop)...")
	reader := bufio.NewReader(file)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			line, err := reader.ReadString('\n')
			if err != nil {
				if err == io.EOF {
					time.Sleep(100 * time.Millisecond)
					continue
				}
				return fmt.Errorf("read log: %w", err)
			}
			_, _ = fmt.Fprintln(w, formatEventLine(strings.TrimSuffix(line, "\n")))
		}
	}
}

// formatEventLine renders one event log line as "[15:04:05] type: detail".
// Lines that are not JSON are returned unchanged.
func formatEventLine(line string) string {
	var event map[string]any
	if err := json.Unmarshal([]byte(line), &event); err != nil {
		return line
	}

	timestamp := ""
	if ts, ok := event["timestamp"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			timestamp = t.Format("15:04:05")
		} else {
			timestamp = ts
		}
	}

	eventType, _ := event["type"].(string)

	var detail string
	switch {
	case eventType == "timer.state_changed":
		reason, _ := event["reason"].(string)
		name, _ := event["owner_name"].(string)
		detail = strings.TrimSpace(reason + " " + name)
	case strings.HasPrefix(eventType, "method."), strings.HasPrefix(eventType, "prompt."):
		if name, ok := event["method_name"].(string); ok && name != "" {
			detail = name
		} else if id, ok := event["method_id"].(string); ok {
			detail = id
		}
		if choice, ok := event["choice"].(string); ok {
			detail += " " + choice
		}
	case strings.HasPrefix(eventType, "session."):
		if day, ok := event["day"].(float64); ok {
			detail = fmt.Sprintf("day=%d", int(day))
		}
	case eventType == "stop.requested":
		origin, _ := event["origin"].(string)
		client, _ := event["client"].(string)
		detail = strings.TrimSpace(fmt.Sprintf("origin=%s client=%s", origin, client))
	default:
		if msg, ok := event["message"].(string); ok {
			detail = msg
		}
	}

	if detail != "" {
		return fmt.Sprintf("[%s] %s: %s", timestamp, eventType, detail)
	}
	return fmt.Sprintf("[%s] %s", timestamp, eventType)
}
