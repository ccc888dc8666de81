package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/npratt/growth/internal/events"
)

// handleRequest dispatches the request. The returned func, if any, runs
// after the response has been written.
func (d *Daemon) handleRequest(req *Request) (Response, func()) {
	if d.controller == nil {
		return Response{Error: "no controller available"}, nil
	}

	switch req.Method {
	case MethodStatus:
		return d.handleStatus(), nil
	case MethodStart:
		return result("started", d.controller.StartCurrent()), nil
	case MethodPause:
		return result("paused", d.controller.Pause()), nil
	case MethodResume:
		return result("resumed", d.controller.Resume()), nil
	case MethodStop:
		return d.handleStop(req), nil
	case MethodNext:
		return result("advanced", d.controller.Next()), nil
	case MethodPrevious:
		return result("moved back", d.controller.Previous()), nil
	case MethodSkip:
		return result("skipped", d.controller.Skip()), nil
	case MethodQuick:
		return d.handleQuick(req), nil
	case MethodPrompt:
		return d.handlePrompt(req), nil
	case MethodReset:
		return result("reset", d.controller.ResetProgress()), nil
	case MethodAuto:
		return d.handleAuto(req), nil
	case MethodBackground:
		return result("backgrounded", d.controller.Background()), nil
	case MethodForeground:
		return result("foregrounded", d.controller.Foreground()), nil
	case MethodShutdown:
		return d.handleShutdown()
	case MethodAck:
		return result("acknowledged", d.controller.AcknowledgeOverexertion()), nil
	default:
		return Response{Error: fmt.Sprintf("unknown method: %s", req.Method)}, nil
	}
}

func result(msg string, err error) Response {
	if err != nil {
		return errorResponse(err)
	}
	return Response{Result: msg}
}

func errorResponse(err error) Response {
	return Response{Error: err.Error()}
}

// decodeParams converts the loosely typed params into v.
func decodeParams(req *Request, v any) error {
	if req.Params == nil {
		return nil
	}
	data, err := json.Marshal(req.Params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid params for %s: %w", req.Method, err)
	}
	return nil
}

func (d *Daemon) handleStatus() Response {
	st, err := d.controller.Status()
	if err != nil {
		return errorResponse(err)
	}

	startTime := d.StartTime()
	return Response{
		Result: StatusResponse{
			Uptime:    time.Since(startTime).Truncate(time.Second).String(),
			StartTime: startTime.Format(time.RFC3339),
			PID:       os.Getpid(),
			Engine:    st,
		},
	}
}

// handleStop is the out-of-process stop request. It is applied exactly like
// a user stop.
func (d *Daemon) handleStop(req *Request) Response {
	var params StopParams
	if err := decodeParams(req, &params); err != nil {
		return errorResponse(err)
	}
	return result("stopped", d.controller.ExternalStop(events.SourceDaemon, params.Client))
}

func (d *Daemon) handleQuick(req *Request) Response {
	var params QuickParams
	if err := decodeParams(req, &params); err != nil {
		return errorResponse(err)
	}
	owner, err := d.controller.QuickStart(params.Name, time.Duration(params.DurationMs)*time.Millisecond)
	if err != nil {
		return errorResponse(err)
	}
	return Response{Result: QuickResult{Owner: owner}}
}

func (d *Daemon) handlePrompt(req *Request) Response {
	var params PromptParams
	if err := decodeParams(req, &params); err != nil {
		return errorResponse(err)
	}
	err := d.controller.PromptResult(params.Choice, time.Duration(params.DurationMs)*time.Millisecond)
	return result("recorded", err)
}

func (d *Daemon) handleAuto(req *Request) Response {
	var params AutoParams
	if err := decodeParams(req, &params); err != nil {
		return errorResponse(err)
	}
	return result(fmt.Sprintf("auto-progression %t", params.Enabled), d.controller.SetAutoProgression(params.Enabled))
}

func (d *Daemon) handleShutdown() (Response, func()) {
	d.mu.RLock()
	fn := d.onShutdown
	d.mu.RUnlock()

	return Response{Result: "shutting down"}, func() {
		if fn != nil {
			fn()
			return
		}
		_ = d.Stop()
	}
}
