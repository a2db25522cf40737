package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/morezero/rootbridge/pkg/intent"
)

const logPrefix = "dispatcher:dispatch"

// activityNotFoundMarkers are the `am start` diagnostics for an unresolvable intent.
var activityNotFoundMarkers = []string{
	"unable to resolve Intent",
	"does not exist",
}

// Dispatcher routes helper requests to the executor.
type Dispatcher struct {
	exec      Executor
	shell     string
	startedAt time.Time
}

// NewDispatcher creates a new Dispatcher. shell is reported by the status method.
func NewDispatcher(exec Executor, shell string) *Dispatcher {
	return &Dispatcher{exec: exec, shell: shell, startedAt: time.Now().UTC()}
}

// Dispatch routes a request to the appropriate method and returns a response.
func (d *Dispatcher) Dispatch(ctx context.Context, req *HelperRequest) *HelperResponse {
	slog.Debug(fmt.Sprintf("%s - method=%s id=%s", logPrefix, req.Method, req.ID))

	if req.Ctx != nil && req.Ctx.TimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.Ctx.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	switch req.Method {
	case MethodExec:
		return d.handleExec(ctx, req)
	case MethodStart:
		return d.handleStart(ctx, req)
	case MethodReboot:
		return d.handleReboot(ctx, req)
	case MethodStatus:
		return d.handleStatus(ctx, req)
	default:
		return errorResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("Unknown method: %s", req.Method), false)
	}
}

func (d *Dispatcher) handleExec(ctx context.Context, req *HelperRequest) *HelperResponse {
	var params ExecParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.Command == "" {
		return errorResponse(req.ID, CodeInvalidArgument, "Failed to parse exec params", false)
	}

	res, err := d.exec.Run(ctx, params.Command)
	if err != nil {
		return errorResponse(req.ID, CodeInternal, err.Error(), true)
	}
	if res.ExitCode != 0 {
		resp := errorResponse(req.ID, CodeExecFailed, fmt.Sprintf("exit status %d", res.ExitCode), false)
		resp.Error.Details = res
		return resp
	}
	return okResponse(req.ID, res)
}

func (d *Dispatcher) handleStart(ctx context.Context, req *HelperRequest) *HelperResponse {
	var params StartParams
	if err := json.Unmarshal(req.Params, &params); err != nil || len(params.Args) == 0 {
		return errorResponse(req.ID, CodeInvalidArgument, "Failed to parse start params", false)
	}

	res, err := d.exec.Run(ctx, intent.JoinShell(params.Args))
	if err != nil {
		return errorResponse(req.ID, CodeInternal, err.Error(), true)
	}

	output := strings.TrimSpace(res.Stdout + "\n" + res.Stderr)
	if isActivityNotFound(output) {
		slog.Warn(fmt.Sprintf("%s - activity not found (token=%d): %s", logPrefix, params.Token, output))
		return errorResponse(req.ID, CodeActivityNotFound, output, false)
	}
	if res.ExitCode != 0 {
		resp := errorResponse(req.ID, CodeExecFailed, fmt.Sprintf("exit status %d", res.ExitCode), false)
		resp.Error.Details = res
		return resp
	}
	return okResponse(req.ID, StartResult{Token: params.Token, Output: output})
}

func (d *Dispatcher) handleReboot(ctx context.Context, req *HelperRequest) *HelperResponse {
	var params RebootParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, CodeInvalidArgument, "Failed to parse reboot params", false)
		}
	}
	command, err := intent.RebootCommand(params.Reason)
	if err != nil {
		return errorResponse(req.ID, CodeInvalidArgument, err.Error(), false)
	}

	slog.Info(fmt.Sprintf("%s - Rebooting (reason=%q)", logPrefix, params.Reason))
	res, err := d.exec.Run(ctx, command)
	if err != nil {
		return errorResponse(req.ID, CodeInternal, err.Error(), true)
	}
	if res.ExitCode != 0 {
		resp := errorResponse(req.ID, CodeExecFailed, fmt.Sprintf("exit status %d", res.ExitCode), false)
		resp.Error.Details = res
		return resp
	}
	return okResponse(req.ID, res)
}

func (d *Dispatcher) handleStatus(ctx context.Context, req *HelperRequest) *HelperResponse {
	res, err := d.exec.Run(ctx, "id -u")
	if err != nil {
		return errorResponse(req.ID, CodeInternal, err.Error(), true)
	}
	uid := strings.TrimSpace(res.Stdout)
	return okResponse(req.ID, StatusResult{
		Shell:     d.shell,
		UID:       uid,
		Root:      res.ExitCode == 0 && uid == "0",
		StartedAt: d.startedAt.Format(time.RFC3339),
	})
}

// --- helpers ---

func isActivityNotFound(output string) bool {
	for _, m := range activityNotFoundMarkers {
		if strings.Contains(output, m) {
			return true
		}
	}
	return false
}

func okResponse(id string, result interface{}) *HelperResponse {
	data, err := json.Marshal(result)
	if err != nil {
		return errorResponse(id, CodeInternal, err.Error(), false)
	}
	return &HelperResponse{ID: id, Ok: true, Result: data}
}

func errorResponse(id, code, message string, retryable bool) *HelperResponse {
	return &HelperResponse{
		ID: id,
		Ok: false,
		Error: &ErrorDetail{
			Code:      code,
			Message:   message,
			Retryable: retryable,
		},
	}
}
