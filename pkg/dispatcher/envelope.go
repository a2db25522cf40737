// Package dispatcher routes helper requests arriving over COMMS to the
// privileged shell.
package dispatcher

import "encoding/json"

// Helper methods.
const (
	MethodExec   = "exec"
	MethodStart  = "start"
	MethodReboot = "reboot"
	MethodStatus = "status"
)

// Error codes carried in ErrorDetail.Code.
const (
	CodeInvalidArgument  = "INVALID_ARGUMENT"
	CodeMethodNotFound   = "METHOD_NOT_FOUND"
	CodeActivityNotFound = "ACTIVITY_NOT_FOUND"
	CodeExecFailed       = "EXEC_FAILED"
	CodeInternal         = "INTERNAL_ERROR"
)

// HelperRequest is the JSON envelope for requests sent to the helper.
type HelperRequest struct {
	ID     string             `json:"id"`
	Method string             `json:"method"`
	Params json.RawMessage    `json:"params,omitempty"`
	Ctx    *InvocationContext `json:"ctx,omitempty"`
}

// HelperResponse is the JSON envelope for helper responses.
type HelperResponse struct {
	ID     string          `json:"id"`
	Ok     bool            `json:"ok"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ErrorDetail    `json:"error,omitempty"`
}

// ErrorDetail holds structured error information.
type ErrorDetail struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	Retryable bool        `json:"retryable"`
}

func (e *ErrorDetail) Error() string {
	return e.Code + ": " + e.Message
}

// InvocationContext holds context from the caller.
type InvocationContext struct {
	UserID        int    `json:"userId"`
	CorrelationID string `json:"correlationId,omitempty"`
	TimeoutMs     int    `json:"timeoutMs,omitempty"`
}

// ExecParams are the params of the exec method.
type ExecParams struct {
	Command string `json:"command"`
}

// StartParams are the params of the start method. Args is the full encoded
// `am start` command line. Token is echoed back for activity-result requests.
type StartParams struct {
	Args  []string `json:"args"`
	Token int      `json:"token,omitempty"`
}

// RebootParams are the params of the reboot method.
type RebootParams struct {
	Reason string `json:"reason"`
}

// ExecResult is the outcome of one shell command.
type ExecResult struct {
	ExitCode int    `json:"exitCode"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}

// StartResult is the result of the start method.
type StartResult struct {
	Token  int    `json:"token,omitempty"`
	Output string `json:"output"`
}

// StatusResult is the result of the status method.
type StatusResult struct {
	Shell     string `json:"shell"`
	UID       string `json:"uid"`
	Root      bool   `json:"root"`
	StartedAt string `json:"startedAt"`
}
