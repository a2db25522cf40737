package permission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/morezero/rootbridge/pkg/correlation"
)

const logPrefix = "permission:coordinator"

// ErrNoPrompter is returned when a prompt is needed but none is configured.
var ErrNoPrompter = errors.New("permission: no prompter configured")

// Request carries the two continuations of a permission request. Either may be nil.
type Request struct {
	OnSuccess func()
	OnFailure func()
}

// FromCallback adapts a single boolean callback to a Request.
func FromCallback(cb func(granted bool)) Request {
	if cb == nil {
		return Request{}
	}
	return Request{
		OnSuccess: func() { cb(true) },
		OnFailure: func() { cb(false) },
	}
}

func (r Request) succeed() {
	if r.OnSuccess != nil {
		r.OnSuccess()
	}
}

func (r Request) fail() {
	if r.OnFailure != nil {
		r.OnFailure()
	}
}

// State describes what Request did.
type State int

const (
	// ShortCircuitGranted means OnSuccess already ran and no token was used.
	ShortCircuitGranted State = iota
	// AwaitingExternal means a prompt is out and Ticket.Token is pending.
	AwaitingExternal
	// PromptFailed means the prompt could not be shown and OnFailure already ran.
	PromptFailed
)

func (s State) String() string {
	switch s {
	case ShortCircuitGranted:
		return "short_circuit_granted"
	case AwaitingExternal:
		return "awaiting_external"
	case PromptFailed:
		return "prompt_failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Ticket is returned by Request.
type Ticket struct {
	State State
	Token int
}

// Observer counts requests answered without prompting.
type Observer interface {
	PermissionShortCircuited()
}

// CoordinatorOpts configures a Coordinator. Registry and Prompter are required
// for requests that need a prompt.
type CoordinatorOpts struct {
	Registry        *correlation.Registry
	Rules           *Rules
	Grants          GrantChecker
	Prompter        Prompter
	PlatformVersion string
	Observer        Observer
}

// Coordinator issues permission requests tagged with correlation tokens.
type Coordinator struct {
	reg             *correlation.Registry
	rules           *Rules
	grants          GrantChecker
	prompter        Prompter
	platformVersion string
	observer        Observer
}

// NewCoordinator creates a Coordinator. Nil Grants uses an empty MemoryGrants.
func NewCoordinator(opts CoordinatorOpts) *Coordinator {
	grants := opts.Grants
	if grants == nil {
		grants = NewMemoryGrants()
	}
	return &Coordinator{
		reg:             opts.Registry,
		rules:           opts.Rules,
		grants:          grants,
		prompter:        opts.Prompter,
		platformVersion: opts.PlatformVersion,
		observer:        opts.Observer,
	}
}

// Request asks for capability. When it is implicitly or already granted,
// OnSuccess runs synchronously before Request returns. Otherwise a token is
// allocated and the prompt is shown; exactly one of the continuations runs
// when the result arrives.
func (c *Coordinator) Request(ctx context.Context, capability string, req Request) (Ticket, error) {
	if c.rules.AlwaysGranted(capability, c.platformVersion) || c.grants.Granted(capability) {
		if c.observer != nil {
			c.observer.PermissionShortCircuited()
		}
		slog.Debug(fmt.Sprintf("%s - %s already granted", logPrefix, capability))
		req.succeed()
		return Ticket{State: ShortCircuitGranted}, nil
	}

	if c.reg == nil || c.prompter == nil {
		req.fail()
		return Ticket{State: PromptFailed}, ErrNoPrompter
	}

	token := c.reg.Allocate(func(o correlation.Outcome) {
		granted := o.Code > 0 && o.Err == nil
		if o.Err == nil {
			c.grants.Record(capability, granted)
		}
		if granted {
			req.succeed()
			return
		}
		req.fail()
	})

	if err := c.prompter.Prompt(ctx, token, []string{capability}); err != nil {
		slog.Warn(fmt.Sprintf("%s - prompt for %s (token=%d) failed: %v", logPrefix, capability, token, err))
		c.reg.Resolve(token, correlation.Outcome{Code: -1, Err: err})
		return Ticket{State: PromptFailed, Token: token}, fmt.Errorf("%s - failed to prompt for %s: %w", logPrefix, capability, err)
	}

	return Ticket{State: AwaitingExternal, Token: token}, nil
}

// WithExternalRW requests the external storage capability.
func (c *Coordinator) WithExternalRW(ctx context.Context, req Request) (Ticket, error) {
	return c.Request(ctx, PermissionWriteExternalStorage, req)
}

// OnResult delivers the grant results for token. Unknown tokens are ignored.
func (c *Coordinator) OnResult(token int, grants []bool) bool {
	if c.reg == nil {
		return false
	}
	return c.reg.Resolve(token, OutcomeFromGrants(grants))
}

// OutcomeFromGrants maps grant results to an outcome code: 1 when every result
// is granted, -1 otherwise. An empty result counts as denied.
func OutcomeFromGrants(grants []bool) correlation.Outcome {
	if len(grants) == 0 {
		return correlation.Outcome{Code: -1}
	}
	for _, g := range grants {
		if !g {
			return correlation.Outcome{Code: -1}
		}
	}
	return correlation.Outcome{Code: 1}
}
