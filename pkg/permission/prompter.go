package permission

import (
	"context"
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/rootbridge/pkg/commsutil"
)

const prompterLogPrefix = "permission:prompter"

// Prompter shows the external permission prompt for token. The answer comes
// back later through Coordinator.OnResult.
type Prompter interface {
	Prompt(ctx context.Context, token int, capabilities []string) error
}

// PromptRequest is the wire form of a permission prompt.
type PromptRequest struct {
	Token       int      `json:"token"`
	Permissions []string `json:"permissions"`
}

// PromptResult is the wire form of the user's answer to a PromptRequest.
type PromptResult struct {
	Token       int      `json:"token"`
	Permissions []string `json:"permissions,omitempty"`
	Grants      []bool   `json:"grants"`
}

// CommsPrompter publishes prompts to a COMMS subject.
type CommsPrompter struct {
	nc      *comms.Conn
	subject string
}

// NewCommsPrompter creates a CommsPrompter. An empty subject uses the default.
func NewCommsPrompter(nc *comms.Conn, subject string) *CommsPrompter {
	if subject == "" {
		subject = commsutil.SubjectPermissionPrompt
	}
	return &CommsPrompter{nc: nc, subject: subject}
}

func (p *CommsPrompter) Prompt(ctx context.Context, token int, capabilities []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := commsutil.EncodePayload(PromptRequest{Token: token, Permissions: capabilities})
	if err != nil {
		return fmt.Errorf("%s - failed to encode prompt: %w", prompterLogPrefix, err)
	}
	if err := p.nc.Publish(p.subject, data); err != nil {
		return fmt.Errorf("%s - failed to publish prompt to %s: %w", prompterLogPrefix, p.subject, err)
	}
	slog.Debug(fmt.Sprintf("%s - Prompted token=%d permissions=%v", prompterLogPrefix, token, capabilities))
	return nil
}
