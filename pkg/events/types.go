// Package events carries one-shot view events from background work to the
// presentation layer that is currently attached.
package events

import "context"

// ViewEvent is one of the variants below. The set is closed.
type ViewEvent interface {
	viewEvent()
}

// Navigate asks the presentation layer to move to Target.
type Navigate struct {
	Target string
}

// ViewAction runs Action against the live view. Scope is the publisher's
// lifetime; the action should stop when it is done.
type ViewAction struct {
	Action func(ctx context.Context)
	Scope  context.Context
}

// PermissionRequest asks the host to obtain Permission and report back.
type PermissionRequest struct {
	Permission string
	Callback   func(granted bool)
}

// ShowMessage displays a transient notice.
type ShowMessage struct {
	Text string
}

// BackPress requests back navigation.
type BackPress struct{}

// UIAction is a named action that runs on the consumer.
type UIAction struct {
	Name   string
	Action func()
}

func (Navigate) viewEvent()          {}
func (ViewAction) viewEvent()        {}
func (PermissionRequest) viewEvent() {}
func (ShowMessage) viewEvent()       {}
func (BackPress) viewEvent()         {}
func (UIAction) viewEvent()          {}

// Envelope is the wire form of the serializable variants.
type Envelope struct {
	Type      string `json:"type"`
	Target    string `json:"target,omitempty"`
	Text      string `json:"text,omitempty"`
	Name      string `json:"name,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Wire type names.
const (
	TypeNavigate    = "navigate"
	TypeShowMessage = "show_message"
	TypeBackPress   = "back_press"
	TypeUIAction    = "ui_action"
)
