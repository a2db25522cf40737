package launcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/morezero/rootbridge/pkg/correlation"
	"github.com/morezero/rootbridge/pkg/dispatcher"
	"github.com/morezero/rootbridge/pkg/events"
	"github.com/morezero/rootbridge/pkg/intent"
)

const logPrefix = "launcher:launcher"

// MsgAppNotFound is shown when no activity matches a launch descriptor.
const MsgAppNotFound = "No app found to handle this action"

// journalTimeout bounds the final journal write. It runs detached from the
// request ctx so that a request that timed out is still recorded as failed.
const journalTimeout = 5 * time.Second

// ErrActivityNotFound is returned when the helper could not resolve the
// descriptor. The user has already been told through a ShowMessage event.
var ErrActivityNotFound = errors.New("launcher: activity not found")

// ActivityResult is the wire form of a finished activity's result.
type ActivityResult struct {
	Token int             `json:"token"`
	Code  int             `json:"code"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Publisher receives user-facing events. *events.Bus implements it.
type Publisher interface {
	Publish(ev events.ViewEvent)
}

// Observer counts finished launches.
type Observer interface {
	LaunchFinished(kind, status string)
}

// Options configures a Launcher. Channel and Registry are required.
type Options struct {
	Channel   CommandChannel
	Registry  *correlation.Registry
	Publisher Publisher
	Journal   Journal
	Observer  Observer
	UserID    int
}

// Launcher sends launches to the helper.
type Launcher struct {
	ch       CommandChannel
	reg      *correlation.Registry
	pub      Publisher
	journal  Journal
	observer Observer
	userID   int
}

// New creates a Launcher. A nil Journal discards launches.
func New(opts Options) *Launcher {
	journal := opts.Journal
	if journal == nil {
		journal = NoOpJournal{}
	}
	return &Launcher{
		ch:       opts.Channel,
		reg:      opts.Registry,
		pub:      opts.Publisher,
		journal:  journal,
		observer: opts.Observer,
		userID:   opts.UserID,
	}
}

// Start launches d as the configured user.
func (l *Launcher) Start(ctx context.Context, d *intent.LaunchDescriptor) error {
	args := intent.StartCommand(l.userID, d)
	_, err := l.send(ctx, KindStart, intent.JoinShell(args), 0, dispatcher.MethodStart, dispatcher.StartParams{Args: args})
	return err
}

// StartForResult allocates a token for cb and launches d. cb runs once when
// OnActivityResult delivers the token. On any failure the token is released
// and cb never runs.
func (l *Launcher) StartForResult(ctx context.Context, d *intent.LaunchDescriptor, cb correlation.Callback) (int, error) {
	token := l.reg.Allocate(cb)
	args := intent.StartCommand(l.userID, d)
	if _, err := l.send(ctx, KindStartForResult, intent.JoinShell(args), token, dispatcher.MethodStart, dispatcher.StartParams{Args: args, Token: token}); err != nil {
		l.reg.Cancel(token)
		return token, err
	}
	return token, nil
}

// OnActivityResult resolves the request pending under token.
func (l *Launcher) OnActivityResult(token, code int, data json.RawMessage) bool {
	return l.reg.Resolve(token, correlation.Outcome{Code: code, Data: data})
}

// Relaunch starts d again after a short delay, after the caller has exited.
func (l *Launcher) Relaunch(ctx context.Context, d *intent.LaunchDescriptor) error {
	command := intent.RelaunchCommand(l.userID, d)
	_, err := l.send(ctx, KindRelaunch, command, 0, dispatcher.MethodExec, dispatcher.ExecParams{Command: command})
	return err
}

// Reboot asks the helper to reboot the device, optionally into reason.
func (l *Launcher) Reboot(ctx context.Context, reason string) error {
	command, err := intent.RebootCommand(reason)
	if err != nil {
		return err
	}
	_, err = l.send(ctx, KindReboot, command, 0, dispatcher.MethodReboot, dispatcher.RebootParams{Reason: reason})
	return err
}

// Status queries the helper's privilege state.
func (l *Launcher) Status(ctx context.Context) (*dispatcher.StatusResult, error) {
	resp, err := l.ch.Send(ctx, dispatcher.MethodStatus, nil)
	if err != nil {
		return nil, err
	}
	if !resp.Ok {
		return nil, fmt.Errorf("%s - status failed: %w", logPrefix, resp.Error)
	}
	var status dispatcher.StatusResult
	if err := json.Unmarshal(resp.Result, &status); err != nil {
		return nil, fmt.Errorf("%s - failed to decode status: %w", logPrefix, err)
	}
	return &status, nil
}

func (l *Launcher) send(ctx context.Context, kind, command string, token int, method string, params interface{}) (*dispatcher.HelperResponse, error) {
	id, err := l.journal.RecordLaunch(ctx, kind, command, token)
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to journal %s: %v", logPrefix, kind, err))
	}

	resp, err := l.ch.Send(ctx, method, params)
	status, detail := StatusOK, ""
	switch {
	case err != nil:
		status, detail = StatusFailed, err.Error()
	case !resp.Ok && resp.Error != nil && resp.Error.Code == dispatcher.CodeActivityNotFound:
		status, detail = StatusActivityNotFound, resp.Error.Message
		if l.pub != nil {
			l.pub.Publish(events.ShowMessage{Text: MsgAppNotFound})
		}
		err = fmt.Errorf("%w: %s", ErrActivityNotFound, resp.Error.Message)
	case !resp.Ok:
		status = StatusFailed
		if resp.Error != nil {
			detail = resp.Error.Message
			err = fmt.Errorf("%s - %s failed: %w", logPrefix, kind, resp.Error)
		} else {
			err = fmt.Errorf("%s - %s failed", logPrefix, kind)
		}
	}

	if id != "" {
		jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
		if jerr := l.journal.UpdateLaunchStatus(jctx, id, status, detail); jerr != nil {
			slog.Warn(fmt.Sprintf("%s - failed to update journal %s: %v", logPrefix, id, jerr))
		}
		cancel()
	}
	if l.observer != nil {
		l.observer.LaunchFinished(kind, status)
	}
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - %s token=%d: %v", logPrefix, kind, token, err))
		return resp, err
	}
	slog.Info(fmt.Sprintf("%s - %s sent (token=%d)", logPrefix, kind, token))
	return resp, nil
}
