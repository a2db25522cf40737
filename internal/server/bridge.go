package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/rootbridge/internal/config"
	"github.com/morezero/rootbridge/pkg/commsutil"
	"github.com/morezero/rootbridge/pkg/correlation"
	"github.com/morezero/rootbridge/pkg/dispatcher"
	"github.com/morezero/rootbridge/pkg/events"
	"github.com/morezero/rootbridge/pkg/intent"
	"github.com/morezero/rootbridge/pkg/launcher"
	"github.com/morezero/rootbridge/pkg/metrics"
	"github.com/morezero/rootbridge/pkg/observable"
	"github.com/morezero/rootbridge/pkg/permission"
	"github.com/morezero/rootbridge/pkg/rules"
	"github.com/morezero/rootbridge/pkg/viewmodel"
)

const bridgeLogPrefix = "server:bridge"

// Bridge request methods.
const (
	MethodLaunch     = "launch"
	MethodRelaunch   = "relaunch"
	MethodReboot     = "reboot"
	MethodPermission = "permission"
	MethodRefresh    = "refresh"
	MethodStatus     = "status"
)

// LaunchParams are the params of the launch and relaunch methods.
type LaunchParams struct {
	Descriptor intent.LaunchDescriptor `json:"descriptor"`
	ForResult  bool                    `json:"forResult,omitempty"`
}

// PermissionParams are the params of the permission method.
type PermissionParams struct {
	Permission string `json:"permission"`
}

// Snapshot is the bridge state reported by the status method and /status.
type Snapshot struct {
	Connected     bool                     `json:"connected"`
	PendingTokens int                      `json:"pendingTokens"`
	LoadState     string                   `json:"loadState"`
	Refreshing    bool                     `json:"refreshing"`
	DroppedEvents int                      `json:"droppedEvents"`
	Helper        *dispatcher.StatusResult `json:"helper,omitempty"`
}

// BridgeOpts configures a Bridge. Config and Conn are required.
type BridgeOpts struct {
	Config *config.Config
	Conn   *comms.Conn
	// Connected is the connectivity signal; nil tracks nothing and starts true.
	Connected *observable.Property[bool]
	// Channel overrides the helper channel (defaults to COMMS request/reply).
	Channel launcher.CommandChannel
	Journal launcher.Journal
	Rules   *rules.RuleSet
	Metrics *metrics.Collector
}

// Bridge wires the correlation registry, permission coordinator, launcher and
// view event bus to their COMMS subjects.
type Bridge struct {
	cfg       *config.Config
	nc        *comms.Conn
	connected *observable.Property[bool]
	metrics   *metrics.Collector

	registry *correlation.Registry
	inbox    *correlation.Inbox
	perms    *permission.Coordinator
	bus      *events.Bus
	launcher *launcher.Launcher
	base     *viewmodel.Base
	host     *viewmodel.Host

	helperStatus atomic.Pointer[dispatcher.StatusResult]

	subs   []*comms.Subscription
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewBridge builds a Bridge. Nothing is subscribed until Start.
func NewBridge(opts BridgeOpts) (*Bridge, error) {
	cfg := opts.Config
	collector := opts.Metrics
	if collector == nil {
		collector = metrics.NewCollector()
	}
	connected := opts.Connected
	if connected == nil {
		connected = observable.New(true)
	}

	ruleSet := opts.Rules
	if ruleSet == nil {
		ruleSet = rules.GetDefaultRuleSet()
	}
	compiled, err := permission.NewRules(ruleSet)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to compile rules: %w", bridgeLogPrefix, err)
	}

	policy, err := events.ParsePolicy(cfg.EventPolicy)
	if err != nil {
		return nil, fmt.Errorf("%s - %w", bridgeLogPrefix, err)
	}

	b := &Bridge{
		cfg:       cfg,
		nc:        opts.Conn,
		connected: connected,
		metrics:   collector,
	}

	b.registry = correlation.NewRegistry(correlation.Options{
		Timeout:  cfg.CorrelationTimeout,
		Observer: collector,
	})
	b.inbox = correlation.NewInbox(b.registry, 64)
	b.bus = events.NewBus(policy, cfg.EventQueueSize, collector)

	b.perms = permission.NewCoordinator(permission.CoordinatorOpts{
		Registry:        b.registry,
		Rules:           compiled,
		Grants:          permission.NewMemoryGrants(),
		Prompter:        permission.NewCommsPrompter(opts.Conn, cfg.PermissionPromptSubject),
		PlatformVersion: cfg.PlatformVersion,
		Observer:        collector,
	})

	channel := opts.Channel
	if channel == nil {
		channel = launcher.NewCommsChannel(opts.Conn, &launcher.CommsChannelOpts{
			Subject: cfg.HelperSubjectOrDefault(),
			UserID:  cfg.UserID,
			Timeout: cfg.RequestTimeout,
		})
	}
	b.launcher = launcher.New(launcher.Options{
		Channel:   channel,
		Registry:  b.registry,
		Publisher: b.bus,
		Journal:   opts.Journal,
		Observer:  collector,
		UserID:    cfg.UserID,
	})

	forward := events.NewCommsPublisher(opts.Conn, &events.CommsPublisherOpts{Subject: cfg.EventSubject})
	b.host = viewmodel.NewHost(b.bus, b.perms, forward)
	return b, nil
}

// Start subscribes to the bridge subjects and starts the result and event
// loops. It requests an initial refresh.
func (b *Bridge) Start(ctx context.Context) error {
	ctx, b.cancel = context.WithCancel(ctx)

	b.base = viewmodel.NewBase(ctx, viewmodel.BaseOpts{
		Bus:       b.bus,
		Connected: b.connected,
		Refresh:   b.refresh,
		Observer:  b.metrics,
	})

	b.wg.Add(2)
	go func() {
		defer b.wg.Done()
		_ = b.inbox.Run(ctx)
	}()
	go func() {
		defer b.wg.Done()
		_ = b.host.Run(ctx)
	}()

	subscriptions := []struct {
		subject string
		handler comms.MsgHandler
	}{
		{config.Subject(b.cfg.ResultSubject, commsutil.SubjectActivityResult), b.onActivityResult(ctx)},
		{config.Subject(b.cfg.PermissionResultSubject, commsutil.SubjectPermissionResult), b.onPermissionResult(ctx)},
		{config.Subject(b.cfg.ChangeSubject, commsutil.SubjectChanged), b.onChange},
		{b.cfg.BridgeSubjectOrDefault(), b.onBridgeRequest(ctx)},
	}
	for _, s := range subscriptions {
		sub, err := b.nc.Subscribe(s.subject, s.handler)
		if err != nil {
			b.Close()
			return fmt.Errorf("%s - failed to subscribe to %s: %w", bridgeLogPrefix, s.subject, err)
		}
		b.subs = append(b.subs, sub)
		slog.Info(fmt.Sprintf("%s - Subscribed to %s", bridgeLogPrefix, s.subject))
	}

	b.base.RequestRefresh()
	return nil
}

// Close unsubscribes, stops the loops and drops pending requests.
func (b *Bridge) Close() {
	for _, sub := range b.subs {
		_ = sub.Unsubscribe()
	}
	b.subs = nil
	if b.cancel != nil {
		b.cancel()
	}
	b.bus.Close()
	b.wg.Wait()
	if b.base != nil {
		b.base.Close()
	}
	b.registry.CancelAll()
}

// Snapshot reports the current bridge state.
func (b *Bridge) Snapshot() Snapshot {
	s := Snapshot{
		Connected:     b.connected.Get(),
		PendingTokens: b.registry.Pending(),
		LoadState:     viewmodel.Loading.String(),
		DroppedEvents: b.bus.Dropped(),
		Helper:        b.helperStatus.Load(),
	}
	if b.base != nil {
		s.LoadState = b.base.State().Get().String()
		if job := b.base.Refresher().Current(); job != nil {
			s.Refreshing = !job.Finished()
		}
	}
	return s
}

// HelperStatus asks the helper for its state directly.
func (b *Bridge) HelperStatus(ctx context.Context) (*dispatcher.StatusResult, error) {
	return b.launcher.Status(ctx)
}

func (b *Bridge) refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.RequestTimeout)
	defer cancel()
	status, err := b.launcher.Status(ctx)
	if err != nil {
		return err
	}
	b.helperStatus.Store(status)
	slog.Debug(fmt.Sprintf("%s - helper status uid=%s root=%v", bridgeLogPrefix, status.UID, status.Root))
	return nil
}

func (b *Bridge) onActivityResult(ctx context.Context) comms.MsgHandler {
	return func(msg *comms.Msg) {
		var res launcher.ActivityResult
		if err := commsutil.DecodePayload(msg.Data, &res); err != nil {
			slog.Warn(fmt.Sprintf("%s - bad activity result: %v", bridgeLogPrefix, err))
			return
		}
		d := correlation.Delivery{Token: res.Token, Outcome: correlation.Outcome{Code: res.Code, Data: res.Data}}
		if err := b.inbox.Post(ctx, d); err != nil {
			slog.Warn(fmt.Sprintf("%s - %v", bridgeLogPrefix, err))
		}
	}
}

func (b *Bridge) onPermissionResult(ctx context.Context) comms.MsgHandler {
	return func(msg *comms.Msg) {
		var res permission.PromptResult
		if err := commsutil.DecodePayload(msg.Data, &res); err != nil {
			slog.Warn(fmt.Sprintf("%s - bad permission result: %v", bridgeLogPrefix, err))
			return
		}
		d := correlation.Delivery{Token: res.Token, Outcome: permission.OutcomeFromGrants(res.Grants)}
		if err := b.inbox.Post(ctx, d); err != nil {
			slog.Warn(fmt.Sprintf("%s - %v", bridgeLogPrefix, err))
		}
	}
}

func (b *Bridge) onChange(_ *comms.Msg) {
	b.base.RequestRefresh()
}

func (b *Bridge) onBridgeRequest(ctx context.Context) comms.MsgHandler {
	return func(msg *comms.Msg) {
		var req dispatcher.HelperRequest
		var resp *dispatcher.HelperResponse
		if err := commsutil.DecodePayload(msg.Data, &req); err != nil {
			resp = failure("", "INVALID_REQUEST", "Failed to decode request")
		} else {
			reqCtx, cancel := context.WithTimeout(ctx, b.cfg.RequestTimeout)
			resp = b.handle(reqCtx, &req)
			cancel()
		}
		if err := commsutil.Respond(msg, resp); err != nil {
			slog.Error(fmt.Sprintf("%s - failed to respond: %v", bridgeLogPrefix, err))
		}
	}
}

func (b *Bridge) handle(ctx context.Context, req *dispatcher.HelperRequest) *dispatcher.HelperResponse {
	slog.Debug(fmt.Sprintf("%s - method=%s id=%s", bridgeLogPrefix, req.Method, req.ID))

	switch req.Method {
	case MethodLaunch:
		var p LaunchParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return failure(req.ID, dispatcher.CodeInvalidArgument, "Failed to parse launch params")
		}
		if !p.ForResult {
			return result(req.ID, nil, b.launcher.Start(ctx, &p.Descriptor))
		}
		token, err := b.launcher.StartForResult(ctx, &p.Descriptor, b.publishActivityResult)
		return result(req.ID, map[string]int{"token": token}, err)

	case MethodRelaunch:
		var p LaunchParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return failure(req.ID, dispatcher.CodeInvalidArgument, "Failed to parse relaunch params")
		}
		return result(req.ID, nil, b.launcher.Relaunch(ctx, &p.Descriptor))

	case MethodReboot:
		var p dispatcher.RebootParams
		if len(req.Params) > 0 {
			if err := json.Unmarshal(req.Params, &p); err != nil {
				return failure(req.ID, dispatcher.CodeInvalidArgument, "Failed to parse reboot params")
			}
		}
		return result(req.ID, nil, b.launcher.Reboot(ctx, p.Reason))

	case MethodPermission:
		var p PermissionParams
		if err := json.Unmarshal(req.Params, &p); err != nil || p.Permission == "" {
			return failure(req.ID, dispatcher.CodeInvalidArgument, "Failed to parse permission params")
		}
		perm := p.Permission
		b.base.WithPermission(perm, func(granted bool) {
			verdict := "denied"
			if granted {
				verdict = "granted"
			}
			b.base.Publish(events.UIAction{Name: fmt.Sprintf("permission:%s:%s", perm, verdict)})
		})
		return result(req.ID, map[string]bool{"queued": true}, nil)

	case MethodRefresh:
		return result(req.ID, map[string]bool{"started": b.base.RequestRefresh()}, nil)

	case MethodStatus:
		return result(req.ID, b.Snapshot(), nil)

	default:
		return failure(req.ID, dispatcher.CodeMethodNotFound, fmt.Sprintf("Unknown method: %s", req.Method))
	}
}

// publishActivityResult tells the view that a started activity finished.
func (b *Bridge) publishActivityResult(o correlation.Outcome) {
	name := fmt.Sprintf("activity_result:%d", o.Code)
	if o.Err != nil {
		name = "activity_result:timeout"
	}
	b.base.Publish(events.UIAction{Name: name})
}

// --- helpers ---

func result(id string, v interface{}, err error) *dispatcher.HelperResponse {
	if err != nil {
		var detail *dispatcher.ErrorDetail
		switch {
		case errors.Is(err, launcher.ErrActivityNotFound):
			return failure(id, dispatcher.CodeActivityNotFound, err.Error())
		case errors.As(err, &detail):
			return &dispatcher.HelperResponse{ID: id, Ok: false, Error: detail}
		case errors.Is(err, intent.ErrUnknownRebootReason):
			return failure(id, dispatcher.CodeInvalidArgument, err.Error())
		default:
			resp := failure(id, dispatcher.CodeInternal, err.Error())
			resp.Error.Retryable = true
			return resp
		}
	}
	if v == nil {
		return &dispatcher.HelperResponse{ID: id, Ok: true}
	}
	data, merr := json.Marshal(v)
	if merr != nil {
		return failure(id, dispatcher.CodeInternal, merr.Error())
	}
	return &dispatcher.HelperResponse{ID: id, Ok: true, Result: data}
}

func failure(id, code, message string) *dispatcher.HelperResponse {
	return &dispatcher.HelperResponse{
		ID: id,
		Ok: false,
		Error: &dispatcher.ErrorDetail{
			Code:    code,
			Message: message,
		},
	}
}
