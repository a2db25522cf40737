package viewmodel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/morezero/rootbridge/pkg/events"
	"github.com/morezero/rootbridge/pkg/observable"
	"github.com/morezero/rootbridge/pkg/permission"
)

const baseTestPrefix = "viewmodel:base_test"

func waitJob(t *testing.T, b *Base) {
	t.Helper()
	job := b.Refresher().Current()
	if job == nil {
		t.Fatalf("%s - no refresh job", baseTestPrefix)
	}
	select {
	case <-job.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("%s - refresh did not finish", baseTestPrefix)
	}
}

func nextEvent(t *testing.T, bus *events.Bus) events.ViewEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ev, err := bus.Next(ctx)
	if err != nil {
		t.Fatalf("%s - Next: %v", baseTestPrefix, err)
	}
	return ev
}

func TestBase_ConnectivityTriggersRefresh(t *testing.T) {
	connected := observable.New(false)
	var runs atomic.Int32
	b := NewBase(context.Background(), BaseOpts{
		Bus:       events.NewBus(events.PolicyLatest, 1, nil),
		Connected: connected,
		Refresh: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	})
	defer b.Close()

	if b.State().Get() != Loading {
		t.Errorf("%s - initial state = %v, want loading", baseTestPrefix, b.State().Get())
	}

	connected.Set(true)
	waitJob(t, b)
	if runs.Load() != 1 {
		t.Errorf("%s - runs = %d, want 1", baseTestPrefix, runs.Load())
	}
	if b.State().Get() != Loaded {
		t.Errorf("%s - state = %v, want loaded", baseTestPrefix, b.State().Get())
	}
}

func TestBase_RefreshFailureSetsState(t *testing.T) {
	b := NewBase(context.Background(), BaseOpts{
		Bus:     events.NewBus(events.PolicyLatest, 1, nil),
		Refresh: func(context.Context) error { return errors.New("helper unreachable") },
	})
	defer b.Close()

	if !b.RequestRefresh() {
		t.Fatalf("%s - RequestRefresh did not start a job", baseTestPrefix)
	}
	waitJob(t, b)
	if b.State().Get() != LoadFailed {
		t.Errorf("%s - state = %v, want load_failed", baseTestPrefix, b.State().Get())
	}
}

func TestBase_CloseDetachesConnectivity(t *testing.T) {
	connected := observable.New(false)
	var runs atomic.Int32
	b := NewBase(context.Background(), BaseOpts{
		Bus:       events.NewBus(events.PolicyLatest, 1, nil),
		Connected: connected,
		Refresh: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	})
	b.Close()

	connected.Set(true)
	if b.RequestRefresh() {
		t.Errorf("%s - closed Base started a refresh", baseTestPrefix)
	}
	if runs.Load() != 0 {
		t.Errorf("%s - runs = %d, want 0", baseTestPrefix, runs.Load())
	}
}

func TestBase_PublishHelpers(t *testing.T) {
	bus := events.NewBus(events.PolicyQueued, 8, nil)
	b := NewBase(context.Background(), BaseOpts{Bus: bus})
	defer b.Close()

	b.Navigate("modules")
	b.Back()
	b.WithView(func(context.Context) {})
	b.WithPermission("android.permission.CAMERA", func(bool) {})

	if ev := nextEvent(t, bus); ev != (events.Navigate{Target: "modules"}) {
		t.Errorf("%s - first event = %#v", baseTestPrefix, ev)
	}
	if _, ok := nextEvent(t, bus).(events.BackPress); !ok {
		t.Errorf("%s - second event is not BackPress", baseTestPrefix)
	}
	if va, ok := nextEvent(t, bus).(events.ViewAction); !ok || va.Scope == nil {
		t.Errorf("%s - third event is not a scoped ViewAction", baseTestPrefix)
	}
	if pr, ok := nextEvent(t, bus).(events.PermissionRequest); !ok || pr.Permission != "android.permission.CAMERA" {
		t.Errorf("%s - fourth event is not the permission request", baseTestPrefix)
	}
}

func TestBase_WithExternalRW(t *testing.T) {
	tests := []struct {
		name        string
		granted     bool
		wantRan     bool
		wantMessage bool
	}{
		{"granted", true, true, false},
		{"denied", false, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := events.NewBus(events.PolicyQueued, 4, nil)
			b := NewBase(context.Background(), BaseOpts{Bus: bus})
			defer b.Close()

			ran := false
			b.WithExternalRW(func() { ran = true })

			pr, ok := nextEvent(t, bus).(events.PermissionRequest)
			if !ok || pr.Permission != permission.PermissionWriteExternalStorage {
				t.Fatalf("%s - expected external storage request", baseTestPrefix)
			}
			pr.Callback(tt.granted)

			if ran != tt.wantRan {
				t.Errorf("%s - ran = %v, want %v", baseTestPrefix, ran, tt.wantRan)
			}
			if tt.wantMessage {
				if ev := nextEvent(t, bus); ev != (events.ShowMessage{Text: MsgExternalRWDenied}) {
					t.Errorf("%s - got %#v, want denial message", baseTestPrefix, ev)
				}
			}
		})
	}
}
