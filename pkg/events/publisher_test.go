package events

import (
	"context"
	"testing"
)

func TestDiscard(t *testing.T) {
	if err := Discard.PublishEvent(context.Background(), ShowMessage{Text: "hi"}); err != nil {
		t.Errorf("events:publisher_test - expected no error, got %v", err)
	}
}

func TestPublisherFunc(t *testing.T) {
	var captured ViewEvent

	pub := PublisherFunc(func(_ context.Context, ev ViewEvent) error {
		captured = ev
		return nil
	})

	if err := pub.PublishEvent(context.Background(), Navigate{Target: "modules"}); err != nil {
		t.Errorf("events:publisher_test - expected no error, got %v", err)
	}
	nav, ok := captured.(Navigate)
	if !ok {
		t.Fatalf("events:publisher_test - expected Navigate, got %T", captured)
	}
	if nav.Target != "modules" {
		t.Errorf("events:publisher_test - expected target modules, got %s", nav.Target)
	}
}

func TestToEnvelope(t *testing.T) {
	tests := []struct {
		name     string
		ev       ViewEvent
		wantType string
		wantOK   bool
	}{
		{"navigate", Navigate{Target: "home"}, TypeNavigate, true},
		{"message", ShowMessage{Text: "done"}, TypeShowMessage, true},
		{"back", BackPress{}, TypeBackPress, true},
		{"ui action", UIAction{Name: "reboot-menu"}, TypeUIAction, true},
		{"view action", ViewAction{}, "", false},
		{"permission", PermissionRequest{Permission: "p"}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, ok := ToEnvelope(tt.ev)
			if ok != tt.wantOK {
				t.Fatalf("events:publisher_test - ToEnvelope ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && env.Type != tt.wantType {
				t.Errorf("events:publisher_test - ToEnvelope type = %q, want %q", env.Type, tt.wantType)
			}
		})
	}
}
