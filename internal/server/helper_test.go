package server

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/rootbridge/pkg/dispatcher"
)

const helperTestPrefix = "server:helper_test"

func TestHelper_PublishesChangeAfterExec(t *testing.T) {
	nc, cleanup := startTestServer(t, 14345)
	defer cleanup()

	cfg := testConfig()
	exec := &recordingExecutor{}
	h := NewHelper(cfg, nc, exec)
	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("%s - start: %v", helperTestPrefix, err)
	}
	defer h.Close()

	changes := make(chan struct{}, 4)
	sub, err := nc.Subscribe("rootbridge.changed", func(*comms.Msg) { changes <- struct{}{} })
	if err != nil {
		t.Fatalf("%s - subscribe: %v", helperTestPrefix, err)
	}
	defer sub.Unsubscribe()
	_ = nc.Flush()

	request := func(method string, params interface{}) *dispatcher.HelperResponse {
		raw, _ := json.Marshal(params)
		data, _ := json.Marshal(dispatcher.HelperRequest{ID: method, Method: method, Params: raw})
		msg, err := nc.Request(cfg.HelperSubjectOrDefault(), data, 5*time.Second)
		if err != nil {
			t.Fatalf("%s - request: %v", helperTestPrefix, err)
		}
		var resp dispatcher.HelperResponse
		if err := json.Unmarshal(msg.Data, &resp); err != nil {
			t.Fatalf("%s - decode: %v", helperTestPrefix, err)
		}
		return &resp
	}

	if resp := request(dispatcher.MethodStatus, nil); !resp.Ok {
		t.Fatalf("%s - status failed: %+v", helperTestPrefix, resp.Error)
	}
	select {
	case <-changes:
		t.Fatalf("%s - status must not announce a change", helperTestPrefix)
	case <-time.After(200 * time.Millisecond):
	}

	if resp := request(dispatcher.MethodExec, dispatcher.ExecParams{Command: "true"}); !resp.Ok {
		t.Fatalf("%s - exec failed: %+v", helperTestPrefix, resp.Error)
	}
	select {
	case <-changes:
	case <-time.After(5 * time.Second):
		t.Fatalf("%s - no change after exec", helperTestPrefix)
	}
}

func TestHelper_RejectsMalformedRequest(t *testing.T) {
	nc, cleanup := startTestServer(t, 14346)
	defer cleanup()

	cfg := testConfig()
	h := NewHelper(cfg, nc, &recordingExecutor{})
	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("%s - start: %v", helperTestPrefix, err)
	}
	defer h.Close()

	msg, err := nc.Request(cfg.HelperSubjectOrDefault(), []byte("{"), 5*time.Second)
	if err != nil {
		t.Fatalf("%s - request: %v", helperTestPrefix, err)
	}
	var resp dispatcher.HelperResponse
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		t.Fatalf("%s - decode: %v", helperTestPrefix, err)
	}
	if resp.Ok || resp.Error == nil || resp.Error.Code != "INVALID_REQUEST" {
		t.Errorf("%s - resp = %+v", helperTestPrefix, resp)
	}
}
