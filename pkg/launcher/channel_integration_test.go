package launcher

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	commsserver "github.com/nats-io/nats-server/v2/server"
	comms "github.com/nats-io/nats.go"

	"github.com/morezero/rootbridge/pkg/correlation"
	"github.com/morezero/rootbridge/pkg/dispatcher"
)

const channelTestPrefix = "launcher:channel_integration_test"

func startTestServer(t *testing.T, port int) (*comms.Conn, func()) {
	t.Helper()

	ns, err := commsserver.NewServer(&commsserver.Options{
		Host:   "127.0.0.1",
		Port:   port,
		NoLog:  true,
		NoSigs: true,
	})
	if err != nil {
		t.Fatalf("%s - failed to create server: %v", channelTestPrefix, err)
	}

	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		t.Fatalf("%s - server failed to start", channelTestPrefix)
	}

	nc, err := comms.Connect(ns.ClientURL(), comms.Timeout(5*time.Second))
	if err != nil {
		ns.Shutdown()
		t.Fatalf("%s - failed to connect: %v", channelTestPrefix, err)
	}

	return nc, func() {
		nc.Close()
		ns.Shutdown()
		ns.WaitForShutdown()
	}
}

type scriptedExecutor struct {
	commands chan string
	output   string
}

func (s *scriptedExecutor) Run(_ context.Context, command string) (dispatcher.ExecResult, error) {
	s.commands <- command
	return dispatcher.ExecResult{Stdout: s.output}, nil
}

// serveHelper answers helper requests on subject with a dispatcher.
func serveHelper(t *testing.T, nc *comms.Conn, subject string, exec dispatcher.Executor) {
	t.Helper()
	disp := dispatcher.NewDispatcher(exec, "sh")
	sub, err := nc.Subscribe(subject, func(msg *comms.Msg) {
		var req dispatcher.HelperRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			t.Errorf("%s - bad request: %v", channelTestPrefix, err)
			return
		}
		data, _ := json.Marshal(disp.Dispatch(context.Background(), &req))
		_ = msg.Respond(data)
	})
	if err != nil {
		t.Fatalf("%s - subscribe: %v", channelTestPrefix, err)
	}
	t.Cleanup(func() { _ = sub.Unsubscribe() })
	_ = nc.Flush()
}

func TestCommsChannel_StartRoundTrip(t *testing.T) {
	nc, cleanup := startTestServer(t, 14334)
	defer cleanup()

	exec := &scriptedExecutor{commands: make(chan string, 4), output: "Starting: Intent"}
	serveHelper(t, nc, "rootbridge.helper.v1.u0", exec)

	l := New(Options{
		Channel:  NewCommsChannel(nc, &CommsChannelOpts{Timeout: 5 * time.Second}),
		Registry: correlation.NewRegistry(correlation.Options{}),
	})

	if err := l.Start(context.Background(), descriptor()); err != nil {
		t.Fatalf("%s - Start: %v", channelTestPrefix, err)
	}
	select {
	case cmd := <-exec.commands:
		if !strings.HasPrefix(cmd, "am start --user 0 ") {
			t.Errorf("%s - helper ran %q", channelTestPrefix, cmd)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("%s - helper never ran the command", channelTestPrefix)
	}
}

func TestCommsChannel_ActivityNotFound(t *testing.T) {
	nc, cleanup := startTestServer(t, 14335)
	defer cleanup()

	exec := &scriptedExecutor{commands: make(chan string, 4), output: "Error: Activity class {com.a/com.a.Main} does not exist."}
	serveHelper(t, nc, "custom.helper", exec)

	reg := correlation.NewRegistry(correlation.Options{})
	pub := &recordingPublisher{}
	l := New(Options{
		Channel:   NewCommsChannel(nc, &CommsChannelOpts{Subject: "custom.helper", UserID: 10}),
		Registry:  reg,
		Publisher: pub,
		UserID:    10,
	})

	_, err := l.StartForResult(context.Background(), descriptor(), func(correlation.Outcome) {})
	if !errors.Is(err, ErrActivityNotFound) {
		t.Fatalf("%s - err = %v, want ErrActivityNotFound", channelTestPrefix, err)
	}
	if reg.Pending() != 0 || len(pub.events) != 1 {
		t.Errorf("%s - pending=%d events=%d", channelTestPrefix, reg.Pending(), len(pub.events))
	}
}

func TestCommsChannel_NoResponders(t *testing.T) {
	nc, cleanup := startTestServer(t, 14336)
	defer cleanup()

	ch := NewCommsChannel(nc, &CommsChannelOpts{Subject: "nobody.home", Timeout: time.Second})
	if _, err := ch.Send(context.Background(), dispatcher.MethodStatus, nil); err == nil {
		t.Errorf("%s - expected error without a helper", channelTestPrefix)
	}
}
