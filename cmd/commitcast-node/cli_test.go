package main

import (
    "bytes"
    "context"
    "errors"
    "fmt"
    "net"
    "os"
    "path/filepath"
    "strings"
    "testing"
    "time"

    "commitcast/pkg/core/netstack"
    "commitcast/pkg/event"
    "commitcast/pkg/transport"
)

func TestVersionCommand(t *testing.T) {
    var out bytes.Buffer
    cmd := newRootCmd(&out)
    cmd.SetArgs([]string{"version"})
    if err := cmd.Execute(); err != nil { t.Fatalf("execute: %v", err) }
    if strings.TrimSpace(out.String()) != version { t.Fatalf("unexpected output %q", out.String()) }
}

func TestSendOptionsEvent(t *testing.T) {
    ev, err := SendOptions{Kind: "EXTENTS", Types: []string{"Order"}}.Event()
    if err != nil || ev.Kind != event.KindExtents || ev.UpdatedTypes[0] != "Order" { t.Fatalf("extents: %+v %v", ev, err) }
    if _, err := (SendOptions{Kind: "oids"}).Event(); !errors.Is(err, event.ErrInvalid) { t.Fatalf("expected empty event error, got %v", err) }
    if _, err := (SendOptions{Kind: "oids", Added: []string{"1"}}).Event(); !errors.Is(err, event.ErrInvalid) { t.Fatalf("expected kind error, got %v", err) }
}

func TestSendCommand(t *testing.T) {
    reg, err := netstack.NewRegistry()
    if err != nil { t.Fatalf("registry: %v", err) }
    defer reg.Close()
    got := make(chan event.Event, 1)
    rx := transport.New(event.ListenerFunc(func(e event.Event) { got <- e }), transport.WithRegistry(reg))
    if err := rx.Configure(transport.Options{Workers: 1}); err != nil { t.Fatalf("configure: %v", err) }
    if err := rx.Start(); err != nil { t.Fatalf("start: %v", err) }
    defer rx.Close()

    cfgPath := filepath.Join(t.TempDir(), "commitcast.yaml")
    if err := os.WriteFile(cfgPath, []byte("app_name: cli-test\nlog:\n  level: error\n  outputs: [stderr]\n"), 0o644); err != nil { t.Fatalf("write: %v", err) }

    var out bytes.Buffer
    cmd := newRootCmd(&out)
    peer := net.JoinHostPort("127.0.0.1", fmt.Sprint(rx.Port()))
    cmd.SetArgs([]string{"--config", cfgPath, "send", "--peers", peer, "--updated", "Order:1,Order:2"})
    if err := cmd.ExecuteContext(context.Background()); err != nil { t.Fatalf("send: %v", err) }
    if !strings.Contains(out.String(), "sent to 1 peer(s)") { t.Fatalf("unexpected output %q", out.String()) }

    select {
    case e := <-got:
        if e.Origin != "cli-test" || len(e.Updated) != 2 { t.Fatalf("unexpected event %+v", e) }
    case <-time.After(3 * time.Second):
        t.Fatalf("event not received")
    }
}
