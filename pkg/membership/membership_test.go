package membership

import (
    "context"
    "errors"
    "fmt"
    "net"
    "net/http"
    "net/http/httptest"
    "os"
    "path/filepath"
    "sync"
    "testing"
    "time"

    "commitcast/pkg/peers"
)

type fakeTarget struct {
    set *peers.Set
    ips map[string]net.IP
}

func newTarget() *fakeTarget {
    return &fakeTarget{set: peers.NewSet(), ips: map[string]net.IP{
        "a": net.IPv4(10, 0, 0, 1), "b": net.IPv4(10, 0, 0, 2), "c": net.IPv4(10, 0, 0, 3), "me": net.IPv4(10, 0, 0, 9),
    }}
}

func (f *fakeTarget) AddressSet() *peers.Set { return f.set }
func (f *fakeTarget) Port() int              { return 5636 }
func (f *fakeTarget) Self() peers.Self       { return peers.Self{Port: 5636, Names: []string{"me", "localhost"}} }

func (f *fakeTarget) HostFactory() func(peers.Target) *peers.HostAddress {
    return func(t peers.Target) *peers.HostAddress { return peers.NewHostAddress(t.Host, t.IP, t.Port, peers.HostOptions{}) }
}

func (f *fakeTarget) Resolver() peers.Resolver {
    return func(_ context.Context, host string) (net.IP, error) {
        if ip, ok := f.ips[host]; ok { return ip, nil }
        return nil, fmt.Errorf("unknown host %s", host)
    }
}

type listSource struct {
    mu      sync.Mutex
    entries []string
    err     error
}

func (s *listSource) set(entries ...string) { s.mu.Lock(); s.entries, s.err = entries, nil; s.mu.Unlock() }
func (s *listSource) fail(err error)         { s.mu.Lock(); s.err = err; s.mu.Unlock() }

func (s *listSource) Fetch(context.Context) ([]string, error) {
    s.mu.Lock(); defer s.mu.Unlock()
    if s.err != nil { return nil, s.err }
    return append([]string(nil), s.entries...), nil
}

func (s *listSource) String() string { return "test" }

func key(ip string) peers.Key { return peers.Key{IP: ip, Port: 5636} }

func TestReconcileIdempotent(t *testing.T) {
    tg := newTarget()
    u := New(tg, Static{"a", "b", "me"}, time.Minute)
    if err := u.Reconcile(context.Background()); err != nil { t.Fatalf("reconcile: %v", err) }
    before := tg.set.Snapshot()
    if len(before) != 2 { t.Fatalf("expected 2 peers, got %d", len(before)) }
    if err := u.Reconcile(context.Background()); err != nil { t.Fatalf("reconcile: %v", err) }
    after := tg.set.Snapshot()
    for i := range before {
        if before[i] != after[i] { t.Fatalf("peer %s replaced on a no-op update", before[i]) }
    }
    if u.State() != StateIdle { t.Fatalf("state %s after reconcile", u.State()) }
}

func TestReconcileAddRemove(t *testing.T) {
    tg := newTarget()
    src := &listSource{}
    src.set("a", "b")
    u := New(tg, src, time.Minute)
    if err := u.Reconcile(context.Background()); err != nil { t.Fatalf("reconcile: %v", err) }
    a, b := tg.set.Get(key("10.0.0.1")), tg.set.Get(key("10.0.0.2"))

    src.set("b", "c")
    if err := u.Reconcile(context.Background()); err != nil { t.Fatalf("reconcile: %v", err) }
    if tg.set.Get(key("10.0.0.1")) != nil { t.Fatalf("a still present") }
    if !a.Pool().Closed() { t.Fatalf("a's pool not closed") }
    if tg.set.Get(key("10.0.0.2")) != b { t.Fatalf("b replaced") }
    if b.Pool().Closed() { t.Fatalf("b's pool closed") }
    if tg.set.Get(key("10.0.0.3")) == nil { t.Fatalf("c not added") }
}

func TestReconcileErrorLeavesSetUntouched(t *testing.T) {
    tg := newTarget()
    src := &listSource{}
    src.set("a", "b")
    u := New(tg, src, time.Minute)
    if err := u.Reconcile(context.Background()); err != nil { t.Fatalf("reconcile: %v", err) }

    src.fail(errors.New("registry down"))
    if err := u.Reconcile(context.Background()); err == nil { t.Fatalf("expected fetch error") }
    if tg.set.Len() != 2 { t.Fatalf("set changed after fetch error") }
    if u.Status().Error == "" { t.Fatalf("error not recorded in status") }

    src.set("c", "nowhere")
    if err := u.Reconcile(context.Background()); err == nil { t.Fatalf("expected resolution error") }
    if tg.set.Len() != 2 || tg.set.Get(key("10.0.0.3")) != nil { t.Fatalf("partial update applied") }
}

func TestRunPicksUpChanges(t *testing.T) {
    tg := newTarget()
    src := &listSource{}
    src.set("a")
    u := New(tg, src, 10*time.Millisecond)
    ctx, cancel := context.WithCancel(context.Background())
    done := make(chan struct{})
    go func() { u.Run(ctx); close(done) }()

    src.set("a", "c")
    deadline := time.Now().Add(2 * time.Second)
    for tg.set.Len() != 2 {
        if time.Now().After(deadline) { t.Fatalf("update not applied, peers=%d", tg.set.Len()) }
        time.Sleep(5 * time.Millisecond)
    }
    cancel()
    select {
    case <-done:
    case <-time.After(time.Second):
        t.Fatalf("Run did not stop")
    }
}

func TestFileAndHTTPSources(t *testing.T) {
    path := filepath.Join(t.TempDir(), "peers")
    if err := os.WriteFile(path, []byte("a:5637\nb; c\n"), 0o644); err != nil { t.Fatalf("write: %v", err) }
    got, err := File{Path: path}.Fetch(context.Background())
    if err != nil || len(got) != 3 || got[0] != "a:5637" { t.Fatalf("file source: %v %v", got, err) }

    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        if r.URL.Path == "/missing" { http.NotFound(w, r); return }
        fmt.Fprint(w, "a;b")
    }))
    defer srv.Close()
    got, err = HTTP{URL: srv.URL + "/peers"}.Fetch(context.Background())
    if err != nil || len(got) != 2 { t.Fatalf("http source: %v %v", got, err) }
    if _, err := (HTTP{URL: srv.URL + "/missing"}).Fetch(context.Background()); err == nil { t.Fatalf("expected status error") }
}

func TestParse(t *testing.T) {
    if s, err := Parse(""); err != nil || s != nil { t.Fatalf("empty: %v %v", s, err) }
    s, err := Parse("static:a;b:1")
    if err != nil { t.Fatalf("static: %v", err) }
    if st, ok := s.(Static); !ok || len(st) != 2 { t.Fatalf("unexpected static source %#v", s) }
    if s, _ := Parse("file:/tmp/x"); s.(File).Path != "/tmp/x" { t.Fatalf("file path") }
    if s, _ := Parse("https://reg/peers"); s.(HTTP).URL != "https://reg/peers" { t.Fatalf("http url") }
    for _, bad := range []string{"file:", "zk://x", "memberlist"} {
        if _, err := Parse(bad); err == nil { t.Fatalf("%q: expected error", bad) }
    }
}

func TestMemberlistSource(t *testing.T) {
    a, err := JoinMemberlist(MemberlistConfig{Name: "node-a", BindAddr: "127.0.0.1", BroadcastPort: 7001})
    if err != nil { t.Fatalf("node-a: %v", err) }
    defer a.Close()
    b, err := JoinMemberlist(MemberlistConfig{Name: "node-b", BindAddr: "127.0.0.1", BroadcastPort: 7002, Seeds: []string{a.Addr()}})
    if err != nil { t.Fatalf("node-b: %v", err) }
    defer b.Close()

    deadline := time.Now().Add(5 * time.Second)
    for {
        got, _ := a.Fetch(context.Background())
        if len(got) == 1 && got[0] == "127.0.0.1:7002" { break }
        if time.Now().After(deadline) { t.Fatalf("node-a sees %v", got) }
        time.Sleep(20 * time.Millisecond)
    }
    got, _ := b.Fetch(context.Background())
    if len(got) != 1 || got[0] != "127.0.0.1:7001" { t.Fatalf("node-b sees %v", got) }
}
