// Package membership keeps a transport's peer set in line with an external
// list of peers that is polled periodically.
package membership

import (
    "context"
    "errors"
    "sync"
    "sync/atomic"
    "time"

    "go.uber.org/zap"

    "commitcast/pkg/peers"
)

// DefaultRefreshInterval is the polling period used when none is configured.
const DefaultRefreshInterval = 30 * time.Second

var ErrReconciling = errors.New("reconcile already in progress")

type State int32

const (
    StateIdle State = iota
    StateReconciling
)

func (s State) String() string {
    if s == StateReconciling { return "reconciling" }
    return "idle"
}

// Target is the side of a transport the updater needs.
type Target interface {
    AddressSet() *peers.Set
    HostFactory() func(peers.Target) *peers.HostAddress
    Port() int
    Self() peers.Self
    Resolver() peers.Resolver
}

// Updater reconciles a Target's peer set against a Source.
type Updater struct {
    target   Target
    src      Source
    interval time.Duration
    state    atomic.Int32

    mu      sync.Mutex
    lastRun time.Time
    lastErr error
}

func New(target Target, src Source, interval time.Duration) *Updater {
    if interval <= 0 { interval = DefaultRefreshInterval }
    return &Updater{target: target, src: src, interval: interval}
}

func (u *Updater) State() State { return State(u.state.Load()) }

// Reconcile runs one update. Every entry is resolved before the set is
// touched; any fetch or resolution error abandons the update and leaves the
// set as it was. Peers already present keep their pool and availability.
func (u *Updater) Reconcile(ctx context.Context) error {
    if !u.state.CompareAndSwap(int32(StateIdle), int32(StateReconciling)) { return ErrReconciling }
    defer u.state.Store(int32(StateIdle))

    err := u.reconcile(ctx)
    u.mu.Lock()
    u.lastRun, u.lastErr = time.Now(), err
    u.mu.Unlock()
    if err != nil {
        zap.L().Warn("membership update abandoned", zap.Stringer("source", u.src), zap.Error(err))
    }
    return err
}

func (u *Updater) reconcile(ctx context.Context) error {
    entries, err := u.src.Fetch(ctx)
    if err != nil { return err }
    targets, err := peers.Resolve(ctx, entries, u.target.Port(), u.target.Self(), u.target.Resolver())
    if err != nil { return err }
    added, removed := u.target.AddressSet().Replace(targets, u.target.HostFactory())
    if len(added)+len(removed) > 0 {
        zap.L().Info("membership updated", zap.Stringer("source", u.src), zap.Strings("added", names(added)),
            zap.Strings("removed", names(removed)), zap.Int("peers", u.target.AddressSet().Len()))
    }
    return nil
}

func names(hs []*peers.HostAddress) []string {
    out := make([]string, 0, len(hs))
    for _, h := range hs { out = append(out, h.String()) }
    return out
}

// Run reconciles immediately and then every interval until ctx is done.
func (u *Updater) Run(ctx context.Context) {
    _ = u.Reconcile(ctx)
    tk := time.NewTicker(u.interval)
    defer tk.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-tk.C:
            if err := u.Reconcile(ctx); errors.Is(err, ErrReconciling) {
                zap.L().Debug("membership tick skipped", zap.Error(err))
            }
        }
    }
}

// Status summarises the last update.
type Status struct {
    Source  string    `json:"source"`
    State   string    `json:"state"`
    LastRun time.Time `json:"last_run,omitempty"`
    Error   string    `json:"error,omitempty"`
}

func (u *Updater) Status() Status {
    u.mu.Lock(); defer u.mu.Unlock()
    st := Status{Source: u.src.String(), State: u.State().String(), LastRun: u.lastRun}
    if u.lastErr != nil { st.Error = u.lastErr.Error() }
    return st
}
