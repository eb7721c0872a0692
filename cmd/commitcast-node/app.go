package main

import (
    "context"
    "fmt"
    "os"

    "go.uber.org/zap"
    "golang.org/x/sync/errgroup"

    "commitcast/pkg/config"
    "commitcast/pkg/core/netstack"
    "commitcast/pkg/event"
    "commitcast/pkg/gateway/status"
    "commitcast/pkg/membership"
    "commitcast/pkg/observability"
    "commitcast/pkg/transport"
)

func setup(opts Options) (*config.Config, *zap.Logger, error) {
    cfg, err := config.Load(opts.ConfigPath)
    if err != nil { return nil, nil, fmt.Errorf("failed to load config: %w", err) }
    logger, err := observability.SetupLogger(cfg.Log, zap.String("app", cfg.AppName))
    if err != nil { return nil, nil, fmt.Errorf("failed to setup logger: %w", err) }
    return cfg, logger, nil
}

// logListener records received notifications in the log.
func logListener(e event.Event) {
    zap.L().Info("commit notification received", zap.String("kind", string(e.Kind)), zap.String("origin", e.Origin),
        zap.Int("added", len(e.Added)), zap.Int("updated", len(e.Updated)), zap.Int("deleted", len(e.Deleted)),
        zap.Strings("types", append(append(append([]string(nil), e.AddedTypes...), e.UpdatedTypes...), e.DeletedTypes...)))
}

// runNode is the main entry point of the run command.
func runNode(ctx context.Context, opts Options) error {
    cfg, logger, err := setup(opts)
    if err != nil { return err }
    defer func() { _ = logger.Sync() }()

    zap.L().Info("commitcast-node starting", zap.String("version", version))
    zap.L().Debug("effective configuration", zap.Any("config", cfg))

    reg, err := netstack.NewRegistry(netstack.WithMaxInbound(cfg.Broadcast.MaxInbound))
    if err != nil { return err }
    defer reg.Close()

    tr := transport.New(event.ListenerFunc(logListener), transport.WithRegistry(reg))
    if err := tr.Configure(cfg.Broadcast.TransportOptions()); err != nil { return err }
    if err := tr.Start(); err != nil { return err }
    defer tr.Close()

    src, closeSrc, err := membershipSource(cfg, tr.Port())
    if err != nil { return err }
    defer closeSrc()

    g, gctx := errgroup.WithContext(ctx)
    var upd *membership.Updater
    if src != nil {
        upd = membership.New(tr, src, cfg.Membership.RefreshInterval())
        g.Go(func() error { upd.Run(gctx); return nil })
    }
    if cfg.Status.Listen != "" {
        g.Go(func() error { return status.Serve(gctx, cfg.Status.Listen, status.NewRouter(tr, upd)) })
    }

    zap.L().Info("node is running; press Ctrl+C to exit", zap.Int("port", tr.Port()), zap.Uint64("sender_id", tr.ID()))
    <-gctx.Done()
    err = g.Wait()
    zap.L().Info("commitcast-node stopping")
    return err
}

func membershipSource(cfg *config.Config, port int) (membership.Source, func(), error) {
    noop := func() {}
    if cfg.Membership.Gossip() {
        mc := cfg.Membership.Memberlist
        name := mc.Name
        if name == "" {
            hn, _ := os.Hostname()
            name = fmt.Sprintf("%s-%d", hn, port)
        }
        ml, err := membership.JoinMemberlist(membership.MemberlistConfig{Name: name, BindAddr: mc.BindAddr, BindPort: mc.BindPort, Seeds: mc.Seeds, BroadcastPort: port})
        if err != nil { return nil, noop, err }
        return ml, func() { _ = ml.Close() }, nil
    }
    src, err := membership.Parse(cfg.Membership.Source)
    if err != nil { return nil, noop, err }
    return src, noop, nil
}

// sendOnce broadcasts ev synchronously and returns the number of peers it was sent to.
func sendOnce(opts Options, so SendOptions, ev event.Event) (int, error) {
    cfg, logger, err := setup(opts)
    if err != nil { return 0, err }
    defer func() { _ = logger.Sync() }()

    reg, err := netstack.NewRegistry(netstack.WithMaxInbound(cfg.Broadcast.MaxInbound))
    if err != nil { return 0, err }
    defer reg.Close()

    to := cfg.Broadcast.TransportOptions()
    to.Port, to.Workers = so.Port, 0
    if so.Peers != "" { to.Peers = so.Peers }
    if ev.Origin == "" { ev.Origin = cfg.AppName }

    tr := transport.New(nil, transport.WithRegistry(reg))
    if err := tr.Configure(to); err != nil { return 0, err }
    if err := tr.Start(); err != nil { return 0, err }
    defer tr.Close()
    tr.Broadcast(ev)

    n := 0
    for _, st := range tr.Peers() {
        if st.Sent > 0 { n++ }
    }
    if n == 0 && len(tr.Peers()) > 0 { return 0, fmt.Errorf("no peer reachable") }
    return n, nil
}
