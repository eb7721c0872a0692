package config

import (
    "os"
    "path/filepath"
    "testing"
    "time"
)

func TestDefaults(t *testing.T) {
    t.Setenv("COMMITCAST_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
    if _, err := Load(""); err == nil { t.Fatalf("expected error for a missing explicit config file") }

    cfg := Default()
    if err := cfg.validate(); err != nil { t.Fatalf("default config invalid: %v", err) }
    o := cfg.Broadcast.TransportOptions()
    if o.Port != 5636 || o.Workers != 2 || o.PoolMaxTotal != 2 || o.PoolMaxIdle != 2 { t.Fatalf("unexpected defaults %+v", o) }
    if o.RecoveryInterval != 15*time.Second { t.Fatalf("recovery=%s", o.RecoveryInterval) }
    if cfg.Membership.RefreshInterval() != 30*time.Second { t.Fatalf("refresh=%s", cfg.Membership.RefreshInterval()) }
}

func TestLoadFileAndEnv(t *testing.T) {
    path := filepath.Join(t.TempDir(), "commitcast.yaml")
    yaml := `
broadcast:
  port: 6000
  peers: "node-b;node-c:6001"
  workers: 0
  format: JSON
membership:
  source: memberlist
  memberlist:
    seeds: ["10.0.0.1:7946"]
log:
  level: debug
`
    if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil { t.Fatalf("write: %v", err) }
    t.Setenv("COMMITCAST_BROADCAST_RECOVERY_INTERVAL_MS", "500")

    cfg, err := Load(path)
    if err != nil { t.Fatalf("load: %v", err) }
    b := cfg.Broadcast
    if b.Port != 6000 || b.Peers != "node-b;node-c:6001" || b.Workers != 0 || b.Format != "json" { t.Fatalf("unexpected broadcast %+v", b) }
    if b.RecoveryIntervalMS != 500 { t.Fatalf("env override not applied: %d", b.RecoveryIntervalMS) }
    if b.PoolMaxTotal != 2 || b.MaxInbound != 256 { t.Fatalf("defaults lost: %+v", b) }
    if !cfg.Membership.Gossip() || len(cfg.Membership.Memberlist.Seeds) != 1 { t.Fatalf("unexpected membership %+v", cfg.Membership) }
}

func TestValidateRejects(t *testing.T) {
    bad := []func(*Config){
        func(c *Config) { c.Log.Level = "loud" },
        func(c *Config) { c.Broadcast.Port = 70000 },
        func(c *Config) { c.Broadcast.Workers = -1 },
        func(c *Config) { c.Broadcast.PoolMaxTotal = -1 },
        func(c *Config) { c.Broadcast.Format = "xml" },
        func(c *Config) { c.Membership.RefreshIntervalMS = 0 },
    }
    for i, mut := range bad {
        c := Default()
        mut(c)
        if err := c.validate(); err == nil { t.Fatalf("case %d: expected error", i) }
    }
}
