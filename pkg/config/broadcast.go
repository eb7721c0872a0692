package config

import (
    "fmt"
    "strings"
    "time"

    "github.com/spf13/viper"

    "commitcast/pkg/protocol"
    "commitcast/pkg/transport"
)

// BroadcastConfig describes the local transport and its static peers.
// Example YAML:
// broadcast:
//   port: 5636
//   peers: "node-b;node-c:5637"
//   workers: 2
//   format: cbor
type BroadcastConfig struct {
    Port               int    `mapstructure:"port"`
    Peers              string `mapstructure:"peers"`
    PoolMaxTotal       int    `mapstructure:"pool_max_total"`
    PoolMaxIdle        int    `mapstructure:"pool_max_idle"`
    RecoveryIntervalMS int    `mapstructure:"recovery_interval_ms"`
    // Workers 0 sends synchronously from the caller
    Workers       int    `mapstructure:"workers"`
    MaxInbound    int    `mapstructure:"max_inbound"`
    Format        string `mapstructure:"format"`
    Compress      bool   `mapstructure:"compress"`
    DialTimeoutMS int    `mapstructure:"dial_timeout_ms"`
}

func defaultBroadcast() BroadcastConfig {
    return BroadcastConfig{
        Port:               transport.DefaultPort,
        PoolMaxTotal:       2,
        PoolMaxIdle:        2,
        RecoveryIntervalMS: 15000,
        Workers:            transport.DefaultWorkers,
        MaxInbound:         256,
        Format:             "cbor",
        DialTimeoutMS:      10000,
    }
}

func (b BroadcastConfig) setDefaults(v *viper.Viper) {
    v.SetDefault("broadcast.port", b.Port)
    v.SetDefault("broadcast.peers", b.Peers)
    v.SetDefault("broadcast.pool_max_total", b.PoolMaxTotal)
    v.SetDefault("broadcast.pool_max_idle", b.PoolMaxIdle)
    v.SetDefault("broadcast.recovery_interval_ms", b.RecoveryIntervalMS)
    v.SetDefault("broadcast.workers", b.Workers)
    v.SetDefault("broadcast.max_inbound", b.MaxInbound)
    v.SetDefault("broadcast.format", b.Format)
    v.SetDefault("broadcast.compress", b.Compress)
    v.SetDefault("broadcast.dial_timeout_ms", b.DialTimeoutMS)
}

func (b *BroadcastConfig) validate() error {
    if b.Port < 0 || b.Port > 65535 { return fmt.Errorf("invalid broadcast.port: %d", b.Port) }
    if b.Workers < 0 { return fmt.Errorf("invalid broadcast.workers: %d", b.Workers) }
    if b.PoolMaxTotal < 0 { return fmt.Errorf("invalid broadcast.pool_max_total: %d", b.PoolMaxTotal) }
    if b.PoolMaxIdle < 0 { return fmt.Errorf("invalid broadcast.pool_max_idle: %d", b.PoolMaxIdle) }
    if b.RecoveryIntervalMS < 0 { return fmt.Errorf("invalid broadcast.recovery_interval_ms: %d", b.RecoveryIntervalMS) }
    b.Format = strings.ToLower(strings.TrimSpace(b.Format))
    if _, err := protocol.ParseFormat(b.Format); err != nil { return fmt.Errorf("invalid broadcast.format: %w", err) }
    return nil
}

// TransportOptions converts the section to transport options.
func (b BroadcastConfig) TransportOptions() transport.Options {
    return transport.Options{
        Port:             b.Port,
        Peers:            b.Peers,
        PoolMaxTotal:     b.PoolMaxTotal,
        PoolMaxIdle:      b.PoolMaxIdle,
        RecoveryInterval: time.Duration(b.RecoveryIntervalMS) * time.Millisecond,
        Workers:          b.Workers,
        Format:           b.Format,
        Compress:         b.Compress,
        DialTimeout:      time.Duration(b.DialTimeoutMS) * time.Millisecond,
    }
}
