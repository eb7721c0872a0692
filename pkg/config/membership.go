package config

import (
    "fmt"
    "strings"
    "time"

    "github.com/spf13/viper"
)

// MembershipConfig selects where the peer list is refreshed from.
// Source is empty (static peers only), "static:...", "file:...", an http(s)
// URL, or "memberlist" for the gossip cluster described by Memberlist.
type MembershipConfig struct {
    Source            string           `mapstructure:"source"`
    RefreshIntervalMS int              `mapstructure:"refresh_interval_ms"`
    Memberlist        MemberlistConfig `mapstructure:"memberlist"`
}

// MemberlistConfig configures the gossip member started for "memberlist".
type MemberlistConfig struct {
    Name     string   `mapstructure:"name"`
    BindAddr string   `mapstructure:"bind_addr"`
    BindPort int      `mapstructure:"bind_port"`
    Seeds    []string `mapstructure:"seeds"`
}

func defaultMembership() MembershipConfig {
    return MembershipConfig{
        RefreshIntervalMS: 30000,
        Memberlist:        MemberlistConfig{BindAddr: "0.0.0.0", BindPort: 7946},
    }
}

func (m MembershipConfig) setDefaults(v *viper.Viper) {
    v.SetDefault("membership.source", m.Source)
    v.SetDefault("membership.refresh_interval_ms", m.RefreshIntervalMS)
    v.SetDefault("membership.memberlist.name", m.Memberlist.Name)
    v.SetDefault("membership.memberlist.bind_addr", m.Memberlist.BindAddr)
    v.SetDefault("membership.memberlist.bind_port", m.Memberlist.BindPort)
    v.SetDefault("membership.memberlist.seeds", m.Memberlist.Seeds)
}

func (m *MembershipConfig) validate() error {
    m.Source = strings.TrimSpace(m.Source)
    if m.RefreshIntervalMS <= 0 { return fmt.Errorf("invalid membership.refresh_interval_ms: %d", m.RefreshIntervalMS) }
    if m.Memberlist.BindPort < 0 || m.Memberlist.BindPort > 65535 {
        return fmt.Errorf("invalid membership.memberlist.bind_port: %d", m.Memberlist.BindPort)
    }
    return nil
}

// RefreshInterval returns the polling period.
func (m MembershipConfig) RefreshInterval() time.Duration {
    return time.Duration(m.RefreshIntervalMS) * time.Millisecond
}

// Gossip reports whether the gossip cluster is the membership source.
func (m MembershipConfig) Gossip() bool { return strings.EqualFold(m.Source, "memberlist") }
