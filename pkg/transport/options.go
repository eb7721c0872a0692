package transport

import (
    "fmt"
    "time"

    "commitcast/pkg/core/netstack"
    "commitcast/pkg/peers"
    "commitcast/pkg/protocol"
)

const (
    DefaultPort    = 5636
    DefaultWorkers = 2
)

// Options configure a Transport. Zero pool sizes and recovery interval fall
// back to the peers package defaults. Port 0 binds an ephemeral port, in
// which case every peer entry must name its port.
type Options struct {
    Port int
    // Peers is a ';' separated list of host[:port] entries.
    Peers            string
    PoolMaxTotal     int
    PoolMaxIdle      int
    RecoveryInterval time.Duration
    // Workers is the number of background send goroutines. 0 sends
    // synchronously from Broadcast.
    Workers     int
    Format      string
    Compress    bool
    DialTimeout time.Duration
}

// DefaultOptions returns the options used when Configure is never called.
func DefaultOptions() Options {
    return Options{
        Port:             DefaultPort,
        PoolMaxTotal:     peers.DefaultPoolMaxTotal,
        PoolMaxIdle:      peers.DefaultPoolMaxIdle,
        RecoveryInterval: peers.DefaultRecoveryInterval,
        Workers:          DefaultWorkers,
    }
}

func (o Options) validate() error {
    if o.Port < 0 || o.Port > 65535 { return fmt.Errorf("invalid port %d", o.Port) }
    if o.Workers < 0 { return fmt.Errorf("workers must be >= 0, got %d", o.Workers) }
    if o.PoolMaxTotal < 0 { return fmt.Errorf("pool max total must be >= 0, got %d", o.PoolMaxTotal) }
    if o.PoolMaxIdle < 0 { return fmt.Errorf("pool max idle must be >= 0, got %d", o.PoolMaxIdle) }
    if o.RecoveryInterval < 0 { return fmt.Errorf("recovery interval must be >= 0") }
    if _, err := protocol.ParseFormat(o.Format); err != nil { return err }
    return nil
}

// Option customises a Transport at construction.
type Option func(*Transport)

// WithRegistry attaches the transport to r instead of netstack.Default().
func WithRegistry(r *netstack.Registry) Option { return func(t *Transport) { t.reg = r } }

// WithResolver replaces the host name resolver used by Configure.
func WithResolver(r peers.Resolver) Option { return func(t *Transport) { t.resolve = r } }

// WithClock replaces the clock peers use for their recovery interval.
func WithClock(now func() time.Time) Option { return func(t *Transport) { t.now = now } }
