package membership

import (
    "context"
    "fmt"
    "net"
    "strconv"
    "time"

    "github.com/hashicorp/memberlist"
    "go.uber.org/zap"
)

// MemberlistConfig describes the gossip cluster used to discover peers.
type MemberlistConfig struct {
    Name     string
    BindAddr string
    BindPort int
    Seeds    []string
    // BroadcastPort is advertised to other members as this node's broadcast port.
    BroadcastPort int
}

// Memberlist lists the live members of a gossip cluster. Each member's
// metadata carries its broadcast port.
type Memberlist struct {
    ml *memberlist.Memberlist
}

// JoinMemberlist starts a gossip member and joins the seeds, if any.
func JoinMemberlist(cfg MemberlistConfig) (*Memberlist, error) {
    mc := memberlist.DefaultLANConfig()
    if cfg.Name != "" { mc.Name = cfg.Name }
    if cfg.BindAddr != "" { mc.BindAddr = cfg.BindAddr }
    mc.BindPort = cfg.BindPort
    mc.AdvertisePort = cfg.BindPort
    mc.Delegate = portMeta(cfg.BroadcastPort)
    mc.Logger = zap.NewStdLog(zap.L().Named("memberlist"))
    ml, err := memberlist.Create(mc)
    if err != nil { return nil, fmt.Errorf("memberlist: %w", err) }
    if len(cfg.Seeds) > 0 {
        n, err := ml.Join(cfg.Seeds)
        if err != nil {
            _ = ml.Shutdown()
            return nil, fmt.Errorf("memberlist join: %w", err)
        }
        zap.L().Info("joined gossip cluster", zap.Int("contacted", n), zap.Strings("seeds", cfg.Seeds))
    }
    return &Memberlist{ml: ml}, nil
}

// Fetch returns host:port for every live member except the local one.
// Members that advertise no broadcast port are listed without a port.
func (m *Memberlist) Fetch(context.Context) ([]string, error) {
    local := m.ml.LocalNode().Name
    var out []string
    for _, n := range m.ml.Members() {
        if n.Name == local { continue }
        host := n.Addr.String()
        if p, err := strconv.Atoi(string(n.Meta)); err == nil && p > 0 {
            out = append(out, net.JoinHostPort(host, strconv.Itoa(p)))
        } else if n.Addr.To4() == nil {
            out = append(out, "["+host+"]")
        } else {
            out = append(out, host)
        }
    }
    return out, nil
}

func (m *Memberlist) String() string { return "memberlist:" + m.ml.LocalNode().Name }

// Addr is the gossip address other members can join.
func (m *Memberlist) Addr() string {
    n := m.ml.LocalNode()
    return net.JoinHostPort(n.Addr.String(), strconv.Itoa(int(n.Port)))
}

// Close leaves the cluster and stops gossiping.
func (m *Memberlist) Close() error {
    if err := m.ml.Leave(time.Second); err != nil { zap.L().Warn("memberlist leave failed", zap.Error(err)) }
    return m.ml.Shutdown()
}

// portMeta publishes the broadcast port as node metadata.
type portMeta int

func (p portMeta) NodeMeta(limit int) []byte {
    b := []byte(strconv.Itoa(int(p)))
    if len(b) > limit { return nil }
    return b
}

func (portMeta) NotifyMsg([]byte)                           {}
func (portMeta) GetBroadcasts(overhead, limit int) [][]byte { return nil }
func (portMeta) LocalState(join bool) []byte                { return nil }
func (portMeta) MergeRemoteState(buf []byte, join bool)     {}
