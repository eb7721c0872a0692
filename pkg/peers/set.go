package peers

import (
    "net"
    "sort"
    "strconv"
    "sync"
)

// Key identifies a peer by resolved address and port.
type Key struct {
    IP   string
    Port int
}

func (k Key) String() string { return net.JoinHostPort(k.IP, strconv.Itoa(k.Port)) }

// Set is the transport's current peer list. Once closed it stays empty.
type Set struct {
    mu     sync.RWMutex
    hosts  map[Key]*HostAddress
    closed bool
}

func NewSet() *Set { return &Set{hosts: make(map[Key]*HostAddress)} }

// Add inserts h unless a peer with the same key exists or the set is
// closed. It reports whether h was added.
func (s *Set) Add(h *HostAddress) bool {
    s.mu.Lock(); defer s.mu.Unlock()
    if s.closed { return false }
    if _, ok := s.hosts[h.Key()]; ok { return false }
    s.hosts[h.Key()] = h
    return true
}

func (s *Set) Get(k Key) *HostAddress {
    s.mu.RLock(); defer s.mu.RUnlock()
    return s.hosts[k]
}

func (s *Set) Len() int {
    s.mu.RLock(); defer s.mu.RUnlock()
    return len(s.hosts)
}

// Snapshot returns the peers ordered by address. Callers may send to them
// without holding the set lock.
func (s *Set) Snapshot() []*HostAddress {
    s.mu.RLock()
    out := make([]*HostAddress, 0, len(s.hosts))
    for _, h := range s.hosts { out = append(out, h) }
    s.mu.RUnlock()
    sort.Slice(out, func(i, j int) bool {
        if out[i].ip.String() != out[j].ip.String() { return out[i].ip.String() < out[j].ip.String() }
        return out[i].port < out[j].port
    })
    return out
}

// Replace makes the set hold exactly the targets given. Peers already present
// are left untouched, missing ones are built with create, and peers not in
// targets are removed after their pools are closed. All of it happens under
// one lock hold. Replace does nothing on a closed set.
func (s *Set) Replace(targets []Target, create func(Target) *HostAddress) (added, removed []*HostAddress) {
    want := make(map[Key]Target, len(targets))
    for _, t := range targets { want[t.Key()] = t }

    s.mu.Lock()
    defer s.mu.Unlock()
    if s.closed { return nil, nil }
    for k, t := range want {
        if _, ok := s.hosts[k]; ok { continue }
        h := create(t)
        s.hosts[k] = h
        added = append(added, h)
    }
    for k, h := range s.hosts {
        if _, ok := want[k]; ok { continue }
        h.Close()
        delete(s.hosts, k)
        removed = append(removed, h)
    }
    return added, removed
}

// Close closes every pool, empties the set and rejects later additions.
func (s *Set) Close() {
    s.mu.Lock()
    s.closed = true
    hosts := s.hosts
    s.hosts = make(map[Key]*HostAddress)
    s.mu.Unlock()
    for _, h := range hosts { h.Close() }
}

func (s *Set) Closed() bool {
    s.mu.RLock(); defer s.mu.RUnlock()
    return s.closed
}
