package peers

import (
    "context"
    "errors"
    "fmt"
    "net"
    "os"
    "strconv"
    "strings"
)

var ErrBadAddress = errors.New("bad peer address")

// Target is a parsed and resolved peer entry.
type Target struct {
    Host string
    IP   net.IP
    Port int
}

func (t Target) Key() Key { return Key{IP: t.IP.String(), Port: t.Port} }

// Resolver maps a host name to one address.
type Resolver func(ctx context.Context, host string) (net.IP, error)

// DefaultResolver returns literal IPs as is and otherwise asks the system
// resolver, preferring IPv4 results.
func DefaultResolver(ctx context.Context, host string) (net.IP, error) {
    if ip := net.ParseIP(host); ip != nil { return ip, nil }
    addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
    if err != nil { return nil, err }
    if len(addrs) == 0 { return nil, fmt.Errorf("%w: %s has no addresses", ErrBadAddress, host) }
    for _, a := range addrs {
        if v4 := a.IP.To4(); v4 != nil { return v4, nil }
    }
    return addrs[0].IP, nil
}

// SplitList splits a peer list separated by ';', ',' or whitespace.
func SplitList(s string) []string {
    return strings.FieldsFunc(s, func(r rune) bool {
        return r == ';' || r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
    })
}

// ParseEntry splits "host[:port]" and applies defaultPort when no port is
// given. Bracketed IPv6 literals are accepted with or without a port; a bare
// IPv6 literal is taken as a host.
func ParseEntry(entry string, defaultPort int) (string, int, error) {
    entry = strings.TrimSpace(entry)
    if entry == "" { return "", 0, fmt.Errorf("%w: empty entry", ErrBadAddress) }
    host, portStr := entry, ""
    switch {
    case strings.HasPrefix(entry, "["):
        if strings.HasSuffix(entry, "]") {
            host = entry[1 : len(entry)-1]
        } else {
            h, p, err := net.SplitHostPort(entry)
            if err != nil { return "", 0, fmt.Errorf("%w: %q: %v", ErrBadAddress, entry, err) }
            host, portStr = h, p
        }
    case strings.Count(entry, ":") == 1:
        i := strings.IndexByte(entry, ':')
        host, portStr = entry[:i], entry[i+1:]
    }
    if host == "" { return "", 0, fmt.Errorf("%w: %q has no host", ErrBadAddress, entry) }
    port := defaultPort
    if portStr != "" {
        n, err := strconv.Atoi(portStr)
        if err != nil || n <= 0 || n > 65535 { return "", 0, fmt.Errorf("%w: %q has invalid port", ErrBadAddress, entry) }
        port = n
    }
    if port == 0 { return "", 0, fmt.Errorf("%w: %q has no port", ErrBadAddress, entry) }
    return host, port, nil
}

// Self describes the local endpoint so configured entries that point back at
// this process can be skipped.
type Self struct {
    Port  int
    Names []string
}

// LocalSelf builds Self from the machine hostname, "localhost" and ip, the
// address this process advertises. A nil ip means LocalIP().
func LocalSelf(port int, ip net.IP) Self {
    if ip == nil { ip = LocalIP() }
    names := []string{"localhost", ip.String()}
    if hn, err := os.Hostname(); err == nil && hn != "" { names = append(names, hn) }
    return Self{Port: port, Names: names}
}

// Matches compares host as a string only; an alias that resolves to this
// machine is not recognised.
func (s Self) Matches(host string, port int) bool {
    if port != s.Port { return false }
    for _, n := range s.Names {
        if strings.EqualFold(n, host) { return true }
    }
    return false
}

// LocalIP is the address this process advertises as sender: the first IPv4
// address of the machine hostname, or loopback when that cannot be resolved.
func LocalIP() net.IP {
    hn, err := os.Hostname()
    if err == nil {
        if ips, err := net.LookupIP(hn); err == nil {
            for _, ip := range ips {
                if v4 := ip.To4(); v4 != nil { return v4 }
            }
            if len(ips) > 0 { return ips[0] }
        }
    }
    return net.IPv4(127, 0, 0, 1).To4()
}

// Resolve parses entries, drops self entries and resolves the rest. Any
// failure aborts the whole list. Entries resolving to the same address and
// port are collapsed.
func Resolve(ctx context.Context, entries []string, defaultPort int, self Self, resolve Resolver) ([]Target, error) {
    if resolve == nil { resolve = DefaultResolver }
    seen := make(map[Key]struct{}, len(entries))
    out := make([]Target, 0, len(entries))
    for _, e := range entries {
        host, port, err := ParseEntry(e, defaultPort)
        if err != nil { return nil, err }
        if self.Matches(host, port) { continue }
        ip, err := resolve(ctx, host)
        if err != nil { return nil, fmt.Errorf("resolve %s: %w", host, err) }
        if v4 := ip.To4(); v4 != nil { ip = v4 }
        t := Target{Host: host, IP: ip, Port: port}
        if _, dup := seen[t.Key()]; dup { continue }
        seen[t.Key()] = struct{}{}
        out = append(out, t)
    }
    return out, nil
}
