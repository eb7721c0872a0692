package membership

import (
    "context"
    "fmt"
    "io"
    "net/http"
    "os"
    "strings"
    "time"

    "commitcast/pkg/peers"
)

// Source yields the current peer entries in host[:port] form.
type Source interface {
    Fetch(ctx context.Context) ([]string, error)
    String() string
}

// Static is a fixed list.
type Static []string

func (s Static) Fetch(context.Context) ([]string, error) { return append([]string(nil), s...), nil }
func (s Static) String() string                          { return "static" }

// File reads a list separated by ';', ',' or whitespace on every fetch.
type File struct{ Path string }

func (f File) Fetch(context.Context) ([]string, error) {
    b, err := os.ReadFile(f.Path)
    if err != nil { return nil, err }
    return peers.SplitList(string(b)), nil
}

func (f File) String() string { return "file:" + f.Path }

// maxListBody bounds the response read by HTTP.
const maxListBody = 1 << 20

// HTTP fetches the list from a URL. Any non-2xx status is an error.
type HTTP struct {
    URL    string
    Client *http.Client
}

func (h HTTP) Fetch(ctx context.Context) ([]string, error) {
    cl := h.Client
    if cl == nil { cl = &http.Client{Timeout: 10 * time.Second} }
    req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
    if err != nil { return nil, err }
    resp, err := cl.Do(req)
    if err != nil { return nil, err }
    defer resp.Body.Close()
    if resp.StatusCode < 200 || resp.StatusCode > 299 { return nil, fmt.Errorf("fetch %s: status %s", h.URL, resp.Status) }
    b, err := io.ReadAll(io.LimitReader(resp.Body, maxListBody))
    if err != nil { return nil, err }
    return peers.SplitList(string(b)), nil
}

func (h HTTP) String() string { return h.URL }

// Parse builds a source from its configuration form:
//
//  static:host-a;host-b:5637
//  file:/etc/commitcast/peers
//  http://registry/peers  (or https)
//
// An empty string yields a nil source. Gossip membership is built with
// JoinMemberlist since it needs more than a string.
func Parse(s string) (Source, error) {
    s = strings.TrimSpace(s)
    switch {
    case s == "":
        return nil, nil
    case strings.HasPrefix(s, "static:"):
        return Static(peers.SplitList(strings.TrimPrefix(s, "static:"))), nil
    case strings.HasPrefix(s, "file:"):
        p := strings.TrimPrefix(s, "file:")
        if p == "" { return nil, fmt.Errorf("membership source %q: empty path", s) }
        return File{Path: p}, nil
    case strings.HasPrefix(s, "http://"), strings.HasPrefix(s, "https://"):
        return HTTP{URL: s}, nil
    default:
        return nil, fmt.Errorf("unknown membership source %q", s)
    }
}
