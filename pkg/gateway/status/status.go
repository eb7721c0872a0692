// Package status serves a small HTTP API for inspecting a running transport.
package status

import (
    "context"
    "encoding/json"
    "errors"
    "io"
    "net"
    "net/http"
    "time"

    "github.com/gorilla/mux"
    "go.uber.org/zap"

    "commitcast/pkg/event"
    "commitcast/pkg/membership"
    "commitcast/pkg/peers"
)

// Node is the transport surface exposed over HTTP.
type Node interface {
    ID() uint64
    Port() int
    Started() bool
    Pending() int
    Inbound() int
    Peers() []peers.Status
    Broadcast(event.Event)
}

// Report is the body of GET /peers.
type Report struct {
    SenderID   uint64             `json:"sender_id"`
    Port       int                `json:"port"`
    Pending    int                `json:"pending"`
    Inbound    int                `json:"inbound"`
    Peers      []peers.Status     `json:"peers"`
    Membership *membership.Status `json:"membership,omitempty"`
}

const maxEventBody = 1 << 20

// NewRouter registers the status routes. mu may be nil.
func NewRouter(n Node, mu *membership.Updater) *mux.Router {
    r := mux.NewRouter()
    r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
        if !n.Started() {
            writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "stopped"})
            return
        }
        writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
    }).Methods(http.MethodGet)

    r.HandleFunc("/peers", func(w http.ResponseWriter, _ *http.Request) {
        rep := Report{SenderID: n.ID(), Port: n.Port(), Pending: n.Pending(), Inbound: n.Inbound(), Peers: n.Peers()}
        if mu != nil {
            st := mu.Status()
            rep.Membership = &st
        }
        writeJSON(w, http.StatusOK, rep)
    }).Methods(http.MethodGet)

    r.HandleFunc("/broadcast", func(w http.ResponseWriter, req *http.Request) {
        var ev event.Event
        dec := json.NewDecoder(io.LimitReader(req.Body, maxEventBody))
        dec.DisallowUnknownFields()
        if err := dec.Decode(&ev); err != nil {
            writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
            return
        }
        if err := ev.Validate(); err != nil {
            writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
            return
        }
        if !n.Started() {
            writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "transport not started"})
            return
        }
        n.Broadcast(ev)
        writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
    }).Methods(http.MethodPost)
    return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(code)
    if err := json.NewEncoder(w).Encode(v); err != nil { zap.L().Debug("status response write failed", zap.Error(err)) }
}

// Serve listens on addr and serves h until ctx is done.
func Serve(ctx context.Context, addr string, h http.Handler) error {
    ln, err := net.Listen("tcp", addr)
    if err != nil { return err }
    srv := &http.Server{Handler: h, ReadHeaderTimeout: 5 * time.Second}
    errc := make(chan error, 1)
    go func() { errc <- srv.Serve(ln) }()
    zap.L().Info("status endpoint listening", zap.String("addr", ln.Addr().String()))
    select {
    case err := <-errc:
        return err
    case <-ctx.Done():
        sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
        defer cancel()
        if err := srv.Shutdown(sctx); err != nil { return err }
        if err := <-errc; !errors.Is(err, http.ErrServerClosed) { return err }
        return nil
    }
}
