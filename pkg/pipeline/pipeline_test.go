package pipeline

import (
    "sync"
    "sync/atomic"
    "testing"
    "time"

    "commitcast/pkg/core/bcastq"
)

func TestWorkersDrainOnClose(t *testing.T) {
    var n atomic.Int32
    release := make(chan struct{})
    p := New(bcastq.New(), func([]byte) { <-release; n.Add(1) }, 2)
    for i := 0; i < 10; i++ {
        if !p.Submit([]byte{byte(i)}) { t.Fatalf("submit %d rejected", i) }
    }
    done := make(chan struct{})
    go func() { p.Close(); close(done) }()
    time.Sleep(20 * time.Millisecond)
    if p.Submit([]byte("late")) { t.Fatalf("submit accepted after close") }
    close(release)
    select {
    case <-done:
    case <-time.After(2 * time.Second):
        t.Fatalf("Close did not return")
    }
    if n.Load() != 10 { t.Fatalf("sent=%d want 10", n.Load()) }
    p.Close()
}

func TestConcurrentWorkers(t *testing.T) {
    var mu sync.Mutex
    inFlight, peak := 0, 0
    p := New(bcastq.New(), func([]byte) {
        mu.Lock(); inFlight++; if inFlight > peak { peak = inFlight }; mu.Unlock()
        time.Sleep(20 * time.Millisecond)
        mu.Lock(); inFlight--; mu.Unlock()
    }, 3)
    for i := 0; i < 9; i++ { p.Submit([]byte{1}) }
    p.Close()
    if peak < 2 || peak > 3 { t.Fatalf("peak concurrency=%d", peak) }
}

func TestPanicDoesNotKillWorker(t *testing.T) {
    var n atomic.Int32
    p := New(bcastq.New(), func(b []byte) {
        if b[0] == 0 { panic("boom") }
        n.Add(1)
    }, 1)
    p.Submit([]byte{0})
    p.Submit([]byte{1})
    p.Close()
    if n.Load() != 1 { t.Fatalf("second packet not sent") }
}
