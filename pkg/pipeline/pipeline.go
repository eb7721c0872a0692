package pipeline

import (
    "sync"

    "go.uber.org/zap"

    "commitcast/pkg/core/bcastq"
)

// Pipeline drains a broadcast queue with a fixed set of worker goroutines.
// Each dequeued packet is handed to send, which fans it out to the peers.
type Pipeline struct {
    q    *bcastq.Queue
    send func([]byte)
    wg   sync.WaitGroup
    once sync.Once
}

// New starts workers goroutines. workers must be positive.
func New(q *bcastq.Queue, send func([]byte), workers int) *Pipeline {
    if workers < 1 { workers = 1 }
    p := &Pipeline{q: q, send: send}
    p.wg.Add(workers)
    for i := 0; i < workers; i++ { go p.worker(i) }
    return p
}

// Submit enqueues an encoded packet. It reports false after Close.
func (p *Pipeline) Submit(b []byte) bool { return p.q.Enqueue(b) }

// Pending is the number of packets not yet picked up by a worker.
func (p *Pipeline) Pending() int { return p.q.Len() }

// Close closes the queue and waits for the workers to drain it.
func (p *Pipeline) Close() {
    p.once.Do(p.q.Close)
    p.wg.Wait()
}

func (p *Pipeline) worker(id int) {
    defer p.wg.Done()
    for {
        b, ok := p.q.Dequeue()
        if !ok { return }
        p.deliver(id, b)
    }
}

func (p *Pipeline) deliver(id int, b []byte) {
    defer func() {
        if r := recover(); r != nil {
            zap.L().Error("broadcast worker recovered", zap.Int("worker", id), zap.Any("panic", r))
        }
    }()
    p.send(b)
}
