package render

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Factory builds a new rendering client on demand.
type Factory func() (Client, error)

// Pool hands out rendering clients as a constrained shared resource. Each
// pipeline run checks one out for its whole duration and returns it on
// completion or failure. Clients are created lazily up to the pool size and
// reused across runs.
type Pool struct {
	sem     *semaphore.Weighted
	factory Factory

	mu   sync.Mutex
	idle []Client
	all  []Client
}

// NewPool creates a pool bounded to size concurrent clients.
func NewPool(size int, factory Factory) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{
		sem:     semaphore.NewWeighted(int64(size)),
		factory: factory,
	}
}

// Checkout blocks until a client slot is free, then returns an exclusive
// client. Callers must hand it back with Return.
func (p *Pool) Checkout(ctx context.Context) (Client, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	p.mu.Lock()
	if n := len(p.idle); n > 0 {
		c := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		return c, nil
	}
	p.mu.Unlock()

	c, err := p.factory()
	if err != nil {
		p.sem.Release(1)
		return nil, err
	}

	p.mu.Lock()
	p.all = append(p.all, c)
	p.mu.Unlock()
	return c, nil
}

// Return puts a checked-out client back into the pool.
func (p *Pool) Return(c Client) {
	if c == nil {
		p.sem.Release(1)
		return
	}
	p.mu.Lock()
	p.idle = append(p.idle, c)
	p.mu.Unlock()
	p.sem.Release(1)
}

// Close shuts down every client the pool ever created.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for _, c := range p.all {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.idle = nil
	p.all = nil
	return firstErr
}
