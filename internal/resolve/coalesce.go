package resolve

import (
	"context"
	"sync"

	"github.com/standardbeagle/codegraph/internal/debug"
)

// PassFunc runs one resolution pass.
type PassFunc func(ctx context.Context) (*Result, error)

type pass struct {
	ctx  context.Context
	fn   PassFunc
	done chan struct{}
	res  *Result
	err  error

	// joined counts the requests sharing this pass.
	joined int
}

type slot struct {
	running *pass
	queued  *pass
}

// Coalescer keeps passes for one repository from overlapping. While a pass
// runs, the first new request queues a trailing pass; later requests join
// that queued pass instead of adding another, and the queued pass runs the
// most recently supplied PassFunc so it sees the newest snapshot.
type Coalescer struct {
	mu    sync.Mutex
	repos map[string]*slot
	wg    sync.WaitGroup
}

// NewCoalescer creates an empty coalescer.
func NewCoalescer() *Coalescer {
	return &Coalescer{repos: make(map[string]*slot)}
}

// Do runs fn for repo, or joins a pass that has not started yet. The pass
// runs under the context of the request that created it; ctx only bounds
// how long this caller waits.
func (c *Coalescer) Do(ctx context.Context, repo string, fn PassFunc) (*Result, error) {
	c.mu.Lock()
	s, ok := c.repos[repo]
	if !ok {
		s = &slot{}
		c.repos[repo] = s
	}
	var p *pass
	switch {
	case s.running == nil:
		p = &pass{ctx: ctx, fn: fn, done: make(chan struct{}), joined: 1}
		s.running = p
		c.start(repo, p)
	case s.queued == nil:
		p = &pass{ctx: ctx, fn: fn, done: make(chan struct{}), joined: 1}
		s.queued = p
		debug.LogResolve("repository %s: pass queued behind a running one\n", repo)
	default:
		p = s.queued
		p.fn = fn
		p.joined++
		debug.LogResolve("repository %s: %d requests share the queued pass\n", repo, p.joined)
	}
	c.mu.Unlock()

	select {
	case <-p.done:
		return p.res, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Wait blocks until no pass is running or queued.
func (c *Coalescer) Wait() { c.wg.Wait() }

// start launches p; c.mu must be held.
func (c *Coalescer) start(repo string, p *pass) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.mu.Lock()
		fn := p.fn
		c.mu.Unlock()
		p.res, p.err = fn(p.ctx)
		c.finish(repo, p)
	}()
}

func (c *Coalescer) finish(repo string, p *pass) {
	c.mu.Lock()
	defer c.mu.Unlock()
	close(p.done)
	s := c.repos[repo]
	s.running = s.queued
	s.queued = nil
	if s.running == nil {
		delete(c.repos, repo)
		return
	}
	c.start(repo, s.running)
}
