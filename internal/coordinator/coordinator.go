package coordinator

import (
	"context"
	"sync"
)

// Coordinator owns the set of job ids that are queued or being processed and
// the per-job lock table. It is shared by the poller and every worker.
type Coordinator struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
	locks    map[string]*jobLock

	// Every release bumps generation and stamps the job with it, so a poller
	// holding an older job listing can tell which entries went stale.
	generation uint64
	released   map[string]uint64
}

type jobLock struct {
	ch   chan struct{}
	refs int
	held bool
}

func New() *Coordinator {
	return &Coordinator{
		inFlight: make(map[string]struct{}),
		locks:    make(map[string]*jobLock),
		released: make(map[string]uint64),
	}
}

// TryMarkInFlight adds jobID to the in-flight set. It returns false when the
// id is already present, in which case the job must not be enqueued again.
func (c *Coordinator) TryMarkInFlight(jobID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.inFlight[jobID]; ok {
		return false
	}
	c.inFlight[jobID] = struct{}{}
	return true
}

func (c *Coordinator) IsInFlight(jobID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inFlight[jobID]
	return ok
}

// Forget drops jobID from the in-flight set unless a worker currently holds
// its lock. It reports whether the id was removed.
func (c *Coordinator) Forget(jobID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.locks[jobID]; ok && l.held {
		return false
	}
	delete(c.inFlight, jobID)
	return true
}

// IsActive reports whether a worker holds the lock for jobID.
func (c *Coordinator) IsActive(jobID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[jobID]
	return ok && l.held
}

// Acquire takes the per-job lock, blocking until it is free or ctx is done.
// The returned release func unlocks, drops the lock entry once nobody else
// waits on it, and removes jobID from the in-flight set. It is safe to call
// more than once. On error the same cleanup has already happened, except that
// the in-flight id is kept while another worker still holds the lock.
func (c *Coordinator) Acquire(ctx context.Context, jobID string) (release func(), err error) {
	c.mu.Lock()
	l, ok := c.locks[jobID]
	if !ok {
		l = &jobLock{ch: make(chan struct{}, 1)}
		c.locks[jobID] = l
	}
	l.refs++
	c.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
	case <-ctx.Done():
		c.mu.Lock()
		c.dropRef(jobID, l)
		if !l.held {
			delete(c.inFlight, jobID)
		}
		c.mu.Unlock()
		return nil, ctx.Err()
	}

	c.mu.Lock()
	l.held = true
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			l.held = false
			<-l.ch
			c.dropRef(jobID, l)
			delete(c.inFlight, jobID)
			c.generation++
			c.released[jobID] = c.generation
		})
	}, nil
}

func (c *Coordinator) dropRef(jobID string, l *jobLock) {
	l.refs--
	if l.refs == 0 && c.locks[jobID] == l {
		delete(c.locks, jobID)
	}
}

// Snapshot returns the sizes of the in-flight set and the lock table.
func (c *Coordinator) Snapshot() (inFlight, locks int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inFlight), len(c.locks)
}

// Generation returns the current release generation.
func (c *Coordinator) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// ReleasedSince reports whether a worker released jobID after generation gen.
func (c *Coordinator) ReleasedSince(jobID string, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.released[jobID]
	return ok && g > gen
}

// PruneReleased forgets releases at or before gen.
func (c *Coordinator) PruneReleased(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, g := range c.released {
		if g <= gen {
			delete(c.released, id)
		}
	}
}
