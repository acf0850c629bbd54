// Package shutdown implements the node-wide cancellation signal described
// in spec.md section 5: a broadcast "shut down now" event, waited on by
// every long-running task with biased-first select semantics, with
// progress logging if the drain takes more than 5s and a stack dump of
// outstanding waiters past 15s.
package shutdown

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "shutdown")

// Controller triggers the shutdown event and tracks outstanding waiters so
// it can report what is still running if the drain is slow.
type Controller struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	waiters map[int]string
	nextID  int
	wg      sync.WaitGroup

	captureBacktrace bool
}

// NewController creates a shutdown controller. captureBacktrace enables
// the expensive full-stack dump when a drain exceeds 15s; it should be on
// in development and off in production.
func NewController(captureBacktrace bool) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		ctx:              ctx,
		cancel:           cancel,
		waiters:          make(map[int]string),
		captureBacktrace: captureBacktrace,
	}
}

// Waiter registers a named waiter (e.g. "gossip: message receiver") and
// returns a handle whose Done channel fires once shutdown is triggered.
// The caller must call Release when it has finished its cleanup.
type Waiter struct {
	c    *Controller
	id   int
	Done <-chan struct{}
}

// Release marks this waiter as finished draining.
func (w *Waiter) Release() {
	w.c.mu.Lock()
	delete(w.c.waiters, w.id)
	w.c.mu.Unlock()
	w.c.wg.Done()
}

// NewWaiter registers name as an outstanding task and returns its waiter
// handle.
func (c *Controller) NewWaiter(name string) *Waiter {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.waiters[id] = name
	c.mu.Unlock()
	c.wg.Add(1)
	return &Waiter{c: c, id: id, Done: c.ctx.Done()}
}

// TriggerShutdown fires the cancellation signal exactly once; subsequent
// calls are no-ops.
func (c *Controller) TriggerShutdown() {
	c.cancel()
}

// Shutdown triggers the shutdown signal and blocks until every registered
// waiter has called Release, logging progress at 5s and dumping pending
// waiter names (plus goroutine stacks, if captureBacktrace is set) at 15s.
func (c *Controller) Shutdown() {
	log.Trace("shutting node down")
	c.TriggerShutdown()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	ticks := 0
	for {
		select {
		case <-done:
			return
		case <-time.After(5 * time.Second):
			ticks++
			switch {
			case ticks == 1:
				log.Trace("still shutting down...")
			case ticks == 2:
				log.Warn("still shutting down...")
			default:
				log.Error("shutdown taking too long")
				c.dumpPending()
			}
		}
	}
}

func (c *Controller) dumpPending() {
	c.mu.Lock()
	names := make([]string, 0, len(c.waiters))
	for _, n := range c.waiters {
		names = append(names, n)
	}
	c.mu.Unlock()

	for i, n := range names {
		log.Errorf("pending shutdown waiter #%d: %s", i, n)
	}
	if c.captureBacktrace {
		buf := make([]byte, 1<<20)
		n := runtime.Stack(buf, true)
		log.Errorf("goroutine dump:\n%s", buf[:n])
	}
}
