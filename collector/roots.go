package collector

import (
	"sync"

	"github.com/wippyai/movingheap"
	"github.com/wippyai/movingheap/errors"
	"github.com/wippyai/movingheap/root"
)

type rootEntry struct {
	handle  root.Handle
	scan    root.ScanFunc
	closure any
	thread  *Thread
	depth   int
}

// RegisterExactRoot registers scan to be called with closure at the start of
// every collection. Roots are scanned in registration order.
func (c *Collector) RegisterExactRoot(scan root.ScanFunc, closure any) (root.Handle, error) {
	if scan == nil {
		return 0, errors.InvalidInput(errors.PhaseRoot, "nil root scan function")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, errors.Closed(errors.PhaseRoot, "collector")
	}
	return c.addRootLocked(&rootEntry{scan: scan, closure: closure}), nil
}

// RegisterStackRoot registers the shadow stack of the thread named by marker.
// Every word from marker.Depth to the top of the stack is treated as an
// ambiguous reference: the objects it may name are pinned, never moved.
func (c *Collector) RegisterStackRoot(marker root.StackMarker) (root.Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, errors.Closed(errors.PhaseRoot, "collector")
	}
	th, ok := c.threads[marker.Thread]
	if !ok {
		return 0, errors.NotFound(errors.PhaseRoot, "thread", marker.Thread)
	}
	if marker.Depth < 0 {
		return 0, errors.InvalidInput(errors.PhaseRoot, "negative stack depth")
	}
	return c.addRootLocked(&rootEntry{thread: th, depth: marker.Depth}), nil
}

func (c *Collector) addRootLocked(r *rootEntry) root.Handle {
	c.nextRoot++
	r.handle = c.nextRoot
	c.roots = append(c.roots, r)
	return r.handle
}

// DeregisterRoot removes a root registered by either method.
func (c *Collector) DeregisterRoot(h root.Handle) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, r := range c.roots {
		if r.handle == h {
			c.roots = append(c.roots[:i], c.roots[i+1:]...)
			return nil
		}
	}
	return errors.NotFound(errors.PhaseRoot, "root", h)
}

// Thread is a mutator thread's shadow stack: the words a mutator holds on its
// own stack, published for ambiguous scanning.
type Thread struct {
	c  *Collector
	id uint32

	mu    sync.Mutex
	stack []movingheap.Addr
}

// RegisterThread creates a thread with an empty shadow stack.
func (c *Collector) RegisterThread() *Thread {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextThread++
	th := &Thread{c: c, id: c.nextThread}
	c.threads[th.id] = th
	return th
}

// ID returns the thread identifier used in stack markers.
func (th *Thread) ID() uint32 {
	return th.id
}

// Marker returns a marker whose cold end is the current top of the stack.
func (th *Thread) Marker() root.StackMarker {
	th.mu.Lock()
	defer th.mu.Unlock()
	return root.StackMarker{Thread: th.id, Depth: len(th.stack)}
}

// Push publishes addr and returns its stack index.
func (th *Thread) Push(addr movingheap.Addr) int {
	th.mu.Lock()
	defer th.mu.Unlock()
	th.stack = append(th.stack, addr)
	return len(th.stack) - 1
}

// Pop removes and returns the top of the stack, or None when it is empty.
func (th *Thread) Pop() movingheap.Addr {
	th.mu.Lock()
	defer th.mu.Unlock()
	n := len(th.stack)
	if n == 0 {
		return movingheap.None
	}
	addr := th.stack[n-1]
	th.stack = th.stack[:n-1]
	return addr
}

// Depth returns the number of words on the stack.
func (th *Thread) Depth() int {
	th.mu.Lock()
	defer th.mu.Unlock()
	return len(th.stack)
}

// Truncate pops every word above depth.
func (th *Thread) Truncate(depth int) {
	th.mu.Lock()
	defer th.mu.Unlock()
	if depth >= 0 && depth < len(th.stack) {
		clear(th.stack[depth:])
		th.stack = th.stack[:depth]
	}
}

// Close deregisters the thread and every stack root naming it.
func (th *Thread) Close() error {
	c := th.c
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.threads[th.id]; !ok {
		return nil
	}
	delete(c.threads, th.id)
	kept := c.roots[:0]
	for _, r := range c.roots {
		if r.thread != th {
			kept = append(kept, r)
		}
	}
	clear(c.roots[len(kept):])
	c.roots = kept
	return nil
}

// words returns a copy of the stack from depth to the top.
func (th *Thread) words(depth int) []movingheap.Addr {
	th.mu.Lock()
	defer th.mu.Unlock()
	if depth >= len(th.stack) {
		return nil
	}
	return append([]movingheap.Addr(nil), th.stack[depth:]...)
}
