package uthread

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
)

// traceEvent records one completed context switch (component C9). It is
// not part of the library's correctness surface: nothing in the public API
// reads it back. DrainTrace hands the recorded events to a caller; this
// package's tests drain it only to clear it between scenarios, and Dump
// does not read it.
type traceEvent struct {
	TID           int
	State         State
	TotalQuantums int
}

// traceQueue is a lock-free MPSC FIFO, a Go rendering of the Michael &
// Scott queue over a single generic node type. It enqueues scheduling
// decisions, written by the scheduler (the single producer, since only
// one goroutine is ever inside the critical section at a time) and
// drained by DrainTrace (the consumer).
type traceQueue struct {
	head atomic.Pointer[traceNode]
	tail atomic.Pointer[traceNode]
}

type traceNode struct {
	value traceEvent
	next  atomic.Pointer[traceNode]
}

var traceNodePool = sync.Pool{New: func() any { return new(traceNode) }}

func newTraceQueue() *traceQueue {
	n := traceNodePool.Get().(*traceNode)
	n.next.Store(nil)
	q := &traceQueue{}
	q.head.Store(n)
	q.tail.Store(n)
	return q
}

func (q *traceQueue) enqueue(v traceEvent) {
	n := traceNodePool.Get().(*traceNode)
	n.value = v
	n.next.Store(nil)
	for {
		tail := q.tail.Load()
		next := tail.next.Load()
		if tail == q.tail.Load() {
			if next == nil {
				if tail.next.CompareAndSwap(next, n) {
					q.tail.CompareAndSwap(tail, n)
					return
				}
			} else {
				q.tail.CompareAndSwap(tail, next)
			}
		}
	}
}

func (q *traceQueue) dequeue() (v traceEvent, ok bool) {
	for {
		head := q.head.Load()
		tail := q.tail.Load()
		next := head.next.Load()
		if head == q.head.Load() {
			if head == tail {
				if next == nil {
					return traceEvent{}, false
				}
				q.tail.CompareAndSwap(tail, next)
			} else {
				v = next.value
				if q.head.CompareAndSwap(head, next) {
					traceNodePool.Put(head)
					return v, true
				}
			}
		}
	}
}

var traceBuf = newTraceQueue()

// DrainTrace empties the scheduler trace buffer into a slice, oldest
// event first. It is intended for tests asserting scheduling order; the
// library itself never reads it back.
func DrainTrace() []traceEvent {
	var out []traceEvent
	for {
		ev, ok := traceBuf.dequeue()
		if !ok {
			return out
		}
		out = append(out, ev)
	}
}

// Dump pretty-prints the live TCB table to stderr. It is never called by
// the library itself.
func Dump() {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(os.Stderr, "tid state        quantums_run wake_at\n")
	for i := range tcbs {
		if tcbs[i].state == StateUnused {
			continue
		}
		fmt.Fprintf(os.Stderr, "%3d %-12s %12d %7d\n", i, tcbs[i].state, tcbs[i].quantumsRun, tcbs[i].wakeAt)
	}
}
