// Copyright 2016 The Netstack Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package contimer implements the continuous timer of spec.md §4.2: a
// single timer thread owning a min-heap of future callbacks, addressed by
// an opaque event handle so cancellation is a lookup rather than a
// dereference (spec.md §9, "Cyclic references").
//
// This replaces original_source/lib/time/timer.c's per-timer
// timer_create/SIGEV_SIGNAL design, which spec.md §9 ("Single-handler
// timer dispatch") explicitly calls out as something to avoid reproducing:
// a dedicated goroutine draining a container/heap.Interface avoids
// signal-handler reentrancy concerns and gives every timer a
// caller-supplied argument captured by value, the same guarantee
// timer_create's sigev_value.sival_ptr gave the C implementation.
package contimer

import (
	"container/heap"
	"sync"
	"time"
)

// Handle is the opaque event handle returned by QueueRel, used to Cancel a
// pending callback without dereferencing it directly.
type Handle uint64

type entry struct {
	handle   Handle
	seq      uint64 // heap tie-break, insertion order
	deadline time.Time
	fn       func(arg any)
	arg      any
	dead     bool
	index    int // heap.Interface bookkeeping
}

type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }
func (h entryHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].seq < h[j].seq
	}
	return h[i].deadline.Before(h[j].deadline)
}
func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Timer is a single timer thread serving any number of callers. The zero
// value is not usable; construct with New.
type Timer struct {
	mu      sync.Mutex
	heap    entryHeap
	byHdl   map[Handle]*entry
	nextHdl Handle
	nextSeq uint64
	wake    chan struct{}
	stop    chan struct{}
	once    sync.Once
}

// New starts the timer thread and returns a Timer ready to accept Queue
// calls.
func New() *Timer {
	t := &Timer{
		byHdl: make(map[Handle]*entry),
		wake:  make(chan struct{}, 1),
		stop:  make(chan struct{}),
	}
	heap.Init(&t.heap)
	go t.run()
	return t
}

// QueueRel schedules fn(arg) to run on the timer thread after dt elapses.
// arg is captured by value (per the caller's choice of type) and handed
// back to fn unmodified, mirroring
// original_source/lib/tcp/tcpout.c's contimer_queue_rel(&sock->rtimer, &to,
// &rtd, sizeof(rtd)). Returns an opaque handle usable with Cancel.
//
// Callbacks run on the timer thread; per spec.md §4.2, a callback must not
// synchronously acquire a lock that a caller holds while calling QueueRel or
// Cancel with that lock held (lock rank 6 is the innermost rank in
// spec.md §5 for exactly this reason).
func (t *Timer) QueueRel(dt time.Duration, fn func(arg any), arg any) Handle {
	t.mu.Lock()
	t.nextHdl++
	h := t.nextHdl
	t.nextSeq++
	e := &entry{handle: h, seq: t.nextSeq, deadline: time.Now().Add(dt), fn: fn, arg: arg}
	heap.Push(&t.heap, e)
	t.byHdl[h] = e
	t.mu.Unlock()

	select {
	case t.wake <- struct{}{}:
	default:
	}
	return h
}

// Cancel marks the entry dead; the timer thread drops dead entries at its
// next scan rather than searching the heap, so Cancel never blocks on the
// timer thread and is safe to call while holding a lower-ranked lock (e.g.
// the per-socket lock), per spec.md §5's non-blocking cancel requirement.
func (t *Timer) Cancel(h Handle) {
	t.mu.Lock()
	if e, ok := t.byHdl[h]; ok {
		e.dead = true
		delete(t.byHdl, h)
	}
	t.mu.Unlock()
}

// Stop halts the timer thread. Pending callbacks are discarded.
func (t *Timer) Stop() {
	t.once.Do(func() { close(t.stop) })
}

func (t *Timer) run() {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		t.mu.Lock()
		for t.heap.Len() > 0 && t.heap[0].dead {
			heap.Pop(&t.heap)
		}
		var wait time.Duration
		var due *entry
		if t.heap.Len() > 0 {
			wait = time.Until(t.heap[0].deadline)
			if wait <= 0 {
				due = heap.Pop(&t.heap).(*entry)
				delete(t.byHdl, due.handle)
			}
		} else {
			wait = time.Hour
		}
		t.mu.Unlock()

		if due != nil {
			if !due.dead {
				due.fn(due.arg)
			}
			continue
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-t.stop:
			return
		case <-t.wake:
		case <-timer.C:
		}
	}
}
