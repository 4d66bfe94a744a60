// Copyright 2016 The Netstack Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package buffer

import (
	"sync"
	"sync/atomic"
	"time"
)

// Frame is a reference-counted buffer with the four cursors from spec.md §3:
// buffer (allocation base), head (current protocol header start), data
// (payload start), tail (end of valid bytes). A reader-writer lock protects
// the cursors; payload bytes are mutated only under the write lock.
//
// Frames flow through the stack by advancing data past each header on
// ingress (Consume), and by prepending headers (moving head down) on egress
// (PushHead). This mirrors original_source/lib/netstack/src/intf/rawsock.c's
// struct frame, whose head/data/tail/buffer fields this type names after.
type Frame struct {
	mu sync.RWMutex

	buf  []byte // the allocation base ("buffer")
	head int    // offset of the current protocol header start
	data int    // offset of the payload start
	tail int    // offset one past the end of valid bytes

	refs atomic.Int32

	// Timestamp is the monotonic receive time of this frame, captured by
	// the interface's receive thread at the moment the raw read completed.
	// See SPEC_FULL.md "Per-frame receive timestamp".
	Timestamp time.Time
}

// NewFrame allocates a frame of the given capacity with head, data and tail
// all starting at the end of the buffer, ready for headers to be prepended
// by successive PushHead calls (outbound construction). NewFrameFromBytes
// wraps an existing byte slice for inbound parsing.
func NewFrame(capacity int) *Frame {
	f := &Frame{buf: make([]byte, capacity), head: capacity, data: capacity, tail: capacity}
	f.refs.Store(1)
	return f
}

// NewFrameFromBytes wraps raw bytes read off the wire as a frame whose
// head/data start at offset 0 and whose tail is the length of b.
func NewFrameFromBytes(b []byte) *Frame {
	f := &Frame{buf: b, head: 0, data: 0, tail: len(b)}
	f.refs.Store(1)
	return f
}

// IncRef increments the frame's reference count. Per spec.md §5, a frame
// incref'd on entry to a send path is decref'd on that path's exit
// regardless of success.
func (f *Frame) IncRef() *Frame {
	f.refs.Add(1)
	return f
}

// DecRef decrements the reference count, releasing the backing array when
// it reaches zero.
func (f *Frame) DecRef() {
	if f.refs.Add(-1) == 0 {
		f.buf = nil
	}
}

// PushHead reserves size bytes immediately before the current head cursor
// and returns them for the caller to fill with a header, moving head
// backward. Must be called under WriteLock.
func (f *Frame) PushHead(size int) View {
	f.head -= size
	return View(f.buf[f.head : f.head+size])
}

// Consume advances data past a parsed header of the given size on ingress.
// Must be called under WriteLock.
func (f *Frame) Consume(size int) View {
	start := f.data
	f.data += size
	return View(f.buf[start:f.data])
}

// Header returns the bytes between head and data (the current protocol
// header region).
func (f *Frame) Header() View {
	return View(f.buf[f.head:f.data])
}

// Payload returns the bytes between data and tail (the current payload).
func (f *Frame) Payload() View {
	return View(f.buf[f.data:f.tail])
}

// Full returns the entire valid region, from head to tail, suitable for
// handing to the link layer for transmission or to a checksum routine.
func (f *Frame) Full() View {
	return View(f.buf[f.head:f.tail])
}

// SetTail sets the end of the valid payload region, used when building an
// outbound frame whose payload is written directly into buf[data:].
func (f *Frame) SetTail(tail int) {
	f.tail = tail
}

// ReadLock/WriteLock/RUnlock/Unlock expose the frame's cursor lock so that
// callers on the hot path (checksum, copy-to-seqbuf) can batch several
// cursor reads under one critical section.
func (f *Frame) ReadLock()   { f.mu.RLock() }
func (f *Frame) RUnlock()    { f.mu.RUnlock() }
func (f *Frame) WriteLock()  { f.mu.Lock() }
func (f *Frame) Unlock()     { f.mu.Unlock() }
