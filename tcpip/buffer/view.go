// Copyright 2016 The Netstack Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package buffer provides the frame abstraction the stack passes between
// protocol layers: a reference-counted allocation with the four cursors
// described in spec.md §3 ("buffer", "head", "data", "tail"), plus a
// Prependable helper for building headers outward-in.
package buffer

// View is a slice of bytes, aliasing an underlying allocation rather than
// copying it, matching the teacher's buffer.View.
type View []byte

// Prependable is a buffer that headers are written into back-to-front, so
// that each protocol layer can prepend its header without having computed
// the total length up front. Modeled on the teacher's
// buffer.NewPrependable/Prepend/UsedLength used throughout
// tcpip/transport/tcp/connect.go.
type Prependable struct {
	buf        []byte
	usedOffset int
}

// NewPrependable allocates a buffer of the given total size with nothing
// used yet (the "used" region starts empty, at the tail of buf).
func NewPrependable(size int) Prependable {
	return Prependable{buf: make([]byte, size), usedOffset: size}
}

// Prepend reserves size bytes immediately before the current used region
// and returns them for the caller to fill in.
func (p *Prependable) Prepend(size int) View {
	p.usedOffset -= size
	return View(p.buf[p.usedOffset : p.usedOffset+size])
}

// UsedLength returns the number of bytes currently reserved.
func (p *Prependable) UsedLength() int {
	return len(p.buf) - p.usedOffset
}

// View returns the used portion of the buffer.
func (p *Prependable) View() View {
	return View(p.buf[p.usedOffset:])
}
