// Copyright 2016 The Netstack Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package neighbor implements the ARP cache and pending-resolution queue of
// spec.md §4.3: resolve() maps a layer-3 address to a layer-2 address,
// sharing one PENDING entry and one ARP request across concurrent
// resolvers of the same target and waking them all on reply or timeout.
//
// It is the Go-idiomatic, lock-and-condvar equivalent of
// original_source/include/netstack/eth/arp.h's struct arp_entry (state,
// protoaddr, hwaddr, a pthread_mutex_t) and its ARP_UNKNOWN/PENDING/
// RESOLVED/PERMANENT states.
package neighbor

import (
	"sync"
	"time"

	"github.com/coolheart77/netstack/contimer"
	"github.com/coolheart77/netstack/tcpip"
)

// State is the resolution state of an Entry, per spec.md §3.
type State int

const (
	Unknown State = iota
	Pending
	Resolved
	Permanent
)

func (s State) String() string {
	switch s {
	case Unknown:
		return "UNKNOWN"
	case Pending:
		return "PENDING"
	case Resolved:
		return "RESOLVED"
	case Permanent:
		return "PERMANENT"
	default:
		return "?"
	}
}

// Entry is one row of the ARP cache: a protocol address, its resolved
// hardware address (if any), and the wait-condition pending resolvers
// block on.
type Entry struct {
	mu        sync.Mutex
	cond      *sync.Cond
	ProtoAddr tcpip.Address
	HWAddr    tcpip.Address
	State     State

	// requestSent is true once a resolver for this PENDING entry has
	// already emitted an ARP request, so that concurrent resolvers for
	// the same target share one request (spec.md §4.3 and §8 scenario 5).
	requestSent bool

	// timedOut is set by the timeout goroutine so waiters woken by
	// Broadcast can distinguish "resolved" from "gave up".
	timedOut bool
}

func newEntry(proto tcpip.Address) *Entry {
	e := &Entry{ProtoAddr: proto, State: Unknown}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// Snapshot is a point-in-time copy of an Entry, safe to read without the
// table lock. It serves the SPEC_FULL.md "arp_log_tbl" supplemented
// feature.
type Snapshot struct {
	ProtoAddr tcpip.Address
	HWAddr    tcpip.Address
	State     State
}

// Table is the ARP cache for one interface: spec.md §3's "Interface ...
// an ARP table." It is lock rank 1, the outermost lock in spec.md §5's
// ranking, so holders of a Table lock may take any other lock but nothing
// may call back into Table while holding a lower-ranked lock.
type Table struct {
	mu      sync.Mutex
	entries map[string]*Entry
	timer   *contimer.Timer
}

// NewTable creates an empty ARP cache whose pending-entry timeouts are
// scheduled on the given process-wide timer thread (spec.md §5: "one
// process-wide timer thread"), the same Timer a tcp.Endpoint uses for its
// RTO and TIME-WAIT timers.
func NewTable(timer *contimer.Timer) *Table {
	return &Table{entries: make(map[string]*Entry), timer: timer}
}

// lookupOrCreate returns the entry for proto, creating an UNKNOWN one if
// absent.
func (t *Table) lookupOrCreate(proto tcpip.Address) *Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[proto.Addr]
	if !ok {
		e = newEntry(proto)
		t.entries[proto.Addr] = e
	}
	return e
}

// Lookup returns the entry for proto, or nil if the address has never been
// seen.
func (t *Table) Lookup(proto tcpip.Address) *Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entries[proto.Addr]
}

// Learn records or refreshes a RESOLVED binding without going through the
// pending-queue machinery, used both for ARP replies to our own requests
// and for gratuitous learning from unrelated ARP traffic (spec.md §4.3:
// "ARP input updates the entry for the sender's L3->L2 binding even when we
// are not the target").
func (t *Table) Learn(proto, hw tcpip.Address) {
	e := t.lookupOrCreate(proto)
	e.mu.Lock()
	if e.State == Permanent {
		e.mu.Unlock()
		return
	}
	e.HWAddr = hw
	e.State = Resolved
	e.cond.Broadcast()
	e.mu.Unlock()
}

// SetPermanent installs a static binding that never expires and is never
// overwritten by learning, e.g. the interface's own address.
func (t *Table) SetPermanent(proto, hw tcpip.Address) {
	e := t.lookupOrCreate(proto)
	e.mu.Lock()
	e.HWAddr = hw
	e.State = Permanent
	e.cond.Broadcast()
	e.mu.Unlock()
}

// Flush resets an entry to UNKNOWN, the only path (besides expiry) by which
// a RESOLVED entry may leave the resolved state, per spec.md §8's ARP
// monotonicity property.
func (t *Table) Flush(proto tcpip.Address) {
	t.mu.Lock()
	e, ok := t.entries[proto.Addr]
	t.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Lock()
	if e.State != Permanent {
		e.State = Unknown
		e.HWAddr = tcpip.Address{}
	}
	e.mu.Unlock()
}

// Snapshot returns a stable copy of the whole table, for the
// SPEC_FULL.md-supplemented ARP table dump.
func (t *Table) Snapshot() []Snapshot {
	t.mu.Lock()
	entries := make([]*Entry, 0, len(t.entries))
	for _, e := range t.entries {
		entries = append(entries, e)
	}
	t.mu.Unlock()

	out := make([]Snapshot, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, Snapshot{ProtoAddr: e.ProtoAddr, HWAddr: e.HWAddr, State: e.State})
		e.mu.Unlock()
	}
	return out
}

// scheduleExpiry arms a PENDING entry's resolution deadline on the shared
// timer thread. When it fires with the entry still PENDING, it resets the
// entry to UNKNOWN and wakes every waiter (spec.md §4.3: "On timeout,
// waiters fail with UNREACHABLE and the entry transitions to UNKNOWN").
func (t *Table) scheduleExpiry(e *Entry, timeout time.Duration) {
	t.timer.QueueRel(timeout, func(arg any) {
		entry := arg.(*Entry)
		entry.mu.Lock()
		if entry.State == Pending {
			entry.State = Unknown
			entry.timedOut = true
			entry.cond.Broadcast()
		}
		entry.mu.Unlock()
	}, e)
}
