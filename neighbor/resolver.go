// Copyright 2016 The Netstack Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package neighbor

import (
	"time"

	"github.com/coolheart77/netstack/tcpip"
)

// ARPWaitTimeout is the default time a Resolve call waits for a reply,
// matching original_source/include/netstack/eth/arp.h's ARP_WAIT_TIMEOUT
// (10 seconds) and spec.md §6.
const ARPWaitTimeout = 10 * time.Second

// RequestSender emits an ARP request for target out of the given
// interface-local protocol/hardware addresses. It is supplied by the link
// layer (out of scope as a collaborator per spec.md §1) so this package has
// no wire-format or socket dependency of its own.
type RequestSender func(localProto, localHW, target tcpip.Address) error

// Resolve maps target to a hardware address, per spec.md §4.3. If a
// RESOLVED or PERMANENT entry already exists it returns immediately.
// Otherwise it creates (or joins) a PENDING entry, sends at most one ARP
// request on behalf of every resolver currently waiting on that entry, and
// blocks up to timeout for a reply. Concurrent Resolve calls for the same
// target therefore share one PENDING entry and one ARP request, per
// spec.md §8 scenario 5.
func (t *Table) Resolve(localProto, localHW, target tcpip.Address, send RequestSender, timeout time.Duration) (tcpip.Address, error) {
	e := t.lookupOrCreate(target)

	e.mu.Lock()
	switch e.State {
	case Resolved, Permanent:
		hw := e.HWAddr
		e.mu.Unlock()
		return hw, nil
	case Unknown:
		e.State = Pending
		e.requestSent = false
		e.timedOut = false
		t.scheduleExpiry(e, timeout)
	case Pending:
		// Join the existing wait; the request was already sent (or is
		// about to be, by whichever goroutine got here first).
	}

	if !e.requestSent {
		e.requestSent = true
		e.mu.Unlock()
		if err := send(localProto, localHW, target); err != nil {
			e.mu.Lock()
			e.State = Unknown
			e.cond.Broadcast()
			e.mu.Unlock()
			return tcpip.Address{}, tcpip.ErrNoLinkAddress
		}
		e.mu.Lock()
	}

	for e.State == Pending {
		e.cond.Wait()
	}

	defer e.mu.Unlock()
	if e.State == Resolved || e.State == Permanent {
		return e.HWAddr, nil
	}
	return tcpip.Address{}, tcpip.ErrNoLinkAddress
}

// HandleReply processes an incoming ARP reply or gratuitous announcement
// for target, transitioning any PENDING entry to RESOLVED and waking every
// waiter, per spec.md §4.3: "On reply, the entry transitions to RESOLVED
// and all waiters wake."
func (t *Table) HandleReply(target, hw tcpip.Address) {
	t.Learn(target, hw)
}

// IsResolving reports whether target currently has a PENDING entry.
func (t *Table) IsResolving(target tcpip.Address) bool {
	e := t.Lookup(target)
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.State == Pending
}
