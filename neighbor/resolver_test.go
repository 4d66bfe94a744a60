// Copyright 2016 The Netstack Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package neighbor

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coolheart77/netstack/contimer"
	"github.com/coolheart77/netstack/tcpip"
)

func ipv4(b byte) tcpip.Address {
	return tcpip.NewAddress(tcpip.IPv4ProtocolNumber, []byte{10, 0, 0, b})
}

func hw(b byte) tcpip.Address {
	return tcpip.NewAddress(tcpip.EtherProtocolNumber, []byte{0, 0, 0, 0, 0, b})
}

func TestResolveReturnsImmediatelyWhenPermanent(t *testing.T) {
	timer := contimer.New()
	defer timer.Stop()
	table := NewTable(timer)
	table.SetPermanent(ipv4(1), hw(1))

	addr, err := table.Resolve(ipv4(2), hw(2), ipv4(1), func(tcpip.Address, tcpip.Address, tcpip.Address) error {
		t.Fatal("should not send a request for a permanent entry")
		return nil
	}, time.Second)
	require.NoError(t, err)
	require.Equal(t, hw(1), addr)
}

func TestResolveGatesConcurrentCallersOnOneRequest(t *testing.T) {
	// spec.md §8 scenario 5: a second concurrent resolver for the same
	// target joins the pending entry instead of sending its own request.
	timer := contimer.New()
	defer timer.Stop()
	table := NewTable(timer)

	var sends atomic.Int32
	send := func(local, localHW, target tcpip.Address) error {
		sends.Add(1)
		go func() {
			time.Sleep(20 * time.Millisecond)
			table.HandleReply(target, hw(9))
		}()
		return nil
	}

	var wg sync.WaitGroup
	results := make([]tcpip.Address, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = table.Resolve(ipv4(2), hw(2), ipv4(1), send, time.Second)
		}(i)
		time.Sleep(5 * time.Millisecond) // ensure the first resolver creates the PENDING entry first
	}
	wg.Wait()

	require.Equal(t, int32(1), sends.Load(), "only one ARP request should have been sent")
	for i := 0; i < 2; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, hw(9), results[i])
	}
}

func TestResolveTimesOutAndRevertsToUnknown(t *testing.T) {
	timer := contimer.New()
	defer timer.Stop()
	table := NewTable(timer)

	_, err := table.Resolve(ipv4(2), hw(2), ipv4(1), func(tcpip.Address, tcpip.Address, tcpip.Address) error {
		return nil // never reply
	}, 20*time.Millisecond)
	require.ErrorIs(t, err, tcpip.ErrNoLinkAddress)

	e := table.Lookup(ipv4(1))
	require.NotNil(t, e)
	e.mu.Lock()
	defer e.mu.Unlock()
	require.Equal(t, Unknown, e.State)
}

func TestGratuitousLearningUpdatesEntry(t *testing.T) {
	timer := contimer.New()
	defer timer.Stop()
	table := NewTable(timer)

	table.Learn(ipv4(5), hw(5))
	e := table.Lookup(ipv4(5))
	require.NotNil(t, e)
	e.mu.Lock()
	defer e.mu.Unlock()
	require.Equal(t, Resolved, e.State)
	require.Equal(t, hw(5), e.HWAddr)
}
