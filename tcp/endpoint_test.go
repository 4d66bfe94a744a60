// Copyright 2016 The Netstack Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tcp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coolheart77/netstack/contimer"
	"github.com/coolheart77/netstack/seqbuf"
	"github.com/coolheart77/netstack/tcpip"
	"github.com/coolheart77/netstack/tcpip/buffer"
)

// loopbackPair wires two endpoints' Route.Send callbacks directly into each
// other's deliver(), skipping Ethernet/ARP/IPv4 entirely. It exercises the
// full handshake, data transfer, and close state machine the way
// connect.go's own tests exercise protocolMainLoop against a fake
// stack.LinkEndpoint, adapted to this module's Route abstraction.
func loopbackPair(t *testing.T, cfg Config) (*Endpoint, *Endpoint) {
	t.Helper()
	timer := contimer.New()
	t.Cleanup(timer.Stop)

	clientAddr := tcpip.NewAddress(tcpip.IPv4ProtocolNumber, []byte{10, 0, 0, 1})
	serverAddr := tcpip.NewAddress(tcpip.IPv4ProtocolNumber, []byte{10, 0, 0, 2})

	clientID := tcpip.Endpoint{LocalAddr: clientAddr, LocalPort: 50000, RemoteAddr: serverAddr, RemotePort: 80}
	serverID := tcpip.Endpoint{LocalAddr: serverAddr, LocalPort: 80, RemoteAddr: clientAddr, RemotePort: 50000}

	var client, server *Endpoint

	clientRoute := &Route{LocalAddr: clientAddr, RemoteAddr: serverAddr, MTU: 1500}
	serverRoute := &Route{LocalAddr: serverAddr, RemoteAddr: clientAddr, MTU: 1500}
	clientRoute.Send = func(payload []byte) *tcpip.Error {
		server.e.deliver(newSegment(buffer.NewFrameFromBytes(append([]byte(nil), payload...)), serverID))
		return nil
	}
	serverRoute.Send = func(payload []byte) *tcpip.Error {
		client.e.deliver(newSegment(buffer.NewFrameFromBytes(append([]byte(nil), payload...)), clientID))
		return nil
	}

	client = NewEndpoint(clientID, clientRoute, cfg, timer)
	server = NewEndpoint(serverID, serverRoute, cfg, timer)
	return client, server
}

// acceptOne wires a server-side handshake without going through Listener,
// by handing the client's SYN straight to a freshly-constructed passive
// endpoint. Used so tests can drive both sides through the public Endpoint
// API without standing up a full Listener/backlog for a single connection.
func acceptOne(t *testing.T, server *Endpoint) {
	t.Helper()
	go func() {
		server.e.mu.Lock()
		for len(server.e.segs) == 0 {
			server.e.mu.Unlock()
			time.Sleep(time.Millisecond)
			server.e.mu.Lock()
		}
		s := server.e.segs[0]
		server.e.segs = server.e.segs[1:]
		server.e.mu.Unlock()

		hs, err := newHandshake(server.e, false, 65536)
		require.NoError(t, err)
		server.e.mu.Lock()
		server.e.tcb.irs = s.sequenceNumber
		server.e.tcb.rcvNxt = s.sequenceNumber.Add(1)
		server.e.rcv = seqbuf.NewSeqBuf(server.e.tcb.rcvNxt, server.e.cfg.RecvBufferSize)
		server.e.hs = hs
		server.e.setState(StateSynReceived)
		go server.e.run()
		hs.start()
		server.e.mu.Unlock()
	}()
}

func TestHandshakeAndDataTransfer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DelayedACK = time.Hour // keep the test deterministic; no spurious timer ACKs
	client, server := loopbackPair(t, cfg)

	acceptOne(t, server)

	err := client.Connect(time.Now().Add(2 * time.Second))
	require.Nil(t, err)
	require.Eventually(t, func() bool { return server.State() == StateEstablished }, time.Second, time.Millisecond)
	require.Equal(t, StateEstablished, client.State())

	n, werr := client.Write([]byte("hello"))
	require.Nil(t, werr)
	require.Equal(t, 5, n)

	buf := make([]byte, 16)
	require.Eventually(t, func() bool {
		server.e.mu.Lock()
		defer server.e.mu.Unlock()
		return server.e.rcv != nil && server.e.rcv.Available(server.e.rcv.Base()) >= 5
	}, time.Second, time.Millisecond)

	rn, rerr := server.Read(buf)
	require.Nil(t, rerr)
	require.Equal(t, "hello", string(buf[:rn]))
}

func TestActiveCloseReachesTimeWait(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TimeWait = 50 * time.Millisecond
	client, server := loopbackPair(t, cfg)

	acceptOne(t, server)
	require.Nil(t, client.Connect(time.Now().Add(2*time.Second)))
	require.Eventually(t, func() bool { return server.State() == StateEstablished }, time.Second, time.Millisecond)

	client.Close()
	require.Eventually(t, func() bool { return server.State() == StateCloseWait }, time.Second, time.Millisecond)
	server.Close() // the peer's FIN moves the client from FIN-WAIT-2 to TIME-WAIT
	require.Eventually(t, func() bool { return client.State() == StateTimeWait || client.State() == StateClosed }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return client.State() == StateClosed }, 2*time.Second, 5*time.Millisecond)
}
