// Copyright 2016 The Netstack Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tcp

import (
	"time"

	"github.com/coolheart77/netstack/contimer"
	"github.com/coolheart77/netstack/tcpip"
	"github.com/coolheart77/netstack/tcpip/seqnum"
)

// NewEndpoint creates a closed endpoint bound to id, ready to Connect or to
// be handed to a Listener as a freshly-accepted socket. route and timer are
// supplied by the stack package.
func NewEndpoint(id tcpip.Endpoint, route *Route, cfg Config, timer *contimer.Timer) *Endpoint {
	return &Endpoint{e: newEndpoint(id, route, cfg, timer)}
}

// Endpoint is the public handle to a TCP socket, wrapping the internal
// endpoint state machine with the blocking socket API of spec.md §9:
// connect/send/recv/shutdown/close all block on a condition variable rather
// than a coroutine scheduler, unlike
// _examples/coolheart77-netstack/tcpip/transport/tcp/connect.go's waker-
// driven protocolMainLoop (kept internally in run(), not exposed here).
type Endpoint struct {
	e *endpoint
}

// Connect performs an active open, blocking until the handshake completes,
// fails, or deadline (zero means no deadline) elapses.
func (ep *Endpoint) Connect(deadline time.Time) *tcpip.Error {
	e := ep.e
	e.mu.Lock()
	if e.state != StateClosed {
		e.mu.Unlock()
		return tcpip.ErrInvalidEndpointState
	}
	hs, err := newHandshake(e, true, seqnum.Size(e.cfg.RecvBufferSize))
	if err != nil {
		e.mu.Unlock()
		return tcpip.ErrIO
	}
	e.hs = hs
	e.setState(StateSynSent)
	go e.run()
	sendErr := hs.start()
	e.mu.Unlock()
	if sendErr != nil {
		return sendErr
	}

	return ep.waitFor(deadline, func() bool {
		return e.state != StateSynSent && e.state != StateSynReceived
	})
}

// waitFor blocks on e.cond until cond() is true, the endpoint's hardErr is
// set, or deadline elapses. Callers must not hold e.mu.
func (ep *Endpoint) waitFor(deadline time.Time, cond func() bool) *tcpip.Error {
	e := ep.e
	e.mu.Lock()
	defer e.mu.Unlock()

	if deadline.IsZero() {
		for !cond() && e.hardErr == nil {
			e.cond.Wait()
		}
	} else {
		timedOut := false
		done := make(chan struct{})
		timer := time.AfterFunc(time.Until(deadline), func() {
			e.mu.Lock()
			timedOut = true
			e.cond.Broadcast()
			e.mu.Unlock()
			close(done)
		})
		defer timer.Stop()
		for !cond() && e.hardErr == nil && !timedOut {
			e.cond.Wait()
		}
		if timedOut {
			return tcpip.ErrTimeout
		}
	}
	if e.hardErr != nil {
		return e.hardErr
	}
	return nil
}

// Write queues p for transmission, blocking only long enough to enqueue
// (flow control back-pressure against the peer's window happens inside the
// processing loop's sendData, not here), per spec.md §9's non-blocking-send
// posture: send() enqueues and returns once there is buffer room.
func (ep *Endpoint) Write(p []byte) (int, *tcpip.Error) {
	e := ep.e
	e.mu.Lock()
	if !e.state.connected() && e.state != StateSynSent && e.state != StateSynReceived {
		e.mu.Unlock()
		return 0, tcpip.ErrClosedForSend
	}
	if e.sndClosed {
		e.mu.Unlock()
		return 0, tcpip.ErrClosedForSend
	}
	for len(e.sndQueue) >= e.cfg.SendBufferSize && e.hardErr == nil && !e.sndClosed {
		e.cond.Wait()
	}
	if e.hardErr != nil {
		err := e.hardErr
		e.mu.Unlock()
		return 0, err
	}
	room := e.cfg.SendBufferSize - len(e.sndQueue)
	n := len(p)
	if n > room {
		n = room
	}
	e.sndQueue = append(e.sndQueue, p[:n]...)
	e.mu.Unlock()

	e.queueNotify(notifyWrite)
	return n, nil
}

// Read copies received, in-order bytes into p, blocking until at least one
// byte is available, the peer's FIN has been seen (returning io.EOF via
// ErrClosedForReceive with n==0), or a hard error occurs.
func (ep *Endpoint) Read(p []byte) (int, *tcpip.Error) {
	e := ep.e
	e.mu.Lock()
	defer e.mu.Unlock()

	for {
		if e.rcv != nil {
			n := e.rcv.Read(e.rcv.Base(), p, len(p))
			if n > 0 {
				e.rcv.Consume(n)
				return n, nil
			}
		}
		if e.rcvClosed {
			return 0, tcpip.ErrClosedForReceive
		}
		if e.hardErr != nil {
			return 0, e.hardErr
		}
		e.cond.Wait()
	}
}

// Shutdown half-closes the connection for further writes, sending a FIN
// once any queued data has drained, per spec.md §4.5.
func (ep *Endpoint) Shutdown() *tcpip.Error {
	e := ep.e
	e.mu.Lock()
	if e.sndClosed {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()
	e.queueNotify(notifyShutdownWrite)
	return nil
}

// Close releases the endpoint. If the connection is still established it
// behaves like Shutdown and lets the state machine run down through
// FIN-WAIT/TIME-WAIT normally; spec.md §5's refcounting means Close merely
// drops this handle's reference, so an endpoint with other outstanding
// references (e.g. a listener's backlog) is not torn down underneath them.
func (ep *Endpoint) Close() {
	e := ep.e
	e.mu.Lock()
	state := e.state
	e.mu.Unlock()

	switch state {
	case StateClosed:
		return
	case StateListen:
		e.queueNotify(notifyAbort)
	default:
		e.queueNotify(notifyClose)
	}
}

// Abort immediately resets the connection, per spec.md §4.7's abort
// operation.
func (ep *Endpoint) Abort() {
	ep.e.queueNotify(notifyAbort)
}

// State returns the endpoint's current TCP state.
func (ep *Endpoint) State() State {
	e := ep.e
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Wait blocks until the endpoint's processing loop has exited, i.e. the
// connection has reached CLOSED for good. Used by the stack package to
// reconcile its socket table and active-socket gauge without polling.
func (ep *Endpoint) Wait() {
	<-ep.e.workerDone
}

// SetNoDelay toggles Nagle-equivalent coalescing. This stack's sendData
// always flushes eagerly (it has no Nagle timer), so TCP_NODELAY is
// accepted for API compatibility but has no additional effect.
func (ep *Endpoint) SetNoDelay(bool) {}

// SetMaxSegSize overrides the advertised MSS for this endpoint.
func (ep *Endpoint) SetMaxSegSize(mss uint16) {
	e := ep.e
	e.mu.Lock()
	e.cfg.MSS = mss
	e.mu.Unlock()
}
