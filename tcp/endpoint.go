// Copyright 2016 The Netstack Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tcp

import (
	"crypto/rand"
	"encoding/binary"
	"sync"
	"time"

	"github.com/coolheart77/netstack/contimer"
	"github.com/coolheart77/netstack/seqbuf"
	"github.com/coolheart77/netstack/tcpip"
)

// notify bits, set under mu and signaled to the processing loop's wake
// channel.
type notifyFlags uint32

const (
	notifyClose notifyFlags = 1 << iota
	notifyWrite
	notifyShutdownWrite
	notifyAbort
)

// endpoint is one TCP socket: a listening socket, a socket mid-handshake, or
// an established connection. Its fields mirror
// original_source/include/netstack/api/tcp.h's struct tcp_sock, generalized
// from that struct's single mutex + condvar pair to the lock ranking of
// spec.md §5 (per-socket lock is rank 3).
type endpoint struct {
	id    tcpip.Endpoint
	route *Route
	cfg   Config
	timer *contimer.Timer

	mu   sync.Mutex
	cond *sync.Cond // socket-API blocking: connect/accept/Read/Write/Close wait here

	state State
	tcb   tcb

	// send side: sndQueue[0] is byte SND.UNA; bytes before sndNxt-sndUna
	// have been transmitted at least once.
	sndQueue  []byte
	sndClosed bool // application called Shutdown(write) or Close()

	// receive side: rcv reassembles out-of-order segments (spec.md §8
	// scenario 6); rcvClosed is set once a FIN has been accepted.
	rcv       *seqbuf.SeqBuf
	rcvClosed bool

	hs *handshake // non-nil only while a 3-way handshake is in flight

	// backlog is set on a child endpoint spawned by a Listener; once the
	// child reaches ESTABLISHED, setState publishes it to the backlog for
	// Accept to pick up.
	backlog *listenContext

	segs []*segment // pending inbound segments, drained by the processing loop

	// wake is the processing loop's doorbell: deliver, queueNotify, and the
	// resend/time-wait timer callbacks each send a non-blocking struct{} on
	// it to wake run() out of its blocking receive. The channel is
	// buffered to depth 1, so a wake that arrives while run() is already
	// awake and working is coalesced into the one pending wake-up rather
	// than queuing, which is all a single "something changed, go check"
	// signal needs to be.
	wake          chan struct{}
	resendPending bool // set by onRTOFired, cleared and acted on by run()

	notify notifyFlags

	rtoHandle      contimer.Handle
	rto            time.Duration
	retries        int
	timeWaitHandle contimer.Handle

	delayedACKHandle contimer.Handle
	delayedACKArmed  bool

	hardErr *tcpip.Error // set on reset/abort/timeout, returned by the next socket call

	workerDone chan struct{}
	closeOnce  sync.Once
}

// finishWorker closes workerDone exactly once, signaling the processing
// goroutine has exited and the endpoint is fully dead.
func (e *endpoint) finishWorker() {
	e.closeOnce.Do(func() { close(e.workerDone) })
}

func newEndpoint(id tcpip.Endpoint, route *Route, cfg Config, timer *contimer.Timer) *endpoint {
	e := &endpoint{
		id:         id,
		route:      route,
		cfg:        cfg,
		timer:      timer,
		state:      StateClosed,
		rto:        cfg.InitialRTO,
		wake:       make(chan struct{}, 1),
		workerDone: make(chan struct{}),
	}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// signal wakes the processing loop if it's blocked waiting for work. It
// never blocks: a pending wake already covers whatever this one would have
// announced, so a full channel is dropped rather than queued.
func (e *endpoint) signal() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func generateISS() (seqnumValue uint32, err error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

// setState transitions the endpoint's state and wakes every goroutine
// blocked on e.cond, mirroring original_source/lib/netstack/src/tcp/tcp.c's
// pattern of a single pthread_cond_broadcast after every state change.
func (e *endpoint) setState(s State) {
	e.state = s
	e.cond.Broadcast()
	if s == StateEstablished && e.backlog != nil {
		e.backlog.publish(&Endpoint{e: e})
		e.backlog = nil
	}
}

// raise records a hard error and wakes blocked callers, used on RST,
// aborted connections, and unrecoverable timeouts.
func (e *endpoint) raise(err *tcpip.Error, next State) {
	e.hardErr = err
	e.setState(next)
}

// queueNotify asserts a notification bit and wakes the processing loop, the
// Go-idiomatic replacement for original_source's signal-driven wakeups of
// the single timer/IO thread.
func (e *endpoint) queueNotify(f notifyFlags) {
	e.mu.Lock()
	e.notify |= f
	e.mu.Unlock()
	e.signal()
}
