// Copyright 2016 The Netstack Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tcp

import (
	"testing"

	"github.com/coolheart77/netstack/tcpip/seqnum"
)

func TestSegmentAcceptableEmptyWindow(t *testing.T) {
	tb := &tcb{rcvNxt: 100, rcvWnd: 0}
	if !tb.segmentAcceptable(100, 0) {
		t.Fatal("empty segment at rcvNxt with zero window should be acceptable")
	}
	if tb.segmentAcceptable(100, 1) {
		t.Fatal("non-empty segment with zero window should not be acceptable")
	}
	if tb.segmentAcceptable(101, 0) {
		t.Fatal("empty segment not at rcvNxt with zero window should not be acceptable")
	}
}

func TestSegmentAcceptableNonEmptyWindow(t *testing.T) {
	tb := &tcb{rcvNxt: 100, rcvWnd: 10}
	if !tb.segmentAcceptable(105, 1) {
		t.Fatal("segment inside window should be acceptable")
	}
	if tb.segmentAcceptable(200, 1) {
		t.Fatal("segment outside window should not be acceptable")
	}
	// A segment that starts before the window but extends into it is
	// acceptable per RFC 793's "either of the following two tests" rule.
	if !tb.segmentAcceptable(95, 10) {
		t.Fatal("segment overlapping the start of the window should be acceptable")
	}
}

func TestAcceptableAck(t *testing.T) {
	tb := &tcb{sndUna: 100, sndNxt: 200}
	if !tb.acceptableAck(150) {
		t.Fatal("ack strictly between una and nxt should be acceptable")
	}
	if !tb.acceptableAck(200) {
		t.Fatal("ack equal to nxt should be acceptable")
	}
	if tb.acceptableAck(100) {
		t.Fatal("ack equal to una acknowledges nothing new")
	}
	if tb.acceptableAck(201) {
		t.Fatal("ack beyond nxt acknowledges unsent data")
	}
}

func TestBytesInFlight(t *testing.T) {
	tb := &tcb{sndUna: 1000, sndNxt: 1500}
	if got, want := tb.bytesInFlight(), seqnum.Size(500); got != want {
		t.Fatalf("bytesInFlight() = %d, want %d", got, want)
	}
}

func TestUpdateSendWindowIgnoresStaleSegment(t *testing.T) {
	tb := &tcb{sndWl1: 100, sndWl2: 50, sndWnd: 1000}
	tb.updateSendWindow(90, 60, 2000) // older seq: must be ignored
	if tb.sndWnd != 1000 {
		t.Fatalf("sndWnd = %d, want unchanged 1000", tb.sndWnd)
	}
	tb.updateSendWindow(100, 45, 2000) // same seq, older ack: must be ignored
	if tb.sndWnd != 1000 {
		t.Fatalf("sndWnd = %d, want unchanged 1000", tb.sndWnd)
	}
	tb.updateSendWindow(101, 60, 2000) // newer seq: must apply
	if tb.sndWnd != 2000 {
		t.Fatalf("sndWnd = %d, want 2000", tb.sndWnd)
	}
}

func TestInRcvWindowWraparound(t *testing.T) {
	tb := &tcb{rcvNxt: seqnum.Value(0xfffffff0), rcvWnd: 32}
	if !tb.inRcvWindow(seqnum.Value(0xfffffff5)) {
		t.Fatal("value before wraparound should be in window")
	}
	if !tb.inRcvWindow(seqnum.Value(5)) {
		t.Fatal("value after wraparound should be in window")
	}
	if tb.inRcvWindow(seqnum.Value(100)) {
		t.Fatal("value well beyond the wrapped window should not be in window")
	}
}
