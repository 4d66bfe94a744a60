// Copyright 2016 The Netstack Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package contimer

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestQueueFiresAfterDelay(t *testing.T) {
	tm := New()
	defer tm.Stop()

	done := make(chan any, 1)
	start := time.Now()
	tm.QueueRel(20*time.Millisecond, func(arg any) { done <- arg }, "payload")

	select {
	case v := <-done:
		if v != "payload" {
			t.Fatalf("callback arg = %v, want \"payload\"", v)
		}
		if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
			t.Fatalf("fired too early: %v", elapsed)
		}
	case <-time.After(time.Second):
		t.Fatal("callback did not fire")
	}
}

func TestCancelPreventsFire(t *testing.T) {
	tm := New()
	defer tm.Stop()

	var fired atomic.Bool
	h := tm.QueueRel(20*time.Millisecond, func(arg any) { fired.Store(true) }, nil)
	tm.Cancel(h)

	time.Sleep(60 * time.Millisecond)
	if fired.Load() {
		t.Fatal("cancelled callback fired")
	}
}

func TestOrderingByDeadline(t *testing.T) {
	tm := New()
	defer tm.Stop()

	order := make(chan int, 3)
	tm.QueueRel(30*time.Millisecond, func(arg any) { order <- 3 }, nil)
	tm.QueueRel(10*time.Millisecond, func(arg any) { order <- 1 }, nil)
	tm.QueueRel(20*time.Millisecond, func(arg any) { order <- 2 }, nil)

	for i, want := range []int{1, 2, 3} {
		select {
		case got := <-order:
			if got != want {
				t.Fatalf("fire #%d = %d, want %d", i, got, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for fire #%d", i)
		}
	}
}
