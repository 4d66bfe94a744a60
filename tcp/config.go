// Copyright 2016 The Netstack Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tcp

import "time"

// Config holds the tunables of spec.md §6, defaulted the way
// original_source/include/netstack/api/tcp.h's macros do (TCP_RTO_INIT,
// TCP_RTO_MAX, TCP_MAXSEG, ...). The config package loads these from YAML
// and hands a filled-in Config to each new endpoint.
type Config struct {
	MSS uint16

	InitialRTO time.Duration
	MaxRTO     time.Duration
	MaxRetries int

	TimeWait   time.Duration
	DelayedACK time.Duration

	KeepAliveEnabled  bool
	KeepAliveIdle     time.Duration
	KeepAliveInterval time.Duration
	KeepAliveCount    int

	SendBufferSize int
	RecvBufferSize int

	ARPWaitTimeout time.Duration
}

// DefaultConfig returns the stack's out-of-the-box tunables, per spec.md §6.
func DefaultConfig() Config {
	return Config{
		MSS:               536,
		InitialRTO:        200 * time.Millisecond,
		MaxRTO:            60 * time.Second,
		MaxRetries:        5,
		TimeWait:          30 * time.Second, // 2*MSL with MSL=15s
		DelayedACK:        200 * time.Millisecond,
		KeepAliveEnabled:  false,
		KeepAliveIdle:     2 * time.Hour,
		KeepAliveInterval: 75 * time.Second,
		KeepAliveCount:    9,
		SendBufferSize:    64 * 1024,
		RecvBufferSize:    64 * 1024,
		ARPWaitTimeout:    10 * time.Second,
	}
}
