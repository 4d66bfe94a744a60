// Copyright 2016 The Netstack Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package link is the stack's boundary with the kernel: an AF_PACKET raw
// socket bound to one interface, its MTU and hardware address looked up
// through netlink, and the Ethernet header of received frames decoded via
// gopacket (ARP/IPv4 and outbound framing use tcpip/header). Everything
// here is explicitly out of scope as a TCP collaborator per spec.md §1 --
// cmd/netstackd opens the interface and the stack package drives it.
//
// Grounded on original_source/src/intf/intf.c and rawsock.c's AF_PACKET +
// SIOCGIFMTU/SIOCGIFHWADDR pattern, and on
// _examples/soypat-lneto/internal/tap.go's ioctl/syscall idiom, adapted
// from a TAP device to a raw socket per spec.md §6's "one network
// interface" scope.
package link

import (
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/coolheart77/netstack/tcpip"
	"github.com/coolheart77/netstack/tcpip/buffer"
	"github.com/coolheart77/netstack/tcpip/header"
)

// Interface is one bound network interface: a raw AF_PACKET socket plus the
// link and protocol addresses spec.md §3 assigns it.
type Interface struct {
	log  *slog.Logger
	name string
	fd   int

	hwAddr    tcpip.Address
	protoAddr tcpip.Address
	mtu       int

	frames chan *InboundFrame
	done   chan struct{}
}

// InboundFrame is one received frame handed up to the stack package, still
// holding a reference on its underlying buffer.Frame until Release is
// called. Timestamp is captured at the moment the raw read completed, per
// SPEC_FULL.md's "Per-frame receive timestamp" supplement.
type InboundFrame struct {
	Frame     *buffer.Frame
	EtherType header.EthernetType
	Payload   []byte // the frame's network-layer payload (after the Ethernet header)
	Timestamp time.Time
}

// Release drops this InboundFrame's reference on its underlying frame.
func (f *InboundFrame) Release() { f.Frame.DecRef() }

// Open binds a raw socket to the named interface, reading its hardware
// address and MTU through netlink (original_source's ioctl(SIOCGIFHWADDR)/
// ioctl(SIOCGIFMTU) equivalents) and assigning it protoAddr as its IPv4
// address.
func Open(log *slog.Logger, name string, protoAddr tcpip.Address) (*Interface, error) {
	nlLink, err := netlink.LinkByName(name)
	if err != nil {
		return nil, fmt.Errorf("link: lookup %q: %w", name, err)
	}
	attrs := nlLink.Attrs()

	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(unix.ETH_P_ALL)))
	if err != nil {
		return nil, fmt.Errorf("link: AF_PACKET socket: %w", err)
	}
	addr := unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_ALL),
		Ifindex:  attrs.Index,
	}
	if err := unix.Bind(fd, &addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("link: bind %q: %w", name, err)
	}

	i := &Interface{
		log:       log,
		name:      name,
		fd:        fd,
		hwAddr:    tcpip.NewAddress(tcpip.EtherProtocolNumber, hardwareAddrBytes(attrs.HardwareAddr)),
		protoAddr: protoAddr,
		mtu:       attrs.MTU,
		frames:    make(chan *InboundFrame, 256),
		done:      make(chan struct{}),
	}
	go i.receiveLoop()
	return i, nil
}

func hardwareAddrBytes(hw net.HardwareAddr) []byte {
	b := make([]byte, header.EthernetAddressSize)
	copy(b, hw)
	return b
}

func htons(v uint32) uint16 {
	return uint16(v<<8) | uint16(v>>8)
}

func (i *Interface) ProtocolAddress() tcpip.Address { return i.protoAddr }
func (i *Interface) LinkAddress() tcpip.Address     { return i.hwAddr }
func (i *Interface) MTU() int                       { return i.mtu }
func (i *Interface) Name() string                   { return i.name }

// Frames returns the channel of received frames, one goroutine's worth of
// fan-in from the raw socket, the Go-idiomatic replacement for
// original_source/src/intf/intf.c's dedicated intf_recv pthread.
func (i *Interface) Frames() <-chan *InboundFrame { return i.frames }

// Close stops the receive loop and releases the raw socket.
func (i *Interface) Close() {
	close(i.done)
	unix.Close(i.fd)
}

// receiveLoop reads raw Ethernet frames off the socket, decodes their
// Ethernet header with gopacket, and forwards every frame's payload, whatever
// its ethertype, to Frames.
// Grounded on original_source/src/intf/intf.c's intf_recv: read, timestamp,
// dispatch, repeat, with cleanup on cancellation instead of a pthread
// cleanup handler.
func (i *Interface) receiveLoop() {
	defer close(i.frames)
	buf := make([]byte, 65536)
	for {
		select {
		case <-i.done:
			return
		default:
		}

		n, _, err := unix.Recvfrom(i.fd, buf, 0)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			i.log.Warn("link: recvfrom failed", "interface", i.name, "error", err)
			return
		}
		now := time.Now()
		if n < header.EthernetMinimumSize {
			continue
		}

		pkt := gopacket.NewPacket(buf[:n], layers.LayerTypeEthernet, gopacket.DecodeOptions{Lazy: true, NoCopy: false})
		ethLayer := pkt.Layer(layers.LayerTypeEthernet)
		if ethLayer == nil {
			continue
		}
		eth := ethLayer.(*layers.Ethernet)

		f := buffer.NewFrameFromBytes(append([]byte(nil), buf[:n]...))
		f.Timestamp = now
		f.WriteLock()
		f.Consume(header.EthernetMinimumSize)
		f.Unlock()

		inbound := &InboundFrame{
			Frame:     f,
			EtherType: header.EthernetType(eth.EthernetType),
			Payload:   f.Payload(),
			Timestamp: now,
		}
		select {
		case i.frames <- inbound:
		case <-i.done:
			return
		}
	}
}
