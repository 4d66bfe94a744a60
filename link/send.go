// Copyright 2016 The Netstack Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package link

import (
	"fmt"
	"sync/atomic"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/coolheart77/netstack/tcpip"
	"github.com/coolheart77/netstack/tcpip/buffer"
	"github.com/coolheart77/netstack/tcpip/header"
)

// broadcastHW is the Ethernet broadcast address, used to carry ARP requests.
var broadcastHW = [header.EthernetAddressSize]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// ifindex re-resolves the interface index for Sendto's destination sockaddr.
// original_source caches this once at intf_open time; looked up again here
// on every send keeps this type free of any netlink handle it must close.
func (i *Interface) ifindex() (int, error) {
	nlLink, err := netlink.LinkByName(i.name)
	if err != nil {
		return 0, err
	}
	return nlLink.Attrs().Index, nil
}

// writeEthernet prepends an Ethernet header to payload and writes the frame
// to the raw socket.
func (i *Interface) writeEthernet(dstHW [header.EthernetAddressSize]byte, ethType header.EthernetType, payload []byte) error {
	idx, err := i.ifindex()
	if err != nil {
		return fmt.Errorf("link: ifindex: %w", err)
	}

	f := buffer.NewFrame(header.EthernetMinimumSize + len(payload))
	f.WriteLock()
	body := f.PushHead(len(payload))
	copy(body, payload)
	eth := header.Ethernet(f.PushHead(header.EthernetMinimumSize))
	var srcHW [header.EthernetAddressSize]byte
	copy(srcHW[:], i.hwAddr.Bytes())
	eth.Encode(&header.EthernetFields{DstAddr: dstHW, SrcAddr: srcHW, Type: ethType})
	frame := append([]byte(nil), f.Full()...)
	f.Unlock()

	addr := unix.SockaddrLinklayer{
		Protocol: htons(uint32(ethType)),
		Ifindex:  idx,
		Halen:    header.EthernetAddressSize,
	}
	copy(addr.Addr[:], dstHW[:])
	return unix.Sendto(i.fd, frame, 0, &addr)
}

// SendARPRequest emits a broadcast ARP request for target, satisfying
// neighbor.RequestSender's signature so the neighbor package can remain free
// of any link-layer dependency (spec.md §1).
func (i *Interface) SendARPRequest(localProto, localHW, target tcpip.Address) error {
	var sha, tha [header.EthernetAddressSize]byte
	var spa, tpa [4]byte
	copy(sha[:], localHW.Bytes())
	copy(spa[:], localProto.Bytes())
	copy(tpa[:], target.Bytes())

	buf := make([]byte, header.ARPSize)
	header.ARP(buf).Encode(&header.ARPFields{
		HardwareType:       header.ARPHardwareEther,
		ProtocolType:       header.EthernetTypeIPv4,
		Op:                 header.ARPRequest,
		SenderHardwareAddr: sha,
		SenderProtoAddr:    spa,
		TargetHardwareAddr: tha,
		TargetProtoAddr:    tpa,
	})
	return i.writeEthernet(broadcastHW, header.EthernetTypeARP, buf)
}

// SendARPReply answers a received ARP request, addressed directly back to
// the requester rather than broadcast.
func (i *Interface) SendARPReply(targetHW, targetProto []byte) error {
	var sha, tha [header.EthernetAddressSize]byte
	var spa, tpa [4]byte
	copy(sha[:], i.hwAddr.Bytes())
	copy(spa[:], i.protoAddr.Bytes())
	copy(tha[:], targetHW)
	copy(tpa[:], targetProto)

	buf := make([]byte, header.ARPSize)
	header.ARP(buf).Encode(&header.ARPFields{
		HardwareType:       header.ARPHardwareEther,
		ProtocolType:       header.EthernetTypeIPv4,
		Op:                 header.ARPReply,
		SenderHardwareAddr: sha,
		SenderProtoAddr:    spa,
		TargetHardwareAddr: tha,
		TargetProtoAddr:    tpa,
	})
	return i.writeEthernet(tha, header.EthernetTypeARP, buf)
}

// ipID is a monotonically increasing IPv4 identification field, per spec.md
// §6 ("the stack does not perform fragmentation, so the ID field's only
// remaining requirement is uniqueness for a given source/destination pair,
// which a simple counter satisfies").
var ipID atomic.Uint32

func nextIPID() uint16 {
	return uint16(ipID.Add(1))
}

// SendIPv4 wraps payload (a fully-formed transport-layer segment) in an IPv4
// header addressed to dstProto/dstHW and writes it out as an Ethernet frame.
func (i *Interface) SendIPv4(dstHW, dstProto []byte, protocol uint8, payload []byte) error {
	var dstHWArr [header.EthernetAddressSize]byte
	copy(dstHWArr[:], dstHW)

	var src, dst [4]byte
	copy(src[:], i.protoAddr.Bytes())
	copy(dst[:], dstProto)

	buf := make([]byte, header.IPv4MinimumSize+len(payload))
	copy(buf[header.IPv4MinimumSize:], payload)
	ip := header.IPv4(buf)
	ip.Encode(&header.IPv4Fields{
		TOS:         0,
		TotalLength: uint16(len(buf)),
		ID:          nextIPID(),
		TTL:         64,
		Protocol:    protocol,
		SrcAddr:     src,
		DstAddr:     dst,
	})
	ip.SetChecksum(ip.CalculateChecksum())

	return i.writeEthernet(dstHWArr, header.EthernetTypeIPv4, buf)
}
