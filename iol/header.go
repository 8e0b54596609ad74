// Package iol implements the Cisco IOU/IOL fan-out bridge variant: a
// single UNIX-domain "backplane" datagram socket multiplexing up to 256
// logical ports, demultiplexed by a fixed 8-byte header.
package iol

import "encoding/binary"

// HeaderLen is the fixed size of the IOL per-frame header.
const HeaderLen = 8

// MessageTypeData is the only message_type value this forwarder emits or
// expects; spec.md §4.6 names it explicitly, leaving the rest of the byte
// space unused.
const MessageTypeData = 1

// MaxPorts bounds the port table: port_key = bay + unit*16 must land in
// [0, MaxPorts).
const MaxPorts = 256

// Header is the 8-byte IOL frame header: destination_id and source_id are
// big-endian u16 device identifiers, destination_port/source_port are the
// bay/unit-derived port_key of either end, message_type is always
// MessageTypeData, and channel is always 0.
type Header struct {
	DestinationID   uint16
	SourceID        uint16
	DestinationPort uint8
	SourcePort      uint8
	MessageType     uint8
	Channel         uint8
}

// Encode writes h into the first HeaderLen bytes of buf, which must be at
// least that long.
func (h Header) Encode(buf []byte) {
	binary.BigEndian.PutUint16(buf[0:2], h.DestinationID)
	binary.BigEndian.PutUint16(buf[2:4], h.SourceID)
	buf[4] = h.DestinationPort
	buf[5] = h.SourcePort
	buf[6] = h.MessageType
	buf[7] = h.Channel
}

// Bytes returns the encoded HeaderLen-byte header.
func (h Header) Bytes() [HeaderLen]byte {
	var buf [HeaderLen]byte
	h.Encode(buf[:])
	return buf
}

// DecodeHeader parses the first HeaderLen bytes of buf; buf must hold at
// least HeaderLen bytes. (The bridge listener separately requires a
// datagram longer than HeaderLen, per its "len > 8" validation in
// spec.md §4.6.)
func DecodeHeader(buf []byte) Header {
	return Header{
		DestinationID:   binary.BigEndian.Uint16(buf[0:2]),
		SourceID:        binary.BigEndian.Uint16(buf[2:4]),
		DestinationPort: buf[4],
		SourcePort:      buf[5],
		MessageType:     buf[6],
		Channel:         buf[7],
	}
}

// PortKey computes bay + unit*16, the index into a 256-entry port table.
func PortKey(bay, unit int) int {
	return bay + unit*16
}
