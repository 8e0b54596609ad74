package iol

import (
	"bytes"
	"testing"
)

func TestHeaderEncodeDecodeRoundTrip(t *testing.T) {
	h := Header{
		DestinationID:   200,
		SourceID:        513,
		DestinationPort: 16,
		SourcePort:      16,
		MessageType:     MessageTypeData,
		Channel:         0,
	}
	buf := h.Bytes()

	want := []byte{0x00, 0xC8, 0x02, 0x01, 0x10, 0x10, 0x01, 0x00}
	if !bytes.Equal(buf[:], want) {
		t.Fatalf("encoded header = % X, want % X", buf, want)
	}

	got := DecodeHeader(buf[:])
	if got != h {
		t.Fatalf("decoded header = %+v, want %+v", got, h)
	}
}

func TestPortKey(t *testing.T) {
	cases := []struct {
		bay, unit, want int
	}{
		{0, 0, 0},
		{0, 1, 16},
		{15, 15, 255},
		{5, 2, 37},
	}
	for _, c := range cases {
		if got := PortKey(c.bay, c.unit); got != c.want {
			t.Fatalf("PortKey(%d,%d) = %d, want %d", c.bay, c.unit, got, c.want)
		}
	}
}
