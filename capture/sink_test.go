package capture

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/gopacket/pcapgo"
)

func TestSinkRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.pcap")
	s, err := New(path, "EN10MB")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	frames := [][]byte{
		bytes.Repeat([]byte{0x01}, 64),
		bytes.Repeat([]byte{0x02}, 128),
		bytes.Repeat([]byte{0x03}, 32),
		bytes.Repeat([]byte{0x04}, 512),
		bytes.Repeat([]byte{0x05}, 64),
	}
	for _, f := range frames {
		if err := s.Write(f); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open capture file: %v", err)
	}
	defer f.Close()

	r, err := pcapgo.NewReader(f)
	if err != nil {
		t.Fatalf("pcapgo.NewReader: %v", err)
	}

	var count int
	for {
		data, ci, err := r.ReadPacketData()
		if err != nil {
			break
		}
		if count >= len(frames) {
			t.Fatal("more records than frames written")
		}
		if ci.Length != len(frames[count]) {
			t.Fatalf("record %d: original_length = %d, want %d", count, ci.Length, len(frames[count]))
		}
		if !bytes.Equal(data, frames[count]) {
			t.Fatalf("record %d payload mismatch", count)
		}
		count++
	}
	if count < len(frames) {
		t.Fatalf("expected at least %d records, got %d", len(frames), count)
	}
}

func TestSinkCloseIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.pcap")
	s, err := New(path, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got %v", err)
	}
	if err := s.Write([]byte("x")); err == nil {
		t.Fatal("expected write-after-close to fail")
	}
}
