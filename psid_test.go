package main

import (
	"encoding/binary"
	"testing"
)

func buildPSID(t *testing.T, dataOffset, loadAddr, initAddr, playAddr, songs uint16, body []byte) []byte {
	t.Helper()
	buf := make([]byte, psidHeaderLen)
	copy(buf[0:4], "PSID")
	binary.BigEndian.PutUint16(buf[4:6], 2)
	binary.BigEndian.PutUint16(buf[6:8], dataOffset)
	binary.BigEndian.PutUint16(buf[8:10], loadAddr)
	binary.BigEndian.PutUint16(buf[10:12], initAddr)
	binary.BigEndian.PutUint16(buf[12:14], playAddr)
	binary.BigEndian.PutUint16(buf[14:16], songs)
	binary.BigEndian.PutUint16(buf[16:18], 1)
	copy(buf[22:54], "Tune")
	return append(buf, body...)
}

func TestParsePSIDHeaderFixedLoadAddress(t *testing.T) {
	body := []byte{0xAA, 0xBB, 0xCC}
	raw := buildPSID(t, psidHeaderLen, 0x1000, 0x1003, 0x1006, 1, body)

	h, got, err := parsePSIDHeader(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if h.LoadAddress != 0x1000 || h.InitAddress != 0x1003 || h.PlayAddress != 0x1006 {
		t.Fatalf("header fields = %+v", h)
	}
	if string(got) != string(body) {
		t.Fatalf("body = %v, want %v", got, body)
	}
}

// A zero load address means the data block's own first two bytes carry
// it (the C64 PRG convention PSID inherits), and those bytes are
// stripped from the returned body.
func TestParsePSIDHeaderEmbeddedLoadAddress(t *testing.T) {
	body := []byte{0x00, 0x20, 0xAA, 0xBB}
	raw := buildPSID(t, psidHeaderLen, 0, 0x1003, 0x1006, 1, body)

	h, got, err := parsePSIDHeader(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if h.LoadAddress != 0x2000 {
		t.Fatalf("load address = %#x, want 0x2000", h.LoadAddress)
	}
	if string(got) != "\xAA\xBB" {
		t.Fatalf("body = %v, want trailing 2 bytes after the embedded address", got)
	}
}

func TestParsePSIDHeaderRejectsBadMagic(t *testing.T) {
	raw := buildPSID(t, psidHeaderLen, 0x1000, 0x1003, 0x1006, 1, nil)
	copy(raw[0:4], "XXXX")
	if _, _, err := parsePSIDHeader(raw); err == nil {
		t.Fatalf("expected error for bad magic")
	}
}

func TestParsePSIDHeaderRejectsTruncatedFile(t *testing.T) {
	raw := buildPSID(t, psidHeaderLen, 0x1000, 0x1003, 0x1006, 1, nil)
	if _, _, err := parsePSIDHeader(raw[:psidHeaderLen-1]); err == nil {
		t.Fatalf("expected error for truncated header")
	}
}

// A malformed data offset pointing past the end of the file must be
// rejected rather than panicking with a slice out-of-range.
func TestParsePSIDHeaderRejectsDataOffsetPastEOF(t *testing.T) {
	raw := buildPSID(t, psidHeaderLen, 0x1000, 0x1003, 0x1006, 1, nil)
	binary.BigEndian.PutUint16(raw[6:8], uint16(len(raw)+10))
	if _, _, err := parsePSIDHeader(raw); err == nil {
		t.Fatalf("expected error for data offset past end of file")
	}
}
