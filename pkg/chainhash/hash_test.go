package chainhash

import (
	"bytes"
	"testing"
)

func TestSumMatchesKnownVector(t *testing.T) {
	// SHA-256("") — standard known-answer test.
	got := Sum(nil)
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got.String() != want {
		t.Fatalf("Sum(nil) = %s, want %s", got.String(), want)
	}
}

func TestZeroIsZero(t *testing.T) {
	if !Zero.IsZero() {
		t.Fatal("Zero.IsZero() = false")
	}
	h := Sum([]byte("x"))
	if h.IsZero() {
		t.Fatal("non-zero hash reported as zero")
	}
}

func TestBoundedSliceRejectsOversize(t *testing.T) {
	if _, err := BoundedSlice(make([]byte, 256), 255); err == nil {
		t.Fatal("expected error for oversized slice")
	}
	out, err := BoundedSlice([]byte("hello"), 255)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(out, []byte("hello")) {
		t.Fatalf("got %q, want %q", out, "hello")
	}
}

func TestUint64RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteUint64(&buf, 0x0102030405060708); err != nil {
		t.Fatalf("WriteUint64: %v", err)
	}
	// Little-endian: least significant byte first.
	if buf.Bytes()[0] != 0x08 {
		t.Fatalf("not little-endian: first byte = %#x", buf.Bytes()[0])
	}
	got, err := ReadUint64(&buf)
	if err != nil {
		t.Fatalf("ReadUint64: %v", err)
	}
	if got != 0x0102030405060708 {
		t.Fatalf("got %#x, want %#x", got, 0x0102030405060708)
	}
}
