package chathistory

import (
	"bufio"
	"bytes"
	"testing"
)

func TestWriteReadRecord_RoundTrip(t *testing.T) {
	var key [32]byte
	key[0] = 1

	var buf bytes.Buffer
	plaintext := []byte{recordTypeMessage, 0x01, 0x02, 0x03}
	if err := writeRecord(&buf, key, plaintext); err != nil {
		t.Fatalf("writeRecord: %v", err)
	}

	var zero [32]byte
	res, err := readRecord(bufio.NewReader(&buf), key, zero)
	if err != nil {
		t.Fatalf("readRecord: %v", err)
	}
	if res.eof || !bytes.Equal(res.plaintext, plaintext) {
		t.Fatalf("round trip mismatch: %+v", res)
	}
}

func TestWriteRecord_RejectsEmptyPlaintextAndZeroKey(t *testing.T) {
	var key [32]byte
	key[0] = 1
	var zero [32]byte

	var buf bytes.Buffer
	if err := writeRecord(&buf, key, nil); err == nil {
		t.Fatal("expected error for empty plaintext")
	}
	if err := writeRecord(&buf, zero, []byte{0x01}); err == nil {
		t.Fatal("expected error for all-zero key")
	}
}

// A declared length outside (0, 2 MiB] is rejected as RecordSizeInvalid.
func TestReadRecord_RejectsOutOfRangeLength(t *testing.T) {
	var key [32]byte
	key[0] = 1

	var buf bytes.Buffer
	buf.Write([]byte{0x00, 0x00, 0x00, 0x00}) // len=0
	buf.Write(make([]byte, nonceSize+tagSize))

	_, err := readRecord(bufio.NewReader(&buf), key, key)
	herr, ok := err.(*Error)
	if !ok || herr.Kind != ErrRecordSizeInval {
		t.Fatalf("expected ErrRecordSizeInval, got %v", err)
	}
}

func TestReadRecord_CleanEOFAtLengthPrefix(t *testing.T) {
	var key [32]byte
	key[0] = 1

	res, err := readRecord(bufio.NewReader(bytes.NewReader(nil)), key, key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.eof {
		t.Fatal("expected a clean EOF result")
	}
}

// Flipping a single byte of an otherwise-valid record breaks authentication.
func TestReadRecord_BitFlipCausesAuthFailed(t *testing.T) {
	var key [32]byte
	key[0] = 1
	var zero [32]byte

	var buf bytes.Buffer
	if err := writeRecord(&buf, key, []byte{recordTypeMessage, 0xAA}); err != nil {
		t.Fatal(err)
	}
	raw := buf.Bytes()
	raw[len(raw)-1] ^= 0xFF

	_, err := readRecord(bufio.NewReader(bytes.NewReader(raw)), key, zero)
	herr, ok := err.(*Error)
	if !ok || herr.Kind != ErrAuthFailed {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
}

func TestReadRecord_FallsBackToMasterKey(t *testing.T) {
	var master [32]byte
	master[0] = 7
	var convKey [32]byte
	convKey[0] = 9

	var buf bytes.Buffer
	plaintext := []byte{recordTypeMeta, 0x00}
	if err := writeRecord(&buf, master, plaintext); err != nil {
		t.Fatal(err)
	}

	res, err := readRecord(bufio.NewReader(&buf), convKey, master)
	if err != nil {
		t.Fatalf("expected master-key fallback to succeed, got %v", err)
	}
	if !bytes.Equal(res.plaintext, plaintext) {
		t.Fatalf("unexpected plaintext: %v", res.plaintext)
	}
}
