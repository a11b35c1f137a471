package chathistory

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
)

// Record type discriminants, written as the first plaintext byte of every
// record.
const (
	recordTypeMeta    = 1
	recordTypeMessage = 2
	recordTypeStatus  = 3
)

// Message kinds, the second plaintext byte of a Message record.
const (
	messageKindEnvelope = 1
	messageKindSystem   = 2
)

const maxRecordCipherLen = 2 * 1024 * 1024 // 2 MiB

// writeRecord encrypts plaintext under key with a fresh random nonce and
// appends the framed record `len:u32-le || nonce:24 || ciphertext:len || tag:16`
// to w. Refuses empty plaintext or an all-zero key.
func writeRecord(w io.Writer, key [32]byte, plaintext []byte) error {
	if len(plaintext) == 0 {
		return newErr("write_record", ErrRecordEmpty, nil)
	}
	if isZeroKey(key) {
		return newErr("write_record", ErrKeyInvalid, nil)
	}

	nonce, sealed, err := sealRecord(key, plaintext)
	if err != nil {
		return newErr("write_record", ErrRng, err)
	}

	cipherLen := len(sealed) - tagSize
	if cipherLen < 0 || uint64(cipherLen) > uint64(^uint32(0)) {
		return newErr("write_record", ErrRecordTooLarge, nil)
	}
	ciphertext := sealed[:cipherLen]
	tag := sealed[cipherLen:]

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(cipherLen))

	if _, err := w.Write(lenBuf[:]); err != nil {
		return newErr("write_record", ErrWrite, err)
	}
	if _, err := w.Write(nonce); err != nil {
		return newErr("write_record", ErrWrite, err)
	}
	if _, err := w.Write(ciphertext); err != nil {
		return newErr("write_record", ErrWrite, err)
	}
	if _, err := w.Write(tag); err != nil {
		return newErr("write_record", ErrWrite, err)
	}
	return nil
}

// readRecordResult distinguishes a clean end-of-log from a decoded record,
// so callers can stop iterating without treating EOF as an error.
type readRecordResult struct {
	plaintext []byte
	eof       bool
}

// readRecord reads one framed record from r and attempts to authenticate
// it first under convKey, then (if that fails and masterKey is non-zero)
// under masterKey. An EOF encountered exactly at the length prefix is a
// clean terminator; any short read thereafter is ErrRead.
func readRecord(r *bufio.Reader, convKey, masterKey [32]byte) (readRecordResult, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return readRecordResult{eof: true}, nil
		}
		return readRecordResult{}, newErr("read_record", ErrRead, err)
	}
	cipherLen := binary.LittleEndian.Uint32(lenBuf[:])
	if cipherLen == 0 || cipherLen > maxRecordCipherLen {
		return readRecordResult{}, newErr("read_record", ErrRecordSizeInval, nil)
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(r, nonce); err != nil {
		return readRecordResult{}, newErr("read_record", ErrRead, err)
	}

	ciphertext := make([]byte, cipherLen)
	if _, err := io.ReadFull(r, ciphertext); err != nil {
		return readRecordResult{}, newErr("read_record", ErrRead, err)
	}

	tag := make([]byte, tagSize)
	if _, err := io.ReadFull(r, tag); err != nil {
		return readRecordResult{}, newErr("read_record", ErrRead, err)
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	if !isZeroKey(convKey) {
		if plain, err := openRecord(convKey, nonce, sealed); err == nil {
			return readRecordResult{plaintext: plain}, nil
		}
	}
	if !isZeroKey(masterKey) {
		if plain, err := openRecord(masterKey, nonce, sealed); err == nil {
			return readRecordResult{plaintext: plain}, nil
		}
	}
	return readRecordResult{}, newErr("read_record", ErrAuthFailed, nil)
}

// --- string/bytes framing used inside record plaintexts ---

func putUint64LE(buf []byte, v uint64) {
	binary.LittleEndian.PutUint64(buf, v)
}

func readUint64LE(b []byte, off int) (uint64, int, bool) {
	if off+8 > len(b) {
		return 0, off, false
	}
	return binary.LittleEndian.Uint64(b[off : off+8]), off + 8, true
}

func appendFramedString(dst []byte, s string) []byte {
	return appendFramedBytes(dst, []byte(s))
}

func appendFramedBytes(dst []byte, b []byte) []byte {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(b)))
	dst = append(dst, lenBuf[:]...)
	dst = append(dst, b...)
	return dst
}

func readFramedBytes(b []byte, off int) ([]byte, int, bool) {
	if off+4 > len(b) {
		return nil, off, false
	}
	n := binary.LittleEndian.Uint32(b[off : off+4])
	off += 4
	end := off + int(n)
	if n > uint32(len(b)) || end < off || end > len(b) {
		return nil, off, false
	}
	return b[off:end], end, true
}

func readFramedString(b []byte, off int) (string, int, bool) {
	raw, next, ok := readFramedBytes(b, off)
	if !ok {
		return "", off, false
	}
	return string(raw), next, true
}
