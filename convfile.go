package chathistory

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
)

const (
	logMagic   = "MIHLOG01"
	logVersion = 0x01
	headerLen  = len(logMagic) + 1
)

// hashHexPrefix32 returns the first 32 lowercase-hex characters of
// SHA-256(data), used to obfuscate identifiers that appear on disk.
func hashHexPrefix32(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:32]
}

func userHashHex(username string) string {
	return hashHexPrefix32([]byte(username))
}

// convKindByte returns the path discriminant used both in the hashed
// input and in the filename prefix: 'g' for group, 'p' for direct.
func convKindByte(isGroup bool) byte {
	if isGroup {
		return 'g'
	}
	return 'p'
}

func convHashHex(isGroup bool, convID string) string {
	buf := make([]byte, 0, 3+len(convID))
	buf = append(buf, 'm', convKindByte(isGroup), 0x00)
	buf = append(buf, convID...)
	return hashHexPrefix32(buf)
}

func convFilePath(convDir string, isGroup bool, convID string) string {
	kind := "p"
	if isGroup {
		kind = "g"
	}
	name := kind + "_" + convHashHex(isGroup, convID) + ".bin"
	return filepath.Join(convDir, name)
}

// writeHeader writes the 9-byte "MIHLOG01"+0x01 header.
func writeHeader(w *bufio.Writer) error {
	if _, err := w.WriteString(logMagic); err != nil {
		return err
	}
	return w.WriteByte(logVersion)
}

// verifyHeader reads and checks the 9-byte header from r.
func verifyHeader(r *bufio.Reader) error {
	hdr := make([]byte, headerLen)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return newErr("verify_header", ErrMagicMismatch, err)
	}
	if string(hdr[:len(logMagic)]) != logMagic || hdr[len(logMagic)] != logVersion {
		return newErr("verify_header", ErrMagicMismatch, nil)
	}
	return nil
}

// buildMetaPlaintext encodes a type-1 Meta record's plaintext:
// record_type ‖ group_flag:u8 ‖ conv_id(string-framed).
func buildMetaPlaintext(isGroup bool, convID string) []byte {
	out := make([]byte, 0, 2+4+len(convID))
	out = append(out, recordTypeMeta)
	out = append(out, boolByte(isGroup))
	out = appendFramedString(out, convID)
	return out
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// ensureConversationFile guarantees that path exists with a valid header
// and a Meta record, encrypted under masterKey. If the file already
// exists, it is left untouched: existence alone is sufficient and the
// header is not re-verified here.
func ensureConversationFile(path string, masterKey [32]byte, isGroup bool, convID string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return newErr("ensure_conversation_file", ErrOpen, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return newErr("ensure_conversation_file", ErrCreateFailed, err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL|os.O_TRUNC, 0600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			// Lost a creation race; the winner already wrote a valid file.
			return nil
		}
		return newErr("ensure_conversation_file", ErrCreateFailed, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := writeHeader(w); err != nil {
		return newErr("ensure_conversation_file", ErrCreateFailed, err)
	}
	meta := buildMetaPlaintext(isGroup, convID)
	if err := writeRecord(w, masterKey, meta); err != nil {
		return newErr("ensure_conversation_file", ErrCreateFailed, err)
	}
	if err := w.Flush(); err != nil {
		return newErr("ensure_conversation_file", ErrCreateFailed, err)
	}
	return f.Sync()
}

// appendToConversationFile opens path in append mode and writes one
// record's plaintext, encrypted under key.
func appendToConversationFile(path string, key [32]byte, plaintext []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return newErr("append_record", ErrOpen, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := writeRecord(w, key, plaintext); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return newErr("append_record", ErrWrite, err)
	}
	return f.Sync()
}
