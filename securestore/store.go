// Package securestore wraps and unwraps a byte blob with an OS-scoped
// secret. On platforms without an OS secure store, both operations are
// identity functions. This lets the same on-disk format migrate
// seamlessly if a user moves a profile between platforms.
package securestore

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrPlainEmpty is returned by Protect when given empty plaintext.
var ErrPlainEmpty = errors.New("securestore: plaintext empty")

// ErrHeaderTruncated is returned by MaybeUnprotect when a wrapped blob's
// length header doesn't fit, or the declared length disagrees with the
// remaining input.
var ErrHeaderTruncated = errors.New("securestore: wrapped header truncated or size mismatch")

// Store is the OS-scoped wrap/unwrap capability. New returns the
// platform-appropriate implementation: a real one backed by an OS secret
// store where available, otherwise a pass-through.
type Store interface {
	// Supported reports whether Protect/Unprotect do real wrapping on
	// this platform. false means both are identity functions.
	Supported() bool

	// Protect wraps plain using entropy as additional, non-secret
	// context the OS primitive mixes into the protection.
	Protect(plain, entropy []byte) ([]byte, error)

	// Unprotect reverses Protect.
	Unprotect(blob, entropy []byte) ([]byte, error)
}

// New returns the Store implementation for the running platform.
func New() Store { return newPlatformStore() }

// Protect wraps plain via s and frames it as magic || blob_len:u32-le || blob.
// Fails with ErrPlainEmpty if plain is empty.
func Protect(s Store, plain, magic, entropy []byte) ([]byte, error) {
	if len(plain) == 0 {
		return nil, ErrPlainEmpty
	}
	blob, err := s.Protect(plain, entropy)
	if err != nil {
		return nil, fmt.Errorf("securestore: protect: %w", err)
	}
	out := make([]byte, 0, len(magic)+4+len(blob))
	out = append(out, magic...)
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(blob)))
	out = append(out, lenBuf[:]...)
	out = append(out, blob...)
	return out, nil
}

// MaybeUnprotect inspects input for the magic prefix. If absent, input is
// returned verbatim with wasWrapped=false. If present, the framed blob is
// unwrapped via s and the plaintext is returned with wasWrapped=true.
func MaybeUnprotect(s Store, input, magic, entropy []byte) (plain []byte, wasWrapped bool, err error) {
	if !hasPrefix(input, magic) {
		return input, false, nil
	}
	rest := input[len(magic):]
	if len(rest) < 4 {
		return nil, false, ErrHeaderTruncated
	}
	blobLen := binary.LittleEndian.Uint32(rest[:4])
	blob := rest[4:]
	if uint64(len(blob)) != uint64(blobLen) {
		return nil, false, ErrHeaderTruncated
	}
	plain, err = s.Unprotect(blob, entropy)
	if err != nil {
		return nil, false, fmt.Errorf("securestore: unprotect: %w", err)
	}
	return plain, true, nil
}

func hasPrefix(data, prefix []byte) bool {
	if len(prefix) == 0 || len(data) < len(prefix) {
		return false
	}
	for i := range prefix {
		if data[i] != prefix[i] {
			return false
		}
	}
	return true
}
