package chathistory

import (
	"crypto/sha256"
	"io"
	"sync"

	"golang.org/x/crypto/hkdf"
)

const (
	historySaltLiteral = "MI_E2EE_HISTORY_SALT_V1"
	convKeyInfoPrefix  = "MI_E2EE_HISTORY_CONV_KEY_V1"
)

// historySalt is a lazily-initialised, non-secret, process-wide constant:
// SHA-256 of a fixed literal, computed once per process.
var historySalt = sync.OnceValue(func() [32]byte {
	return sha256.Sum256([]byte(historySaltLiteral))
})

// deriveConversationKey runs HKDF-SHA256 (extract-then-expand) over the
// master key with a fixed salt and a per-conversation info string:
//
//	IKM  = master key
//	salt = SHA-256("MI_E2EE_HISTORY_SALT_V1")
//	info = "MI_E2EE_HISTORY_CONV_KEY_V1" || 0x00 || (1 if group else 0) || 0x00 || conv_id
//	L    = 32
func deriveConversationKey(master [32]byte, isGroup bool, convID string) ([32]byte, error) {
	var out [32]byte
	if isZeroKey(master) {
		return out, newErr("derive_conversation_key", ErrKeyNotLoaded, nil)
	}
	if convID == "" {
		return out, newErr("derive_conversation_key", ErrConvIDEmpty, nil)
	}

	info := make([]byte, 0, len(convKeyInfoPrefix)+3+len(convID))
	info = append(info, convKeyInfoPrefix...)
	info = append(info, 0x00)
	if isGroup {
		info = append(info, 1)
	} else {
		info = append(info, 0)
	}
	info = append(info, 0x00)
	info = append(info, convID...)

	salt := historySalt()
	r := hkdf.New(sha256.New, master[:], salt[:], info)
	if _, err := io.ReadFull(r, out[:]); err != nil {
		return [32]byte{}, newErr("derive_conversation_key", ErrKeyInvalid, err)
	}
	return out, nil
}
