package chathistory

import (
	"crypto/rand"

	"golang.org/x/crypto/chacha20poly1305"
)

// nonceSize and tagSize are fixed by the XChaCha20-Poly1305 construction
// used for every record: 24-byte nonce, 16-byte authentication tag, no AAD.
const (
	nonceSize = chacha20poly1305.NonceSizeX
	tagSize   = 16
	keySize   = chacha20poly1305.KeySize
)

// sealRecord encrypts plaintext under key with a freshly drawn random
// nonce and returns (nonce, ciphertext||tag). The nonce is never derived
// deterministically: uniqueness relies entirely on its 192-bit random draw
// since a file can be appended to across process lifetimes.
func sealRecord(key [32]byte, plaintext []byte) (nonce []byte, sealed []byte, err error) {
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, nil, err
	}
	nonce = make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}
	sealed = aead.Seal(nil, nonce, plaintext, nil)
	return nonce, sealed, nil
}

// openRecord attempts to authenticate and decrypt sealed (ciphertext||tag)
// under key and nonce. Returns the plaintext on success.
func openRecord(key [32]byte, nonce, sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, err
	}
	return aead.Open(nil, nonce, sealed, nil)
}

// randomBytes draws n cryptographically secure random bytes.
func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

func isZeroKey(k [32]byte) bool {
	var acc byte
	for _, b := range k {
		acc |= b
	}
	return acc == 0
}
