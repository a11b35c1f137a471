package chathistory

import (
	"os"
	"path/filepath"

	"github.com/mi-e2ee/chathistory/securestore"
)

const (
	maxMasterKeyFileBytes = 64 * 1024

	masterKeyDPAPIMagic   = "MI_E2EE_HISTORY_KEY_DPAPI1"
	masterKeyDPAPIEntropy = "MI_E2EE_HISTORY_KEY_ENTROPY_V1"
)

// ensureKeyLoaded is idempotent: if a key is already held, it returns
// immediately. Otherwise it loads history_key.bin, unwrapping it through
// the secure store if necessary, or generates and persists a fresh key.
func (s *Store) ensureKeyLoaded() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureKeyLoadedLocked()
}

func (s *Store) ensureKeyLoadedLocked() error {
	if s.keyLoaded {
		return nil
	}
	if s.keyPath == "" {
		return newErr("ensure_key_loaded", ErrKeyNotLoaded, nil)
	}

	info, err := os.Stat(s.keyPath)
	switch {
	case err == nil:
		if info.Size() > maxMasterKeyFileBytes {
			return newErr("ensure_key_loaded", ErrKeyTooLarge, nil)
		}
	case os.IsNotExist(err):
		return s.generateAndPersistKeyLocked()
	default:
		return newErr("ensure_key_loaded", ErrOpen, err)
	}

	raw, err := os.ReadFile(s.keyPath)
	if err != nil {
		return newErr("ensure_key_loaded", ErrRead, err)
	}
	if len(raw) == 0 {
		// A zero-length key file is treated as "no key present".
		return s.generateAndPersistKeyLocked()
	}

	plain, wasWrapped, err := securestore.MaybeUnprotect(
		s.secure, raw, []byte(masterKeyDPAPIMagic), []byte(masterKeyDPAPIEntropy))
	if err != nil {
		return newErr("ensure_key_loaded", ErrSecureUnwrap, err)
	}
	if len(plain) != keySize {
		return newErr("ensure_key_loaded", ErrKeyInvalid, nil)
	}

	copy(s.master[:], plain)
	s.keyLoaded = true

	if !wasWrapped && s.secure.Supported() {
		// Transparent re-wrap; failure is silently ignored, the key
		// remains usable in its bare form.
		_ = s.rewrapKeyLocked(plain)
	}
	return nil
}

func (s *Store) rewrapKeyLocked(plain []byte) error {
	wrapped, err := securestore.Protect(s.secure, plain, []byte(masterKeyDPAPIMagic), []byte(masterKeyDPAPIEntropy))
	if err != nil {
		return err
	}
	return atomicWriteFile(s.keyPath, wrapped)
}

func (s *Store) generateAndPersistKeyLocked() error {
	plain, err := randomBytes(keySize)
	if err != nil {
		return newErr("ensure_key_loaded", ErrRng, err)
	}

	out := plain
	if s.secure.Supported() {
		wrapped, err := securestore.Protect(s.secure, plain, []byte(masterKeyDPAPIMagic), []byte(masterKeyDPAPIEntropy))
		if err != nil {
			return newErr("ensure_key_loaded", ErrSecureStoreWrap, err)
		}
		out = wrapped
	}

	if err := os.MkdirAll(filepath.Dir(s.keyPath), 0700); err != nil {
		return newErr("ensure_key_loaded", ErrKeyWrite, err)
	}
	if err := atomicWriteFile(s.keyPath, out); err != nil {
		return newErr("ensure_key_loaded", ErrKeyWrite, err)
	}

	copy(s.master[:], plain)
	s.keyLoaded = true
	return nil
}

// atomicWriteFile writes data to path via a temp-file + rename sequence so
// a crash never leaves a half-written key. On rename failure the temp
// file is removed and the original error surfaces.
func atomicWriteFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// wipeMasterKey overwrites the held plaintext master key with zeros. This
// is a contractual requirement, not a defence against a rooted adversary.
func (s *Store) wipeMasterKey() {
	for i := range s.master {
		s.master[i] = 0
	}
	s.keyLoaded = false
}
