package chathistory

import (
	"bytes"
	"os"
	"testing"

	"github.com/mi-e2ee/chathistory/securestore"
)

// stubSecureStore is a minimal securestore.Store that reports itself as
// supported and wraps by prefixing a fixed tag, letting tests drive the
// transparent re-wrap path without any real OS primitive.
type stubSecureStore struct{}

func (stubSecureStore) Supported() bool { return true }

func (stubSecureStore) Protect(plain, entropy []byte) ([]byte, error) {
	out := append([]byte("STUB:"), entropy...)
	out = append(out, ':')
	out = append(out, plain...)
	return out, nil
}

func (stubSecureStore) Unprotect(blob, entropy []byte) ([]byte, error) {
	prefix := append([]byte("STUB:"), entropy...)
	prefix = append(prefix, ':')
	return append([]byte(nil), blob[len(prefix):]...), nil
}

var _ securestore.Store = stubSecureStore{}

// Wiping the key in place and then reloading it reproduces the same key.
func TestMasterKey_WipeThenReloadIsIdempotent(t *testing.T) {
	st, _ := newTestStore(t)

	original := st.master
	st.wipeMasterKey()
	if !isZeroKey(st.master) || st.keyLoaded {
		t.Fatal("wipeMasterKey must zero the key and clear keyLoaded")
	}

	if err := st.ensureKeyLoaded(); err != nil {
		t.Fatalf("ensureKeyLoaded: %v", err)
	}
	if st.master != original {
		t.Fatal("reload after wipe must reproduce the persisted key")
	}
}

// A zero-length key file is treated as "no key present".
func TestMasterKey_ZeroLengthFileGeneratesFreshKey(t *testing.T) {
	dir, err := os.MkdirTemp("", "chathistory-zerokey2-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	st := New()
	if err := st.Init(dir, "bob"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	first := st.master

	if err := os.WriteFile(st.keyPath, nil, 0600); err != nil {
		t.Fatal(err)
	}
	st.keyLoaded = false
	if err := st.ensureKeyLoaded(); err != nil {
		t.Fatalf("ensureKeyLoaded: %v", err)
	}
	if st.master == first {
		t.Fatal("expected a freshly generated key distinct from the wiped one")
	}
}

func TestMasterKey_FileExceedingSizeBoundRejected(t *testing.T) {
	dir, err := os.MkdirTemp("", "chathistory-oversize-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	st := New()
	if err := st.Init(dir, "carol"); err != nil {
		t.Fatalf("Init: %v", err)
	}

	oversized := bytes.Repeat([]byte{0x42}, maxMasterKeyFileBytes+1)
	if err := os.WriteFile(st.keyPath, oversized, 0600); err != nil {
		t.Fatal(err)
	}
	st.keyLoaded = false

	err = st.ensureKeyLoaded()
	herr, ok := err.(*Error)
	if !ok || herr.Kind != ErrKeyTooLarge {
		t.Fatalf("expected ErrKeyTooLarge, got %v", err)
	}
}

// A key file written while the secure store was unsupported gets
// transparently re-wrapped the next time a supported secure store loads
// it, and the re-wrapped file still reloads to the identical key.
func TestMasterKey_TransparentRewrapOnSecureStoreBecomingAvailable(t *testing.T) {
	dir, err := os.MkdirTemp("", "chathistory-rewrap-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	st := New()
	if err := st.Init(dir, "dave"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	original := st.master

	raw, err := os.ReadFile(st.keyPath)
	if err != nil {
		t.Fatal(err)
	}
	if hasMagicPrefix(raw, masterKeyDPAPIMagic) {
		t.Fatal("precondition failed: key file must start out unwrapped")
	}

	st.secure = stubSecureStore{}
	st.keyLoaded = false
	if err := st.ensureKeyLoaded(); err != nil {
		t.Fatalf("ensureKeyLoaded: %v", err)
	}
	if st.master != original {
		t.Fatal("re-wrap must not change the loaded key")
	}

	rewrapped, err := os.ReadFile(st.keyPath)
	if err != nil {
		t.Fatal(err)
	}
	if !hasMagicPrefix(rewrapped, masterKeyDPAPIMagic) {
		t.Fatalf("expected the on-disk file to begin with %q, got %q", masterKeyDPAPIMagic, rewrapped[:len(masterKeyDPAPIMagic)])
	}

	st.keyLoaded = false
	st.master = [32]byte{}
	if err := st.ensureKeyLoaded(); err != nil {
		t.Fatalf("ensureKeyLoaded after rewrap: %v", err)
	}
	if st.master != original {
		t.Fatal("reloading the re-wrapped file must unwrap to the identical key")
	}
}

func hasMagicPrefix(data []byte, magic string) bool {
	return len(data) >= len(magic) && string(data[:len(magic)]) == magic
}
