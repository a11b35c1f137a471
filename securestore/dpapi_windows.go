//go:build windows

package securestore

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// dpapiStore wraps Windows CRYPTPROTECT_PROMPTSTRUCT-free DPAPI calls:
// CryptProtectData / CryptUnprotectData from crypt32.dll, with UI
// suppressed. This is the OS-scoped secure store for the master key file.
type dpapiStore struct{}

func newPlatformStore() Store { return dpapiStore{} }

func (dpapiStore) Supported() bool { return true }

var (
	modcrypt32  = windows.NewLazySystemDLL("crypt32.dll")
	modkernel32 = windows.NewLazySystemDLL("kernel32.dll")

	procCryptProtectData   = modcrypt32.NewProc("CryptProtectData")
	procCryptUnprotectData = modcrypt32.NewProc("CryptUnprotectData")
	procLocalFree          = modkernel32.NewProc("LocalFree")
)

// dataBlob mirrors the Win32 DATA_BLOB / CRYPTOAPI_BLOB layout.
type dataBlob struct {
	cbData uint32
	pbData *byte
}

func newDataBlob(b []byte) *dataBlob {
	if len(b) == 0 {
		return &dataBlob{}
	}
	return &dataBlob{cbData: uint32(len(b)), pbData: &b[0]}
}

func (b *dataBlob) copyOut() []byte {
	if b.cbData == 0 || b.pbData == nil {
		return nil
	}
	return append([]byte(nil), unsafe.Slice(b.pbData, int(b.cbData))...)
}

const cryptProtectUIForbidden = 0x1

func (dpapiStore) Protect(plain, entropy []byte) ([]byte, error) {
	in := newDataBlob(plain)
	ent := newDataBlob(entropy)
	var out dataBlob

	r, _, callErr := procCryptProtectData.Call(
		uintptr(unsafe.Pointer(in)),
		0,
		uintptr(unsafe.Pointer(ent)),
		0,
		0,
		uintptr(cryptProtectUIForbidden),
		uintptr(unsafe.Pointer(&out)),
	)
	if r == 0 {
		return nil, fmt.Errorf("CryptProtectData failed: %w", callErr)
	}
	defer procLocalFree.Call(uintptr(unsafe.Pointer(out.pbData)))
	return out.copyOut(), nil
}

func (dpapiStore) Unprotect(blob, entropy []byte) ([]byte, error) {
	in := newDataBlob(blob)
	ent := newDataBlob(entropy)
	var out dataBlob

	r, _, callErr := procCryptUnprotectData.Call(
		uintptr(unsafe.Pointer(in)),
		0,
		uintptr(unsafe.Pointer(ent)),
		0,
		0,
		uintptr(cryptProtectUIForbidden),
		uintptr(unsafe.Pointer(&out)),
	)
	if r == 0 {
		return nil, fmt.Errorf("CryptUnprotectData failed: %w", callErr)
	}
	defer procLocalFree.Call(uintptr(unsafe.Pointer(out.pbData)))
	return out.copyOut(), nil
}
