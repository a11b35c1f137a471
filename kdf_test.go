package chathistory

import "testing"

func TestDeriveConversationKey_DeterministicAndNonZero(t *testing.T) {
	var master [32]byte
	for i := range master {
		master[i] = byte(i + 1)
	}

	k1, err := deriveConversationKey(master, false, "bob")
	if err != nil {
		t.Fatalf("deriveConversationKey: %v", err)
	}
	if isZeroKey(k1) {
		t.Fatal("derived key must never be all-zero")
	}

	k2, err := deriveConversationKey(master, false, "bob")
	if err != nil {
		t.Fatalf("deriveConversationKey: %v", err)
	}
	if k1 != k2 {
		t.Fatal("derivation must be deterministic for identical inputs")
	}

	k3, err := deriveConversationKey(master, true, "bob")
	if err != nil {
		t.Fatalf("deriveConversationKey: %v", err)
	}
	if k1 == k3 {
		t.Fatal("group flag must change the derived key")
	}
}

func TestDeriveConversationKey_RejectsZeroMasterOrEmptyConvID(t *testing.T) {
	var zero [32]byte
	if _, err := deriveConversationKey(zero, false, "bob"); err == nil {
		t.Fatal("expected error for all-zero master key")
	}

	var master [32]byte
	master[0] = 1
	if _, err := deriveConversationKey(master, false, ""); err == nil {
		t.Fatal("expected error for empty conv_id")
	}
}
