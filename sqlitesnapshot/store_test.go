package sqlitesnapshot

import (
	"context"
	"testing"

	"github.com/mi-e2ee/chathistory"
)

func TestReplaceAndCountByConversation(t *testing.T) {
	st, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	msgs := []chathistory.Message{
		{ConvID: "bob", Status: chathistory.StatusSent, TimestampSec: 1, Envelope: []byte{1, 2}},
		{ConvID: "bob", Status: chathistory.StatusRead, TimestampSec: 2, Envelope: []byte{3}},
		{ConvID: "alice", IsSystem: true, SystemText: "hi", TimestampSec: 3},
	}
	if err := st.Replace(msgs); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	counts, err := st.CountByConversation(context.Background())
	if err != nil {
		t.Fatalf("CountByConversation: %v", err)
	}
	if counts["bob"] != 2 || counts["alice"] != 1 {
		t.Fatalf("unexpected counts: %+v", counts)
	}

	// Replace must fully truncate prior rows, not accumulate them.
	if err := st.Replace(msgs[:1]); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	counts, err = st.CountByConversation(context.Background())
	if err != nil {
		t.Fatalf("CountByConversation: %v", err)
	}
	if counts["bob"] != 1 || counts["alice"] != 0 {
		t.Fatalf("expected truncate-then-insert, got %+v", counts)
	}
}
