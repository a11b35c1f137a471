package historypb

import (
	"testing"

	"github.com/mi-e2ee/chathistory"
)

func TestMessageRoundTrip(t *testing.T) {
	m := chathistory.Message{
		IsGroup:      true,
		Outgoing:     true,
		Status:       chathistory.StatusDelivered,
		TimestampSec: 1000,
		ConvID:       "g1",
		Sender:       "alice",
		Envelope:     []byte{0x01, 0x02, 0x03},
	}

	pm, err := ToProtoMessage(m)
	if err != nil {
		t.Fatalf("ToProtoMessage: %v", err)
	}

	got, err := FromProtoMessage(pm)
	if err != nil {
		t.Fatalf("FromProtoMessage: %v", err)
	}
	if got.IsGroup != m.IsGroup || got.Outgoing != m.Outgoing || got.Status != m.Status ||
		got.TimestampSec != m.TimestampSec || got.Sender != m.Sender || string(got.Envelope) != string(m.Envelope) {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, m)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	msgs := []chathistory.Message{
		{ConvID: "a", Status: chathistory.StatusSent, TimestampSec: 1},
		{ConvID: "b", Status: chathistory.StatusRead, TimestampSec: 2},
	}

	snap, err := ToProtoSnapshot(msgs, 1700000000)
	if err != nil {
		t.Fatalf("ToProtoSnapshot: %v", err)
	}
	if snap.GeneratedAt == nil {
		t.Fatal("expected a generation timestamp")
	}

	got, err := FromProtoSnapshot(snap)
	if err != nil {
		t.Fatalf("FromProtoSnapshot: %v", err)
	}
	if len(got) != 2 || got[0].ConvID != "a" || got[1].ConvID != "b" {
		t.Fatalf("unexpected snapshot round trip: %+v", got)
	}
}
