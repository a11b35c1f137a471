package chathistory

import "testing"

func TestMetaPlaintext_RoundTrip(t *testing.T) {
	plaintext := buildMetaPlaintext(true, "g1")
	isGroup, convID, ok := decodeMetaPlaintext(plaintext[1:])
	if !ok || !isGroup || convID != "g1" {
		t.Fatalf("meta round trip failed: isGroup=%v convID=%q ok=%v", isGroup, convID, ok)
	}
}

func TestMessagePlaintext_EnvelopeRoundTrip(t *testing.T) {
	plaintext := encodeMessagePlaintext(messageKindEnvelope, false, true, StatusDelivered, 12345, "alice", []byte{1, 2, 3}, "")
	dm := decodeMessagePlaintext(plaintext[1:])
	if !dm.ok || !dm.statusOK {
		t.Fatal("expected successful decode")
	}
	if dm.isGroup || !dm.outgoing || dm.status != StatusDelivered || dm.timestamp != 12345 || dm.sender != "alice" || string(dm.envelope) != "\x01\x02\x03" {
		t.Fatalf("unexpected decode: %+v", dm)
	}
}

func TestMessagePlaintext_SystemRoundTrip(t *testing.T) {
	plaintext := encodeMessagePlaintext(messageKindSystem, true, false, StatusSent, 99, "", nil, "hello")
	dm := decodeMessagePlaintext(plaintext[1:])
	if !dm.ok || dm.text != "hello" || !dm.isGroup {
		t.Fatalf("unexpected decode: %+v", dm)
	}
}

func TestMessagePlaintext_TrailingBytesRejected(t *testing.T) {
	plaintext := encodeMessagePlaintext(messageKindSystem, false, false, StatusSent, 1, "", nil, "hi")
	plaintext = append(plaintext, 0xFF) // trailing garbage
	dm := decodeMessagePlaintext(plaintext[1:])
	if dm.ok {
		t.Fatal("expected rejection of a record with trailing bytes")
	}
}

func TestStatusPlaintext_RoundTrip(t *testing.T) {
	var id [16]byte
	id[0] = 0xAB
	plaintext := encodeStatusPlaintext(true, StatusRead, 555, id)
	ds := decodeStatusPlaintext(plaintext[1:])
	if !ds.ok || !ds.statusOK || !ds.isGroup || ds.status != StatusRead || ds.timestamp != 555 || ds.msgID != id {
		t.Fatalf("unexpected decode: %+v", ds)
	}
}

func TestParseStatus_RejectsUnknownCodes(t *testing.T) {
	if _, ok := parseStatus(4); ok {
		t.Fatal("expected status code 4 to be rejected")
	}
	if _, ok := parseStatus(255); ok {
		t.Fatal("expected status code 255 to be rejected")
	}
}

func TestMergeStatus_RankOrder(t *testing.T) {
	if mergeStatus(StatusDelivered, StatusSent) != StatusDelivered {
		t.Fatal("must not downgrade")
	}
	if mergeStatus(StatusSent, StatusRead) != StatusRead {
		t.Fatal("must upgrade to strictly higher rank")
	}
	if mergeStatus(StatusDelivered, StatusDelivered) != StatusDelivered {
		t.Fatal("ties must keep the incumbent")
	}
}

func TestExtractEnvelopeMsgID(t *testing.T) {
	var id [16]byte
	id[0] = 0x01
	id[15] = 0xFF
	envelope := append([]byte{'M', 'I', 'C', 'H', 0x00, 0x00}, id[:]...)
	envelope = append(envelope, 0xAA, 0xBB)

	got, ok := extractEnvelopeMsgID(envelope)
	if !ok || got != id {
		t.Fatalf("expected to extract embedded id, got %v ok=%v", got, ok)
	}

	if _, ok := extractEnvelopeMsgID([]byte{0x01, 0x02}); ok {
		t.Fatal("expected no match for a too-short envelope")
	}
}
