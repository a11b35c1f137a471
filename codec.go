package chathistory

// encodeMessagePlaintext builds a type-2 Message record's plaintext:
// type ‖ kind:u8 ‖ group_flag:u8 ‖ outgoing:u8 ‖ status:u8 ‖ ts:u64-le ‖ ...
func encodeMessagePlaintext(kind byte, isGroup, outgoing bool, status Status, ts uint64, sender string, envelope []byte, systemText string) []byte {
	out := make([]byte, 0, 16+len(sender)+len(envelope)+len(systemText))
	out = append(out, recordTypeMessage, kind, boolByte(isGroup), boolByte(outgoing), byte(status))
	var tsBuf [8]byte
	putUint64LE(tsBuf[:], ts)
	out = append(out, tsBuf[:]...)

	switch kind {
	case messageKindEnvelope:
		out = appendFramedString(out, sender)
		out = appendFramedBytes(out, envelope)
	case messageKindSystem:
		out = appendFramedString(out, systemText)
	}
	return out
}

// encodeStatusPlaintext builds a type-3 Status record's plaintext:
// type ‖ group_flag:u8 ‖ status:u8 ‖ ts:u64-le ‖ msg_id:16.
func encodeStatusPlaintext(isGroup bool, status Status, ts uint64, msgID [16]byte) []byte {
	out := make([]byte, 0, 2+8+16+1)
	out = append(out, recordTypeStatus, boolByte(isGroup), byte(status))
	var tsBuf [8]byte
	putUint64LE(tsBuf[:], ts)
	out = append(out, tsBuf[:]...)
	out = append(out, msgID[:]...)
	return out
}

type decodedMessage struct {
	kind      byte
	isGroup   bool
	outgoing  bool
	status    Status
	statusOK  bool
	timestamp uint64
	sender    string
	envelope  []byte
	text      string
	ok        bool
}

// decodeMessagePlaintext parses a type-2 record's plaintext, excluding the
// leading type byte (caller has already dispatched on it).
func decodeMessagePlaintext(body []byte) decodedMessage {
	var m decodedMessage
	if len(body) < 1+1+1+1+8 {
		return m
	}
	off := 0
	m.kind = body[off]
	off++
	m.isGroup = body[off] != 0
	off++
	m.outgoing = body[off] != 0
	off++
	statusByte := body[off]
	off++
	ts, off2, ok := readUint64LE(body, off)
	if !ok {
		return m
	}
	off = off2
	m.timestamp = ts

	switch m.kind {
	case messageKindEnvelope:
		sender, off3, ok := readFramedString(body, off)
		if !ok {
			return m
		}
		off = off3
		envelope, off4, ok := readFramedBytes(body, off)
		if !ok {
			return m
		}
		off = off4
		if off != len(body) {
			return m // trailing bytes: reject the record
		}
		m.sender = sender
		m.envelope = append([]byte(nil), envelope...)
	case messageKindSystem:
		text, off3, ok := readFramedString(body, off)
		if !ok {
			return m
		}
		off = off3
		if off != len(body) {
			return m
		}
		m.text = text
	default:
		return m
	}

	status, statusOK := parseStatus(statusByte)
	m.status = status
	m.statusOK = statusOK
	m.ok = true
	return m
}

type decodedStatus struct {
	isGroup   bool
	status    Status
	statusOK  bool
	timestamp uint64
	msgID     [16]byte
	ok        bool
}

// decodeStatusPlaintext parses a type-3 record's plaintext, excluding the
// leading type byte.
func decodeStatusPlaintext(body []byte) decodedStatus {
	var s decodedStatus
	if len(body) != 1+1+8+16 {
		return s
	}
	off := 0
	s.isGroup = body[off] != 0
	off++
	statusByte := body[off]
	off++
	ts, off2, ok := readUint64LE(body, off)
	if !ok {
		return s
	}
	off = off2
	s.timestamp = ts
	copy(s.msgID[:], body[off:off+16])

	status, statusOK := parseStatus(statusByte)
	s.status = status
	s.statusOK = statusOK
	s.ok = true
	return s
}

// decodeMetaPlaintext parses a type-1 record's plaintext, excluding the
// leading type byte: group_flag:u8 ‖ conv_id(string-framed).
func decodeMetaPlaintext(body []byte) (isGroup bool, convID string, ok bool) {
	if len(body) < 1 {
		return false, "", false
	}
	isGroup = body[0] != 0
	id, off, ok := readFramedString(body, 1)
	if !ok || off != len(body) {
		return false, "", false
	}
	return isGroup, id, true
}

func msgIDIsZero(id [16]byte) bool {
	for _, b := range id {
		if b != 0 {
			return false
		}
	}
	return true
}

func msgIDHex(id [16]byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, 32)
	for i, b := range id {
		out[i*2] = hexDigits[b>>4]
		out[i*2+1] = hexDigits[b&0x0f]
	}
	return string(out)
}
