package chathistory

// Status is the delivery state of a message, folded from Message and
// Status records under the rank order Failed < Sent < Delivered < Read.
type Status uint8

const (
	StatusFailed Status = iota
	StatusSent
	StatusDelivered
	StatusRead
)

// rank returns the total-order position of s; higher is "more delivered".
// Unknown codes are never constructed by parseStatus, so this is total
// over the four known values.
func (s Status) rank() int {
	switch s {
	case StatusFailed:
		return 0
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	default:
		return -1
	}
}

// parseStatus validates a wire status byte, returning ok=false for any
// value of 4 or above so callers can ignore unknown status codes.
func parseStatus(b byte) (Status, bool) {
	if b > byte(StatusRead) {
		return 0, false
	}
	return Status(b), true
}

// mergeStatus folds an observed status into an incumbent one: status must
// never downgrade, so the strictly-higher-rank value wins and ties keep
// the incumbent.
func mergeStatus(incumbent, observed Status) Status {
	if observed.rank() > incumbent.rank() {
		return observed
	}
	return incumbent
}

// Message is the in-memory materialised view produced by LoadConversation
// and ExportRecentSnapshot. It is never itself persisted.
type Message struct {
	IsGroup      bool
	Outgoing     bool
	IsSystem     bool
	Status       Status
	TimestampSec uint64
	ConvID       string
	Sender       string
	Envelope     []byte
	SystemText   string
}

// envelopeMsgIDPrefix is the recognisable "MICH" marker embedded at the
// start of an envelope that carries a correlatable message id:
// "MICH" ‖ 2 reserved bytes ‖ 16-byte id.
var envelopeMsgIDPrefix = [4]byte{'M', 'I', 'C', 'H'}

const envelopeMsgIDLen = 4 + 2 + 16

// extractEnvelopeMsgID pulls the 16-byte correlation id out of an
// envelope's recognisable "MICH" prefix, if present.
func extractEnvelopeMsgID(envelope []byte) (id [16]byte, ok bool) {
	if len(envelope) < envelopeMsgIDLen {
		return id, false
	}
	for i, b := range envelopeMsgIDPrefix {
		if envelope[i] != b {
			return id, false
		}
	}
	copy(id[:], envelope[6:22])
	return id, true
}
