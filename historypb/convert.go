// Package historypb converts the in-memory chathistory.Message view into
// protobuf well-known types, for transport to peers that want a recent
// snapshot without linking the chathistory package's on-disk format.
package historypb

import (
	"encoding/base64"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/mi-e2ee/chathistory"
)

func secondsToTime(sec int64) time.Time { return time.Unix(sec, 0).UTC() }

// statusName/statusValue mirror chathistory.Status without importing its
// unexported rank table.
var statusName = map[chathistory.Status]string{
	chathistory.StatusFailed:    "FAILED",
	chathistory.StatusSent:      "SENT",
	chathistory.StatusDelivered: "DELIVERED",
	chathistory.StatusRead:      "READ",
}

var statusValue = map[string]chathistory.Status{
	"FAILED":    chathistory.StatusFailed,
	"SENT":      chathistory.StatusSent,
	"DELIVERED": chathistory.StatusDelivered,
	"READ":      chathistory.StatusRead,
}

// ToProtoMessage converts a single Message into a structpb.Struct, the
// well-known-type stand-in for a generated message in this module.
func ToProtoMessage(m chathistory.Message) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"is_group":     m.IsGroup,
		"outgoing":     m.Outgoing,
		"is_system":    m.IsSystem,
		"status":       statusName[m.Status],
		"timestamp":    float64(m.TimestampSec),
		"conv_id":      m.ConvID,
		"sender":       m.Sender,
		"envelope_b64": base64.StdEncoding.EncodeToString(m.Envelope),
		"system_text":  m.SystemText,
	})
}

// FromProtoMessage reverses ToProtoMessage.
func FromProtoMessage(s *structpb.Struct) (chathistory.Message, error) {
	var m chathistory.Message
	fields := s.GetFields()

	m.IsGroup = fields["is_group"].GetBoolValue()
	m.Outgoing = fields["outgoing"].GetBoolValue()
	m.IsSystem = fields["is_system"].GetBoolValue()
	m.TimestampSec = uint64(fields["timestamp"].GetNumberValue())
	m.ConvID = fields["conv_id"].GetStringValue()
	m.Sender = fields["sender"].GetStringValue()
	m.SystemText = fields["system_text"].GetStringValue()

	status, ok := statusValue[fields["status"].GetStringValue()]
	if !ok {
		return m, fmt.Errorf("historypb: unknown status %q", fields["status"].GetStringValue())
	}
	m.Status = status

	raw := fields["envelope_b64"].GetStringValue()
	if raw != "" {
		envelope, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return m, fmt.Errorf("historypb: decode envelope: %w", err)
		}
		m.Envelope = envelope
	}
	return m, nil
}

// Snapshot is the wire container returned by ToProtoSnapshot: a
// generation timestamp plus the list of converted messages.
type Snapshot struct {
	GeneratedAt *timestamppb.Timestamp
	Messages    []*structpb.Struct
}

// ToProtoSnapshot converts a batch of messages, stamping the conversion
// time via timestamppb so a peer can judge snapshot freshness.
func ToProtoSnapshot(msgs []chathistory.Message, generatedAtUnixSec int64) (*Snapshot, error) {
	out := &Snapshot{
		GeneratedAt: timestamppb.New(secondsToTime(generatedAtUnixSec)),
		Messages:    make([]*structpb.Struct, 0, len(msgs)),
	}
	for _, m := range msgs {
		pm, err := ToProtoMessage(m)
		if err != nil {
			return nil, err
		}
		out.Messages = append(out.Messages, pm)
	}
	return out, nil
}

// FromProtoSnapshot reverses ToProtoSnapshot, discarding GeneratedAt.
func FromProtoSnapshot(s *Snapshot) ([]chathistory.Message, error) {
	out := make([]chathistory.Message, 0, len(s.Messages))
	for _, pm := range s.Messages {
		m, err := FromProtoMessage(pm)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
