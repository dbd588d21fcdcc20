package node

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
	"quorumgate/internal/event"
	"quorumgate/internal/ledger"
	"quorumgate/internal/signer"
)

// Struct field names. Identifiers and values are uint64 and travel as decimal
// strings because structpb numbers are float64; payloads travel as base64.
const (
	fieldActionID      = "action_id"
	fieldTarget        = "target"
	fieldValue         = "value"
	fieldPayload       = "payload"
	fieldSigner        = "signer"
	fieldExecuted      = "executed"
	fieldConfirmations = "confirmations"
	fieldConfirmed     = "confirmed"
	fieldConfirmers    = "confirmers"
	fieldSigners       = "signers"
	fieldRequired      = "required"
	fieldActions       = "actions"
	fieldEvents        = "events"
	fieldOffset        = "offset"
	fieldLimit         = "limit"
	fieldAfterSeq      = "after_seq"
	fieldSeq           = "seq"
	fieldID            = "id"
	fieldType          = "type"
	fieldCaller        = "caller"
	fieldDerived       = "derived"
	fieldRecordedAt    = "recorded_at"
)

func stringField(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

func boolField(s *structpb.Struct, key string) bool {
	return s.GetFields()[key].GetBoolValue()
}

func intField(s *structpb.Struct, key string) int {
	return int(s.GetFields()[key].GetNumberValue())
}

// uintField parses a decimal string field. A missing field is an error when
// required is set and zero otherwise.
func uintField(s *structpb.Struct, key string, required bool) (uint64, error) {
	v, ok := s.GetFields()[key]
	if !ok {
		if required {
			return 0, fmt.Errorf("missing field %q", key)
		}
		return 0, nil
	}
	n, err := strconv.ParseUint(v.GetStringValue(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", key, err)
	}
	return n, nil
}

func bytesField(s *structpb.Struct, key string) ([]byte, error) {
	raw := stringField(s, key)
	if raw == "" {
		return nil, nil
	}
	b, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", key, err)
	}
	return b, nil
}

func encodeBytes(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func formatUint(n uint64) string {
	return strconv.FormatUint(n, 10)
}

func actionFields(a ledger.Action) map[string]any {
	return map[string]any{
		fieldActionID:      formatUint(a.ID),
		fieldTarget:        a.Target,
		fieldValue:         formatUint(a.Value),
		fieldPayload:       encodeBytes(a.Payload),
		fieldExecuted:      a.Executed,
		fieldConfirmations: a.Confirmations,
	}
}

func actionFromStruct(s *structpb.Struct) (ledger.Action, error) {
	id, err := uintField(s, fieldActionID, true)
	if err != nil {
		return ledger.Action{}, err
	}
	value, err := uintField(s, fieldValue, false)
	if err != nil {
		return ledger.Action{}, err
	}
	payload, err := bytesField(s, fieldPayload)
	if err != nil {
		return ledger.Action{}, err
	}
	return ledger.Action{
		ID:            id,
		Target:        stringField(s, fieldTarget),
		Value:         value,
		Payload:       payload,
		Executed:      boolField(s, fieldExecuted),
		Confirmations: intField(s, fieldConfirmations),
	}, nil
}

func recordFields(rec event.Record) map[string]any {
	return map[string]any{
		fieldSeq:        formatUint(rec.Seq),
		fieldID:         rec.ID,
		fieldRecordedAt: rec.RecordedAt.Format(time.RFC3339Nano),
		fieldType:       string(rec.Type),
		fieldCaller:     rec.Caller.String(),
		fieldActionID:   formatUint(rec.ActionID),
		fieldSigner:     rec.Signer.String(),
		fieldTarget:     rec.Target,
		fieldValue:      formatUint(rec.Value),
		fieldPayload:    encodeBytes(rec.Payload),
		fieldDerived:    rec.Derived,
	}
}

func recordFromStruct(s *structpb.Struct) (event.Record, error) {
	seq, err := uintField(s, fieldSeq, true)
	if err != nil {
		return event.Record{}, err
	}
	actionID, err := uintField(s, fieldActionID, false)
	if err != nil {
		return event.Record{}, err
	}
	value, err := uintField(s, fieldValue, false)
	if err != nil {
		return event.Record{}, err
	}
	payload, err := bytesField(s, fieldPayload)
	if err != nil {
		return event.Record{}, err
	}
	recordedAt, err := time.Parse(time.RFC3339Nano, stringField(s, fieldRecordedAt))
	if err != nil {
		return event.Record{}, fmt.Errorf("field %q: %w", fieldRecordedAt, err)
	}
	return event.Record{
		Seq:        seq,
		ID:         stringField(s, fieldID),
		RecordedAt: recordedAt,
		Event: event.Event{
			Type:     event.Type(stringField(s, fieldType)),
			Caller:   signer.ID(stringField(s, fieldCaller)),
			ActionID: actionID,
			Signer:   signer.ID(stringField(s, fieldSigner)),
			Target:   stringField(s, fieldTarget),
			Value:    value,
			Payload:  payload,
			Derived:  boolField(s, fieldDerived),
		},
	}, nil
}

func signerStrings(ids []signer.ID) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func signersFromList(v *structpb.Value) []signer.ID {
	values := v.GetListValue().GetValues()
	out := make([]signer.ID, 0, len(values))
	for _, item := range values {
		out = append(out, signer.ID(item.GetStringValue()))
	}
	return out
}

func structList(s *structpb.Struct, key string) []*structpb.Struct {
	values := s.GetFields()[key].GetListValue().GetValues()
	out := make([]*structpb.Struct, 0, len(values))
	for _, item := range values {
		out = append(out, item.GetStructValue())
	}
	return out
}
