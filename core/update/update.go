// Package update contains the decoded representation of a single
// notification received from the remote, either from a getUpdates batch
// or pushed to a webhook.
package update

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	null "gopkg.in/guregu/null.v3"
)

// ErrUnknownKind is returned when a payload carries none of the known kind keys.
var ErrUnknownKind = errors.New("unknown or unallowed update kind")

// UnknownKindError describes a rejected kind value.
type UnknownKindError struct {
	Value string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnknownKind, e.Value)
}

func (e *UnknownKindError) Is(target error) bool {
	return target == ErrUnknownKind
}

// Update is an immutable snapshot of one raw update.
type Update struct {
	ID        int64
	Kind      Kind
	Payload   map[string]interface{}
	ChatID    null.Int
	MessageID null.Int
	Text      null.String
	From      map[string]interface{}
	FromID    null.Int
}

// Parse classifies the raw update and extracts its common fields.
// The payload is deep-copied, so later changes to raw do not leak into the result.
func Parse(raw map[string]interface{}) (*Update, error) {
	var (
		kind    Kind
		payload map[string]interface{}
	)

	for _, candidate := range Kinds {
		if value, ok := raw[string(candidate)]; ok {
			kind = candidate
			payload, _ = clone(value).(map[string]interface{})
			break
		}
	}

	if kind == "" {
		return nil, ErrUnknownKind
	}

	if payload == nil {
		payload = make(map[string]interface{})
	}

	u := &Update{
		Kind:      kind,
		Payload:   payload,
		ChatID:    ExtractInt(payload, "chat.id"),
		MessageID: ExtractInt(payload, "message_id"),
		Text:      ExtractString(payload, "text"),
	}

	if id, ok := Int64(raw["update_id"]); ok {
		u.ID = id
	}

	if from := ExtractMap(payload, "from"); len(from) > 0 {
		u.From = from
	} else {
		u.From = ExtractMap(payload, "user")
	}

	u.FromID = ExtractInt(u.From, "id")
	return u, nil
}

// Decode parses a single JSON-encoded update.
func Decode(data []byte) (*Update, error) {
	raw, err := DecodeRaw(data)
	if err != nil {
		return nil, err
	}

	return Parse(raw)
}

// DecodeRaw decodes a JSON object keeping numbers as json.Number.
func DecodeRaw(data []byte) (map[string]interface{}, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	raw := make(map[string]interface{})
	if err := decoder.Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "decode update")
	}

	return raw, nil
}

// Get extracts a value from the payload along a dotted path.
func (u *Update) Get(path string, def interface{}) interface{} {
	return Extract(u.Payload, path, def)
}

func (u *Update) String() string {
	return fmt.Sprintf("update %d [%s] from %s chat %s message %s: %q",
		u.ID, u.Kind, nullInt(u.FromID), nullInt(u.ChatID), nullInt(u.MessageID), u.Text.ValueOrZero())
}

func nullInt(value null.Int) string {
	if !value.Valid {
		return "-"
	}

	return fmt.Sprint(value.Int64)
}

func clone(value interface{}) interface{} {
	switch value := value.(type) {
	case map[string]interface{}:
		copied := make(map[string]interface{}, len(value))
		for key, item := range value {
			copied[key] = clone(item)
		}

		return copied
	case []interface{}:
		copied := make([]interface{}, len(value))
		for i, item := range value {
			copied[i] = clone(item)
		}

		return copied
	default:
		return value
	}
}
