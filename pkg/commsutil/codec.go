package commsutil

import (
	"encoding/json"
	"errors"

	comms "github.com/nats-io/nats.go"
)

// ErrEmptyPayload is returned by DecodePayload for a message with no body.
// Change notifications are zero-payload and must never decode as a result.
var ErrEmptyPayload = errors.New("commsutil: empty payload")

// EncodePayload serializes v as a COMMS message body.
func EncodePayload(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// DecodePayload decodes a COMMS message body into v.
func DecodePayload(data []byte, v interface{}) error {
	if len(data) == 0 {
		return ErrEmptyPayload
	}
	return json.Unmarshal(data, v)
}

// Respond encodes v and sends it as the reply to msg.
func Respond(msg *comms.Msg, v interface{}) error {
	data, err := EncodePayload(v)
	if err != nil {
		return err
	}
	return msg.Respond(data)
}
