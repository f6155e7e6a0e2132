package notification

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrMalformedPush = errors.New("malformed push notification")

type Event struct {
	Type         string      `json:"type"`
	EmailAddress string      `json:"emailAddress,omitempty"`
	HistoryId    json.Number `json:"historyId,omitempty"`
}

type pushEnvelope struct {
	Message *struct {
		Data      string `json:"data"`
		MessageId string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

type mailboxChange struct {
	EmailAddress string          `json:"emailAddress"`
	HistoryId    json.RawMessage `json:"historyId"`
}

// DecodePush turns a Pub/Sub push body carrying a Gmail change notification
// into a new_email event. Every decoding failure wraps ErrMalformedPush.
func DecodePush(body []byte) (Event, error) {
	var envelope pushEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedPush, err)
	}
	if envelope.Message == nil || envelope.Message.Data == "" {
		return Event{}, fmt.Errorf("%w: message.data is missing", ErrMalformedPush)
	}

	data, err := base64.StdEncoding.DecodeString(envelope.Message.Data)
	if err != nil {
		data, err = base64.URLEncoding.DecodeString(envelope.Message.Data)
		if err != nil {
			return Event{}, fmt.Errorf("%w: message.data is not base64: %v", ErrMalformedPush, err)
		}
	}

	var change mailboxChange
	if err := json.Unmarshal(data, &change); err != nil {
		return Event{}, fmt.Errorf("%w: message.data is not JSON: %v", ErrMalformedPush, err)
	}
	historyId, err := parseHistoryId(change.HistoryId)
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedPush, err)
	}
	return Event{
		Type:         EventNewEmail,
		EmailAddress: change.EmailAddress,
		HistoryId:    historyId,
	}, nil
}

// parseHistoryId accepts the id as a JSON number or a quoted number.
func parseHistoryId(raw json.RawMessage) (json.Number, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("invalid historyId: %w", err)
		}
		raw = []byte(s)
	}
	n := json.Number(raw)
	if _, err := n.Int64(); err != nil {
		return "", fmt.Errorf("invalid historyId %q", string(raw))
	}
	return n, nil
}
