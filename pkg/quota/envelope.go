package quota

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

const (
	// CodeFailure marks an envelope whose call failed or found nothing.
	CodeFailure = 0

	// CodeOK marks a successful envelope.
	CodeOK = 1
)

// ErrMalformed is returned when an envelope's data cannot be read as a
// remaining-quota count.
var ErrMalformed = errors.New("malformed quota data")

// Envelope is the {code, data, message} body exchanged between the quota
// service and its clients.
type Envelope struct {
	Code    int             `json:"code"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Success wraps v in a CodeOK envelope.
func Success(v any) Envelope {
	raw, err := json.Marshal(v)
	if err != nil {
		raw = []byte("null")
	}
	return Envelope{Code: CodeOK, Data: raw}
}

// Failure builds a CodeFailure envelope.
func Failure(message string) Envelope {
	return Envelope{Code: CodeFailure, Message: message}
}

// IsNull reports whether the envelope carries no data.
func (e Envelope) IsNull() bool {
	trimmed := bytes.TrimSpace(e.Data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// ParseRemaining reads a remaining-quota count from raw envelope data.
// Both JSON numbers and numeric strings are accepted, since key-value
// stores hand counters back as strings.
func ParseRemaining(raw json.RawMessage) (int64, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0, fmt.Errorf("%w: empty", ErrMalformed)
	}

	text := string(trimmed)
	if trimmed[0] == '"' {
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
	}

	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrMalformed, text)
	}
	return n, nil
}
