package proxy

import (
	"encoding/json"
	"regexp"
)

// keyLeak matches the key echoed back in upstream "Incorrect API key
// provided: sk-.... You can find your API key at ..." errors.
var keyLeak = regexp.MustCompile(`provided:.*?\. You`)

const redactedKey = "provided: ***. You"

// Redact masks API key material in an upstream error body.
func Redact(body string) string {
	return keyLeak.ReplaceAllString(body, redactedKey)
}

// fencedBody wraps a non-streaming upstream body in a json code fence.
func fencedBody(body string) string {
	return "```json\n" + body + "```"
}

// errorPayload is the serialized form of a relay failure.
type errorPayload struct {
	Error string `json:"error"`
}

// fencedError renders err as indented JSON inside a json code fence.
func fencedError(err error) string {
	raw, mErr := json.MarshalIndent(errorPayload{Error: Redact(err.Error())}, "", "  ")
	if mErr != nil {
		raw = []byte("{}")
	}
	return "```json\n" + string(raw) + "\n```"
}
