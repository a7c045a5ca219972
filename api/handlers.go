package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/streamrelay/streamrelay/pkg/eventstream"
	"github.com/streamrelay/streamrelay/pkg/kv"
	"github.com/streamrelay/streamrelay/pkg/quota"
)

// SetRequest is the body of POST /quota/:token. Value may be a JSON number
// or string.
type SetRequest struct {
	Value   json.RawMessage `json:"value"`
	Options kv.SetOptions   `json:"options"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleGet returns the value stored for a token. Integer values are sent
// as JSON numbers.
func (s *Server) handleGet(c *fiber.Ctx) error {
	token, err := tokenParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(quota.Failure("token parameter required"))
	}

	v, err := s.driver.Get(c.Context(), token)
	if errors.Is(err, kv.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(quota.Failure("not found"))
	}
	if err != nil {
		s.logger.Error("quota lookup failed",
			"token_fingerprint", eventstream.Fingerprint(token),
			"error", err,
		)
		return c.Status(fiber.StatusInternalServerError).JSON(quota.Failure("internal error"))
	}

	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return c.JSON(quota.Success(n))
	}
	return c.JSON(quota.Success(v))
}

// handleSet writes a value for a token. The data is "OK" when written and
// null when NX or XX skipped the write.
func (s *Server) handleSet(c *fiber.Ctx) error {
	token, err := tokenParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(quota.Failure("token parameter required"))
	}

	var req SetRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(quota.Failure("invalid request body"))
	}

	value, err := scalarValue(req.Value)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(quota.Failure(err.Error()))
	}

	written, err := s.driver.Set(c.Context(), token, value, req.Options)
	if errors.Is(err, kv.ErrInvalidOptions) {
		return c.Status(fiber.StatusBadRequest).JSON(quota.Failure(err.Error()))
	}
	if err != nil {
		s.logger.Error("quota write failed",
			"token_fingerprint", eventstream.Fingerprint(token),
			"error", err,
		)
		return c.Status(fiber.StatusInternalServerError).JSON(quota.Failure("internal error"))
	}

	s.logger.Debug("quota set",
		"token_fingerprint", eventstream.Fingerprint(token),
		"written", written,
	)
	if !written {
		return c.JSON(quota.Success(nil))
	}
	return c.JSON(quota.Success("OK"))
}

// handleDecr decrements a token's counter and returns the new value.
func (s *Server) handleDecr(c *fiber.Ctx) error {
	token, err := tokenParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(quota.Failure("token parameter required"))
	}

	n, err := s.driver.Decr(c.Context(), token)
	if errors.Is(err, kv.ErrNotInteger) {
		return c.Status(fiber.StatusBadRequest).JSON(quota.Failure(err.Error()))
	}
	if err != nil {
		s.logger.Error("quota decrement failed",
			"token_fingerprint", eventstream.Fingerprint(token),
			"error", err,
		)
		return c.Status(fiber.StatusInternalServerError).JSON(quota.Failure("internal error"))
	}

	return c.JSON(quota.Success(n))
}

var (
	errMissingToken = errors.New("token parameter required")
	errBadValue     = errors.New("value must be a number or string")
)

func tokenParam(c *fiber.Ctx) (string, error) {
	token, err := url.PathUnescape(c.Params("token"))
	if err != nil || token == "" {
		return "", errMissingToken
	}
	return token, nil
}

// scalarValue turns a JSON number or string into the stored string form.
func scalarValue(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", errBadValue
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", errBadValue
		}
		return s, nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return "", errBadValue
		}
		return n.String(), nil
	default:
		return "", errBadValue
	}
}
