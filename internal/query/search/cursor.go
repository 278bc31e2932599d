package search

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/jewgo/backend/pkg/errors"
)

const cursorMACSize = 16

var errCursorFormat = errors.New("malformed cursor")

type cursorPayload struct {
	Fingerprint string            `json:"f"`
	Values      []json.RawMessage `json:"v"`
}

// CursorCodec signs and verifies keyset cursors. A cursor is bound to the plan
// fingerprint it was issued for.
type CursorCodec struct {
	secret []byte
}

// NewCursorCodec creates a codec signing with secret
func NewCursorCodec(secret string) *CursorCodec {
	return &CursorCodec{secret: []byte(secret)}
}

// Encode returns an opaque cursor positioned after values
func (c *CursorCodec) Encode(plan *QueryPlan, values []any) (string, error) {
	raw := make([]json.RawMessage, len(values))
	for i, v := range values {
		b, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("encode cursor value %d: %w", i, err)
		}
		raw[i] = b
	}
	body, err := json.Marshal(cursorPayload{
		Fingerprint: strconv.FormatUint(plan.Fingerprint(), 16),
		Values:      raw,
	})
	if err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}
	enc := base64.RawURLEncoding
	return enc.EncodeToString(body) + "." + enc.EncodeToString(c.sign(body)), nil
}

// Decode verifies token against plan and returns the sort tuple it carries
func (c *CursorCodec) Decode(token string, plan *QueryPlan) ([]any, error) {
	bodyPart, macPart, ok := strings.Cut(token, ".")
	if !ok {
		return nil, apperrors.NewInvalidCursorError("cursor is malformed", errCursorFormat)
	}
	enc := base64.RawURLEncoding
	body, err := enc.DecodeString(bodyPart)
	if err != nil {
		return nil, apperrors.NewInvalidCursorError("cursor is malformed", err)
	}
	mac, err := enc.DecodeString(macPart)
	if err != nil {
		return nil, apperrors.NewInvalidCursorError("cursor is malformed", err)
	}
	if !hmac.Equal(mac, c.sign(body)) {
		return nil, apperrors.NewInvalidCursorError("cursor signature does not match", nil)
	}

	var payload cursorPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, apperrors.NewInvalidCursorError("cursor is malformed", err)
	}
	if payload.Fingerprint != strconv.FormatUint(plan.Fingerprint(), 16) {
		return nil, apperrors.NewInvalidCursorError("cursor was issued for a different query", nil)
	}
	if len(payload.Values) != len(plan.Order) {
		return nil, apperrors.NewInvalidCursorError("cursor does not match the sort order", nil)
	}

	values := make([]any, len(plan.Order))
	for i, key := range plan.Order {
		v, err := decodeSortValue(key, payload.Values[i])
		if err != nil {
			return nil, apperrors.NewInvalidCursorError("cursor does not match the sort order", err)
		}
		values[i] = v
	}
	return values, nil
}

func (c *CursorCodec) sign(body []byte) []byte {
	h := hmac.New(sha256.New, c.secret)
	h.Write(body)
	return h.Sum(nil)[:cursorMACSize]
}

func decodeSortValue(key OrderKey, raw json.RawMessage) (any, error) {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		if !key.Nullable {
			return nil, fmt.Errorf("%s cannot be null", key.Key)
		}
		return nil, nil
	}
	switch key.Key {
	case KeyDistance, KeyRating:
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, err
		}
		return f, nil
	case KeyName:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return s, nil
	case KeyCreatedAt:
		var t time.Time
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, err
		}
		return t, nil
	case KeyID:
		var n json.Number
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&n); err != nil {
			return nil, err
		}
		return n.Int64()
	}
	return nil, fmt.Errorf("unknown sort key %s", key.Key)
}
