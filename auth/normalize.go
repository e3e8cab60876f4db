package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

// maxEnvelopeDepth bounds envelope unwrapping for odd or hostile payloads.
const maxEnvelopeDepth = 8

// maxRelativeExpiry is the largest expires_in, in seconds, that fits a
// time.Duration. Larger values are ignored.
const maxRelativeExpiry = float64(math.MaxInt64 / int64(time.Second))

var (
	envelopeKeys      = []string{"data", "result", "value", "payload"}
	accessTokenKeys   = []string{"token", "accessToken", "access_token"}
	refreshTokenKeys  = []string{"refreshToken", "refresh_token"}
	absoluteExpiryKey = []string{"expiration", "expiresAt"}
	relativeExpiryKey = []string{"expires_in", "expiresIn"}
)

// Normalize turns a login or refresh response body into a Session.
// Envelopes keyed data/result/value/payload are unwrapped recursively.
// Expiry is looked up in the unwrapped payload first, then the top-level body;
// relative expiries are resolved against now.
func Normalize(body []byte, now time.Time) (Session, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return Session{}, errors.New("empty response body")
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var root map[string]any
	if err := dec.Decode(&root); err != nil {
		return Session{}, err
	}
	if root == nil {
		return Session{}, errors.New("response body is not an object")
	}

	payload := unwrapEnvelope(root, 0)

	access := firstString(payload, accessTokenKeys)
	if access == "" {
		return Session{}, errors.New("response carries no access token")
	}

	sess := Session{
		AccessToken:  access,
		RefreshToken: firstString(payload, refreshTokenKeys),
	}

	exp, ok := expiryFrom(payload, now)
	if !ok {
		exp, _ = expiryFrom(root, now)
	}
	sess.ExpiresAt = exp

	return sess, nil
}

func unwrapEnvelope(obj map[string]any, depth int) map[string]any {
	if depth >= maxEnvelopeDepth {
		return obj
	}
	for _, k := range envelopeKeys {
		if inner, ok := obj[k].(map[string]any); ok {
			return unwrapEnvelope(inner, depth+1)
		}
	}
	return obj
}

func firstString(obj map[string]any, keys []string) string {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func expiryFrom(obj map[string]any, now time.Time) (time.Time, bool) {
	for _, k := range absoluteExpiryKey {
		switch v := obj[k].(type) {
		case string:
			if t, err := ParseExpiration(v); err == nil {
				return t, true
			}
		case json.Number:
			if f, err := v.Float64(); err == nil {
				if t, err := epochToTime(f); err == nil {
					return t, true
				}
			}
		}
	}

	for _, k := range relativeExpiryKey {
		if secs, ok := number(obj[k]); ok && math.Abs(secs) <= maxRelativeExpiry {
			return now.Add(time.Duration(secs * float64(time.Second))), true
		}
	}

	return time.Time{}, false
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
	}
	return 0, false
}
