// Package auth keeps the API session (access token, refresh token, expiry) and
// the machinery around it: persistence, proactive refresh before expiry, and an
// http.RoundTripper that attaches the bearer token and recovers from 401s.
package auth

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// RefreshBuffer is how long before expiry the scheduler refreshes the session.
const RefreshBuffer = 30 * time.Second

// epochSecondsLimit separates numeric expirations in seconds from milliseconds.
const epochSecondsLimit = 1e10

// Bounds of an expiration in epoch milliseconds: years 0000 through 9999.
const (
	minEpochMillis = -62167219200000
	maxEpochMillis = 253402300799999
)

// Session is the authoritative authentication state.
// Empty strings mean absent; a zero ExpiresAt means the session does not expire.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// IsZero reports whether no credentials are held.
func (s Session) IsZero() bool {
	return s.AccessToken == "" && s.RefreshToken == ""
}

// Valid reports whether the access token is present and not yet expired at now.
func (s Session) Valid(now time.Time) bool {
	if s.AccessToken == "" {
		return false
	}
	return s.ExpiresAt.IsZero() || s.ExpiresAt.After(now)
}

// Token converts the session to an oauth2 token.
func (s Session) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       s.ExpiresAt,
	}
}

var expirationLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.9999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseExpiration parses a stored or server-sent expiration: ISO-8601 text or
// a numeric epoch (values under 1e10 are seconds, otherwise milliseconds).
// Timestamps without a zone are read in local time.
func ParseExpiration(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("empty expiration")
	}

	for i, layout := range expirationLayouts {
		var (
			t   time.Time
			err error
		)
		if i == 0 {
			t, err = time.Parse(layout, raw)
		} else {
			t, err = time.ParseInLocation(layout, raw, time.Local)
		}
		if err == nil {
			return t, nil
		}
	}

	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized expiration %q", raw)
	}
	return epochToTime(n)
}

// epochToTime converts a numeric epoch to a time. Non-finite values and
// values outside year 0..9999 are rejected; the storage format cannot
// represent them and float-to-int conversion would wrap.
func epochToTime(n float64) (time.Time, error) {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return time.Time{}, fmt.Errorf("expiration %v is not a number", n)
	}
	ms := n
	if n < epochSecondsLimit {
		ms = n * 1000
	}
	if ms < minEpochMillis || ms > maxEpochMillis {
		return time.Time{}, fmt.Errorf("expiration %v out of range", n)
	}
	return time.UnixMilli(int64(ms)), nil
}

// formatExpiration renders an expiration for persistence; zero becomes "".
func formatExpiration(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
