package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Error is a non-2xx API response.
type Error struct {
	StatusCode int
	Message    string
	// Fields holds validation messages keyed by lower-camel field name.
	Fields map[string]string
}

func (e *Error) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is an API 404.
func IsNotFound(err error) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.StatusCode == http.StatusNotFound
}

type problemBody struct {
	Errors  map[string][]string `json:"errors"`
	Title   string              `json:"title"`
	Message string              `json:"message"`
}

// ParseError builds an Error from a response body: validation errors first,
// then title, then message, then the body as text.
func ParseError(status int, body []byte) *Error {
	e := &Error{StatusCode: status}

	var pb problemBody
	if err := json.Unmarshal(body, &pb); err == nil {
		if len(pb.Errors) > 0 {
			keys := make([]string, 0, len(pb.Errors))
			for k := range pb.Errors {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			e.Fields = make(map[string]string, len(keys))
			var parts []string
			for _, k := range keys {
				msgs := pb.Errors[k]
				if len(msgs) == 0 {
					continue
				}
				joined := strings.Join(msgs, "; ")
				parts = append(parts, k+": "+joined)
				e.Fields[fieldKey(k)] = joined
			}
			if len(parts) > 0 {
				e.Message = strings.Join(parts, " | ")
				return e
			}
		}
		if pb.Title != "" {
			e.Message = pb.Title
			return e
		}
		if pb.Message != "" {
			e.Message = pb.Message
			return e
		}
	}

	var text string
	if json.Valid(body) {
		_ = json.Unmarshal(body, &text)
	} else {
		text = string(body)
	}
	if text = strings.TrimSpace(text); text != "" {
		// .NET appends Path/LineNumber diagnostics to model binding errors
		if i := strings.Index(text, "Path:"); i > 0 {
			text = strings.TrimSpace(text[:i])
		}
		e.Message = text
		return e
	}

	e.Message = fmt.Sprintf("%d %s", status, http.StatusText(status))
	return e
}

// fieldKey turns "NgayVaoLam" or "$.ngayVaoLam" into "ngayVaoLam".
func fieldKey(k string) string {
	k = strings.TrimPrefix(k, "$.")
	r, size := utf8.DecodeRuneInString(k)
	if r == utf8.RuneError {
		return k
	}
	return string(unicode.ToLower(r)) + k[size:]
}
