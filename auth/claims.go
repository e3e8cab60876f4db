package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claim names ASP.NET Core Identity puts in access tokens.
const (
	claimNameIdentifier = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/nameidentifier"
	claimName           = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/name"
	claimRole           = "http://schemas.microsoft.com/ws/2008/06/identity/claims/role"
)

// Claims is what the CLI shows about the logged-in user.
type Claims struct {
	UserID    string
	Name      string
	Role      string
	ExpiresAt time.Time
}

// ParseClaims decodes a JWT access token without verifying its signature.
// The server is the authority on validity; this is for display only.
func ParseClaims(accessToken string) (*Claims, error) {
	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, mc); err != nil {
		return nil, fmt.Errorf("failed to decode access token: %w", err)
	}

	c := &Claims{
		UserID: claimString(mc, "sub", "nameid", claimNameIdentifier, "uid"),
		Name:   claimString(mc, "unique_name", "name", claimName, "username"),
		Role:   claimString(mc, "role", claimRole),
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	return c, nil
}

func claimString(mc jwt.MapClaims, keys ...string) string {
	for _, k := range keys {
		switch v := mc[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case []any:
			parts := make([]string, 0, len(v))
			for _, p := range v {
				if s, ok := p.(string); ok {
					parts = append(parts, s)
				}
			}
			if len(parts) > 0 {
				return strings.Join(parts, ",")
			}
		}
	}
	return ""
}
