// Package identity issues and verifies the guest identity cookie.
//
// A guest gets a generated id on first contact with an event, carried in an
// HS256-signed JWT cookie. The id keys the guest's progress record; it is
// not an account and grants nothing beyond the guest flow.
package identity

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/lumenfoto/backstage/internal/errors"
	"github.com/lumenfoto/backstage/internal/platform/id"
)

// CookieName is the canonical guest identity cookie name.
const CookieName = "backstage_guest"

// DefaultTTL bounds how long an issued guest identity stays valid.
const DefaultTTL = 30 * 24 * time.Hour

// Config defines how guest identity tokens are signed and verified.
type Config struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
	Now    func() time.Time
}

type guestClaims struct {
	jwt.RegisteredClaims
	GuestID string `json:"guest_id"`
}

func (c Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c Config) ttl() time.Duration {
	if c.TTL > 0 {
		return c.TTL
	}
	return DefaultTTL
}

// Issue signs a guest identity token for the provided guest id.
func (c Config) Issue(guestID string) (string, error) {
	guestID = strings.TrimSpace(guestID)
	if guestID == "" {
		return "", fmt.Errorf("guest id is required")
	}
	if len(c.Secret) == 0 {
		return "", fmt.Errorf("identity secret is required")
	}

	now := c.now().UTC()
	claims := guestClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl())),
		},
		GuestID: guestID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.Secret)
	if err != nil {
		return "", fmt.Errorf("sign guest token: %w", err)
	}
	return signed, nil
}

// Verify parses a guest identity token and returns the guest id.
func (c Config) Verify(tokenString string) (string, error) {
	if len(c.Secret) == 0 {
		return "", fmt.Errorf("identity secret is required")
	}

	var claims guestClaims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
	)
	if _, err := parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return c.Secret, nil
	}); err != nil {
		return "", apperrors.Wrap(apperrors.CodeGuestTokenInvalid, "parse guest token", err)
	}

	guestID := strings.TrimSpace(claims.GuestID)
	if guestID == "" {
		return "", apperrors.New(apperrors.CodeGuestTokenInvalid, "guest token missing guest id")
	}
	return guestID, nil
}

// EnsureGuest resolves the guest id for the current request, issuing a fresh
// identity cookie when the cookie is missing, expired, or tampered.
func EnsureGuest(w http.ResponseWriter, r *http.Request, cfg Config) (string, error) {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie != nil {
		if guestID, err := cfg.Verify(strings.TrimSpace(cookie.Value)); err == nil {
			return guestID, nil
		}
	}

	guestID, err := id.NewID()
	if err != nil {
		return "", fmt.Errorf("generate guest id: %w", err)
	}
	token, err := cfg.Issue(guestID)
	if err != nil {
		return "", err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r != nil && r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(cfg.ttl() / time.Second),
	})
	return guestID, nil
}
