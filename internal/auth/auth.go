// Package auth verifies the bearer token presented when a connection opens.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken   = errors.New("missing token")
	ErrInvalidToken   = errors.New("invalid token")
	ErrMissingSubject = errors.New("token has no subject")
	ErrEmptySecret    = errors.New("auth secret is empty")
)

// ContextKey is where HTTP middleware stores the verified user id.
const ContextKey = "auth.user_id"

var DefaultSubjectClaims = []string{"sub", "user_id", "userId", "id"}

type Options struct {
	Secret        string
	RequireExpiry bool
	Leeway        time.Duration
	SubjectClaims []string
}

// Authenticator checks HMAC-signed JWTs and extracts the user id.
type Authenticator struct {
	secret []byte
	claims []string
	parser *jwt.Parser
}

func New(opts Options) (*Authenticator, error) {
	secret := NormalizeSecret(opts.Secret)
	if secret == "" {
		return nil, ErrEmptySecret
	}
	claims := opts.SubjectClaims
	if len(claims) == 0 {
		claims = DefaultSubjectClaims
	}
	popts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithLeeway(opts.Leeway),
		jwt.WithJSONNumber(),
	}
	if opts.RequireExpiry {
		popts = append(popts, jwt.WithExpirationRequired())
	}
	return &Authenticator{
		secret: []byte(secret),
		claims: claims,
		parser: jwt.NewParser(popts...),
	}, nil
}

// Verify returns the subject of a valid token.
func (a *Authenticator) Verify(token string) (string, error) {
	if token == "" {
		return "", ErrMissingToken
	}
	claims := jwt.MapClaims{}
	_, err := a.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	for _, name := range a.claims {
		if id, ok := subject(claims[name]); ok {
			return id, nil
		}
	}
	return "", ErrMissingSubject
}

func subject(v any) (string, bool) {
	switch id := v.(type) {
	case string:
		id = strings.TrimSpace(id)
		return id, id != ""
	case json.Number:
		return id.String(), integral(id.String())
	}
	return "", false
}

// integral reports whether a JSON number is written as a plain integer.
// Fractions and exponents are refused rather than rounded to another id.
func integral(n string) bool {
	n = strings.TrimPrefix(n, "-")
	if n == "" {
		return false
	}
	for i := 0; i < len(n); i++ {
		if n[i] < '0' || n[i] > '9' {
			return false
		}
	}
	return true
}

// TokenFromRequest reads "Authorization: Bearer" first, then the token
// query parameter browsers use for WebSocket upgrades.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, tok, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(tok)
		}
	}
	return r.URL.Query().Get("token")
}

// NormalizeSecret strips whitespace and matching quotes, repeatedly, as
// left behind by .env files and shell exports.
func NormalizeSecret(s string) string {
	for {
		t := strings.TrimSpace(s)
		if len(t) >= 2 && (t[0] == '"' || t[0] == '\'') && t[len(t)-1] == t[0] {
			t = t[1 : len(t)-1]
		}
		if t == s {
			return t
		}
		s = t
	}
}

// Fingerprint is the only form of a token that may be logged. It keeps at
// most eight bytes and never more than half the token.
func Fingerprint(token string) string {
	n := min(8, len(token)/2)
	if len(token) <= 8 {
		n = 0
	}
	for n > 0 && !utf8.RuneStart(token[n]) {
		n--
	}
	return token[:n] + "…"
}

// Reason maps an authentication error to a metric label.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrMissingToken):
		return "missing"
	case errors.Is(err, ErrMissingSubject):
		return "no_subject"
	case errors.Is(err, jwt.ErrTokenExpired):
		return "expired"
	}
	return "invalid"
}
