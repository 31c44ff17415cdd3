package auth

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "s3cret"

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return tok
}

func newAuth(t *testing.T, opts Options) *Authenticator {
	t.Helper()
	if opts.Secret == "" {
		opts.Secret = secret
	}
	a, err := New(opts)
	require.NoError(t, err)
	return a
}

func future() int64 { return time.Now().Add(time.Hour).Unix() }

func TestVerifySubjectClaims(t *testing.T) {
	a := newAuth(t, Options{RequireExpiry: true})
	cases := []struct {
		name   string
		claims jwt.MapClaims
		want   string
	}{
		{"sub", jwt.MapClaims{"sub": "alice", "user_id": "bob"}, "alice"},
		{"user_id", jwt.MapClaims{"user_id": "bob"}, "bob"},
		{"userId", jwt.MapClaims{"userId": "carol"}, "carol"},
		{"numeric id", jwt.MapClaims{"id": 42}, "42"},
		{"large numeric id", jwt.MapClaims{"id": 9007199254740}, "9007199254740"},
		{"numeric sub above 2^53", jwt.MapClaims{"sub": int64(12345678901234567)}, "12345678901234567"},
		{"negative numeric id", jwt.MapClaims{"id": -7}, "-7"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			c.claims["exp"] = future()
			got, err := a.Verify(sign(t, jwt.SigningMethodHS256, []byte(secret), c.claims))
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestVerifyRejects(t *testing.T) {
	a := newAuth(t, Options{RequireExpiry: true})

	_, err := a.Verify("")
	assert.ErrorIs(t, err, ErrMissingToken)

	_, err = a.Verify("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)

	wrong := sign(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"sub": "a", "exp": future()})
	_, err = a.Verify(wrong)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{"sub": "a", "exp": time.Now().Add(-time.Hour).Unix()})
	_, err = a.Verify(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Equal(t, "expired", Reason(err))

	noExp := sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{"sub": "a"})
	_, err = a.Verify(noExp)
	assert.ErrorIs(t, err, ErrInvalidToken)

	noSub := sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{"name": "a", "exp": future()})
	_, err = a.Verify(noSub)
	assert.ErrorIs(t, err, ErrMissingSubject)

	fractional := sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{"id": 1.5, "exp": future()})
	_, err = a.Verify(fractional)
	assert.ErrorIs(t, err, ErrMissingSubject)

	none := sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, jwt.MapClaims{"sub": "a", "exp": future()})
	_, err = a.Verify(none)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExpiryOptional(t *testing.T) {
	a := newAuth(t, Options{RequireExpiry: false})
	got, err := a.Verify(sign(t, jwt.SigningMethodHS512, []byte(secret), jwt.MapClaims{"sub": "a"}))
	require.NoError(t, err)
	assert.Equal(t, "a", got)
}

func TestLeeway(t *testing.T) {
	tok := sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{"sub": "a", "exp": time.Now().Add(-10 * time.Second).Unix()})

	_, err := newAuth(t, Options{RequireExpiry: true}).Verify(tok)
	assert.Error(t, err)

	_, err = newAuth(t, Options{RequireExpiry: true, Leeway: time.Minute}).Verify(tok)
	assert.NoError(t, err)
}

func TestNormalizeSecret(t *testing.T) {
	assert.Equal(t, "abc", NormalizeSecret(`  "abc"  `))
	assert.Equal(t, "abc", NormalizeSecret(`'"abc"'`))
	assert.Equal(t, `"abc'`, NormalizeSecret(`"abc'`))
	assert.Equal(t, "", NormalizeSecret(` "" `))

	_, err := New(Options{Secret: `  ''  `})
	assert.True(t, errors.Is(err, ErrEmptySecret))
}

func TestQuotedConfiguredSecretVerifiesRawSignature(t *testing.T) {
	a := newAuth(t, Options{Secret: ` "s3cret" `, RequireExpiry: true})
	got, err := a.Verify(sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{"sub": "alice", "exp": future()}))
	require.NoError(t, err)
	assert.Equal(t, "alice", got)
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws?token=q", nil)
	assert.Equal(t, "q", TokenFromRequest(r))

	r.Header.Set("Authorization", "Bearer h")
	assert.Equal(t, "h", TokenFromRequest(r))

	r.Header.Set("Authorization", "Basic xyz")
	assert.Equal(t, "q", TokenFromRequest(r))
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t, "abcdefgh…", Fingerprint("abcdefghijklmnop"))
	assert.NotContains(t, Fingerprint("abcdefghijklmnop"), "ijkl")

	for _, tok := range []string{"", "a", "s3cr3t", "12345678", "123456789", "ключ-доступа"} {
		fp := Fingerprint(tok)
		assert.True(t, utf8.ValidString(fp), tok)
		if tok != "" {
			assert.NotContains(t, fp, tok)
		}
		assert.LessOrEqual(t, len(fp)-len("…"), len(tok)/2, tok)
	}
	assert.Equal(t, "…", Fingerprint("s3cr3t"))
	assert.Equal(t, "1234…", Fingerprint("123456789"))
}
