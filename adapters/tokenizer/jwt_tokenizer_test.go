package tokenizer

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatewarden/gatewarden/core"
	"github.com/gatewarden/gatewarden/ports"
)

func newTestTokenizer(t *testing.T) ports.SessionTokenizer {
	t.Helper()

	key, err := GenerateSigningKey()
	require.NoError(t, err)

	return NewJWTTokenizer(key)
}

func tokenTestSession(ttl time.Duration) *core.Session {
	now := time.Now().Truncate(time.Second)
	return &core.Session{
		ID:        "0c9f1c9e-4f64-4e7a-a2ce-9a5d2f8f4f10",
		Address:   "0x9858effd232b4033e47d90003d41ec34ecaeda94",
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

func TestTokenRoundTrip(t *testing.T) {
	tok := newTestTokenizer(t)
	session := tokenTestSession(time.Hour)

	token, err := tok.SessionToToken(session)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := tok.TokenToSession(token)
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)
	assert.Equal(t, session.Address, got.Address)
	assert.True(t, session.CreatedAt.Equal(got.CreatedAt))
	assert.True(t, session.ExpiresAt.Equal(got.ExpiresAt))
}

func TestTokenTampered(t *testing.T) {
	tok := newTestTokenizer(t)

	token, err := tok.SessionToToken(tokenTestSession(time.Hour))
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	replacement := "AAAA"
	if strings.HasPrefix(parts[2], replacement) {
		replacement = "BBBB"
	}
	tampered := parts[0] + "." + parts[1] + "." + replacement + parts[2][4:]

	_, err = tok.TokenToSession(tampered)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrSessionExpired)
}

func TestTokenWrongKey(t *testing.T) {
	token, err := newTestTokenizer(t).SessionToToken(tokenTestSession(time.Hour))
	require.NoError(t, err)

	_, err = newTestTokenizer(t).TokenToSession(token)
	assert.Error(t, err)
}

func TestTokenExpired(t *testing.T) {
	tok := newTestTokenizer(t)

	token, err := tok.SessionToToken(tokenTestSession(-time.Minute))
	require.NoError(t, err)

	_, err = tok.TokenToSession(token)
	assert.ErrorIs(t, err, core.ErrSessionExpired)
}

func TestTokenWrongAudience(t *testing.T) {
	key, err := GenerateSigningKey()
	require.NoError(t, err)
	tok := NewJWTTokenizer(key)

	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "0x9858effd232b4033e47d90003d41ec34ecaeda94",
			ID:        "s1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Audience:  jwt.ClaimStrings{"somewhere:else"},
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(key)
	require.NoError(t, err)

	_, err = tok.TokenToSession(token)
	assert.Error(t, err)
}

func TestTokenRejectsForeignAlgorithm(t *testing.T) {
	tok := newTestTokenizer(t)

	claims := jwt.RegisteredClaims{
		Subject:   "0x9858effd232b4033e47d90003d41ec34ecaeda94",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		Audience:  jwt.ClaimStrings{AudienceSession},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = tok.TokenToSession(token)
	assert.ErrorContains(t, err, "unexpected signing method")
}

func TestTokenGarbage(t *testing.T) {
	tok := newTestTokenizer(t)

	_, err := tok.TokenToSession("not-a-token")
	assert.Error(t, err)
}

func TestSigningKeyPEMRoundTrip(t *testing.T) {
	key, err := GenerateSigningKey()
	require.NoError(t, err)

	pemData, err := EncodeSigningKey(key)
	require.NoError(t, err)
	assert.Contains(t, string(pemData), "EC PRIVATE KEY")

	parsed, err := ParseSigningKey(pemData)
	require.NoError(t, err)
	assert.True(t, key.Equal(parsed))
}

func TestParseSigningKeyGarbage(t *testing.T) {
	_, err := ParseSigningKey([]byte("not pem"))
	assert.ErrorContains(t, err, "no PEM block")
}
