package auth

import (
	"context"
	"crypto/ed25519"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jason-s-yu/quizduel/internal/apperr"
	"github.com/jason-s-yu/quizduel/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTokenExpireTime(t *testing.T) {
	for _, s := range []string{"", "0", "never"} {
		d, err := ParseTokenExpireTime(s)
		require.NoError(t, err)
		assert.Zero(t, d)
	}
	d, err := ParseTokenExpireTime("72h")
	require.NoError(t, err)
	assert.Equal(t, 72*time.Hour, d)

	_, err = ParseTokenExpireTime("three days")
	assert.Error(t, err)
}

func TestCreateAndAuthenticateJWT(t *testing.T) {
	require.NoError(t, Init("1h"))
	userID := uuid.New()

	token, err := CreateJWT(userID)
	require.NoError(t, err)

	got, err := AuthenticateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestAuthenticateJWT_Rejects(t *testing.T) {
	require.NoError(t, Init("never"))

	_, err := AuthenticateJWT("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// signed by another key
	_, otherPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	forged, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.MapClaims{"sub": uuid.NewString()}).SignedString(otherPriv)
	require.NoError(t, err)
	_, err = AuthenticateJWT(forged)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// HMAC is not accepted
	hmac, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": uuid.NewString()}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = AuthenticateJWT(hmac)
	assert.ErrorIs(t, err, ErrInvalidToken)

	keyMu.RLock()
	priv := privateKey
	keyMu.RUnlock()

	expired, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.MapClaims{
		"sub": uuid.NewString(),
		"exp": time.Now().Add(-time.Minute).Unix(),
	}).SignedString(priv)
	require.NoError(t, err)
	_, err = AuthenticateJWT(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	badSub, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.MapClaims{"sub": "alice"}).SignedString(priv)
	require.NoError(t, err)
	_, err = AuthenticateJWT(badSub)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestInitFromPath(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	dir := t.TempDir()
	privPath := filepath.Join(dir, "jwt.key")
	pubPath := filepath.Join(dir, "jwt.pub")
	require.NoError(t, os.WriteFile(privPath, priv, 0o600))
	require.NoError(t, os.WriteFile(pubPath, pub, 0o644))

	require.NoError(t, InitFromPath(privPath, pubPath, ""))
	userID := uuid.New()
	token, err := CreateJWT(userID)
	require.NoError(t, err)
	got, err := AuthenticateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	// verify-only
	require.NoError(t, InitFromPath("", pubPath, ""))
	_, err = CreateJWT(userID)
	assert.Error(t, err)
	got, err = AuthenticateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	require.NoError(t, os.WriteFile(pubPath, []byte("short"), 0o644))
	assert.Error(t, InitFromPath(privPath, pubPath, ""))
}

type fakeUsers map[uuid.UUID]string

func (f fakeUsers) GetUserDisplayName(_ context.Context, id uuid.UUID) (string, error) {
	name, ok := f[id]
	if !ok {
		return "", models.ErrUserNotFound
	}
	return name, nil
}

type downUsers struct{}

func (downUsers) GetUserDisplayName(context.Context, uuid.UUID) (string, error) {
	return "", errors.New("connection refused")
}

func TestIdentity(t *testing.T) {
	require.NoError(t, Init(""))
	alice := uuid.New()
	id := NewIdentity(fakeUsers{alice: "alice"})

	token, err := CreateJWT(alice)
	require.NoError(t, err)
	got, err := id.VerifyAuthToken(token)
	require.NoError(t, err)
	assert.Equal(t, alice, got)

	_, err = id.VerifyAuthToken("")
	assert.ErrorIs(t, err, apperr.ErrAuthFailed)
	_, err = id.VerifyAuthToken("garbage")
	assert.ErrorIs(t, err, apperr.ErrAuthFailed)

	name, err := id.GetUserDisplayName(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, "alice", name)

	_, err = id.GetUserDisplayName(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperr.ErrAuthFailed)
}

func TestIdentityLookupFailureIsNotAuthFailure(t *testing.T) {
	id := NewIdentity(downUsers{})
	_, err := id.GetUserDisplayName(context.Background(), uuid.New())
	assert.Equal(t, apperr.CodePersistenceFailure, apperr.CodeOf(err))
	assert.NotErrorIs(t, err, apperr.ErrAuthFailed)
}
