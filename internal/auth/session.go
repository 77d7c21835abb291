// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// privateKey and publicKey are used for signing and verifying JWT tokens. The
// REST service that logs users in signs with the same pair.
var (
	keyMu      sync.RWMutex
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey

	// tokenTTL is how long a token stays valid (0 => never expires).
	tokenTTL time.Duration
)

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid token")

// ParseTokenExpireTime reads a TOKEN_EXPIRE_TIME value: "never", "0" or empty
// mean no expiry, anything else is a Go duration.
func ParseTokenExpireTime(s string) (time.Duration, error) {
	if s == "never" || s == "0" || s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("failed to parse token expire time: %w", err)
	}
	return d, nil
}

// Init generates a fresh ed25519 key pair at runtime and sets the token expiration.
func Init(expire string) error {
	ttl, err := ParseTokenExpireTime(expire)
	if err != nil {
		return err
	}
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	setKeys(priv, pub, ttl)
	return nil
}

// InitFromPath reads raw ed25519 private/public keys from file and sets the
// token expiration. An empty privatePath loads a verify-only configuration.
func InitFromPath(privatePath, publicPath, expire string) error {
	ttl, err := ParseTokenExpireTime(expire)
	if err != nil {
		return err
	}
	publicKeyData, err := os.ReadFile(publicPath)
	if err != nil {
		return fmt.Errorf("failed to read public key file: %w", err)
	}
	if len(publicKeyData) != ed25519.PublicKeySize {
		return fmt.Errorf("public key is %d bytes, want %d", len(publicKeyData), ed25519.PublicKeySize)
	}

	var priv ed25519.PrivateKey
	if privatePath != "" {
		privateKeyData, err := os.ReadFile(privatePath)
		if err != nil {
			return fmt.Errorf("failed to read private key file: %w", err)
		}
		if len(privateKeyData) != ed25519.PrivateKeySize {
			return fmt.Errorf("private key is %d bytes, want %d", len(privateKeyData), ed25519.PrivateKeySize)
		}
		priv = ed25519.PrivateKey(privateKeyData)
	}
	setKeys(priv, ed25519.PublicKey(publicKeyData), ttl)
	return nil
}

func setKeys(priv ed25519.PrivateKey, pub ed25519.PublicKey, ttl time.Duration) {
	keyMu.Lock()
	defer keyMu.Unlock()
	privateKey, publicKey, tokenTTL = priv, pub, ttl
}

// CreateJWT creates a signed JWT token with "sub" = userID and an "exp" claim
// unless tokens never expire.
func CreateJWT(userID uuid.UUID) (string, error) {
	keyMu.RLock()
	priv, ttl := privateKey, tokenTTL
	keyMu.RUnlock()
	if priv == nil {
		return "", errors.New("no signing key loaded")
	}

	claims := jwt.MapClaims{
		"sub": userID.String(),
	}
	if ttl > 0 {
		claims["exp"] = time.Now().Add(ttl).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(priv)
}

// AuthenticateJWT verifies a JWT string and returns its subject. Every failure
// wraps ErrInvalidToken.
func AuthenticateJWT(tokenString string) (uuid.UUID, error) {
	keyMu.RLock()
	pub := publicKey
	keyMu.RUnlock()

	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return pub, nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !t.Valid {
		return uuid.Nil, ErrInvalidToken
	}

	sub, err := t.Claims.GetSubject()
	if err != nil || sub == "" {
		return uuid.Nil, fmt.Errorf("%w: missing sub", ErrInvalidToken)
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: malformed sub: %v", ErrInvalidToken, err)
	}
	return userID, nil
}
