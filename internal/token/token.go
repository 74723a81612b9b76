// Package token seals auth results for transport to the Verder Helpen core.
// A result is issued as an RS256 JWS whose claims are the result fields,
// and the compact JWS is then wrapped in an RSA-OAEP/A128CBC-HS256 JWE so
// only the core can read the attributes.
package token

import (
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"

	"github.com/verder-helpen/auth-test/internal/dto"
)

// ErrInvalidToken indicates a token that decrypted but did not verify.
var ErrInvalidToken = errors.New("invalid auth result token")

type resultClaims struct {
	dto.AuthResult
	jwt.RegisteredClaims
}

// Sealer signs and encrypts auth results.
type Sealer struct {
	signKey *rsa.PrivateKey
	encKey  *rsa.PublicKey
}

// NewSealer builds a Sealer from the plugin's signing key and the core's
// encryption key.
func NewSealer(signKey *rsa.PrivateKey, encKey *rsa.PublicKey) *Sealer {
	return &Sealer{signKey: signKey, encKey: encKey}
}

// Seal produces the compact JWE carrying the signed auth result.
func (s *Sealer) Seal(result dto.AuthResult) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, resultClaims{AuthResult: result}).SignedString(s.signKey)
	if err != nil {
		return "", fmt.Errorf("sign auth result: %w", err)
	}

	encrypter, err := jose.NewEncrypter(
		jose.A128CBC_HS256,
		jose.Recipient{Algorithm: jose.RSA_OAEP, Key: s.encKey},
		(&jose.EncrypterOptions{}).WithType("JWT").WithContentType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("build encrypter: %w", err)
	}

	encrypted, err := encrypter.Encrypt([]byte(signed))
	if err != nil {
		return "", fmt.Errorf("encrypt auth result: %w", err)
	}

	compact, err := encrypted.CompactSerialize()
	if err != nil {
		return "", fmt.Errorf("serialize auth result: %w", err)
	}
	return compact, nil
}

// Opener is the receiving side of Seal. The plugin itself never opens
// results; this exists for tests standing in for the core.
type Opener struct {
	decKey    *rsa.PrivateKey
	verifyKey *rsa.PublicKey
}

// NewOpener builds an Opener from the core's decryption key and the plugin's
// verification key.
func NewOpener(decKey *rsa.PrivateKey, verifyKey *rsa.PublicKey) *Opener {
	return &Opener{decKey: decKey, verifyKey: verifyKey}
}

// Open decrypts and verifies a sealed auth result.
func (o *Opener) Open(raw string) (dto.AuthResult, error) {
	encrypted, err := jose.ParseEncrypted(raw,
		[]jose.KeyAlgorithm{jose.RSA_OAEP},
		[]jose.ContentEncryption{jose.A128CBC_HS256},
	)
	if err != nil {
		return dto.AuthResult{}, fmt.Errorf("parse token: %w", err)
	}

	payload, err := encrypted.Decrypt(o.decKey)
	if err != nil {
		return dto.AuthResult{}, fmt.Errorf("decrypt token: %w", err)
	}

	claims := &resultClaims{}
	_, err = jwt.ParseWithClaims(string(payload), claims, func(*jwt.Token) (any, error) {
		return o.verifyKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	if err != nil {
		return dto.AuthResult{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return claims.AuthResult, nil
}
