package config

import (
	"crypto/rsa"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
)

var validate = validator.New()

// Config encapsulates the runtime configuration for the test plugin. It is
// read from a TOML file whose path comes from the CONFIG environment
// variable.
type Config struct {
	// ServerURL is the public base URL of this plugin, used to build the
	// client_url handed to browsers and the session_url embedded in results.
	ServerURL string `toml:"server_url" validate:"required,url"`
	// InternalURL is the base URL the core reaches the plugin on when that
	// differs from the public one. Optional.
	InternalURL string `toml:"internal_url" validate:"omitempty,url"`
	// WithSession controls whether issued auth results advertise a
	// session_url, opting the plugin into session activity updates.
	WithSession bool `toml:"with_session"`
	// SigningKey is the PEM encoded RSA private key results are signed with.
	SigningKey string `toml:"signing_key" validate:"required"`
	// EncryptionPubkey is the PEM encoded RSA public key of the party that
	// will decrypt results, typically the core.
	EncryptionPubkey string `toml:"encryption_pubkey" validate:"required"`
	// Attributes maps attribute names to the canned values this plugin
	// returns for them.
	Attributes map[string]string `toml:"attributes" validate:"required,min=1"`

	signKey *rsa.PrivateKey
	encKey  *rsa.PublicKey
}

// Validate validates a struct using validator tags.
func Validate(v any) error {
	return validate.Struct(v)
}

// Get returns the value of the requested environment variable or the supplied fallback when empty.
func Get(name string, fallback string) string {
	if value, ok := os.LookupEnv(name); ok && value != "" {
		return value
	}
	return fallback
}

// Load reads the TOML file at path into a Config with validation and parses
// the embedded key material.
func Load(path string) (Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode %s: %w", path, err)
	}

	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("validate %s: %w", path, err)
	}

	cfg.ServerURL = strings.TrimRight(cfg.ServerURL, "/")
	cfg.InternalURL = strings.TrimRight(cfg.InternalURL, "/")

	signKey, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(cfg.SigningKey))
	if err != nil {
		return Config{}, fmt.Errorf("parse signing key: %w", err)
	}
	cfg.signKey = signKey

	encKey, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.EncryptionPubkey))
	if err != nil {
		return Config{}, fmt.Errorf("parse encryption key: %w", err)
	}
	cfg.encKey = encKey

	return cfg, nil
}

// SigningPrivateKey returns the parsed result-signing key.
func (c Config) SigningPrivateKey() *rsa.PrivateKey {
	return c.signKey
}

// EncryptionPublicKey returns the parsed result-encryption key.
func (c Config) EncryptionPublicKey() *rsa.PublicKey {
	return c.encKey
}

// SessionURL returns the endpoint the core should push session activity
// updates to, or the empty string when sessions are disabled.
func (c Config) SessionURL() string {
	if !c.WithSession {
		return ""
	}
	return c.ServerURL + "/session/update"
}

// VerifyAttributes checks that every requested attribute has a configured
// value.
func (c Config) VerifyAttributes(requested []string) error {
	for _, name := range requested {
		if _, ok := c.Attributes[name]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownAttribute, name)
		}
	}
	return nil
}

// MapAttributes resolves the requested attribute names to their configured
// values.
func (c Config) MapAttributes(requested []string) (map[string]string, error) {
	mapped := make(map[string]string, len(requested))
	for _, name := range requested {
		value, ok := c.Attributes[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownAttribute, name)
		}
		mapped[name] = value
	}
	return mapped, nil
}

// AttributeNames returns the configured attribute names in sorted order.
func (c Config) AttributeNames() []string {
	names := make([]string, 0, len(c.Attributes))
	for name := range c.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
