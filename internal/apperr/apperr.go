// Package apperr defines the error taxonomy shared by the vault, the
// platform adapters and the publish orchestrator.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks a missing post or social account.
	ErrNotFound = errors.New("not found")

	// ErrCipherFormat marks a stored credential that does not parse as
	// nonce.tag.ciphertext base64 segments.
	ErrCipherFormat = errors.New("credential ciphertext is malformed")

	// ErrCipherIntegrity marks a credential whose authentication tag failed
	// to verify. Never falls back to plaintext.
	ErrCipherIntegrity = errors.New("credential ciphertext failed integrity check")

	// ErrInvalidState marks a malformed or unverifiable OAuth state token.
	ErrInvalidState = errors.New("invalid oauth state token")
)

// ConfigError reports missing or malformed process configuration. It is
// raised at construction time, never retried.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return "config: " + e.Msg }

func Config(format string, args ...any) error {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// ValidationError reports bad input shape, rejected before any remote call.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func Validation(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// AuthError reports an absent, expired or rejected remote credential. The
// account needs re-linking; retrying without that is pointless.
type AuthError struct {
	Platform string
	Msg      string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s auth: %s", e.Platform, e.Msg)
}

// PublishError reports a rejection from the remote platform. Retriable by
// re-invoking publish.
type PublishError struct {
	Platform   string
	StatusCode int
	Msg        string
}

func (e *PublishError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s publish failed (status %d): %s", e.Platform, e.StatusCode, e.Msg)
	}
	return fmt.Sprintf("%s publish failed: %s", e.Platform, e.Msg)
}

func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

func IsPublish(err error) bool {
	var pe *PublishError
	return errors.As(err, &pe)
}
