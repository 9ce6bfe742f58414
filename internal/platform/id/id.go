// Package id generates compact, URL-safe entity identifiers.
package id

import (
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewID returns a 26-character lowercase base32 identifier derived from a
// random UUIDv4. The UUID version and variant bits are preserved so the raw
// bytes remain a valid UUID when decoded.
func NewID() (string, error) {
	raw, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}
	return strings.ToLower(encoding.EncodeToString(raw[:])), nil
}

// MustNewID returns a new identifier or panics. It is intended for tests and
// startup-time wiring where id generation failure is unrecoverable.
func MustNewID() string {
	value, err := NewID()
	if err != nil {
		panic(err)
	}
	return value
}
