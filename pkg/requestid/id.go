// Package requestid generates, parses and propagates per-request correlation
// identifiers.
//
// An identifier has the form
//
//	req_0190f5a3c2d87c1e9a4b5f6e7d8c9b0a
//
// where the 32 hex characters encode a version 7 UUID. The leading 48 bits
// hold the Unix time in milliseconds (big-endian), so identifiers sort by
// creation time and the creation time can be recovered with ID.Time.
//
// # Middleware
//
// Middleware assigns an identifier to every request, makes it available
// through FromContext, and attaches it to the response as the X-Request-ID
// header. The header is attached exactly once, when the response head is
// committed or, if the handler wrote nothing, when the handler returns or
// panics.
package requestid

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Prefix starts every identifier.
const Prefix = "req_"

// Length is the length of a well-formed identifier in bytes.
const Length = len(Prefix) + 32

// ErrMalformedIdentifier is wrapped by every parse and decode failure.
var ErrMalformedIdentifier = errors.New("malformed request identifier")

// MalformedError describes why a string is not a valid identifier.
type MalformedError struct {
	Value  string
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("%s %q: %s", ErrMalformedIdentifier, e.Value, e.Reason)
}

func (e *MalformedError) Unwrap() error {
	return ErrMalformedIdentifier
}

// ID is a correlation identifier.
type ID string

// New returns a fresh identifier. Identifiers created in the same process
// are strictly increasing.
func New() (ID, error) {
	u, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate request id: %w", err)
	}
	return ID(Prefix + hex.EncodeToString(u[:])), nil
}

// MustNew is like New but panics if the random source fails.
func MustNew() ID {
	id, err := New()
	if err != nil {
		panic(err)
	}
	return id
}

// Parse validates s and returns it as an ID.
func Parse(s string) (ID, error) {
	if len(s) != Length {
		return "", &MalformedError{Value: s, Reason: fmt.Sprintf("length %d, want %d", len(s), Length)}
	}
	if !strings.HasPrefix(s, Prefix) {
		return "", &MalformedError{Value: s, Reason: "missing " + Prefix + " prefix"}
	}
	for i := len(Prefix); i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", &MalformedError{Value: s, Reason: fmt.Sprintf("invalid character %q at offset %d", c, i)}
		}
	}
	return ID(s), nil
}

// String returns the identifier text.
func (id ID) String() string {
	return string(id)
}

// Bytes returns the 16 bytes encoded by the identifier.
func (id ID) Bytes() ([16]byte, error) {
	var b [16]byte
	if _, err := Parse(string(id)); err != nil {
		return b, err
	}
	if _, err := hex.Decode(b[:], []byte(id[len(Prefix):])); err != nil {
		return b, &MalformedError{Value: string(id), Reason: err.Error()}
	}
	return b, nil
}

// Time returns the creation time encoded in the identifier, with
// millisecond precision.
func (id ID) Time() (time.Time, error) {
	b, err := id.Bytes()
	if err != nil {
		return time.Time{}, err
	}
	var ms [8]byte
	copy(ms[2:], b[:6])
	return time.UnixMilli(int64(binary.BigEndian.Uint64(ms[:]))), nil
}
