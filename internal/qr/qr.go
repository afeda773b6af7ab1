// Package qr derives and parses the textual payload embedded in a box's
// printed QR symbol. The payload is the only externally persisted form of a
// box's identity, so the format is a wire contract: "BinQR:<box-id>",
// optionally followed by ":<nonce>" when the code has been reissued.
package qr

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// Prefix identifies a payload as one of ours. Printed codes depend on
	// it, so it must never change.
	Prefix = "BinQR:"

	delimiter = ":"
)

// ErrNotRecognized is returned by Decode for payloads that do not carry the
// BinQR prefix. Scanning arbitrary QR codes is expected; this is not a
// store or transport failure.
var ErrNotRecognized = errors.New("payload is not a BinQR code")

// Encode produces the canonical payload for a box id.
func Encode(boxID string) string {
	return Prefix + boxID
}

// EncodeWithNonce produces a reissued payload. The nonce makes the new code
// distinct from every code previously printed for the same box.
func EncodeWithNonce(boxID, nonce string) string {
	return Prefix + boxID + delimiter + nonce
}

// NewNonce returns a reissue nonce. Millisecond timestamps are unique per
// box in practice since reissue is a manual user action.
func NewNonce() string {
	return fmt.Sprintf("%d", time.Now().UnixMilli())
}

// Decode extracts the box id from a scanned payload. It is pure: no store
// access, no side effects. Payloads without the prefix yield
// ErrNotRecognized; a reissue nonce, if present, is stripped.
func Decode(payload string) (string, error) {
	rest, ok := strings.CutPrefix(payload, Prefix)
	if !ok {
		return "", ErrNotRecognized
	}
	id, _, _ := strings.Cut(rest, delimiter)
	return id, nil
}
