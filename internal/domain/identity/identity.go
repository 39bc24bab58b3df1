// Package identity derives the content-addressed session and event ids that
// make resubmission idempotent.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/okian/stride/internal/domain/model"
)

const op = "identity"

// InstantLayout renders event times as millisecond UTC ISO-8601. Ids depend
// on this exact layout.
const InstantLayout = "2006-01-02T15:04:05.000Z"

// SessionID hashes the (user, client session) pair.
func SessionID(userID, clientSessionID string) string {
	return digest(userID, clientSessionID)
}

// EventID hashes every identity-bearing field of a normalized event. Payload
// key order does not affect the result.
func EventID(ev model.NormalizedEvent) (string, error) {
	payload, err := Canonicalize(ev.Payload)
	if err != nil {
		return "", model.NewValidationError(op, err)
	}
	return digest(
		ev.UserID,
		ev.ClientSessionID,
		string(ev.Type),
		FormatInstant(ev.EventTime),
		string(payload),
	), nil
}

// Derive returns both ids for ev.
func Derive(ev model.NormalizedEvent) (sessionID, eventID string, err error) {
	eventID, err = EventID(ev)
	if err != nil {
		return "", "", err
	}
	return SessionID(ev.UserID, ev.ClientSessionID), eventID, nil
}

// FormatInstant renders t in InstantLayout.
func FormatInstant(t time.Time) string {
	return t.UTC().Format(InstantLayout)
}

func digest(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, ":")))
	return hex.EncodeToString(sum[:])
}
