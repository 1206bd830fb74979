package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes. The version suffix leaves room for a
// future algorithm change without colliding with old hashes.
const (
	DomainState  = "reflux/state/v1"
	DomainAction = "reflux/action/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// StateHash returns a stable content hash for a state snapshot. Two states
// that encode to the same canonical JSON share a hash, so the journal can tell
// "reducer ran but nothing changed" apart from a real transition.
func StateHash(state IRValue) (string, error) {
	canonical, err := MarshalCanonical(state)
	if err != nil {
		return "", fmt.Errorf("StateHash: %w", err)
	}
	return hashWithDomain(DomainState, canonical), nil
}

// ActionHash returns a stable content hash for an action's tag and payload.
func ActionHash(actionType string, payload IRObject) (string, error) {
	if payload == nil {
		payload = IRObject{}
	}
	canonical, err := MarshalCanonical(IRObject{
		"type":    IRString(actionType),
		"payload": payload,
	})
	if err != nil {
		return "", fmt.Errorf("ActionHash: %w", err)
	}
	return hashWithDomain(DomainAction, canonical), nil
}
