package service

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// TrackingTokenBytes is the entropy of one tracking token (128 bits).
const TrackingTokenBytes = 16

// NewTrackingToken returns an unguessable URL-safe token. It is the only thing
// tying a tracking request back to its recipient.
func NewTrackingToken() (string, error) {
	b := make([]byte, TrackingTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate tracking token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
