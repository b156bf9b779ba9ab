package google

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// State is the payload the broker encodes into the OAuth state parameter
// before redirecting to the provider. The shared callback route decodes it
// to disambiguate login from sync and, for sync, to recover the acting
// principal even when the elevated-scope token response omits profile
// fields.
type State struct {
	// Subject is the acting principal's tagged subject (sync flow only).
	Subject string `json:"subject,omitempty"`
	// Email is the acting principal's email (sync flow only).
	Email string `json:"email,omitempty"`
	// IsSync selects the elevated mail-access flow on callback.
	IsSync bool `json:"is_sync"`
	// Nonce binds the round trip to the initiating browser session.
	Nonce string `json:"nonce,omitempty"`
}

// EncodeState serializes the state as URL-safe base64 JSON.
func EncodeState(s State) (string, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("marshal oauth state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeState reverses EncodeState.
func DecodeState(encoded string) (State, error) {
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return State{}, fmt.Errorf("decode oauth state: %w", err)
	}
	var s State
	if err := json.Unmarshal(raw, &s); err != nil {
		return State{}, fmt.Errorf("unmarshal oauth state: %w", err)
	}
	return s, nil
}
