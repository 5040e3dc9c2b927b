package shared

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// GenerateState returns a random, URL-safe OAuth state value.
func GenerateState() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
