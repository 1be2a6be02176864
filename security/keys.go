package security

import (
	"crypto/rand"
	"fmt"
)

const (
	// APIKeyPrefix distinguishes consumer API keys from other secrets at a
	// glance without revealing anything about the key.
	APIKeyPrefix = "sk_live_"

	// WebhookSecretPrefix marks HMAC signing secrets for webhook
	// subscriptions.
	WebhookSecretPrefix = "whsec_"

	tokenLength   = 32
	tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	// rejectThreshold is the largest multiple of the alphabet size that
	// fits in a byte. Bytes at or above it are resampled; reducing them
	// modulo the alphabet would skew selection toward its first characters.
	rejectThreshold = 256 - 256%len(tokenAlphabet)
)

// GenerateAPIKey returns a new opaque consumer token. 32 characters from a
// 62-character alphabet give ~190 bits of entropy, enough to resist
// enumeration.
func GenerateAPIKey() (string, error) {
	return generateToken(APIKeyPrefix)
}

// GenerateWebhookSecret returns a new HMAC signing secret.
func GenerateWebhookSecret() (string, error) {
	return generateToken(WebhookSecretPrefix)
}

// TokenPrefix is the displayable fragment of a token kept after the secret
// itself is redacted.
func TokenPrefix(token string) string {
	if len(token) <= 12 {
		return token
	}
	return token[:12]
}

func generateToken(prefix string) (string, error) {
	chars := make([]byte, 0, tokenLength)
	buf := make([]byte, tokenLength)
	for len(chars) < tokenLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, b := range buf {
			c, ok := sampleAlphabet(b)
			if !ok {
				continue
			}
			chars = append(chars, c)
			if len(chars) == tokenLength {
				break
			}
		}
	}

	return prefix + string(chars), nil
}

// sampleAlphabet maps one random byte onto the token alphabet, rejecting
// the tail values above the threshold so every character is equally likely.
func sampleAlphabet(b byte) (byte, bool) {
	if int(b) >= rejectThreshold {
		return 0, false
	}
	return tokenAlphabet[int(b)%len(tokenAlphabet)], true
}
