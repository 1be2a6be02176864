package security

import (
	"strings"
	"testing"
)

func TestGenerateAPIKey(t *testing.T) {
	token, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey() error = %v", err)
	}

	if !strings.HasPrefix(token, APIKeyPrefix) {
		t.Errorf("token %q missing prefix %q", token, APIKeyPrefix)
	}
	if len(token) != len(APIKeyPrefix)+tokenLength {
		t.Errorf("token length = %d, want %d", len(token), len(APIKeyPrefix)+tokenLength)
	}
	for _, c := range token[len(APIKeyPrefix):] {
		if !strings.ContainsRune(tokenAlphabet, c) {
			t.Errorf("token contains character %q outside alphabet", c)
		}
	}
}

func TestGenerateAPIKey_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := GenerateAPIKey()
		if err != nil {
			t.Fatalf("GenerateAPIKey() error = %v", err)
		}
		if seen[token] {
			t.Fatalf("duplicate token %q", token)
		}
		seen[token] = true
	}
}

func TestGenerateWebhookSecret(t *testing.T) {
	secret, err := GenerateWebhookSecret()
	if err != nil {
		t.Fatalf("GenerateWebhookSecret() error = %v", err)
	}
	if !strings.HasPrefix(secret, WebhookSecretPrefix) {
		t.Errorf("secret %q missing prefix %q", secret, WebhookSecretPrefix)
	}
}

func TestSampleAlphabet(t *testing.T) {
	// 256 is not a multiple of the alphabet size, so the tail bytes must be
	// rejected rather than wrapped onto the first characters.
	if rejectThreshold%len(tokenAlphabet) != 0 {
		t.Fatalf("rejectThreshold %d is not a multiple of the alphabet size %d",
			rejectThreshold, len(tokenAlphabet))
	}

	counts := make(map[byte]int)
	for b := 0; b < 256; b++ {
		c, ok := sampleAlphabet(byte(b))
		if b >= rejectThreshold {
			if ok {
				t.Errorf("sampleAlphabet(%d) accepted, want rejected", b)
			}
			continue
		}
		if !ok {
			t.Errorf("sampleAlphabet(%d) rejected, want accepted", b)
			continue
		}
		if !strings.ContainsRune(tokenAlphabet, rune(c)) {
			t.Errorf("sampleAlphabet(%d) = %q, outside alphabet", b, c)
		}
		counts[c]++
	}

	// Over the full byte range every alphabet character is hit the same
	// number of times.
	want := rejectThreshold / len(tokenAlphabet)
	for i := 0; i < len(tokenAlphabet); i++ {
		if got := counts[tokenAlphabet[i]]; got != want {
			t.Errorf("character %q sampled %d times, want %d", tokenAlphabet[i], got, want)
		}
	}
}

func TestTokenPrefix(t *testing.T) {
	token := "sk_live_abcdefghijklmnop"
	if got := TokenPrefix(token); got != "sk_live_abcd" {
		t.Errorf("TokenPrefix() = %q, want %q", got, "sk_live_abcd")
	}

	short := "sk_live_"
	if got := TokenPrefix(short); got != short {
		t.Errorf("TokenPrefix() = %q, want %q", got, short)
	}
}
