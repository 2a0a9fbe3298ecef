package security

import (
	"encoding/base64"
	"testing"
)

func TestHashToken_Consistent(t *testing.T) {
	token := "test-refresh-token-123"
	hash1 := HashToken(token)
	hash2 := HashToken(token)

	if hash1 != hash2 {
		t.Errorf("HashToken not consistent: hash1 = %q, hash2 = %q", hash1, hash2)
	}
	if len(hash1) != 64 {
		t.Errorf("hash length = %d, want 64 (SHA-256 hex)", len(hash1))
	}
}

func TestHashToken_KnownVector(t *testing.T) {
	const want = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	if got := HashToken("hello"); got != want {
		t.Errorf("HashToken(hello) = %q, want %q", got, want)
	}
}

func TestHashToken_DifferentTokens(t *testing.T) {
	if HashToken("token-1") == HashToken("token-2") {
		t.Error("HashToken produced same hash for different tokens")
	}
}

func TestHashToken_EmptyToken(t *testing.T) {
	const want = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := HashToken(""); got != want {
		t.Errorf("HashToken(\"\") = %q, want %q", got, want)
	}
}

func TestTokenHashEqual(t *testing.T) {
	stored := HashToken("correct-token")
	tests := []struct {
		name   string
		raw    string
		stored string
		want   bool
	}{
		{"match", "correct-token", stored, true},
		{"wrong token", "wrong-token", stored, false},
		{"longer hash", "correct-token", "a" + stored, false},
		{"same length different content", "correct-token", "x" + stored[1:], false},
		{"empty inputs", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TokenHashEqual(tt.raw, tt.stored); got != tt.want {
				t.Errorf("TokenHashEqual = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGenerateRefreshSecret(t *testing.T) {
	a, err := GenerateRefreshSecret()
	if err != nil {
		t.Fatalf("GenerateRefreshSecret: %v", err)
	}
	b, err := GenerateRefreshSecret()
	if err != nil {
		t.Fatalf("GenerateRefreshSecret: %v", err)
	}
	if a == b {
		t.Fatal("two secrets are equal")
	}
	raw, err := base64.RawURLEncoding.DecodeString(a)
	if err != nil {
		t.Fatalf("secret is not base64url: %v", err)
	}
	if len(raw) != 32 {
		t.Errorf("secret entropy = %d bytes, want 32", len(raw))
	}
}

func TestHashPrefix(t *testing.T) {
	if got := HashPrefix("hello"); got != "2cf24dba5fb0" {
		t.Errorf("HashPrefix = %q", got)
	}
}
