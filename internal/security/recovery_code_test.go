package security

import "testing"

func TestGenerateNumericCode(t *testing.T) {
	for digits := MinRecoveryCodeDigits; digits <= MaxRecoveryCodeDigits; digits++ {
		for i := 0; i < 50; i++ {
			code, err := GenerateNumericCode(digits)
			if err != nil {
				t.Fatalf("GenerateNumericCode(%d): %v", digits, err)
			}
			if !IsNumericCode(code, digits) || code[0] == '0' {
				t.Fatalf("GenerateNumericCode(%d) = %q", digits, code)
			}
		}
	}
	for _, digits := range []int{0, 5, 10} {
		if _, err := GenerateNumericCode(digits); err == nil {
			t.Errorf("GenerateNumericCode(%d) should fail", digits)
		}
	}
}

func TestIsNumericCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"123456", true},
		{"12345", false},
		{"1234567", false},
		{"12a456", false},
		{"", false},
		{"１２３４５６", false},
	}
	for _, tt := range tests {
		if got := IsNumericCode(tt.code, 6); got != tt.want {
			t.Errorf("IsNumericCode(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestHashRecoveryCode_BoundToUser(t *testing.T) {
	if HashRecoveryCode("u1", "123456") == HashRecoveryCode("u2", "123456") {
		t.Error("equal codes for different users must hash differently")
	}
	if HashRecoveryCode("u1", "123456") != HashRecoveryCode("u1", "123456") {
		t.Error("HashRecoveryCode is not deterministic")
	}
	stored := HashRecoveryCode("u1", "123456")
	if !RecoveryCodeMatches("u1", "123456", stored) {
		t.Error("RecoveryCodeMatches rejected the issued code")
	}
	if RecoveryCodeMatches("u1", "123457", stored) || RecoveryCodeMatches("u2", "123456", stored) {
		t.Error("RecoveryCodeMatches accepted a wrong code or owner")
	}
}
