package security

import (
	"crypto/rand"
	"errors"
	"math/big"
)

// Recovery code length bounds.
const (
	MinRecoveryCodeDigits = 6
	MaxRecoveryCodeDigits = 9
)

var ten = big.NewInt(10)

// GenerateNumericCode returns a uniformly random decimal code of exactly digits digits
// (no leading zero), read from crypto/rand.
func GenerateNumericCode(digits int) (string, error) {
	if digits < MinRecoveryCodeDigits || digits > MaxRecoveryCodeDigits {
		return "", errors.New("security: recovery code length out of range")
	}
	low := new(big.Int).Exp(ten, big.NewInt(int64(digits-1)), nil)
	span := new(big.Int).Sub(new(big.Int).Mul(low, ten), low)
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return "", err
	}
	return n.Add(n, low).String(), nil
}

// IsNumericCode reports whether code is exactly digits ASCII digits.
func IsNumericCode(code string, digits int) bool {
	if len(code) != digits {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// HashRecoveryCode digests a recovery code bound to its owner, so equal codes issued to
// different users never share a stored hash.
func HashRecoveryCode(userID, code string) string {
	return HashToken(userID + ":" + code)
}

// RecoveryCodeMatches reports in constant time whether code, issued to userID, hashes to
// storedHash.
func RecoveryCodeMatches(userID, code, storedHash string) bool {
	return TokenHashEqual(userID+":"+code, storedHash)
}
