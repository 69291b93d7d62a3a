package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"strings"
)

// NormalizeEmail lowercases and trims an address so that hashing is stable.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// HashIdentity returns the hex SHA-256 of a normalized identity. Raw emails
// and client addresses are never stored or logged, only this hash.
func HashIdentity(identity string) string {
	sum := sha256.Sum256([]byte(NormalizeEmail(identity)))
	return hex.EncodeToString(sum[:])
}

// HashToken returns the hex SHA-256 of a token string.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// MaskEmail keeps the first and last character of the local part and replaces
// the middle with asterisks plus 1-3 random extra ones, so the masked length
// does not reveal the real length.
func MaskEmail(email string) string {
	email = NormalizeEmail(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return strings.Repeat("*", 3+randomPadding())
	}
	local, domain := []rune(email[:at]), email[at:]
	stars := len(local) - 2
	if stars < 0 {
		stars = 0
	}
	stars += randomPadding()

	var b strings.Builder
	switch len(local) {
	case 0:
	case 1:
		b.WriteRune(local[0])
		b.WriteString(strings.Repeat("*", stars))
	default:
		b.WriteRune(local[0])
		b.WriteString(strings.Repeat("*", stars))
		b.WriteRune(local[len(local)-1])
	}
	b.WriteString(domain)
	return b.String()
}

func randomPadding() int {
	n, err := rand.Int(rand.Reader, big.NewInt(3))
	if err != nil {
		return 2
	}
	return int(n.Int64()) + 1
}
