package utils

import (
	"crypto/rand" // Random bytes for code generation
)

// Alphabet used for referral codes: uppercase letters and digits
const refCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RefCodeLength is the length of every generated referral code
const RefCodeLength = 8

// NewReferralCode generates a random 8-character referral code
func NewReferralCode() (string, error) {
	b := make([]byte, RefCodeLength) // Buffer for random bytes
	if _, err := rand.Read(b); err != nil {
		return "", err // Return error if randomness fails
	}
	// Map each byte onto the alphabet
	for i := range b {
		b[i] = refCodeAlphabet[int(b[i])%len(refCodeAlphabet)]
	}
	return string(b), nil
}
