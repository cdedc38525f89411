package otpcode

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// New generates a random numeric code of the given length, e.g. "493027".
// Each digit is drawn independently from crypto/rand so leading zeros are
// as likely as any other digit.
func New(length int) (string, error) {
	if length < 4 {
		length = 4
	}
	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("generate otp code: %w", err)
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}
