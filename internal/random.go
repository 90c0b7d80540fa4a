package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

const (
	clientKeySize    = 24
	refreshTokenSize = 32
)

// NewClientKey returns an opaque base64url key naming one caller's client state.
func NewClientKey() (string, error) {
	return opaque(clientKeySize)
}

// NewRefreshToken returns an opaque base64url refresh token.
func NewRefreshToken() (string, error) {
	return opaque(refreshTokenSize)
}

func opaque(size int) (string, error) {
	raw := make([]byte, size)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// HashSecret returns the SHA-256 of a secret for at-rest comparison.
func HashSecret(secret []byte) [32]byte {
	return sha256.Sum256(secret)
}

// NewOTP returns a uniformly random numeric code with the given number of digits.
func NewOTP(digits int) (string, error) {
	if digits < 6 || digits > 10 {
		return "", errors.New("invalid otp digits")
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	otp := b.String()
	if len(otp) != digits {
		return "", fmt.Errorf("invalid otp generation length")
	}
	return otp, nil
}
