package credential

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	internal_errors "github.com/linkup-dev/linkup/internal/errors"
	"golang.org/x/crypto/bcrypt"
)

const (
	activationCodeBytes = 64
	otpDigits           = 6
)

// IssueActivationCode returns an opaque random code for email activation.
func IssueActivationCode() (string, error) {
	b := make([]byte, activationCodeBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate activation code: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// IssueOTP returns a numeric one-time code and its hash. Only the hash may be persisted.
func IssueOTP() (code string, hash string, err error) {
	max := big.NewInt(1)
	for range otpDigits {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate otp: %w", err)
	}
	code = fmt.Sprintf("%0*d", otpDigits, n.Int64())
	hash, err = HashSecret(code)
	if err != nil {
		return "", "", err
	}
	return code, hash, nil
}

// HashSecret hashes a password or an OTP with bcrypt.
func HashSecret(plain string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", internal_errors.Validation("Password is too long")
		}
		return "", fmt.Errorf("failed to hash secret: %w", err)
	}
	return string(h), nil
}

// CompareSecret reports whether plain matches hash.
func CompareSecret(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
