// Package codes mints the short share codes used for rooms and audiobooks.
package codes

import (
	"context"
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/pkg/errors"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// MaxAttempts bounds how many candidates Unique tries before giving up.
const MaxAttempts = 10

// ErrExhausted is returned when no free code was found within MaxAttempts.
var ErrExhausted = errors.New("could not generate a unique code")

// Generate returns n random uppercase alphanumeric characters.
func Generate(n int) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", errors.WithStack(err)
		}
		b[i] = alphabet[idx.Int64()]
	}
	return string(b), nil
}

// Unique generates codes until exists reports one as free.
func Unique(ctx context.Context, n int, exists func(ctx context.Context, code string) (bool, error)) (string, error) {
	for i := 0; i < MaxAttempts; i++ {
		code, err := Generate(n)
		if err != nil {
			return "", err
		}
		taken, err := exists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", errors.WithStack(ErrExhausted)
}

// IsUniqueViolation reports whether err came from a UNIQUE constraint, which
// means another request claimed the same code between the check and the
// insert.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
