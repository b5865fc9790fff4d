package credentials

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sethvargo/go-password/password"
)

const (
	// MinimumSecretLength guarantees room for the three required
	// character classes plus padding.
	MinimumSecretLength = 4

	// DefaultSecretLength matches the encryption keys the frontend and
	// GMS services expect.
	DefaultSecretLength = 32

	generationAttempts = 32
)

// GenerateSecret returns an alphanumeric secret of the requested length
// containing at least one lowercase letter, one uppercase letter and one
// digit.
func GenerateSecret(length int) (string, error) {
	if length < MinimumSecretLength {
		return "", fmt.Errorf("secret length %d is too short, minimum is %d", length, MinimumSecretLength)
	}
	for attempt := 0; attempt < generationAttempts; attempt++ {
		candidate, err := password.Generate(length, 1, 0, false, true)
		if err != nil {
			return "", fmt.Errorf("generate secret: %w", err)
		}
		if hasRequiredClasses(candidate) {
			return candidate, nil
		}
	}
	return "", errors.New("generate secret: could not satisfy character class requirements")
}

func hasRequiredClasses(candidate string) bool {
	return strings.ContainsAny(candidate, password.LowerLetters) &&
		strings.ContainsAny(candidate, password.UpperLetters) &&
		strings.ContainsAny(candidate, password.Digits)
}
