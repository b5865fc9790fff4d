package credentials

import (
	"strings"
	"testing"
)

func TestGenerateSecretSatisfiesCharacterClasses(testingInstance *testing.T) {
	for _, length := range []int{4, 16, 32, 64} {
		secret, err := GenerateSecret(length)
		if err != nil {
			testingInstance.Fatalf("generate secret of length %d: %v", length, err)
		}
		if len(secret) != length {
			testingInstance.Fatalf("expected length %d, got %d", length, len(secret))
		}
		if !strings.ContainsAny(secret, "abcdefghijklmnopqrstuvwxyz") {
			testingInstance.Fatalf("expected lowercase letter in %q", secret)
		}
		if !strings.ContainsAny(secret, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
			testingInstance.Fatalf("expected uppercase letter in %q", secret)
		}
		if !strings.ContainsAny(secret, "0123456789") {
			testingInstance.Fatalf("expected digit in %q", secret)
		}
	}
}

func TestGenerateSecretRejectsShortLength(testingInstance *testing.T) {
	for _, length := range []int{-1, 0, 3} {
		if _, err := GenerateSecret(length); err == nil {
			testingInstance.Fatalf("expected error for length %d", length)
		}
	}
}

func TestGenerateSecretIsNotConstant(testingInstance *testing.T) {
	first, firstErr := GenerateSecret(DefaultSecretLength)
	if firstErr != nil {
		testingInstance.Fatalf("generate first secret: %v", firstErr)
	}
	second, secondErr := GenerateSecret(DefaultSecretLength)
	if secondErr != nil {
		testingInstance.Fatalf("generate second secret: %v", secondErr)
	}
	if first == second {
		testingInstance.Fatalf("expected distinct secrets, got %q twice", first)
	}
}
