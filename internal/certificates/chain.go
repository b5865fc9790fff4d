package certificates

import (
	"fmt"
	"strings"
)

const certificateEndMarker = "-----END CERTIFICATE-----"

// SplitChain splits a PEM formatted bundle into individual certificates,
// preserving order. Contents are not validated.
func SplitChain(bundle string) []string {
	segments := strings.Split(bundle, certificateEndMarker)
	chain := make([]string, 0, len(segments))
	for _, segment := range segments {
		trimmed := strings.TrimSpace(segment)
		if trimmed == "" {
			continue
		}
		chain = append(chain, trimmed+"\n"+certificateEndMarker)
	}
	return chain
}

// RootAuthority returns the root certificate authority of a chain. The
// OpenSearch relation hands over chains ordered with the root authority in
// second position.
func RootAuthority(bundle string) (string, error) {
	chain := SplitChain(bundle)
	if len(chain) < 2 {
		return "", fmt.Errorf("certificate chain holds %d certificates, expected at least 2", len(chain))
	}
	return chain[1], nil
}
