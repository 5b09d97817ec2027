package env

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// secretPrefix namespaces the environment variables the source will read
const secretPrefix = "CONDUCTOR_SECRET_"

// Source resolves secrets from environment variables. A secret named
// WALLET_PRIVATE_KEY is read from CONDUCTOR_SECRET_WALLET_PRIVATE_KEY.
type Source struct{}

// NewSource creates an environment-backed secret source
func NewSource() *Source {
	return &Source{}
}

// Get resolves a secret by name
func (s *Source) Get(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("secret name is required")
	}

	key := secretPrefix + strings.ToUpper(name)
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return "", fmt.Errorf("secret %q is not set", name)
	}
	return value, nil
}
