package app

import (
	"fmt"
	"strings"

	"github.com/jobeco/fairprice/pkg/crypto"
)

const jwtSecretBytes = 48

// ApplyRuntimeDefaults fills in secrets that development setups may omit.
// It returns the keys that were generated so callers can log the event without exposing values.
func ApplyRuntimeDefaults(cfg *Config) (map[string]bool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	generated := make(map[string]bool)

	if strings.TrimSpace(cfg.Auth.JWT.Secret) == "" && cfg.Server.IsDevelopment() {
		secret, err := crypto.GenerateToken(jwtSecretBytes)
		if err != nil {
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
		cfg.Auth.JWT.Secret = secret
		generated["auth.jwt.secret"] = true
	}

	return generated, nil
}
