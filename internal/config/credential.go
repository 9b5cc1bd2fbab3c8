package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Credential is the parsed outbound API secret. The raw value comes in two
// shapes: a bare key "vmk_{prefix}_{hash}" or an extended form
// "vmk_{prefix}_{hash}:user:role:isAgent". Only the key portion is ever
// transmitted on the wire.
type Credential struct {
	Key      string
	User     string
	Role     string
	IsAgent  bool
	Extended bool
}

// IsZero reports whether no credential is configured.
func (c Credential) IsZero() bool {
	return c.Key == ""
}

// Prefix returns a redacted form of the key suitable for logging.
func (c Credential) Prefix() string {
	parts := strings.SplitN(c.Key, "_", 3)
	if len(parts) < 3 {
		return "vmk_???"
	}
	return parts[0] + "_" + parts[1]
}

// ParseCredential validates and splits a raw secret. An empty input yields a
// zero credential and no error; a malformed input yields a zero credential
// and a descriptive error so callers can log once and continue without auth.
func ParseCredential(raw string) (Credential, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Credential{}, nil
	}

	key := raw
	var cred Credential
	if idx := strings.Index(raw, ":"); idx >= 0 {
		fields := strings.Split(raw, ":")
		if len(fields) != 4 {
			return Credential{}, fmt.Errorf("extended credential must have 4 colon-separated fields, got %d", len(fields))
		}
		key = fields[0]
		isAgent, err := strconv.ParseBool(fields[3])
		if err != nil {
			return Credential{}, fmt.Errorf("extended credential isAgent field: %w", err)
		}
		cred = Credential{
			User:     fields[1],
			Role:     fields[2],
			IsAgent:  isAgent,
			Extended: true,
		}
	}

	if err := validateKey(key); err != nil {
		return Credential{}, err
	}
	cred.Key = key
	return cred, nil
}

func validateKey(key string) error {
	if !strings.HasPrefix(key, "vmk_") {
		return fmt.Errorf("credential must start with vmk_, got %q", redact(key))
	}
	parts := strings.SplitN(key, "_", 3)
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return fmt.Errorf("credential must match vmk_{prefix}_{hash}, got %q", redact(key))
	}
	if strings.ContainsAny(key, ": \t\n") {
		return fmt.Errorf("credential key contains illegal characters")
	}
	return nil
}

func redact(key string) string {
	if len(key) <= 8 {
		return key
	}
	return key[:8] + "..."
}
