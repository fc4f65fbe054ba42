package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	educache "github.com/openedu/educache/internal"
)

// Fingerprint derives a deterministic, provider-namespaced cache key from the
// logical operation and its parameters. Normalization is case- and
// order-insensitive so equivalent requests collide on the same key.
// Format: <provider>:<operation>:<hex> where hex is the first 16 bytes of
// SHA-256 over the canonical parameter form.
func Fingerprint(provider, operation string, params map[string]string) (string, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	operation = strings.ToLower(strings.TrimSpace(operation))
	if provider == "" {
		return "", fmt.Errorf("%w: empty provider", educache.ErrInvalidKey)
	}
	if operation == "" {
		return "", fmt.Errorf("%w: empty operation", educache.ErrInvalidKey)
	}
	if strings.ContainsAny(provider, ": \t\n") || strings.ContainsAny(operation, ": \t\n") {
		return "", fmt.Errorf("%w: provider and operation must not contain separators", educache.ErrInvalidKey)
	}

	norm := make([]string, 0, len(params))
	for k, v := range params {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			return "", fmt.Errorf("%w: empty parameter name", educache.ErrInvalidKey)
		}
		norm = append(norm, k+"="+strings.ToLower(strings.TrimSpace(v)))
	}
	sort.Strings(norm)

	h := sha256.New()
	h.Write([]byte(provider))
	h.Write([]byte{0})
	h.Write([]byte(operation))
	h.Write([]byte{0})
	for _, kv := range norm {
		h.Write([]byte(kv))
		h.Write([]byte{0})
	}
	return provider + ":" + operation + ":" + hex.EncodeToString(h.Sum(nil)[:16]), nil
}
