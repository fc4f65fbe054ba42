package cache

import (
	"errors"
	"strings"
	"testing"

	educache "github.com/openedu/educache/internal"
)

func TestFingerprint_Deterministic(t *testing.T) {
	t.Parallel()

	a, err := Fingerprint("openlibrary", "search", map[string]string{"q": "algebra", "limit": "10"})
	if err != nil {
		t.Fatal(err)
	}
	b, err := Fingerprint("openlibrary", "search", map[string]string{"limit": "10", "q": "algebra"})
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("param order changed the key: %q vs %q", a, b)
	}
}

func TestFingerprint_CaseInsensitive(t *testing.T) {
	t.Parallel()

	a, _ := Fingerprint("Wikipedia", "Summary", map[string]string{"Title": "Photosynthesis"})
	b, _ := Fingerprint("wikipedia", "summary", map[string]string{"title": "photosynthesis"})
	if a != b {
		t.Errorf("case changed the key: %q vs %q", a, b)
	}
}

func TestFingerprint_Namespaced(t *testing.T) {
	t.Parallel()

	k, err := Fingerprint("arxiv", "search", map[string]string{"q": "cs.LG"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(k, "arxiv:search:") {
		t.Errorf("key %q should be provider-namespaced", k)
	}

	other, _ := Fingerprint("wikipedia", "search", map[string]string{"q": "cs.LG"})
	if k == other {
		t.Error("different providers must not collide")
	}
}

func TestFingerprint_DistinctParams(t *testing.T) {
	t.Parallel()

	a, _ := Fingerprint("dictionary", "define", map[string]string{"word": "cell"})
	b, _ := Fingerprint("dictionary", "define", map[string]string{"word": "cells"})
	if a == b {
		t.Error("different params must not collide")
	}
}

func TestFingerprint_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		provider  string
		operation string
		params    map[string]string
	}{
		{"empty provider", "", "search", nil},
		{"empty operation", "arxiv", "", nil},
		{"provider with separator", "ar:xiv", "search", nil},
		{"operation with space", "arxiv", "se arch", nil},
		{"empty param name", "arxiv", "search", map[string]string{" ": "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Fingerprint(tt.provider, tt.operation, tt.params)
			if !errors.Is(err, educache.ErrInvalidKey) {
				t.Errorf("err = %v, want ErrInvalidKey", err)
			}
		})
	}
}
