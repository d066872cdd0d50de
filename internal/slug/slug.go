// Package slug derives URL slugs from titles and resolves collisions by
// sequential numeric suffixing. Uniqueness is "eventually unique": the
// probe is a check-then-act against the store, so the unique index on
// the slug field remains the real backstop and callers retry inserts
// that lose the race.
package slug

import (
	"context"
	"fmt"
	"strings"
)

// Derive folds a human title into a slug candidate: lowercase,
// whitespace to hyphens, strip everything outside [a-z0-9-], collapse
// hyphen runs, trim edge hyphens. An empty result yields fallback.
func Derive(title, fallback string) string {
	var b strings.Builder
	prevHyphen := false
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prevHyphen = false
		case r == ' ' || r == '\t' || r == '\n' || r == '-' || r == '_':
			if !prevHyphen && b.Len() > 0 {
				b.WriteByte('-')
				prevHyphen = true
			}
		}
	}
	s := strings.TrimRight(b.String(), "-")
	if s == "" {
		return fallback
	}
	return s
}

// Unique probes base, base-2, base-3, ... with taken until a free slug
// is found.
func Unique(ctx context.Context, base string, taken func(context.Context, string) (bool, error)) (string, error) {
	candidate := base
	for counter := 2; ; counter++ {
		exists, err := taken(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, counter)
	}
}
