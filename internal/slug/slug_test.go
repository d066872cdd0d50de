package slug

import (
	"context"
	"testing"
)

func TestDerive(t *testing.T) {
	cases := []struct {
		title string
		want  string
	}{
		{"Hello World", "hello-world"},
		{"  Hello   World  ", "hello-world"},
		{"Go 1.24 Released!", "go-124-released"},
		{"C'est la vie", "cest-la-vie"},
		{"--already--slugged--", "already-slugged"},
		{"UPPER lower", "upper-lower"},
		{"???", "post"},
		{"", "post"},
	}
	for _, tc := range cases {
		if got := Derive(tc.title, "post"); got != tc.want {
			t.Errorf("Derive(%q) = %q, want %q", tc.title, got, tc.want)
		}
	}
}

func TestUniqueProbesSequentially(t *testing.T) {
	existing := map[string]bool{
		"hello-world":   true,
		"hello-world-2": true,
	}
	taken := func(_ context.Context, s string) (bool, error) {
		return existing[s], nil
	}

	got, err := Unique(context.Background(), "hello-world", taken)
	if err != nil {
		t.Fatalf("Unique returned error: %v", err)
	}
	if got != "hello-world-3" {
		t.Errorf("Unique = %q, want %q", got, "hello-world-3")
	}
}

func TestUniqueFreeBase(t *testing.T) {
	taken := func(_ context.Context, s string) (bool, error) { return false, nil }
	got, err := Unique(context.Background(), "fresh", taken)
	if err != nil {
		t.Fatalf("Unique returned error: %v", err)
	}
	if got != "fresh" {
		t.Errorf("Unique = %q, want %q", got, "fresh")
	}
}
