package booking

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestRandomCodeFormat(t *testing.T) {
	for i := 0; i < 100; i++ {
		code := randomCode()
		if len(code) != len(codePrefix)+codeLength {
			t.Fatalf("code %q has length %d, want %d", code, len(code), len(codePrefix)+codeLength)
		}
		if !strings.HasPrefix(code, codePrefix) {
			t.Fatalf("code %q missing prefix %q", code, codePrefix)
		}
		for _, c := range code[len(codePrefix):] {
			if !strings.ContainsRune(codeAlphabet, c) {
				t.Fatalf("code %q contains %q outside the alphabet", code, c)
			}
		}
	}
}

func TestAllocateCodeReturnsUnusedCode(t *testing.T) {
	repo := newFakeRepo()

	code, err := allocateCode(context.Background(), repo)
	if err != nil {
		t.Fatalf("allocateCode: %v", err)
	}
	if taken, _ := repo.CodeExists(context.Background(), code); taken {
		t.Fatalf("allocated code %q already exists", code)
	}
}

func TestAllocateCodeSkipsTakenCodes(t *testing.T) {
	repo := newFakeRepo()
	// Force the first few probes to collide.
	repo.codeCollisions = 5

	code, err := allocateCode(context.Background(), repo)
	if err != nil {
		t.Fatalf("allocateCode: %v", err)
	}
	if code == "" {
		t.Fatal("got empty code")
	}
	if repo.codeChecks != 6 {
		t.Fatalf("got %d existence checks, want 6", repo.codeChecks)
	}
}

func TestAllocateCodeNoDuplicatesAtScale(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping 100k allocation run in short mode")
	}

	repo := newFakeRepo()
	ctx := context.Background()

	const n = 100_000
	for i := 0; i < n; i++ {
		code, err := allocateCode(ctx, repo)
		if err != nil {
			t.Fatalf("allocation %d: %v", i, err)
		}
		if repo.takenCodes[code] {
			t.Fatalf("allocation %d returned duplicate code %q", i, code)
		}
		// Claim the code the way the booking insert would.
		repo.takenCodes[code] = true
	}

	if len(repo.takenCodes) != n {
		t.Fatalf("got %d distinct codes, want %d", len(repo.takenCodes), n)
	}
}

func TestAllocateCodeExhaustsAfterBoundedAttempts(t *testing.T) {
	repo := newFakeRepo()
	// Every candidate collides.
	repo.codeCollisions = -1

	_, err := allocateCode(context.Background(), repo)
	if !errors.Is(err, ErrCodeSpaceExhausted) {
		t.Fatalf("got error %v, want ErrCodeSpaceExhausted", err)
	}
	if repo.codeChecks != maxCodeAttempts {
		t.Fatalf("got %d existence checks, want %d", repo.codeChecks, maxCodeAttempts)
	}
}
