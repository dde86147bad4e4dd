package password

import (
	"strings"
	"testing"
)

func testHasher(t *testing.T) *Hasher {
	t.Helper()
	h, err := NewHasher(Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	return h
}

func TestHashVerifyRoundTrip(t *testing.T) {
	h := testHasher(t)

	digest, err := h.Hash("correct-horse-battery")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if !strings.HasPrefix(digest, "$argon2id$") {
		t.Fatalf("expected PHC argon2id digest, got %s", digest)
	}

	if !h.Verify("correct-horse-battery", digest) {
		t.Fatal("expected matching password to verify")
	}
	if h.Verify("wrong-password-here", digest) {
		t.Fatal("expected mismatched password to fail")
	}
}

func TestHashSaltUnique(t *testing.T) {
	h := testHasher(t)

	d1, _ := h.Hash("correct-horse-battery")
	d2, _ := h.Hash("correct-horse-battery")
	if d1 == d2 {
		t.Fatal("two hashes of the same password must differ by salt")
	}
}

func TestVerifyMalformedDigestIsMismatch(t *testing.T) {
	h := testHasher(t)

	for _, digest := range []string{
		"",
		"plaintext",
		"$argon2id$v=19$m=8192,t=1,p=1$bad-base64!$AAAA",
		"$bcrypt$v=19$m=8192,t=1,p=1$c29tZXNhbHRzb21lc2FsdA$AAAA",
		"$argon2id$v=18$m=8192,t=1,p=1$c29tZXNhbHRzb21lc2FsdA$AAAA",
	} {
		if h.Verify("anything", digest) {
			t.Fatalf("malformed digest %q must not verify", digest)
		}
	}
}

func TestNeedsUpgrade(t *testing.T) {
	weak, err := NewHasher(Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	strong, err := NewHasher(Config{
		Memory:      16 * 1024,
		Time:        2,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}

	digest, err := weak.Hash("correct-horse-battery")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	upgrade, err := strong.NeedsUpgrade(digest)
	if err != nil {
		t.Fatalf("NeedsUpgrade failed: %v", err)
	}
	if !upgrade {
		t.Fatal("expected weaker digest to need upgrade")
	}

	upgrade, err = weak.NeedsUpgrade(digest)
	if err != nil {
		t.Fatalf("NeedsUpgrade failed: %v", err)
	}
	if upgrade {
		t.Fatal("digest at current parameters must not need upgrade")
	}
}

func TestNewHasherRejectsWeakParams(t *testing.T) {
	if _, err := NewHasher(Config{Memory: 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}); err == nil {
		t.Fatal("expected weak memory to be rejected")
	}
	if _, err := NewHasher(Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 8, KeyLength: 32}); err == nil {
		t.Fatal("expected short salt to be rejected")
	}
}
