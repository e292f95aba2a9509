package auth

import "testing"

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("p1-secret")
	if err != nil {
		t.Fatalf("unexpected hash error: %v", err)
	}
	if hash == "p1-secret" {
		t.Fatalf("hash must not equal the raw password")
	}
	if !PasswordMatches("p1-secret", hash) {
		t.Fatalf("expected matching password to verify")
	}
	if PasswordMatches("wrong", hash) {
		t.Fatalf("expected mismatching password to fail")
	}
}

func TestPasswordMatchesRejectsGarbageHash(t *testing.T) {
	if PasswordMatches("anything", "not-a-bcrypt-hash") {
		t.Fatalf("expected garbage hash to fail verification")
	}
}
