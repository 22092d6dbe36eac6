package auth

import "testing"

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "correct horse" {
		t.Fatal("hash should not equal the password")
	}

	ok, err := CheckPassword(hash, "correct horse")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !ok {
		t.Error("expected match")
	}

	ok, err = CheckPassword(hash, "wrong horse")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if ok {
		t.Error("expected mismatch")
	}
}

func TestCheckPasswordMalformedHash(t *testing.T) {
	if _, err := CheckPassword("not-a-hash", "x"); err == nil {
		t.Error("expected error for malformed hash")
	}
}
