package utils

import "testing"

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}

	if hash.Algorithm != "pbkdf2" || hash.Digest != "sha512" {
		t.Errorf("unexpected parameters: %s/%s", hash.Algorithm, hash.Digest)
	}
	if len(hash.Salt) != 32 {
		t.Errorf("salt length = %d hex chars, want 32", len(hash.Salt))
	}
	if len(hash.Hash) != 128 {
		t.Errorf("hash length = %d hex chars, want 128", len(hash.Hash))
	}

	if !VerifyPassword("correct horse battery staple", hash) {
		t.Error("correct password rejected")
	}
	if VerifyPassword("wrong", hash) {
		t.Error("wrong password accepted")
	}
	if VerifyPassword("", hash) {
		t.Error("empty password accepted")
	}
}

func TestHashPasswordSaltsDiffer(t *testing.T) {
	a, err := HashPassword("same")
	if err != nil {
		t.Fatal(err)
	}
	b, err := HashPassword("same")
	if err != nil {
		t.Fatal(err)
	}
	if a.Salt == b.Salt || a.Hash == b.Hash {
		t.Error("two hashes of the same password share salt or digest")
	}
}

func TestVerifyPasswordMalformed(t *testing.T) {
	if VerifyPassword("x", nil) {
		t.Error("nil hash accepted")
	}

	hash, err := HashPassword("x")
	if err != nil {
		t.Fatal(err)
	}

	bad := *hash
	bad.Salt = "not-hex"
	if VerifyPassword("x", &bad) {
		t.Error("malformed salt accepted")
	}

	bad = *hash
	bad.Algorithm = "bcrypt"
	if VerifyPassword("x", &bad) {
		t.Error("unknown algorithm accepted")
	}
}
