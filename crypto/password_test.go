package crypto

import "testing"

func TestGenerateHashAndCheckPassword(t *testing.T) {
	hash, err := GenerateHash("password123")
	if err != nil {
		t.Fatalf("GenerateHash() error = %v", err)
	}

	if !CheckPassword("password123", hash) {
		t.Errorf("CheckPassword() with correct password = false, want true")
	}
	if CheckPassword("wrong-password", hash) {
		t.Errorf("CheckPassword() with wrong password = true, want false")
	}
}

func TestCheckPassword_MalformedHash(t *testing.T) {
	if CheckPassword("password123", "not-a-bcrypt-hash") {
		t.Errorf("CheckPassword() with malformed hash = true, want false")
	}
}
