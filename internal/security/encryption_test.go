package security

import (
	"bytes"
	"strings"
	"testing"
)

func testKey() []byte {
	return bytes.Repeat([]byte{0x42}, 32)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := testKey()

	enc, err := EncryptSecret("spk_token_abc123", key)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if strings.Contains(enc, "spk_token_abc123") {
		t.Error("ciphertext contains plaintext")
	}

	dec, err := DecryptSecret(enc, key)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if dec != "spk_token_abc123" {
		t.Errorf("expected round trip, got %q", dec)
	}
}

func TestDecryptEmptyIsEmpty(t *testing.T) {
	dec, err := DecryptSecret("", testKey())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dec != "" {
		t.Errorf("expected empty, got %q", dec)
	}
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	enc, err := EncryptSecret("secret", testKey())
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}

	wrong := bytes.Repeat([]byte{0x01}, 32)
	if _, err := DecryptSecret(enc, wrong); err == nil {
		t.Error("expected decryption failure with wrong key")
	}
}

func TestUserKeyIsPerUser(t *testing.T) {
	app := testKey()

	a := UserKey("user-a", app)
	b := UserKey("user-b", app)

	if len(a) != 32 || len(b) != 32 {
		t.Fatalf("derived keys must be 32 bytes, got %d and %d", len(a), len(b))
	}
	if bytes.Equal(a, b) {
		t.Error("different users must derive different keys")
	}
	if !bytes.Equal(a, UserKey("user-a", app)) {
		t.Error("key derivation must be deterministic")
	}
}
