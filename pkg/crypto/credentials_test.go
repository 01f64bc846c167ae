package crypto

import (
	"encoding/base64"
	"strings"
	"testing"
)

// Test key generated with: openssl rand -base64 32
const testKey = "dGVzdC1rZXktZm9yLXVuaXQtdGVzdHMtMzItYnl0ZXM=" // "test-key-for-unit-tests-32-bytes"

func TestNewCredentialEncryptor(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid 32-byte base64 key",
			key:     testKey,
			wantErr: false,
		},
		{
			name:    "empty key",
			key:     "",
			wantErr: true,
			errMsg:  "invalid encryption key",
		},
		{
			name:    "passphrase (not base64) - hashed to 32 bytes",
			key:     "my-simple-passphrase",
			wantErr: false,
		},
		{
			name:    "short base64 key - hashed to 32 bytes",
			key:     base64.StdEncoding.EncodeToString([]byte("sixteen-byte-key")),
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := NewCredentialEncryptor(tt.key)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error containing %q, got nil", tt.errMsg)
				} else if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("expected error containing %q, got %q", tt.errMsg, err.Error())
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if enc == nil {
				t.Error("expected non-nil encryptor")
			}
		})
	}
}

func TestEncryptDecryptRoundtrip(t *testing.T) {
	enc, err := NewCredentialEncryptor(testKey)
	if err != nil {
		t.Fatalf("failed to create encryptor: %v", err)
	}

	plaintexts := []string{
		"gremlin-access-key",
		"a-user-name",
		"", // empty passes through
		`{"nested":"json token"}`,
	}

	for _, plaintext := range plaintexts {
		encrypted, err := enc.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("encrypt failed: %v", err)
		}
		if plaintext != "" && encrypted == plaintext {
			t.Error("ciphertext equals plaintext")
		}

		decrypted, err := enc.Decrypt(encrypted)
		if err != nil {
			t.Fatalf("decrypt failed: %v", err)
		}
		if decrypted != plaintext {
			t.Errorf("roundtrip mismatch: got %q, want %q", decrypted, plaintext)
		}
	}
}

func TestDecryptWithWrongKey(t *testing.T) {
	enc1, err := NewCredentialEncryptor("first-key")
	if err != nil {
		t.Fatalf("failed to create encryptor: %v", err)
	}
	enc2, err := NewCredentialEncryptor("second-key")
	if err != nil {
		t.Fatalf("failed to create encryptor: %v", err)
	}

	encrypted, err := enc1.Encrypt("secret")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}

	if _, err := enc2.Decrypt(encrypted); err == nil {
		t.Error("expected decryption with wrong key to fail")
	}
}

func TestDecryptGarbage(t *testing.T) {
	enc, err := NewCredentialEncryptor(testKey)
	if err != nil {
		t.Fatalf("failed to create encryptor: %v", err)
	}

	if _, err := enc.Decrypt("not-valid-base64!!!"); err == nil {
		t.Error("expected error for invalid base64")
	}

	short := base64.StdEncoding.EncodeToString([]byte("abc"))
	if _, err := enc.Decrypt(short); err == nil {
		t.Error("expected error for too-short ciphertext")
	}
}
