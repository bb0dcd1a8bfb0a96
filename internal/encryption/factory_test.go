package encryption

import (
	"path/filepath"
	"testing"

	"mcard-go/internal/config"
)

func TestNewEncryptorFromConfig(t *testing.T) {
	dir := t.TempDir()
	keys := config.EncryptionConfig{
		PublicKeyPath:  filepath.Join(dir, "mcard.pub"),
		PrivateKeyPath: filepath.Join(dir, "mcard.key"),
	}

	tests := []struct {
		name     string
		typ      string
		keys     bool
		wantType string
		wantErr  bool
	}{
		{name: "default is age", typ: "", keys: true, wantType: "age"},
		{name: "age", typ: "age", keys: true, wantType: "age"},
		{name: "age without key paths", typ: "age", wantErr: true},
		{name: "test", typ: "test", wantType: "test"},
		{name: "none", typ: "none", wantType: "none"},
		{name: "unknown", typ: "rot13", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.EncryptionConfig{Type: tt.typ}
			if tt.keys {
				cfg.PublicKeyPath = keys.PublicKeyPath
				cfg.PrivateKeyPath = keys.PrivateKeyPath
			}

			got, err := NewEncryptorFromConfig(cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewEncryptorFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			switch tt.wantType {
			case "age":
				if _, ok := got.(*AgeEncryptor); !ok {
					t.Errorf("NewEncryptorFromConfig() = %T, want *AgeEncryptor", got)
				}
			case "test":
				if _, ok := got.(*TestEncryptor); !ok {
					t.Errorf("NewEncryptorFromConfig() = %T, want *TestEncryptor", got)
				}
			case "none":
				if got != nil {
					t.Errorf("NewEncryptorFromConfig() = %T, want nil", got)
				}
			}
		})
	}
}
