package nats

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfigTLS(t *testing.T) {
	dir := t.TempDir()
	badCA := filepath.Join(dir, "ca.pem")
	if err := os.WriteFile(badCA, []byte("not a certificate"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		cfg     Config
		wantNil bool
		wantErr bool
	}{
		{"plaintext", Config{URL: "nats://localhost:4222"}, true, false},
		{"cert without CA", Config{CertFile: "client.pem", KeyFile: "client.key"}, true, true},
		{"missing CA file", Config{CAFile: filepath.Join(dir, "missing.pem")}, true, true},
		{"unparseable CA", Config{CAFile: badCA}, true, true},
		{"cert without key", Config{CAFile: badCA, CertFile: "client.pem"}, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cfg.tlsConfig()
			if (err != nil) != tt.wantErr {
				t.Fatalf("tlsConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if (got == nil) != tt.wantNil {
				t.Fatalf("tlsConfig() = %v, wantNil %v", got, tt.wantNil)
			}
		})
	}
}
