package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	fderror "github.com/msto63/firedoc/foundation/core/error"
)

func TestDuration_UnmarshalText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{"seconds", "30s", 30 * time.Second, false},
		{"minutes", "5m", 5 * time.Minute, false},
		{"complex", "1h30m", 90 * time.Minute, false},
		{"milliseconds", "100ms", 100 * time.Millisecond, false},
		{"invalid", "invalid", 0, true},
		{"empty", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration
			err := d.UnmarshalText([]byte(tt.input))

			if (err != nil) != tt.wantErr {
				t.Errorf("UnmarshalText() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && d.Duration != tt.expected {
				t.Errorf("UnmarshalText() = %v, want %v", d.Duration, tt.expected)
			}
		})
	}
}

func TestDuration_MarshalText(t *testing.T) {
	d := Duration{5 * time.Minute}
	result, err := d.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText() error = %v", err)
	}
	if string(result) != "5m0s" {
		t.Errorf("MarshalText() = %v, want 5m0s", string(result))
	}
}

func TestConfig_applyDefaults(t *testing.T) {
	cfg := Default()

	if cfg.General.Name != "firedoc" {
		t.Errorf("General.Name = %v, want firedoc", cfg.General.Name)
	}
	if cfg.Firestore.Endpoint != "firestore.googleapis.com:443" {
		t.Errorf("Firestore.Endpoint = %v", cfg.Firestore.Endpoint)
	}
	if cfg.Firestore.DomainName != "firestore.googleapis.com" {
		t.Errorf("Firestore.DomainName = %v, want firestore.googleapis.com", cfg.Firestore.DomainName)
	}
	if cfg.Firestore.Database != "(default)" {
		t.Errorf("Firestore.Database = %v", cfg.Firestore.Database)
	}
	if cfg.Auth.RefreshMargin.Duration != 60*time.Second {
		t.Errorf("Auth.RefreshMargin = %v, want 60s", cfg.Auth.RefreshMargin.Duration)
	}
	if len(cfg.Auth.Scopes) != 1 || cfg.Auth.Scopes[0] != DatastoreScope {
		t.Errorf("Auth.Scopes = %v", cfg.Auth.Scopes)
	}
	if cfg.Emulator.Store != "memory" {
		t.Errorf("Emulator.Store = %v, want memory", cfg.Emulator.Store)
	}
}

func TestLoad_TOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[general]
log_level = "debug"

[firestore]
endpoint = "localhost:8681"
domain_name = "firestore.test"
project_id = "rust-playground"
request_timeout = "5s"
page_size = 25

[auth]
service_account_file = "$FIREDOC_TEST_DIR/sa.json"
scopes = ["scope-a", "scope-b"]
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FIREDOC_TEST_DIR", "/secrets")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.General.LogLevel != "debug" {
		t.Errorf("LogLevel = %v, want debug", cfg.General.LogLevel)
	}
	if cfg.Firestore.DomainName != "firestore.test" {
		t.Errorf("DomainName = %v", cfg.Firestore.DomainName)
	}
	if cfg.Firestore.RequestTimeout.Duration != 5*time.Second {
		t.Errorf("RequestTimeout = %v, want 5s", cfg.Firestore.RequestTimeout.Duration)
	}
	if cfg.Firestore.PageSize != 25 {
		t.Errorf("PageSize = %v, want 25", cfg.Firestore.PageSize)
	}
	if cfg.Auth.ServiceAccountFile != "/secrets/sa.json" {
		t.Errorf("ServiceAccountFile = %v, want /secrets/sa.json", cfg.Auth.ServiceAccountFile)
	}
	if len(cfg.Auth.Scopes) != 2 {
		t.Errorf("Scopes = %v", cfg.Auth.Scopes)
	}
	if got := cfg.Parent(); got != "projects/rust-playground/databases/(default)/documents" {
		t.Errorf("Parent() = %v", got)
	}
}

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
firestore:
  endpoint: "localhost:9000"
  connect_timeout: 2s
emulator:
  store: sqlite
  port: 9999
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Firestore.ConnectTimeout.Duration != 2*time.Second {
		t.Errorf("ConnectTimeout = %v, want 2s", cfg.Firestore.ConnectTimeout.Duration)
	}
	if cfg.Firestore.DomainName != "localhost" {
		t.Errorf("DomainName = %v, want localhost", cfg.Firestore.DomainName)
	}
	if cfg.EmulatorAddress() != "127.0.0.1:9999" {
		t.Errorf("EmulatorAddress() = %v", cfg.EmulatorAddress())
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	badStore := filepath.Join(dir, "bad.toml")
	os.WriteFile(badStore, []byte("[emulator]\nstore = \"redis\"\n"), 0600)

	malformed := filepath.Join(dir, "malformed.toml")
	os.WriteFile(malformed, []byte("[firestore\n"), 0600)

	negativePage := filepath.Join(dir, "negative.toml")
	os.WriteFile(negativePage, []byte("[firestore]\npage_size = -1\n"), 0600)

	hugePage := filepath.Join(dir, "huge.yaml")
	os.WriteFile(hugePage, []byte("firestore:\n  page_size: 4294967296\n"), 0600)

	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(dir, "nope.toml")},
		{"invalid store", badStore},
		{"malformed", malformed},
		{"negative page size", negativePage},
		{"page size beyond int32", hugePage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path)
			if err == nil {
				t.Fatal("Load() should fail")
			}
			if !fderror.HasCode(err, fderror.CodeConfig) {
				t.Errorf("code = %v, want CONFIG_ERROR", fderror.GetCode(err))
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.toml")
	os.WriteFile(path, []byte("[general]\nname = \"custom\"\n"), 0600)
	t.Setenv(EnvConfigPath, path)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}
	if cfg.General.Name != "custom" {
		t.Errorf("Name = %v, want custom", cfg.General.Name)
	}
}

func TestEmulatorHostOverridesEndpoint(t *testing.T) {
	t.Setenv(EnvEmulatorHost, "localhost:8681")

	cfg := Default()
	if cfg.Firestore.Endpoint != "localhost:8681" || cfg.Firestore.DomainName != "localhost" || !cfg.Firestore.Insecure {
		t.Errorf("Firestore = %+v", cfg.Firestore)
	}
}

func TestFind(t *testing.T) {
	t.Setenv(EnvConfigPath, "/etc/firedoc/config.yaml")
	if got := Find(); got != "/etc/firedoc/config.yaml" {
		t.Errorf("Find() = %q", got)
	}
}
