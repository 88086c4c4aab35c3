package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hvac_gateway/internal/models"
)

// clearEnv blanks every variable Load looks at so the host environment does
// not leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, legacy := range legacyEnv {
		t.Setenv(legacy, "")
	}
	for _, kv := range os.Environ() {
		if name, _, _ := strings.Cut(kv, "="); strings.HasPrefix(name, "HVAC_") {
			t.Setenv(name, "")
		}
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const sampleYAML = `
server:
  port: "9090"
  cors_origins: ["https://panel.local"]
device:
  host: rpi.local
  name: hvac
  refresh_interval: 10s
  bulk: false
auth:
  username: user
  password: userpass
  su_username: admin
  su_password: adminpass
  policy:
    set_temperature_feed: superuser
logging:
  level: debug
  format: json
`

func TestLoad_FileAndDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.Server.Port != "9090" || cfg.Server.Addr() != ":9090" {
		t.Errorf("unexpected server: %+v", cfg.Server)
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "https://panel.local" {
		t.Errorf("unexpected cors origins: %v", cfg.Server.CORSOrigins)
	}
	if cfg.Device.RefreshInterval != 10*time.Second || cfg.Device.Bulk {
		t.Errorf("unexpected device: %+v", cfg.Device)
	}
	if cfg.Device.Timeout != 5*time.Second {
		t.Errorf("default timeout not applied: %v", cfg.Device.Timeout)
	}
	if cfg.Auth.TokenTTL != time.Hour || cfg.DB.Path != "hvac.db" {
		t.Errorf("defaults not applied: %+v %+v", cfg.Auth, cfg.DB)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("unexpected logging: %+v", cfg.Logging)
	}
	if cfg.Policy().Required(models.OpSetTemperatureFeed) != models.RoleSuperuser {
		t.Errorf("policy override not applied")
	}
	if cfg.Policy().Required(models.OpReadMode) != models.RoleUser {
		t.Errorf("default policy entries lost")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("HVAC_DEVICE_REFRESH_INTERVAL", "45s")
	t.Setenv("HVAC_SERVER_PORT", "7000")
	t.Setenv("RPI_HOST", "10.0.0.9")
	t.Setenv("HVAC_AUTH_SU_PASSWORD", "fromenv")
	t.Setenv("SU_PASSWORD", "legacy")

	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Device.RefreshInterval != 45*time.Second {
		t.Errorf("refresh interval = %v", cfg.Device.RefreshInterval)
	}
	if cfg.Server.Port != "7000" {
		t.Errorf("port = %q", cfg.Server.Port)
	}
	if cfg.Device.Host != "10.0.0.9" {
		t.Errorf("legacy RPI_HOST not applied: %q", cfg.Device.Host)
	}
	if cfg.Auth.SuPassword != "fromenv" {
		t.Errorf("prefixed variable must win over legacy one: %q", cfg.Auth.SuPassword)
	}
}

func TestLoad_EnvOnlyWithoutFile(t *testing.T) {
	clearEnv(t)
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("RPI_HOST", "rpi")
	t.Setenv("HVAC_NAME", "unit")
	t.Setenv("USERNAME", "u")
	t.Setenv("PASSWORD", "p")
	t.Setenv("SU_USERNAME", "s")
	t.Setenv("SU_PASSWORD", "q")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Device.Name != "unit" || cfg.Auth.SuUsername != "s" {
		t.Errorf("legacy env not applied: %+v %+v", cfg.Device, cfg.Auth)
	}
	if !cfg.Device.Bulk || cfg.Device.RefreshInterval != 30*time.Second {
		t.Errorf("defaults not applied: %+v", cfg.Device)
	}
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yml")); err == nil {
		t.Fatalf("expected error for missing explicit config file")
	}
}

func TestValidate_ReportsProblems(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeConfig(t, `
server:
  port: abc
logging:
  format: xml
auth:
  policy:
    set_mode: root
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	err = cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"device.host", "device.name", "auth.username", "auth.su_username", "server.port", "logging.format", "auth.policy"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}
