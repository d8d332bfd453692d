package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.toml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}

	expected := Default()
	if cfg.Pop3Address != expected.Pop3Address {
		t.Errorf("expected pop3_address %q, got %q", expected.Pop3Address, cfg.Pop3Address)
	}
}

func TestLoadValidTOML(t *testing.T) {
	content := `
[popd]
pop3_address = ":1100"
manager_address = ":4322"
maildir = "/var/mail"
transformer = "/usr/bin/cat"
bytestuffer = "/usr/bin/bytestuff"
log_level = "debug"
`

	path := createTempConfig(t, content)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Pop3Address != ":1100" {
		t.Errorf("pop3_address = %q, want ':1100'", cfg.Pop3Address)
	}
	if cfg.ManagerAddress != ":4322" {
		t.Errorf("manager_address = %q, want ':4322'", cfg.ManagerAddress)
	}
	if cfg.Maildir != "/var/mail" {
		t.Errorf("maildir = %q, want '/var/mail'", cfg.Maildir)
	}
	if cfg.Transformer != "/usr/bin/cat" {
		t.Errorf("transformer = %q, want '/usr/bin/cat'", cfg.Transformer)
	}
	if cfg.ByteStuffer != "/usr/bin/bytestuff" {
		t.Errorf("bytestuffer = %q, want '/usr/bin/bytestuff'", cfg.ByteStuffer)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log_level = %q, want 'debug'", cfg.LogLevel)
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	content := `
[popd
maildir = "broken
`

	path := createTempConfig(t, content)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid TOML, got nil")
	}
}

func TestLoadPartialConfig(t *testing.T) {
	content := `
[popd]
maildir = "/srv/mail"
`

	path := createTempConfig(t, content)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Maildir != "/srv/mail" {
		t.Errorf("maildir = %q, want '/srv/mail'", cfg.Maildir)
	}

	defaults := Default()
	if cfg.LogLevel != defaults.LogLevel {
		t.Errorf("log_level = %q, want default %q", cfg.LogLevel, defaults.LogLevel)
	}
	if cfg.Pop3Address != defaults.Pop3Address {
		t.Errorf("pop3_address = %q, want default %q", cfg.Pop3Address, defaults.Pop3Address)
	}
}

func TestLoadMetricsConfig(t *testing.T) {
	content := `
[popd]
maildir = "/srv/mail"

[popd.metrics]
enabled = true
address = ":9200"
path = "/custom-metrics"
`

	path := createTempConfig(t, content)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !cfg.Metrics.Enabled {
		t.Errorf("metrics.enabled = %v, want true", cfg.Metrics.Enabled)
	}
	if cfg.Metrics.Address != ":9200" {
		t.Errorf("metrics.address = %q, want ':9200'", cfg.Metrics.Address)
	}
	if cfg.Metrics.Path != "/custom-metrics" {
		t.Errorf("metrics.path = %q, want '/custom-metrics'", cfg.Metrics.Path)
	}
}

func TestLoadMetricsConfigPartial(t *testing.T) {
	content := `
[popd]
maildir = "/srv/mail"

[popd.metrics]
enabled = true
`

	path := createTempConfig(t, content)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !cfg.Metrics.Enabled {
		t.Errorf("metrics.enabled = %v, want true", cfg.Metrics.Enabled)
	}

	defaults := Default()
	if cfg.Metrics.Address != defaults.Metrics.Address {
		t.Errorf("metrics.address = %q, want default %q", cfg.Metrics.Address, defaults.Metrics.Address)
	}
	if cfg.Metrics.Path != defaults.Metrics.Path {
		t.Errorf("metrics.path = %q, want default %q", cfg.Metrics.Path, defaults.Metrics.Path)
	}
}

func TestApplyFlags(t *testing.T) {
	cfg := Default()

	flags := &Flags{
		Pop3ListenIP:    "127.0.0.1",
		Pop3Port:        "1100",
		ManagerListenIP: "127.0.0.1",
		ManagerPort:     "4322",
		Maildir:         "/flag/maildir",
		Transformer:     "/flag/transformer",
	}

	result := ApplyFlags(cfg, flags)

	if result.Pop3Address != "127.0.0.1:1100" {
		t.Errorf("pop3_address = %q, want '127.0.0.1:1100'", result.Pop3Address)
	}
	if result.ManagerAddress != "127.0.0.1:4322" {
		t.Errorf("manager_address = %q, want '127.0.0.1:4322'", result.ManagerAddress)
	}
	if result.Maildir != "/flag/maildir" {
		t.Errorf("maildir = %q, want '/flag/maildir'", result.Maildir)
	}
	if result.Transformer != "/flag/transformer" {
		t.Errorf("transformer = %q, want '/flag/transformer'", result.Transformer)
	}
}

func TestApplyFlagsEmptyValuesDoNotOverride(t *testing.T) {
	cfg := Default()
	cfg.Maildir = "/original/maildir"
	cfg.LogLevel = "warn"

	flags := &Flags{}

	result := ApplyFlags(cfg, flags)

	if result.Maildir != "/original/maildir" {
		t.Errorf("maildir = %q, want '/original/maildir' (should not be overridden)", result.Maildir)
	}
	if result.LogLevel != "warn" {
		t.Errorf("log_level = %q, want 'warn' (should not be overridden)", result.LogLevel)
	}
}

func TestApplyFlagsVerboseForcesDebugLevel(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "warn"

	result := ApplyFlags(cfg, &Flags{Verbose: true})

	if result.LogLevel != "debug" {
		t.Errorf("log_level = %q, want 'debug' with -v set", result.LogLevel)
	}
}

func TestFlagPriorityOverConfig(t *testing.T) {
	content := `
[popd]
maildir = "/config/maildir"
log_level = "info"
`

	path := createTempConfig(t, content)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	flags := &Flags{Maildir: "/flag/maildir"}
	result := ApplyFlags(cfg, flags)

	if result.Maildir != "/flag/maildir" {
		t.Errorf("maildir = %q, want '/flag/maildir' (flag should override)", result.Maildir)
	}
	if result.LogLevel != "info" {
		t.Errorf("log_level = %q, want 'info' (config value should remain)", result.LogLevel)
	}
}

func TestCredListRejectsMissingColon(t *testing.T) {
	c := &credList{limit: 2}
	if err := c.Set("nocolon"); err == nil {
		t.Error("expected error for missing colon")
	}
}

func TestCredListEnforcesLimit(t *testing.T) {
	c := &credList{limit: 1}
	if err := c.Set("alice:secret"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.Set("bob:secret"); err == nil {
		t.Error("expected error once limit is exceeded")
	}
}

func createTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to create temp config: %v", err)
	}
	return path
}
