package config

import "testing"

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Pop3Address != ":110" {
		t.Errorf("expected pop3_address ':110', got %q", cfg.Pop3Address)
	}

	if cfg.ManagerAddress != ":4321" {
		t.Errorf("expected manager_address ':4321', got %q", cfg.ManagerAddress)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("expected log_level 'info', got %q", cfg.LogLevel)
	}

	if cfg.Maildir == "" {
		t.Errorf("expected a non-empty default maildir")
	}

	if cfg.ByteStuffer == "" {
		t.Errorf("expected a non-empty default bytestuffer command")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "empty pop3 address",
			modify:  func(c *Config) { c.Pop3Address = "" },
			wantErr: true,
		},
		{
			name:    "empty manager address",
			modify:  func(c *Config) { c.ManagerAddress = "" },
			wantErr: true,
		},
		{
			name: "pop3 and manager addresses collide",
			modify: func(c *Config) {
				c.ManagerAddress = c.Pop3Address
			},
			wantErr: true,
		},
		{
			name:    "empty maildir",
			modify:  func(c *Config) { c.Maildir = "" },
			wantErr: true,
		},
		{
			name:    "empty bytestuffer",
			modify:  func(c *Config) { c.ByteStuffer = "" },
			wantErr: true,
		},
		{
			name: "metrics enabled without address",
			modify: func(c *Config) {
				c.Metrics.Enabled = true
				c.Metrics.Address = ""
			},
			wantErr: true,
		},
		{
			name: "metrics enabled without path",
			modify: func(c *Config) {
				c.Metrics.Enabled = true
				c.Metrics.Path = ""
			},
			wantErr: true,
		},
		{
			name: "metrics disabled, address/path irrelevant",
			modify: func(c *Config) {
				c.Metrics.Enabled = false
				c.Metrics.Address = ""
				c.Metrics.Path = ""
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
