package config

import (
	"flag"
	"fmt"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// MaxFlagUsers and MaxFlagAdmins bound the repeatable -u/-a flags, mirroring
// the registry's own MaxUsers/MaxAdmins bounds (spec.md §4.7).
const (
	MaxFlagUsers  = MaxUsers
	MaxFlagAdmins = MaxAdmins
)

// Credential is a parsed "user:pass" flag value.
type Credential struct {
	Username string
	Password string
}

// credList accumulates repeatable "-u user:pass" / "-a admin:pass" flags.
type credList struct {
	limit   int
	entries []Credential
}

func (c *credList) String() string {
	if c == nil {
		return ""
	}
	parts := make([]string, len(c.entries))
	for i, e := range c.entries {
		parts[i] = e.Username + ":" + e.Password
	}
	return strings.Join(parts, ",")
}

func (c *credList) Set(value string) error {
	if len(c.entries) >= c.limit {
		return fmt.Errorf("too many entries (max %d)", c.limit)
	}
	name, pass, ok := strings.Cut(value, ":")
	if !ok {
		return fmt.Errorf("expected user:pass, got %q", value)
	}
	c.entries = append(c.entries, Credential{Username: name, Password: pass})
	return nil
}

// Flags holds command-line flag values, named to match the CLI surface in
// spec.md §6: -l/-L listen addresses, -p/-P ports, -d maildir, -t
// transformer, -u/-a repeatable credentials, -v verbose, -h help.
type Flags struct {
	ConfigPath      string
	Pop3ListenIP    string
	ManagerListenIP string
	Pop3Port        string
	ManagerPort     string
	Maildir         string
	Transformer     string
	Users           []Credential
	Admins          []Credential
	Verbose         bool
	Help            bool
}

// ParseFlags parses command-line flags and returns a Flags struct.
func ParseFlags() *Flags {
	f := &Flags{}
	users := &credList{limit: MaxFlagUsers}
	admins := &credList{limit: MaxFlagAdmins}

	flag.StringVar(&f.ConfigPath, "config", "./popd.toml", "path to configuration file")
	flag.StringVar(&f.Pop3ListenIP, "l", "", "POP3 listen address")
	flag.StringVar(&f.ManagerListenIP, "L", "", "manager listen address")
	flag.StringVar(&f.Pop3Port, "p", "", "POP3 listen port")
	flag.StringVar(&f.ManagerPort, "P", "", "manager listen port")
	flag.StringVar(&f.Maildir, "d", "", "maildir root")
	flag.StringVar(&f.Transformer, "t", "", "transformer command")
	flag.Var(users, "u", "user:pass (repeatable, max 110)")
	flag.Var(admins, "a", "admin:pass (repeatable, max 4)")
	flag.BoolVar(&f.Verbose, "v", false, "verbose logging")
	flag.BoolVar(&f.Help, "h", false, "show usage")

	flag.Parse()
	f.Users = users.entries
	f.Admins = admins.entries
	return f
}

// Load parses a TOML configuration file and returns the Config. If the file
// does not exist, returns the default configuration.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	var fileConfig FileConfig
	if err := toml.Unmarshal(data, &fileConfig); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}

	cfg = mergeConfig(cfg, fileConfig.Popd)
	return cfg, nil
}

// ApplyFlags merges command-line flag values into the config. Non-empty
// flag values override config file values; -l/-L/-p/-P combine into the
// two listen addresses since the config shape stores each as one string.
func ApplyFlags(cfg Config, f *Flags) Config {
	pop3Host, pop3Port := splitHostPort(cfg.Pop3Address)
	mgrHost, mgrPort := splitHostPort(cfg.ManagerAddress)

	if f.Pop3ListenIP != "" {
		pop3Host = f.Pop3ListenIP
	}
	if f.Pop3Port != "" {
		pop3Port = f.Pop3Port
	}
	if f.ManagerListenIP != "" {
		mgrHost = f.ManagerListenIP
	}
	if f.ManagerPort != "" {
		mgrPort = f.ManagerPort
	}

	cfg.Pop3Address = joinHostPort(pop3Host, pop3Port)
	cfg.ManagerAddress = joinHostPort(mgrHost, mgrPort)

	if f.Maildir != "" {
		cfg.Maildir = f.Maildir
	}
	if f.Transformer != "" {
		cfg.Transformer = f.Transformer
	}
	if f.Verbose {
		cfg.LogLevel = "debug"
	}

	return cfg
}

func splitHostPort(addr string) (host, port string) {
	idx := strings.LastIndex(addr, ":")
	if idx < 0 {
		return addr, ""
	}
	return addr[:idx], addr[idx+1:]
}

func joinHostPort(host, port string) string {
	return host + ":" + port
}

// LoadWithFlags loads configuration from the path specified in flags, then
// applies flag overrides.
func LoadWithFlags(f *Flags) (Config, error) {
	cfg, err := Load(f.ConfigPath)
	if err != nil {
		return cfg, err
	}
	return ApplyFlags(cfg, f), nil
}

// mergeConfig merges non-zero values from src into dst.
func mergeConfig(dst, src Config) Config {
	if src.Pop3Address != "" {
		dst.Pop3Address = src.Pop3Address
	}
	if src.ManagerAddress != "" {
		dst.ManagerAddress = src.ManagerAddress
	}
	if src.Maildir != "" {
		dst.Maildir = src.Maildir
	}
	if src.Transformer != "" {
		dst.Transformer = src.Transformer
	}
	if src.ByteStuffer != "" {
		dst.ByteStuffer = src.ByteStuffer
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if src.Metrics.Enabled {
		dst.Metrics.Enabled = src.Metrics.Enabled
	}
	if src.Metrics.Address != "" {
		dst.Metrics.Address = src.Metrics.Address
	}
	if src.Metrics.Path != "" {
		dst.Metrics.Path = src.Metrics.Path
	}
	return dst
}
