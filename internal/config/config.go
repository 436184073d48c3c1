package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/charadev96/repguard/internal/bot/domain"
)

const (
	BackendTOML   = "toml"
	BackendSQLite = "sqlite"

	DefaultPath = "repguard.toml"
)

type Config struct {
	Bot      BotConfig              `toml:"bot"`
	Store    StoreConfig            `toml:"store"`
	Pending  PendingConfig          `toml:"pending"`
	Admin    AdminConfig            `toml:"admin"`
	Log      LogConfig              `toml:"log"`
	Statuses map[string]*StatusSeed `toml:"statuses"`
}

type BotConfig struct {
	Token    string   `toml:"token"`
	Admins   []int64  `toml:"admins"`
	Channels []string `toml:"channels"`
	Footer   string   `toml:"footer"`
}

type StoreConfig struct {
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
	SQLite  string `toml:"sqlite"`
	// Mirror keeps an append-only copy of the ledger in the sqlite database
	// alongside a TOML document.
	Mirror bool `toml:"mirror"`
}

type PendingConfig struct {
	TTL Duration `toml:"ttl"`
}

type AdminConfig struct {
	GRPCAddr    string `toml:"grpc"`
	MetricsAddr string `toml:"metrics"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type StatusSeed struct {
	Title       string `toml:"title"`
	Description string `toml:"description"`
	Photo       string `toml:"photo"`
}

// Duration reads "90s" or "15m" style strings. A bare "0" disables expiry.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "" || s == "0" {
		d.Duration = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func Default() Config {
	return Config{
		Store: StoreConfig{
			Backend: BackendTOML,
			Path:    "database.toml",
			SQLite:  "repguard.db",
		},
		Admin: AdminConfig{
			GRPCAddr:    "127.0.0.1:7401",
			MetricsAddr: "127.0.0.1:7402",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads path on top of Default and applies environment overrides. A
// missing file is not an error when the environment supplies the rest.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		_, err := toml.DecodeFile(path, &cfg)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("BOT_TOKEN"); ok && v != "" {
		c.Bot.Token = v
	}
	if v, ok := lookup("ADMIN_IDS"); ok && v != "" {
		ids, err := ParseIDList(v)
		if err != nil {
			return fmt.Errorf("failed to parse ADMIN_IDS: %w", err)
		}
		c.Bot.Admins = ids
	}
	if v, ok := lookup("REPGUARD_STORE_PATH"); ok && v != "" {
		c.Store.Path = v
	}
	return nil
}

// Validate checks the settings every command needs. The bot token is only
// required to serve, see ValidateServe.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendTOML:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the %s backend", BackendTOML)
		}
	case BackendSQLite:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.usesSQLite() && c.Store.SQLite == "" {
		return fmt.Errorf("store.sqlite is required")
	}
	if c.Pending.TTL.Duration < 0 {
		return fmt.Errorf("pending.ttl must not be negative")
	}
	for code := range c.Statuses {
		if code == "" || strings.ContainsAny(code, " \t;") {
			return fmt.Errorf("invalid status code %q", code)
		}
	}
	return nil
}

func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Bot.Token == "" {
		return fmt.Errorf("bot.token or BOT_TOKEN is required")
	}
	if len(c.Bot.Admins) == 0 {
		return fmt.Errorf("bot.admins or ADMIN_IDS must list at least one admin")
	}
	return nil
}

func (c *Config) usesSQLite() bool {
	return c.Store.Backend == BackendSQLite || c.Store.Mirror
}

// SeedStatuses returns the taxonomy a fresh document starts with. Without
// a [statuses] table the built-in categories are used.
func (c *Config) SeedStatuses() map[string]domain.StatusCategory {
	if len(c.Statuses) == 0 {
		return domain.DefaultStatuses()
	}
	out := make(map[string]domain.StatusCategory, len(c.Statuses)+1)
	for code, s := range c.Statuses {
		cat := domain.StatusCategory{Code: code, Title: code}
		if s != nil {
			if s.Title != "" {
				cat.Title = s.Title
			}
			cat.Description = s.Description
			cat.Photo = s.Photo
		}
		out[code] = cat
	}
	if _, ok := out[domain.StatusUnknown]; !ok {
		out[domain.StatusUnknown] = domain.UnknownCategory()
	}
	return out
}

// ParseIDList parses a comma or whitespace separated list of user ids.
func ParseIDList(s string) ([]int64, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	ids := make([]int64, 0, len(fields))
	for _, f := range fields {
		id, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", f, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
