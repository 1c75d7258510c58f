package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pders01/casedesk/internal/validation"
)

type Config struct {
	Server      ServerConfig     `mapstructure:"server"`
	Feed        FeedConfig       `mapstructure:"feed"`
	Database    DatabaseConfig   `mapstructure:"database"`
	Listen      ListenConfig     `mapstructure:"listen"`
	UI          UIConfig         `mapstructure:"ui"`
	Keys        KeyConfig        `mapstructure:"keys"`
	Log         LogConfig        `mapstructure:"log"`
	Attachments AttachmentConfig `mapstructure:"attachments"`
}

// ServerConfig points the client at the case API.
type ServerConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	Token       string        `mapstructure:"token"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
	UserAgent   string        `mapstructure:"user_agent"`
}

// FeedConfig tunes the incremental list.
type FeedConfig struct {
	Debounce        time.Duration `mapstructure:"debounce"`
	ScrollThreshold int           `mapstructure:"scroll_threshold"`
	PerPage         int           `mapstructure:"per_page"`
}

type DatabaseConfig struct {
	Path        string        `mapstructure:"path"`
	Timeout     time.Duration `mapstructure:"timeout"`
	SearchIndex string        `mapstructure:"search_index"`
}

// ListenConfig is used by `casedesk serve`. Login is disabled and every
// route is open while Gmail is empty.
type ListenConfig struct {
	Addr         string        `mapstructure:"addr"`
	Gmail        string        `mapstructure:"gmail"`
	PasswordHash string        `mapstructure:"password_hash"`
	JWTSecret    string        `mapstructure:"jwt_secret"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
}

type UIConfig struct {
	Colors UIColors `mapstructure:"colors"`
	// DetailWrapWidth caps the glamour word wrap of the detail view.
	DetailWrapWidth int `mapstructure:"detail_wrap_width"`
}

type UIColors struct {
	Primary    string `mapstructure:"primary"`
	Secondary  string `mapstructure:"secondary"`
	Accent     string `mapstructure:"accent"`
	Background string `mapstructure:"background"`
	Surface    string `mapstructure:"surface"`
	Text       string `mapstructure:"text"`
	Muted      string `mapstructure:"muted"`
	Error      string `mapstructure:"error"`
	Success    string `mapstructure:"success"`
}

type KeyConfig struct {
	Modifier string      `mapstructure:"modifier"`
	Bindings KeyBindings `mapstructure:"bindings"`
}

type KeyBindings struct {
	Quit           string `mapstructure:"quit"`
	Search         string `mapstructure:"search"`
	Refresh        string `mapstructure:"refresh"`
	Delete         string `mapstructure:"delete"`
	OpenAttachment string `mapstructure:"open_attachment"`
	New            string `mapstructure:"new"`
	Edit           string `mapstructure:"edit"`
	Save           string `mapstructure:"save"`
	Back           string `mapstructure:"back"`
	Help           string `mapstructure:"help"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// AttachmentConfig lists programs tried in order when opening an attachment.
type AttachmentConfig struct {
	Darwin        AttachmentOpeners `mapstructure:"darwin"`
	Linux         AttachmentOpeners `mapstructure:"linux"`
	Windows       AttachmentOpeners `mapstructure:"windows"`
	DefaultOpener string            `mapstructure:"default_opener"`
	// PublicHostsOnly refuses attachment links to localhost and private
	// networks.
	PublicHostsOnly bool `mapstructure:"public_hosts_only"`
}

type AttachmentOpeners struct {
	Image []string `mapstructure:"image"`
	PDF   []string `mapstructure:"pdf"`
}

func defaultConfig() *Config {
	dataDir := validation.DataDir()

	return &Config{
		Server: ServerConfig{
			BaseURL:     "http://127.0.0.1:8000/api",
			HTTPTimeout: 15 * time.Second,
			UserAgent:   "casedesk/1.0",
		},
		Feed: FeedConfig{
			Debounce:        800 * time.Millisecond,
			ScrollThreshold: 3,
			PerPage:         15,
		},
		Database: DatabaseConfig{
			Path:        filepath.Join(dataDir, "cases.db"),
			Timeout:     1 * time.Second,
			SearchIndex: filepath.Join(dataDir, "index.bleve"),
		},
		Listen: ListenConfig{
			Addr:     "127.0.0.1:8000",
			TokenTTL: 12 * time.Hour,
		},
		UI: UIConfig{
			Colors: UIColors{
				Primary:    "#E76F51",
				Secondary:  "#2A9D8F",
				Accent:     "#E9C46A",
				Background: "#1B1F24",
				Surface:    "#264653",
				Text:       "#EAEAEA",
				Muted:      "#94A3B8",
				Error:      "#F87171",
				Success:    "#4ADE80",
			},
			DetailWrapWidth: 100,
		},
		Keys: KeyConfig{
			Modifier: "ctrl",
			Bindings: KeyBindings{
				Quit:           "q",
				Search:         "s",
				Refresh:        "r",
				Delete:         "x",
				OpenAttachment: "o",
				New:            "n",
				Edit:           "e",
				Save:           "w",
				Back:           "esc",
				Help:           "?",
			},
		},
		Log: LogConfig{
			Level: "off",
			File:  filepath.Join(dataDir, "casedesk.log"),
		},
		Attachments: AttachmentConfig{
			Darwin: AttachmentOpeners{
				Image: []string{"open"},
				PDF:   []string{"open"},
			},
			Linux: AttachmentOpeners{
				Image: []string{"feh", "eog", "xdg-open"},
				PDF:   []string{"zathura", "evince", "xdg-open"},
			},
			Windows: AttachmentOpeners{
				Image: []string{"start"},
				PDF:   []string{"start"},
			},
			DefaultOpener: getDefaultOpener(),
		},
	}
}

func getDefaultOpener() string {
	switch runtime.GOOS {
	case "darwin":
		return "open"
	case "linux":
		return "xdg-open"
	case "windows":
		return "start"
	default:
		return "open"
	}
}

// DefaultPath is the config file written by `casedesk config init`.
func DefaultPath() string {
	return filepath.Join(validation.ConfigDir(), "config.toml")
}

// settings flattens cfg into viper keys. Durations are kept as strings so a
// saved file stays readable.
func settings(cfg *Config) map[string]interface{} {
	return map[string]interface{}{
		"server.base_url":     cfg.Server.BaseURL,
		"server.token":        cfg.Server.Token,
		"server.http_timeout": cfg.Server.HTTPTimeout.String(),
		"server.user_agent":   cfg.Server.UserAgent,

		"feed.debounce":         cfg.Feed.Debounce.String(),
		"feed.scroll_threshold": cfg.Feed.ScrollThreshold,
		"feed.per_page":         cfg.Feed.PerPage,

		"database.path":         cfg.Database.Path,
		"database.timeout":      cfg.Database.Timeout.String(),
		"database.search_index": cfg.Database.SearchIndex,

		"listen.addr":          cfg.Listen.Addr,
		"listen.gmail":         cfg.Listen.Gmail,
		"listen.password_hash": cfg.Listen.PasswordHash,
		"listen.jwt_secret":    cfg.Listen.JWTSecret,
		"listen.token_ttl":     cfg.Listen.TokenTTL.String(),

		"ui.colors.primary":    cfg.UI.Colors.Primary,
		"ui.colors.secondary":  cfg.UI.Colors.Secondary,
		"ui.colors.accent":     cfg.UI.Colors.Accent,
		"ui.colors.background": cfg.UI.Colors.Background,
		"ui.colors.surface":    cfg.UI.Colors.Surface,
		"ui.colors.text":       cfg.UI.Colors.Text,
		"ui.colors.muted":      cfg.UI.Colors.Muted,
		"ui.colors.error":      cfg.UI.Colors.Error,
		"ui.colors.success":    cfg.UI.Colors.Success,
		"ui.detail_wrap_width": cfg.UI.DetailWrapWidth,

		"keys.modifier":                 cfg.Keys.Modifier,
		"keys.bindings.quit":            cfg.Keys.Bindings.Quit,
		"keys.bindings.search":          cfg.Keys.Bindings.Search,
		"keys.bindings.refresh":         cfg.Keys.Bindings.Refresh,
		"keys.bindings.delete":          cfg.Keys.Bindings.Delete,
		"keys.bindings.open_attachment": cfg.Keys.Bindings.OpenAttachment,
		"keys.bindings.new":             cfg.Keys.Bindings.New,
		"keys.bindings.edit":            cfg.Keys.Bindings.Edit,
		"keys.bindings.save":            cfg.Keys.Bindings.Save,
		"keys.bindings.back":            cfg.Keys.Bindings.Back,
		"keys.bindings.help":            cfg.Keys.Bindings.Help,

		"log.level": cfg.Log.Level,
		"log.file":  cfg.Log.File,

		"attachments.darwin.image":      cfg.Attachments.Darwin.Image,
		"attachments.darwin.pdf":        cfg.Attachments.Darwin.PDF,
		"attachments.linux.image":       cfg.Attachments.Linux.Image,
		"attachments.linux.pdf":         cfg.Attachments.Linux.PDF,
		"attachments.windows.image":     cfg.Attachments.Windows.Image,
		"attachments.windows.pdf":       cfg.Attachments.Windows.PDF,
		"attachments.default_opener":    cfg.Attachments.DefaultOpener,
		"attachments.public_hosts_only": cfg.Attachments.PublicHostsOnly,
	}
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	for key, value := range settings(defaultConfig()) {
		v.SetDefault(key, value)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(validation.ConfigDir())
		v.AddConfigPath(".")
	}

	// CASEDESK_SERVER_BASE_URL overrides server.base_url.
	v.SetEnvPrefix("CASEDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	expandPaths(&config)

	return &config, nil
}

func expandPath(path string) string {
	if path == "" {
		return path
	}
	path = validation.ExpandHome(path)
	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}
	return path
}

func expandPaths(cfg *Config) {
	cfg.Database.Path = expandPath(cfg.Database.Path)
	cfg.Database.SearchIndex = expandPath(cfg.Database.SearchIndex)
	cfg.Log.File = expandPath(cfg.Log.File)
}

// Validate checks the values the rest of the program relies on and
// normalizes the server base URL.
func (c *Config) Validate() error {
	if c.Feed.Debounce <= 0 {
		return fmt.Errorf("feed.debounce must be positive, got %s", c.Feed.Debounce)
	}
	if c.Feed.ScrollThreshold < 0 {
		return fmt.Errorf("feed.scroll_threshold must not be negative, got %d", c.Feed.ScrollThreshold)
	}
	if c.Feed.PerPage < 1 || c.Feed.PerPage > 100 {
		return fmt.Errorf("feed.per_page must be between 1 and 100, got %d", c.Feed.PerPage)
	}
	if c.Server.HTTPTimeout <= 0 {
		return fmt.Errorf("server.http_timeout must be positive, got %s", c.Server.HTTPTimeout)
	}
	if c.Listen.Gmail != "" && (c.Listen.PasswordHash == "" || c.Listen.JWTSecret == "") {
		return fmt.Errorf("listen.gmail requires listen.password_hash and listen.jwt_secret")
	}

	base, err := validation.NewBaseURLValidator().ValidateAndNormalize(c.Server.BaseURL)
	if err != nil {
		return fmt.Errorf("server.base_url: %w", err)
	}
	c.Server.BaseURL = base
	return nil
}

func Save(config *Config, path string) error {
	v := viper.New()
	for key, value := range settings(config) {
		v.Set(key, value)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// SaveToken sets server.token in the config file at path and keeps the rest
// of the file as written. A missing file is created holding only the token.
func SaveToken(path, token string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reading config: %w", err)
	}
	v.Set("server.token", token)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func GenerateDefaultConfig(path string) error {
	return Save(defaultConfig(), path)
}
