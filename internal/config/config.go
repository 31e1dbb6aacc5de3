package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/tamima/evoucher/internal/voucher"
	"github.com/tamima/evoucher/pkg/utils"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Voucher  VoucherConfig  `mapstructure:"voucher"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // gin mode: debug, release, test
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"` // empty uses the embedded schema
}

// VoucherConfig holds voucher generation configuration
type VoucherConfig struct {
	DefaultLogoPath string      `mapstructure:"default_logo_path"`
	SheetName       string      `mapstructure:"sheet_name"`
	Workers         int         `mapstructure:"workers"`
	MaxRecords      int         `mapstructure:"max_records"`
	ArchiveName     string      `mapstructure:"archive_name"`
	MaxUploadMB     int64       `mapstructure:"max_upload_mb"`
	OutputDir       string      `mapstructure:"output_dir"` // CLI default output directory
	PreviewDPI      float64     `mapstructure:"preview_dpi"`
	Theme           ThemeConfig `mapstructure:"theme"`
}

// ThemeConfig overrides page text and colours. Empty values keep the
// default branding.
type ThemeConfig struct {
	Title         string   `mapstructure:"title"`
	Subtitle      string   `mapstructure:"subtitle"`
	Labels        []string `mapstructure:"labels"`
	CodeCaption   string   `mapstructure:"code_caption"`
	FooterHeading string   `mapstructure:"footer_heading"`
	FooterTerms   []string `mapstructure:"footer_terms"`
	AccentColor   string   `mapstructure:"accent_color"`
	BodyColor     string   `mapstructure:"body_color"`
	MutedColor    string   `mapstructure:"muted_color"`
	RuleColor     string   `mapstructure:"rule_color"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables.
// Variables in a .env file in the working directory are loaded first and
// never override the real environment. An empty configPath uses defaults
// and the environment only.
func Load(configPath string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Override with environment variables
	if err := bindEnvVars(v); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 5*time.Minute)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	// Database defaults
	v.SetDefault("database.path", "data/evoucher.db")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.migrations_dir", "")

	// Voucher defaults
	v.SetDefault("voucher.default_logo_path", "assets/logo_tamima.png")
	v.SetDefault("voucher.sheet_name", "")
	v.SetDefault("voucher.workers", voucher.DefaultWorkers)
	v.SetDefault("voucher.max_records", 5000)
	v.SetDefault("voucher.archive_name", voucher.DefaultArchiveName)
	v.SetDefault("voucher.max_upload_mb", 20)
	v.SetDefault("voucher.output_dir", "generated_vouchers")
	v.SetDefault("voucher.preview_dpi", 96)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds the documented environment variables to configuration
func bindEnvVars(v *viper.Viper) error {
	bindings := map[string]string{
		"voucher.default_logo_path": "VOUCHER_DEFAULT_LOGO",
		"database.path":             "DATABASE_PATH",
		"server.port":               "SERVER_PORT",
		"logger.level":              "LOG_LEVEL",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return err
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := utils.ValidatePort(c.Server.Port); err != nil {
		return fmt.Errorf("server.port: %w", err)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Voucher.Workers < 1 || c.Voucher.Workers > 64 {
		return fmt.Errorf("voucher.workers must be between 1 and 64: %d", c.Voucher.Workers)
	}
	if c.Voucher.MaxRecords < 0 {
		return fmt.Errorf("voucher.max_records cannot be negative: %d", c.Voucher.MaxRecords)
	}
	if c.Voucher.MaxUploadMB <= 0 {
		return fmt.Errorf("voucher.max_upload_mb must be positive: %d", c.Voucher.MaxUploadMB)
	}
	if err := utils.ValidateArchiveName(c.Voucher.ArchiveName); err != nil {
		return fmt.Errorf("voucher.archive_name: %w", err)
	}
	if _, err := c.Voucher.Theme.Build(); err != nil {
		return fmt.Errorf("voucher.theme: %w", err)
	}

	switch c.Logger.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logger.format must be json or console: %q", c.Logger.Format)
	}

	return nil
}

// Build applies the overrides to the default theme
func (t ThemeConfig) Build() (voucher.Theme, error) {
	theme := voucher.DefaultTheme()

	setText := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	setText(&theme.Title, t.Title)
	setText(&theme.Subtitle, t.Subtitle)
	setText(&theme.CodeCaption, t.CodeCaption)
	setText(&theme.FooterHeading, t.FooterHeading)

	if len(t.Labels) > 0 {
		if len(t.Labels) != len(theme.Labels) {
			return theme, fmt.Errorf("labels: want %d entries, got %d", len(theme.Labels), len(t.Labels))
		}
		copy(theme.Labels[:], t.Labels)
	}
	if len(t.FooterTerms) > 0 {
		if len(t.FooterTerms) != len(theme.FooterTerms) {
			return theme, fmt.Errorf("footer_terms: want %d entries, got %d", len(theme.FooterTerms), len(t.FooterTerms))
		}
		copy(theme.FooterTerms[:], t.FooterTerms)
	}

	colors := []struct {
		name string
		src  string
		dst  *voucher.RGB
	}{
		{"accent_color", t.AccentColor, &theme.Accent},
		{"body_color", t.BodyColor, &theme.Body},
		{"muted_color", t.MutedColor, &theme.Muted},
		{"rule_color", t.RuleColor, &theme.Rule},
	}
	for _, c := range colors {
		if c.src == "" {
			continue
		}
		rgb, err := voucher.ParseHexColor(c.src)
		if err != nil {
			return theme, fmt.Errorf("%s: %w", c.name, err)
		}
		*c.dst = rgb
	}

	if err := theme.Validate(); err != nil {
		return theme, err
	}
	return theme, nil
}

// Logger converts the logger section for utils.NewLogger
func (c LoggerConfig) Logger() utils.LoggerConfig {
	return utils.LoggerConfig{
		Level:      c.Level,
		OutputPath: c.OutputPath,
		Format:     c.Format,
		Service:    utils.DefaultService,
	}
}
