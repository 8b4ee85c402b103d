// Package config loads reactor settings from a YAML file and REACTOR_*
// environment variables, and validates them against an embedded CUE schema.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/spf13/viper"

	"github.com/roach88/reactor/internal/value"
)

//go:embed schema.cue
var schemaCUE string

// EnvPrefix prefixes environment overrides, e.g. REACTOR_DATABASE.
const EnvPrefix = "REACTOR"

// Config holds runtime settings.
type Config struct {
	Version      string        `mapstructure:"version"`
	StoreKey     string        `mapstructure:"store_key"`
	Database     string        `mapstructure:"database"`
	Channel      string        `mapstructure:"channel"`
	Debounce     time.Duration `mapstructure:"debounce"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	LogLevel     string        `mapstructure:"log_level"`
	BaseURL      string        `mapstructure:"base_url"`
}

// Level returns the slog level named by LogLevel.
func (c Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("version", value.DefaultStoreVersion)
	v.SetDefault("store_key", "reactor-persistent-data")
	v.SetDefault("database", filepath.Join(os.Getenv("HOME"), ".local", "share", "reactor", "reactor.db"))
	v.SetDefault("channel", "reactor")
	v.SetDefault("debounce", "500ms")
	v.SetDefault("poll_interval", "250ms")
	v.SetDefault("write_timeout", "5s")
	v.SetDefault("log_level", "info")
	v.SetDefault("base_url", "")
}

// Load reads configuration. An explicit path must exist; otherwise
// $REACTOR_CONFIG, ./reactor.yaml and ~/.config/reactor/config.yaml are
// tried, and a missing file means defaults only.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("reactor")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "reactor"))
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	if err := Validate(v.AllSettings()); err != nil {
		return Config{}, err
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

// Validate checks raw settings against the schema. Unknown keys are
// rejected.
func Validate(settings map[string]any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	def := schema.LookupPath(cue.ParsePath("#Config"))
	doc := def.Unify(ctx.Encode(settings))
	if err := doc.Validate(cue.Concrete(true)); err != nil {
		return &ValidationError{Details: cueerrors.Details(err, nil)}
	}
	return nil
}

// ValidationError reports settings rejected by the schema.
type ValidationError struct {
	Details string
}

func (e *ValidationError) Error() string {
	return "invalid config: " + strings.TrimSpace(e.Details)
}
