// Package config loads service settings from defaults, an optional YAML
// file, a .env file and INVERIF_* environment variables, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ironsheep/inverif/internal/intake"
	"github.com/ironsheep/inverif/internal/ocr"
	"github.com/ironsheep/inverif/internal/readability"
)

const EnvPrefix = "INVERIF"

type Config struct {
	Port        string `mapstructure:"port"`
	Environment string `mapstructure:"environment"`
	LogFile     string `mapstructure:"log_file"`
	Debug       bool   `mapstructure:"debug"`
	CORSOrigins string `mapstructure:"cors_origins"`

	MaxUploadMB         int           `mapstructure:"max_upload_mb"`
	OCRLanguages        string        `mapstructure:"ocr_languages"`
	TessdataPrefix      string        `mapstructure:"tessdata_prefix"`
	MinTextLength       int           `mapstructure:"min_text_length"`
	MinConfidence       float64       `mapstructure:"min_confidence"`
	BlankStdDev         float64       `mapstructure:"blank_stddev"`
	CheckTimeout        time.Duration `mapstructure:"check_timeout"`
	MaxConcurrentChecks int64         `mapstructure:"max_concurrent_checks"`

	ProgressStep     int           `mapstructure:"progress_step"`
	ProgressInterval time.Duration `mapstructure:"progress_interval"`
	SubmitDelay      time.Duration `mapstructure:"submit_delay"`
	SessionTTL       time.Duration `mapstructure:"session_ttl"`

	NATSURL string `mapstructure:"nats_url"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "3000")
	v.SetDefault("environment", "development")
	v.SetDefault("log_file", "inverif.log")
	v.SetDefault("debug", false)
	v.SetDefault("cors_origins", "")

	v.SetDefault("max_upload_mb", 10)
	v.SetDefault("ocr_languages", "fra+eng")
	v.SetDefault("tessdata_prefix", "")
	v.SetDefault("min_text_length", readability.DefaultMinTextLength)
	v.SetDefault("min_confidence", readability.DefaultMinConfidence)
	v.SetDefault("blank_stddev", readability.DefaultBlankStdDev)
	v.SetDefault("check_timeout", intake.DefaultCheckTimeout)
	v.SetDefault("max_concurrent_checks", intake.DefaultMaxConcurrentChecks)

	v.SetDefault("progress_step", intake.DefaultProgressStep)
	v.SetDefault("progress_interval", intake.DefaultProgressInterval)
	v.SetDefault("submit_delay", intake.DefaultSubmitDelay)
	v.SetDefault("session_ttl", intake.DefaultSessionTTL)

	v.SetDefault("nats_url", "")
}

// Load reads the configuration. configPath may be empty; a .env file in the
// working directory is loaded when present.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch {
	case c.Port == "":
		return errors.New("port must be set")
	case c.MaxUploadMB <= 0:
		return fmt.Errorf("max_upload_mb must be positive, got %d", c.MaxUploadMB)
	case c.MinConfidence < 0 || c.MinConfidence > 100:
		return fmt.Errorf("min_confidence must be between 0 and 100, got %v", c.MinConfidence)
	case c.ProgressStep <= 0 || c.ProgressStep > 100:
		return fmt.Errorf("progress_step must be between 1 and 100, got %d", c.ProgressStep)
	case c.MaxConcurrentChecks <= 0:
		return fmt.Errorf("max_concurrent_checks must be positive, got %d", c.MaxConcurrentChecks)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// AllowedOrigins returns the CORS origin list, or "*" when none is set.
func (c *Config) AllowedOrigins() string {
	if strings.TrimSpace(c.CORSOrigins) == "" {
		return "*"
	}
	return c.CORSOrigins
}

func (c *Config) Readability() readability.Config {
	return readability.Config{
		Languages:     ocr.ParseLanguages(c.OCRLanguages),
		MinTextLength: c.MinTextLength,
		MinConfidence: c.MinConfidence,
		BlankStdDev:   c.BlankStdDev,
	}
}

func (c *Config) Intake() intake.Options {
	return intake.Options{
		MaxUploadBytes:      c.MaxUploadBytes(),
		CheckTimeout:        c.CheckTimeout,
		MaxConcurrentChecks: c.MaxConcurrentChecks,
		ProgressStep:        c.ProgressStep,
		ProgressInterval:    c.ProgressInterval,
		SubmitDelay:         c.SubmitDelay,
		SessionTTL:          c.SessionTTL,
	}
}
