// Package config supplies the API key and engine tunables from the
// environment, with .env support.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the scalar tunables the engine consumes.
type Config struct {
	APIKey          string
	Model           string
	DefaultLanguage string

	MaxDuration time.Duration
	SampleRate  int
	Channels    int

	MaxAttempts  int
	BaseDelay    time.Duration
	ClientMaxAge time.Duration
	APITimeout   time.Duration

	CopyToClipboard bool
	Notifications   bool
	Debug           bool
}

// Default returns a Config with default values. 16 kHz mono is the sweet
// spot for speech recognition.
func Default() Config {
	return Config{
		Model:           "whisper-1",
		DefaultLanguage: "en",
		MaxDuration:     5 * time.Minute,
		SampleRate:      16000,
		Channels:        1,
		MaxAttempts:     4,
		BaseDelay:       time.Second,
		ClientMaxAge:    time.Hour,
		APITimeout:      60 * time.Second,
		CopyToClipboard: true,
		Notifications:   false,
		Debug:           false,
	}
}

// Load reads configuration from the environment. When envPath is set that
// file must exist and is loaded first; otherwise a .env in the working
// directory is picked up if present.
func Load(envPath string) (Config, error) {
	if envPath != "" {
		if err := godotenv.Overload(envPath); err != nil {
			return Config{}, fmt.Errorf("load env file %s: %w", envPath, err)
		}
	} else {
		_ = godotenv.Load()
	}

	cfg := Default()
	cfg.APIKey = os.Getenv("OPENAI_API_KEY")

	var err error
	if cfg.Model, err = envString("VTT_MODEL", cfg.Model); err != nil {
		return Config{}, err
	}
	if cfg.DefaultLanguage, err = envString("VTT_LANGUAGE", cfg.DefaultLanguage); err != nil {
		return Config{}, err
	}
	if cfg.MaxDuration, err = envSeconds("VTT_MAX_DURATION", cfg.MaxDuration); err != nil {
		return Config{}, err
	}
	if cfg.SampleRate, err = envInt("VTT_SAMPLE_RATE", cfg.SampleRate); err != nil {
		return Config{}, err
	}
	if cfg.Channels, err = envInt("VTT_CHANNELS", cfg.Channels); err != nil {
		return Config{}, err
	}
	if cfg.MaxAttempts, err = envInt("VTT_MAX_ATTEMPTS", cfg.MaxAttempts); err != nil {
		return Config{}, err
	}
	if cfg.BaseDelay, err = envSeconds("VTT_RETRY_BASE_DELAY", cfg.BaseDelay); err != nil {
		return Config{}, err
	}
	if cfg.ClientMaxAge, err = envSeconds("VTT_CLIENT_MAX_AGE", cfg.ClientMaxAge); err != nil {
		return Config{}, err
	}
	if cfg.APITimeout, err = envSeconds("VTT_API_TIMEOUT", cfg.APITimeout); err != nil {
		return Config{}, err
	}
	if cfg.CopyToClipboard, err = envBool("VTT_CLIPBOARD", cfg.CopyToClipboard); err != nil {
		return Config{}, err
	}
	if cfg.Notifications, err = envBool("VTT_NOTIFICATIONS", cfg.Notifications); err != nil {
		return Config{}, err
	}
	if cfg.Debug, err = envBool("VTT_DEBUG", cfg.Debug); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate verifies config fields and returns an error for the first
// invalid value. The API key check is skipped when requireKey is false so
// the key can still be configured interactively.
func (c Config) Validate(requireKey bool) error {
	if requireKey && !ValidKeyFormat(c.APIKey) {
		return fmt.Errorf("invalid API key format: key should start with sk-")
	}
	if c.MaxDuration <= 0 {
		return fmt.Errorf("invalid max duration: %v (must be positive)", c.MaxDuration)
	}
	switch c.SampleRate {
	case 8000, 16000, 44100, 48000:
	default:
		return fmt.Errorf("invalid sample rate: %d (allowed: 8000, 16000, 44100, 48000)", c.SampleRate)
	}
	if c.Channels != 1 && c.Channels != 2 {
		return fmt.Errorf("invalid channels: %d (allowed: 1, 2)", c.Channels)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("invalid max attempts: %d (must be at least 1)", c.MaxAttempts)
	}
	if c.BaseDelay < 0 {
		return fmt.Errorf("invalid retry base delay: %v (must not be negative)", c.BaseDelay)
	}
	if c.ClientMaxAge <= 0 {
		return fmt.Errorf("invalid client max age: %v (must be positive)", c.ClientMaxAge)
	}
	if c.APITimeout <= 0 {
		return fmt.Errorf("invalid API timeout: %v (must be positive)", c.APITimeout)
	}
	return nil
}

// ValidKeyFormat is a cheap shape check, not a liveness probe.
func ValidKeyFormat(key string) bool {
	return strings.HasPrefix(key, "sk-")
}

func envString(name, fallback string) (string, error) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return fallback, nil
	}
	return v, nil
}

func envInt(name string, fallback int) (int, error) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return n, nil
}

func envSeconds(name string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return time.Duration(f * float64(time.Second)), nil
}

func envBool(name string, fallback bool) (bool, error) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", name, err)
	}
	return b, nil
}
