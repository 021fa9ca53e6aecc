package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoadDotEnv loads variables from the given .env files without overriding
// values already present in the process environment. Missing files are not
// an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", file, err)
		}
	}
	return nil
}

// EnvString returns the trimmed value of key and whether it was set.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

// EnvBool parses key as a boolean.
func EnvBool(key string) (bool, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return false, false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, true, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// EnvDuration parses key as a Go duration ("3s", "500ms").
func EnvDuration(key string) (time.Duration, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, true, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// ApplyEnv overlays environment variables onto cfg.
func ApplyEnv(cfg *Config) error {
	if v, ok := EnvString("DOWNLOAD_PATH"); ok {
		cfg.DownloadPath = v
	}
	if v, ok := EnvString("TOPSTOCKS_LOGIN_URL"); ok {
		cfg.LoginURL = v
	}
	if v, ok := EnvString("TOPSTOCKS_LANDING_URL"); ok {
		cfg.LandingURL = v
	}
	if v, ok := EnvString("TOPSTOCKS_CONFIRM"); ok {
		cfg.ConfirmMode = strings.ToLower(v)
	}
	if v, ok := EnvString("TOPSTOCKS_CONFIRM_ADDR"); ok {
		cfg.ConfirmAddr = v
	}
	if v, ok := EnvString("TOPSTOCKS_FORMAT"); ok {
		cfg.OutputFormat = strings.ToLower(v)
	}
	if v, ok := EnvString("TOPSTOCKS_METRICS_ADDR"); ok {
		cfg.MetricsAddr = v
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"TOPSTOCKS_HEADLESS", &cfg.Headless},
		{"TOPSTOCKS_INSTALL", &cfg.InstallDrivers},
		{"TOPSTOCKS_SNAPSHOT", &cfg.SaveSnapshot},
		{"TOPSTOCKS_TRACE", &cfg.TraceEnabled},
	}
	for _, b := range bools {
		value, ok, err := EnvBool(b.key)
		if err != nil {
			return err
		}
		if ok {
			*b.dst = value
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"TOPSTOCKS_OVERLAY_TIMEOUT", &cfg.OverlayTimeout},
		{"TOPSTOCKS_ACTION_TIMEOUT", &cfg.ActionTimeout},
	}
	for _, d := range durations {
		value, ok, err := EnvDuration(d.key)
		if err != nil {
			return err
		}
		if ok {
			*d.dst = value
		}
	}

	if path, ok := EnvString("TOPSTOCKS_SELECTORS"); ok {
		selectors, err := LoadSelectors(path, cfg.Selectors)
		if err != nil {
			return err
		}
		cfg.Selectors = selectors
	}
	return nil
}

// LoadSelectors reads a YAML selector file. Keys absent from the file keep
// the value from base.
func LoadSelectors(path string, base Selectors) (Selectors, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Selectors{}, fmt.Errorf("read selectors: %w", err)
	}
	out := base
	if err := yaml.Unmarshal(data, &out); err != nil {
		return Selectors{}, fmt.Errorf("parse selectors %s: %w", path, err)
	}
	return out, nil
}
