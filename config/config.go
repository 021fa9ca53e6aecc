package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"time"
)

const (
	stateFileName    = "state.json"
	csvFileName      = "top_stocks.csv"
	jsonFileName     = "top_stocks.jsonl"
	snapshotFileName = "top_stocks.html"
)

// Selectors is the target application's DOM contract.
type Selectors struct {
	OverlayDismiss string `yaml:"overlay_dismiss"`
	FeatureMenu    string `yaml:"feature_menu"`
	SubTab         string `yaml:"sub_tab"`
	Table          string `yaml:"table"`
	TableRows      string `yaml:"table_rows"`
	TableCells     string `yaml:"table_cells"`
}

// Config holds scraper configuration.
type Config struct {
	DownloadPath   string
	LoginURL       string
	LandingURL     string
	Selectors      Selectors
	OverlayTimeout time.Duration
	ActionTimeout  time.Duration
	Headless       bool
	InstallDrivers bool
	ConfirmMode    string // console, signal, or http
	ConfirmAddr    string
	OutputFormat   string // csv, json, or dual
	SaveSnapshot   bool
	MetricsAddr    string
	TraceEnabled   bool
	Verbose        bool
}

// DefaultSelectors returns the selectors of the Bandar Detector / Top Stock view.
func DefaultSelectors() Selectors {
	return Selectors{
		OverlayDismiss: "#modalnewavatar-button-skip",
		FeatureMenu:    `button[data-cy="right-menu-bandar_detector"]`,
		SubTab:         "#rc-tabs-0-tab-TOP_STOCKS",
		Table:          "div.top-stock-table table",
		TableRows:      "div.top-stock-table table tbody tr",
		TableCells:     "td",
	}
}

// DefaultConfig returns defaults for the Stockbit target. DownloadPath has no
// default and must come from the environment or flags.
func DefaultConfig() *Config {
	return &Config{
		LoginURL:       "https://stockbit.com/#/login",
		LandingURL:     "https://stockbit.com/",
		Selectors:      DefaultSelectors(),
		OverlayTimeout: 3 * time.Second,
		ActionTimeout:  30 * time.Second,
		Headless:       false,
		ConfirmMode:    "console",
		ConfirmAddr:    "127.0.0.1:8089",
		OutputFormat:   "csv",
	}
}

// StatePath is where the authenticated browser state is persisted.
func (c *Config) StatePath() string {
	return filepath.Join(c.DownloadPath, stateFileName)
}

// OutputPath is the CSV artifact location.
func (c *Config) OutputPath() string {
	return filepath.Join(c.DownloadPath, csvFileName)
}

// JSONPath is the JSONL artifact location used by the json and dual formats.
func (c *Config) JSONPath() string {
	return filepath.Join(c.DownloadPath, jsonFileName)
}

// SnapshotPath is where the rendered page HTML is stored.
func (c *Config) SnapshotPath() string {
	return filepath.Join(c.DownloadPath, snapshotFileName)
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.DownloadPath == "" {
		return fmt.Errorf("download path cannot be empty (set DOWNLOAD_PATH)")
	}
	if err := validateURL("login URL", c.LoginURL); err != nil {
		return err
	}
	if err := validateURL("landing URL", c.LandingURL); err != nil {
		return err
	}
	if err := c.Selectors.Validate(); err != nil {
		return err
	}
	if c.OverlayTimeout <= 0 {
		return fmt.Errorf("overlay timeout must be positive")
	}
	if c.ActionTimeout < 0 {
		return fmt.Errorf("action timeout cannot be negative")
	}
	switch c.ConfirmMode {
	case "console", "signal":
	case "http":
		if c.ConfirmAddr == "" {
			return fmt.Errorf("confirm address cannot be empty in http mode")
		}
	default:
		return fmt.Errorf("confirm mode must be console, signal, or http")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	return nil
}

// Validate reports the first empty selector.
func (s Selectors) Validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{"overlay_dismiss", s.OverlayDismiss},
		{"feature_menu", s.FeatureMenu},
		{"sub_tab", s.SubTab},
		{"table", s.Table},
		{"table_rows", s.TableRows},
		{"table_cells", s.TableCells},
	}
	for _, f := range fields {
		if f.value == "" {
			return fmt.Errorf("selector %s cannot be empty", f.name)
		}
	}
	return nil
}

func validateURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host", name)
	}
	return nil
}
