package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the root configuration for wabulk.
type Config struct {
	General    GeneralConfig    `json:"general"`
	Browser    BrowserConfig    `json:"browser"`
	Delivery   DeliveryConfig   `json:"delivery"`
	Attachment AttachmentConfig `json:"attachment"`
	Contacts   ContactsConfig   `json:"contacts"`
}

type GeneralConfig struct {
	Workspace  string `json:"workspace"`
	LogLevel   string `json:"logLevel"`
	LogFile    string `json:"logFile,omitempty"`    // optional log file path
	StagingDir string `json:"stagingDir,omitempty"` // uploads are copied here for the duration of a run
}

type BrowserConfig struct {
	ProfileDir string            `json:"profileDir"`
	Headless   bool              `json:"headless"`
	URL        string            `json:"url"`
	ExecPath   string            `json:"execPath,omitempty"`
	UserAgent  string            `json:"userAgent,omitempty"`
	Selectors  map[string]string `json:"selectors,omitempty"` // overrides keyed like "compose", "videoInput"
}

type DeliveryConfig struct {
	CountryCode          FlexString `json:"countryCode"`
	NationalNumberLength int        `json:"nationalNumberLength"`
	IntervalSeconds      int        `json:"intervalSeconds"`     // pause after every recipient
	ReleasePauseSeconds  int        `json:"releasePauseSeconds"` // extra pause after closing a sent conversation
	MaxPerMinute         int        `json:"maxPerMinute,omitempty"` // 0 = no cap beyond the pauses
	// Settle delays are at least 1s; the channel treats 0 as "use default".
	SessionSettleSeconds int        `json:"sessionSettleSeconds"`
	TextSettleSeconds    int        `json:"textSettleSeconds"`
	MediaSettleSeconds   int        `json:"mediaSettleSeconds"`
	ReadyTimeoutSeconds  int        `json:"readyTimeoutSeconds"`
	StepTimeoutSeconds   int        `json:"stepTimeoutSeconds"`
}

func (d DeliveryConfig) Interval() time.Duration      { return seconds(d.IntervalSeconds) }
func (d DeliveryConfig) ReleasePause() time.Duration  { return seconds(d.ReleasePauseSeconds) }
func (d DeliveryConfig) SessionSettle() time.Duration { return seconds(d.SessionSettleSeconds) }
func (d DeliveryConfig) TextSettle() time.Duration    { return seconds(d.TextSettleSeconds) }
func (d DeliveryConfig) MediaSettle() time.Duration   { return seconds(d.MediaSettleSeconds) }
func (d DeliveryConfig) ReadyTimeout() time.Duration  { return seconds(d.ReadyTimeoutSeconds) }
func (d DeliveryConfig) StepTimeout() time.Duration   { return seconds(d.StepTimeoutSeconds) }

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

type AttachmentConfig struct {
	MaxImageMB int `json:"maxImageMB"`
	MaxVideoMB int `json:"maxVideoMB"`
}

const mib = 1 << 20

func (a AttachmentConfig) MaxImageBytes() int64 { return int64(a.MaxImageMB) * mib }
func (a AttachmentConfig) MaxVideoBytes() int64 { return int64(a.MaxVideoMB) * mib }

type ContactsConfig struct {
	NameColumn  string `json:"nameColumn"`
	PhoneColumn string `json:"phoneColumn"`
	Sheet       string `json:"sheet,omitempty"`       // XLSX sheet; first sheet when empty
	SQLiteTable string `json:"sqliteTable,omitempty"` // table read from .db contact lists
}

// FlexString is a string that also unmarshals from a JSON number, so both
// "countryCode": 91 and "countryCode": "+91" work.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexString(s)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = FlexString(strconv.FormatInt(int64(n), 10))
	return nil
}

// DefaultConfigDir returns the default config directory (~/.wabulk).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".wabulk"
	}
	return filepath.Join(home, ".wabulk")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// LoadEnvFiles reads .env files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadEnvFiles(paths ...string) error {
	for _, p := range paths {
		p = ExpandPath(p)
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load env file %s: %w", p, err)
		}
	}
	return nil
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.expandPaths()

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads path, falling back to Defaults when the file does not
// exist. Any other error is returned.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = Defaults()
		cfg.expandPaths()
		return cfg, nil
	}
	return cfg, err
}

func (c *Config) expandPaths() {
	c.General.Workspace = ExpandPath(c.General.Workspace)
	c.General.LogFile = ExpandPath(c.General.LogFile)
	c.General.StagingDir = ExpandPath(c.General.StagingDir)
	c.Browser.ProfileDir = ExpandPath(c.Browser.ProfileDir)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// ${VAR:-default} uses "default" when VAR is unset or empty. Unresolved
// references are left as they are.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		hasDefault := len(groups) >= 3 && groups[2] != ""

		val, exists := os.LookupEnv(groups[1])
		if !exists || val == "" {
			if hasDefault {
				return groups[2]
			}
			return match
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

var digitsOnly = regexp.MustCompile(`^\+?[0-9]{1,4}$`)

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch strings.ToLower(cfg.General.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}

	if !digitsOnly.MatchString(string(cfg.Delivery.CountryCode)) {
		errs = append(errs, "delivery.countryCode must be 1-4 digits, optionally prefixed with +")
	}
	if n := cfg.Delivery.NationalNumberLength; n < 4 || n > 15 {
		errs = append(errs, "delivery.nationalNumberLength must be between 4 and 15")
	}
	if cfg.Delivery.IntervalSeconds < 0 || cfg.Delivery.ReleasePauseSeconds < 0 {
		errs = append(errs, "delivery pauses must be >= 0")
	}
	if cfg.Delivery.MaxPerMinute < 0 {
		errs = append(errs, "delivery.maxPerMinute must be >= 0")
	}
	if cfg.Delivery.SessionSettleSeconds < 1 || cfg.Delivery.TextSettleSeconds < 1 || cfg.Delivery.MediaSettleSeconds < 1 {
		errs = append(errs, "delivery settle delays must be >= 1 (WhatsApp Web needs time to render)")
	}
	if cfg.Delivery.ReadyTimeoutSeconds < 1 {
		errs = append(errs, "delivery.readyTimeoutSeconds must be >= 1")
	}
	if cfg.Delivery.StepTimeoutSeconds < 1 {
		errs = append(errs, "delivery.stepTimeoutSeconds must be >= 1")
	}

	if cfg.Attachment.MaxImageMB < 1 {
		errs = append(errs, "attachment.maxImageMB must be >= 1")
	}
	if cfg.Attachment.MaxVideoMB < 1 {
		errs = append(errs, "attachment.maxVideoMB must be >= 1")
	}

	if strings.TrimSpace(cfg.Contacts.NameColumn) == "" {
		errs = append(errs, "contacts.nameColumn is required")
	}
	if strings.TrimSpace(cfg.Contacts.PhoneColumn) == "" {
		errs = append(errs, "contacts.phoneColumn is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
