package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// --- Validate ---

func TestValidate_ValidConfig(t *testing.T) {
	cfg := Defaults()
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected valid config, got: %v", err)
	}
}

func TestValidate_LogLevel(t *testing.T) {
	for _, lvl := range []string{"debug", "info", "warn", "error", "INFO"} {
		cfg := Defaults()
		cfg.General.LogLevel = lvl
		if err := Validate(cfg); err != nil {
			t.Fatalf("logLevel %q should be valid: %v", lvl, err)
		}
	}
	cfg := Defaults()
	cfg.General.LogLevel = "verbose"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for logLevel=verbose")
	}
}

func TestValidate_CountryCode(t *testing.T) {
	for _, cc := range []FlexString{"91", "+44", "1", "1246"} {
		cfg := Defaults()
		cfg.Delivery.CountryCode = cc
		if err := Validate(cfg); err != nil {
			t.Fatalf("countryCode %q should be valid: %v", cc, err)
		}
	}
	for _, cc := range []FlexString{"", "+", "91a", "12345"} {
		cfg := Defaults()
		cfg.Delivery.CountryCode = cc
		if err := Validate(cfg); err == nil {
			t.Fatalf("countryCode %q should be rejected", cc)
		}
	}
}

func TestValidate_NationalNumberLength(t *testing.T) {
	cfg := Defaults()
	cfg.Delivery.NationalNumberLength = 3
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for nationalNumberLength=3")
	}
	cfg.Delivery.NationalNumberLength = 16
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for nationalNumberLength=16")
	}
}

func TestValidate_NegativePauses(t *testing.T) {
	cfg := Defaults()
	cfg.Delivery.IntervalSeconds = -1
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for negative interval")
	}

	cfg = Defaults()
	cfg.Delivery.MaxPerMinute = -5
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for negative maxPerMinute")
	}

	cfg = Defaults()
	cfg.Delivery.IntervalSeconds = 0
	cfg.Delivery.ReleasePauseSeconds = 0
	if err := Validate(cfg); err != nil {
		t.Fatalf("zero pauses should be valid: %v", err)
	}
}

func TestValidate_SettleDelays(t *testing.T) {
	tests := []struct {
		name string
		set  func(d *DeliveryConfig)
	}{
		{"session zero", func(d *DeliveryConfig) { d.SessionSettleSeconds = 0 }},
		{"text zero", func(d *DeliveryConfig) { d.TextSettleSeconds = 0 }},
		{"media zero", func(d *DeliveryConfig) { d.MediaSettleSeconds = 0 }},
		{"text negative", func(d *DeliveryConfig) { d.TextSettleSeconds = -3 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.set(&cfg.Delivery)
			err := Validate(cfg)
			if err == nil || !strings.Contains(err.Error(), "settle delays") {
				t.Fatalf("err = %v, want settle delay error", err)
			}
		})
	}

	cfg := Defaults()
	cfg.Delivery.SessionSettleSeconds = 1
	cfg.Delivery.TextSettleSeconds = 1
	cfg.Delivery.MediaSettleSeconds = 1
	if err := Validate(cfg); err != nil {
		t.Fatalf("1s settle delays should be valid: %v", err)
	}
}

func TestValidate_AttachmentLimits(t *testing.T) {
	cfg := Defaults()
	cfg.Attachment.MaxImageMB = 0
	cfg.Attachment.MaxVideoMB = 0
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for zero attachment limits")
	}
	if !strings.Contains(err.Error(), "maxImageMB") || !strings.Contains(err.Error(), "maxVideoMB") {
		t.Fatalf("all problems should be reported together: %v", err)
	}
}

func TestValidate_ContactColumns(t *testing.T) {
	cfg := Defaults()
	cfg.Contacts.PhoneColumn = "  "
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for blank phone column")
	}
}

// --- Derived values ---

func TestDeliveryConfig_Durations(t *testing.T) {
	d := Defaults().Delivery
	if d.Interval() != 10*time.Second {
		t.Errorf("Interval = %v", d.Interval())
	}
	if d.ReleasePause() != 5*time.Second {
		t.Errorf("ReleasePause = %v", d.ReleasePause())
	}
	if d.SessionSettle() != 15*time.Second || d.TextSettle() != 10*time.Second || d.MediaSettle() != 15*time.Second {
		t.Errorf("settle delays = %v %v %v", d.SessionSettle(), d.TextSettle(), d.MediaSettle())
	}
}

func TestAttachmentConfig_Bytes(t *testing.T) {
	a := Defaults().Attachment
	if a.MaxImageBytes() != 16*1024*1024 {
		t.Errorf("MaxImageBytes = %d", a.MaxImageBytes())
	}
	if a.MaxVideoBytes() != 100*1024*1024 {
		t.Errorf("MaxVideoBytes = %d", a.MaxVideoBytes())
	}
}

// --- Load / Save ---

func TestLoadSave_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	original := Defaults()
	original.Delivery.CountryCode = "44"
	original.Browser.Selectors = map[string]string{"compose": "#box"}

	if err := Save(path, original); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if loaded.Delivery.CountryCode != "44" {
		t.Fatalf("expected countryCode 44, got %q", loaded.Delivery.CountryCode)
	}
	if loaded.Browser.Selectors["compose"] != "#box" {
		t.Fatalf("selectors lost: %v", loaded.Browser.Selectors)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `{"delivery": {"intervalSeconds": 3}}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Delivery.IntervalSeconds != 3 {
		t.Errorf("intervalSeconds = %d, want 3", cfg.Delivery.IntervalSeconds)
	}
	if cfg.Delivery.ReleasePauseSeconds != 5 || cfg.Attachment.MaxImageMB != 16 {
		t.Errorf("defaults not kept: %+v %+v", cfg.Delivery, cfg.Attachment)
	}
}

func TestLoad_NumericCountryCode(t *testing.T) {
	path := writeConfig(t, `{"delivery": {"countryCode": 1}}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Delivery.CountryCode != "1" {
		t.Fatalf("countryCode = %q, want 1", cfg.Delivery.CountryCode)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.json")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "none.json"))
	if err != nil {
		t.Fatalf("LoadOrDefault: %v", err)
	}
	if strings.HasPrefix(cfg.Browser.ProfileDir, "~/") {
		t.Errorf("profile dir not expanded: %q", cfg.Browser.ProfileDir)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := writeConfig(t, "{invalid json}")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestLoad_ValidatesConfig(t *testing.T) {
	path := writeConfig(t, `{"attachment": {"maxImageMB": 0}}`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "config validation") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoad_WithEnvVarSubstitution(t *testing.T) {
	t.Setenv("TEST_WABULK_PROFILE", "/tmp/test-profile")
	path := writeConfig(t, `{
		"browser": {"profileDir": "${TEST_WABULK_PROFILE}"},
		"delivery": {"countryCode": "${TEST_WABULK_CC:-44}"}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Browser.ProfileDir != "/tmp/test-profile" {
		t.Fatalf("expected profile '/tmp/test-profile', got %q", cfg.Browser.ProfileDir)
	}
	if cfg.Delivery.CountryCode != "44" {
		t.Fatalf("expected default countryCode 44, got %q", cfg.Delivery.CountryCode)
	}
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("WABULK_TEST_FROM_FILE=yes\nWABULK_TEST_PRESET=file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WABULK_TEST_PRESET", "shell")
	t.Setenv("WABULK_TEST_FROM_FILE", "")
	os.Unsetenv("WABULK_TEST_FROM_FILE")

	if err := LoadEnvFiles(filepath.Join(dir, "missing.env"), envFile); err != nil {
		t.Fatalf("LoadEnvFiles: %v", err)
	}
	if got := os.Getenv("WABULK_TEST_FROM_FILE"); got != "yes" {
		t.Errorf("WABULK_TEST_FROM_FILE = %q, want yes", got)
	}
	if got := os.Getenv("WABULK_TEST_PRESET"); got != "shell" {
		t.Errorf("existing variable overridden: %q", got)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// --- Accessor ---

func TestGetByPath_ValidPaths(t *testing.T) {
	cfg := Defaults()
	val, err := GetByPath(cfg, "delivery.intervalSeconds")
	if err != nil {
		t.Fatalf("GetByPath: %v", err)
	}
	if val != float64(10) {
		t.Fatalf("expected 10, got %v", val)
	}
	val, err = GetByPath(cfg, "contacts.phoneColumn")
	if err != nil || val != "Phone Number" {
		t.Fatalf("phoneColumn = %v, %v", val, err)
	}
}

func TestGetByPath_InvalidPath(t *testing.T) {
	cfg := Defaults()
	if _, err := GetByPath(cfg, "nonexistent.path"); err == nil {
		t.Fatal("expected error for invalid path")
	}
	if _, err := GetByPath(cfg, "general.logLevel.deeper"); err == nil {
		t.Fatal("expected error traversing into a string")
	}
}

func TestSetByPath_Conversions(t *testing.T) {
	cfg := Defaults()
	if err := SetByPath(cfg, "browser.headless", "true"); err != nil {
		t.Fatalf("SetByPath bool: %v", err)
	}
	if !cfg.Browser.Headless {
		t.Fatal("expected headless=true")
	}
	if err := SetByPath(cfg, "delivery.intervalSeconds", "30"); err != nil {
		t.Fatalf("SetByPath int: %v", err)
	}
	if cfg.Delivery.IntervalSeconds != 30 {
		t.Fatalf("expected 30, got %d", cfg.Delivery.IntervalSeconds)
	}
	if err := SetByPath(cfg, "delivery.countryCode", "44"); err != nil {
		t.Fatalf("SetByPath countryCode: %v", err)
	}
	if cfg.Delivery.CountryCode != "44" {
		t.Fatalf("countryCode = %q", cfg.Delivery.CountryCode)
	}
}

func TestSetByPath_NewMapKey(t *testing.T) {
	cfg := Defaults()
	if err := SetByPath(cfg, "browser.selectors.compose", "#box"); err != nil {
		t.Fatalf("SetByPath: %v", err)
	}
	if cfg.Browser.Selectors["compose"] != "#box" {
		t.Fatalf("selectors = %v", cfg.Browser.Selectors)
	}
}

func TestSetByPath_RejectsInvalid(t *testing.T) {
	cfg := Defaults()
	if err := SetByPath(cfg, "attachment.maxVideoMB", "0"); err == nil {
		t.Fatal("expected validation error")
	}
	if cfg.Attachment.MaxVideoMB != 100 {
		t.Fatalf("config modified despite error: %d", cfg.Attachment.MaxVideoMB)
	}
	if err := SetByPath(cfg, "", "x"); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestListPaths_SortedLeaves(t *testing.T) {
	paths := ListPaths(Defaults())
	if len(paths) == 0 {
		t.Fatal("expected paths")
	}
	seen := map[string]bool{}
	for i, p := range paths {
		seen[p.Path] = true
		if i > 0 && paths[i-1].Path > p.Path {
			t.Fatalf("paths not sorted at %d: %s > %s", i, paths[i-1].Path, p.Path)
		}
	}
	for _, want := range []string{"general.logLevel", "delivery.countryCode", "attachment.maxImageMB"} {
		if !seen[want] {
			t.Errorf("missing path %s", want)
		}
	}
}

// --- ExpandEnvVars ---

func TestExpandEnvVars_SimpleSubstitution(t *testing.T) {
	t.Setenv("TEST_PROFILE_DIR", "/data/profile")
	result := ExpandEnvVars(`{"profileDir": "${TEST_PROFILE_DIR}"}`)
	expected := `{"profileDir": "/data/profile"}`
	if result != expected {
		t.Fatalf("expected %q, got %q", expected, result)
	}
}

func TestExpandEnvVars_DefaultValue(t *testing.T) {
	os.Unsetenv("NONEXISTENT_VAR_12345")
	result := ExpandEnvVars(`{"intervalSeconds": "${NONEXISTENT_VAR_12345:-10}"}`)
	expected := `{"intervalSeconds": "10"}`
	if result != expected {
		t.Fatalf("expected %q, got %q", expected, result)
	}
}

func TestExpandEnvVars_SetVarOverridesDefault(t *testing.T) {
	t.Setenv("MY_CC", "44")
	result := ExpandEnvVars(`"${MY_CC:-91}"`)
	if result != `"44"` {
		t.Fatalf("got %q", result)
	}
}

func TestExpandEnvVars_UnsetVarNoDefault_KeepsOriginal(t *testing.T) {
	os.Unsetenv("TOTALLY_UNSET_VAR_XYZ")
	result := ExpandEnvVars(`"${TOTALLY_UNSET_VAR_XYZ}"`)
	expected := `"${TOTALLY_UNSET_VAR_XYZ}"`
	if result != expected {
		t.Fatalf("expected %q, got %q", expected, result)
	}
}

func TestExpandEnvVars_EmptyVarUsesDefault(t *testing.T) {
	t.Setenv("EMPTY_VAR", "")
	result := ExpandEnvVars(`"${EMPTY_VAR:-fallback}"`)
	if result != `"fallback"` {
		t.Fatalf("got %q", result)
	}
}

func TestExpandEnvVars_DollarSignWithoutBraces(t *testing.T) {
	input := `"$HOME is not substituted"`
	if result := ExpandEnvVars(input); result != input {
		t.Fatalf("expected no change for bare $VAR, got %q", result)
	}
}

// --- Defaults ---

func TestDefaults_ReturnsValidConfig(t *testing.T) {
	cfg := Defaults()
	if err := Validate(cfg); err != nil {
		t.Fatalf("defaults should be valid: %v", err)
	}
	if cfg.Delivery.CountryCode != "91" || cfg.Delivery.NationalNumberLength != 10 {
		t.Fatalf("unexpected number defaults: %+v", cfg.Delivery)
	}
	if cfg.Contacts.NameColumn != "Name" || cfg.Contacts.PhoneColumn != "Phone Number" {
		t.Fatalf("unexpected column defaults: %+v", cfg.Contacts)
	}
}
