package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"wabulk/internal/attachment"
	"wabulk/internal/config"

	"github.com/spf13/cobra"
)

// chromeNames are the binaries chromedp looks for on PATH.
var chromeNames = []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "chrome"}

type doctorReport struct {
	passed, warned, failed int
}

func (r *doctorReport) pass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
	r.passed++
}

func (r *doctorReport) warn(check, detail string) {
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
	r.warned++
}

func (r *doctorReport) fail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
	r.failed++
}

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your wabulk installation",
		Long: `Verifies that the configuration, Chrome, the browser profile and the staging
directory are usable. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("wabulk doctor v%s\n\n", version)
			var r doctorReport

			var cfg *config.Config
			if _, err := os.Stat(cfgPath); err != nil {
				r.warn("Config file", fmt.Sprintf("not found at %s, using defaults (run 'wabulk init')", cfgPath))
				cfg, _ = config.LoadOrDefault(cfgPath)
			} else if loaded, err := config.Load(cfgPath); err != nil {
				r.fail("Config validation", err.Error())
				fmt.Printf("\n%d passed, %d failed\n", r.passed, r.failed)
				return fmt.Errorf("config is invalid")
			} else {
				r.pass("Config file", cfgPath)
				cfg = loaded
			}

			if path, err := findChrome(cfg.Browser.ExecPath); err != nil {
				r.fail("Chrome", err.Error())
			} else {
				r.pass("Chrome", path)
			}

			if info, err := os.Stat(cfg.Browser.ProfileDir); err != nil || !info.IsDir() {
				r.warn("Browser profile", fmt.Sprintf("%s missing, run 'wabulk login' to pair", cfg.Browser.ProfileDir))
			} else {
				r.pass("Browser profile", cfg.Browser.ProfileDir)
			}

			if dir, err := checkStaging(cfg.General.StagingDir); err != nil {
				r.fail("Staging dir", err.Error())
			} else {
				r.pass("Staging dir", dir)
			}

			if cfg.General.LogFile != "" {
				if err := os.MkdirAll(filepath.Dir(cfg.General.LogFile), 0o755); err != nil {
					r.warn("Log file", fmt.Sprintf("cannot create log directory: %v", err))
				} else {
					r.pass("Log file", cfg.General.LogFile)
				}
			}

			fmt.Printf("\nResults: %d passed, %d warnings, %d failed\n", r.passed, r.warned, r.failed)
			if r.failed > 0 {
				return fmt.Errorf("%d check(s) failed", r.failed)
			}
			return nil
		},
	}
}

func findChrome(configured string) (string, error) {
	if configured != "" {
		if _, err := os.Stat(configured); err != nil {
			return "", fmt.Errorf("browser.execPath %s: %w", configured, err)
		}
		return configured, nil
	}
	for _, name := range chromeNames {
		if p, err := exec.LookPath(name); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no Chrome or Chromium on PATH (set browser.execPath)")
}

// checkStaging stages and releases a probe file.
func checkStaging(dir string) (string, error) {
	s, err := attachment.NewStager(attachment.StagerConfig{Dir: dir, Logger: logger})
	if err != nil {
		return "", err
	}
	f, err := os.CreateTemp("", "wabulk-doctor-*.png")
	if err != nil {
		return "", err
	}
	f.Close()
	defer os.Remove(f.Name())

	path, err := s.StageFile(f.Name())
	if err != nil {
		return "", err
	}
	if err := s.Release(path); err != nil {
		return "", err
	}
	return s.Dir(), nil
}
