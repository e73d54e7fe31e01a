package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"wabulk/internal/browser"
	"wabulk/internal/channel"
	"wabulk/internal/config"
	"wabulk/internal/domain"

	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
	logLevel   string // overridable via --log-level flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:          "wabulk",
		Short:        "wabulk: personalized bulk messages through WhatsApp Web",
		Long:         "wabulk reads a contact list, fills a message template per contact and delivers it through a WhatsApp Web session, one recipient at a time.",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadEnvFiles(".env", filepath.Join(config.DefaultConfigDir(), ".env"))
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.wabulk/config.json)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override general.logLevel (debug, info, warn, error)")

	root.AddCommand(initCmd())
	root.AddCommand(loginCmd())
	root.AddCommand(sendCmd())
	root.AddCommand(checkCmd())
	root.AddCommand(campaignsCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(configCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

// loadConfig reads the config (defaults when the file is missing) and
// reconfigures the global logger from it. The returned func closes the log file.
func loadConfig() (*config.Config, func(), error) {
	cfg, err := config.LoadOrDefault(resolveConfigPath())
	if err != nil {
		return nil, func() {}, fmt.Errorf("load config: %w", err)
	}
	closeLog, err := setupLogger(cfg.General.LogLevel, cfg.General.LogFile)
	if err != nil {
		return nil, func() {}, err
	}
	return cfg, closeLog, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config and create the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			if _, err := os.Stat(cfgPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", cfgPath)
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			workspace := config.ExpandPath(cfg.General.Workspace)
			if err := os.MkdirAll(workspace, 0o755); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath, "workspace", workspace)
			fmt.Println("Next: run 'wabulk login' and scan the QR code with your phone.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	return cmd
}

// newWhatsAppWeb builds the browser-backed channel from config.
func newWhatsAppWeb(cfg *config.Config) *channel.WhatsAppWeb {
	sel, unknown := browser.WhatsAppSelectors().Override(cfg.Browser.Selectors)
	for _, k := range unknown {
		logger.Warn("ignoring unknown selector override", "key", k)
	}
	if cfg.Browser.URL != "" {
		sel.URL = cfg.Browser.URL
	}
	bridge := browser.NewBridge(browser.BridgeConfig{
		ProfileDir: cfg.Browser.ProfileDir,
		Headless:   cfg.Browser.Headless,
		ExecPath:   cfg.Browser.ExecPath,
		UserAgent:  cfg.Browser.UserAgent,
		Logger:     logger,
	})
	return channel.NewWhatsAppWeb(channel.WhatsAppWebConfig{
		Bridge:        bridge,
		Selectors:     sel,
		SessionSettle: cfg.Delivery.SessionSettle(),
		TextSettle:    cfg.Delivery.TextSettle(),
		MediaSettle:   cfg.Delivery.MediaSettle(),
		ReadyTimeout:  cfg.Delivery.ReadyTimeout(),
		StepTimeout:   cfg.Delivery.StepTimeout(),
		Logger:        logger,
	})
}

// buildChannel returns the delivery channel and a func that shuts it down.
func buildChannel(cfg *config.Config, dryRun bool) (domain.DeliveryChannel, func()) {
	if dryRun {
		return channel.NewDryRun(logger), func() {}
	}
	wa := newWhatsAppWeb(cfg)
	return wa, func() {
		if err := wa.Close(); err != nil {
			logger.Warn("browser shutdown failed", "err", err)
		}
	}
}

func loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Open WhatsApp Web in a visible browser to pair this device",
		Long:  "Opens a visible Chrome window with the wabulk profile. Scan the QR code, wait for your chats to load, then press Ctrl+C. The session is reused by later runs.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := loadConfig()
			defer closeLog()
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()
			return newWhatsAppWeb(cfg).Login(ctx)
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long:  "Show, get, and set configuration values. Changes are saved to the config file.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			for _, pv := range config.ListPaths(cfg) {
				fmt.Printf("%-40s %v\n", pv.Path, pv.Value)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. delivery.intervalSeconds)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			val, err := config.GetByPath(cfg, args[0])
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(val, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [path] [value]",
		Short: "Set a config value (e.g. delivery.countryCode 44)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.LoadOrDefault(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.SetByPath(cfg, args[0], args[1]); err != nil {
				return fmt.Errorf("set value: %w", err)
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			logger.Info("config updated", "path", args[0], "value", args[1], "file", cfgPath)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	return cmd
}
