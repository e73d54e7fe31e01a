package main

import (
	"fmt"
	"os"
	"path/filepath"

	"wabulk/internal/address"
	"wabulk/internal/attachment"
	"wabulk/internal/bus"
	"wabulk/internal/config"
	"wabulk/internal/contacts"
	"wabulk/internal/delivery"
	"wabulk/internal/domain"
	"wabulk/internal/metrics"

	"github.com/spf13/cobra"
)

type sendFlags struct {
	planFlags
	dryRun      bool
	headless    bool
	metricsFile string
	reportFile  string
}

func sendCmd() *cobra.Command {
	var f sendFlags
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Deliver the message to every contact in the list",
		Long: `Reads the contact list, renders the template for each contact and sends it
through WhatsApp Web, pausing between recipients. A failure for one contact is
recorded and the run moves on. Ctrl+C stops after the current recipient; the
rest are reported as skipped.`,
		Example: `  wabulk send --contacts contacts.xlsx --template "Hi {{Name}}, happy Diwali!"
  wabulk send --campaign diwali.yaml --attachment poster.png
  wabulk send --campaign diwali.yaml --dry-run
  wabulk send --campaign diwali.yaml --report results.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := loadConfig()
			defer closeLog()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("headless") {
				cfg.Browser.Headless = f.headless
			}
			return runSend(cfg, f)
		},
	}
	f.planFlags.register(cmd)
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "log what would be sent without opening a browser")
	cmd.Flags().BoolVar(&f.headless, "headless", false, "run Chrome without a window (overrides browser.headless)")
	cmd.Flags().StringVar(&f.metricsFile, "metrics-file", "", "write Prometheus metrics here when the run ends")
	cmd.Flags().StringVar(&f.reportFile, "report", "", "write per-contact results to this .csv or .xlsx file")
	return cmd
}

func runSend(cfg *config.Config, f sendFlags) error {
	plan, err := resolvePlan(cfg, f.planFlags)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	list, err := contacts.Load(ctx, plan.Contacts, plan.ContactOpts)
	if err != nil {
		return err
	}
	reportRejected(list)

	normalizer := address.New(string(cfg.Delivery.CountryCode), cfg.Delivery.NationalNumberLength)

	validator := attachment.NewValidator(attachment.ValidatorConfig{
		MaxImageBytes: cfg.Attachment.MaxImageBytes(),
		MaxVideoBytes: cfg.Attachment.MaxVideoBytes(),
		Logger:        logger,
	})
	stager, err := attachment.NewStager(attachment.StagerConfig{
		Dir:      cfg.General.StagingDir,
		MaxBytes: max(cfg.Attachment.MaxImageBytes(), cfg.Attachment.MaxVideoBytes()) + 1,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	ch, closeChannel := buildChannel(cfg, f.dryRun)
	defer closeChannel()

	events := bus.NewEventBus(logger)
	dm := metrics.NewDeliveryMetrics(nil)
	defer dm.Observe(events)()
	defer newProgressPrinter(os.Stdout).Attach(events)()

	pacing := delivery.NewPacing(cfg.Delivery.Interval(), cfg.Delivery.ReleasePause(), cfg.Delivery.MaxPerMinute)
	if f.dryRun {
		pacing = delivery.NoDelay()
	}

	orch, err := delivery.NewOrchestrator(delivery.Config{
		Channel:    ch,
		Normalizer: normalizer,
		Validator:  validator,
		Stager:     stager,
		Pacing:     pacing,
		Events:     events,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	req := delivery.Request{Recipients: list.Recipients, Template: plan.Template}
	if plan.Attachment != "" {
		file, err := os.Open(plan.Attachment)
		if err != nil {
			return &domain.AttachmentError{Kind: domain.AttachmentNotFound, Path: plan.Attachment, Err: err}
		}
		defer file.Close()
		req.Upload = &delivery.Upload{Name: filepath.Base(plan.Attachment), Body: file}
	}

	fmt.Printf("sending to %d contacts via %s (campaign %q)\n", len(list.Recipients), ch.Name(), plan.Name)
	summary, runErr := orch.Run(ctx, req)

	if f.reportFile != "" {
		if err := contacts.WriteReport(f.reportFile, plan.ContactOpts, summary.Outcomes); err != nil {
			logger.Warn("could not write report", "file", f.reportFile, "err", err)
		}
	}
	if f.metricsFile != "" {
		if err := writeMetrics(f.metricsFile, dm.Collector()); err != nil {
			logger.Warn("could not write metrics", "file", f.metricsFile, "err", err)
		}
	}

	printSummary(os.Stdout, summary)
	if runErr != nil {
		return runErr
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d deliveries failed", summary.Failed, len(summary.Outcomes))
	}
	return nil
}

func reportRejected(list *contacts.List) {
	for _, r := range list.Rejected {
		logger.Warn("contact row skipped", "source", list.Source, "row", r.Row, "reason", r.Reason)
	}
	logger.Info("contacts loaded", "source", list.Source, "usable", len(list.Recipients), "rejected", len(list.Rejected))
}

func writeMetrics(path string, c *metrics.MetricsCollector) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := c.WriteText(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
