package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"wabulk/internal/address"
	"wabulk/internal/attachment"
	"wabulk/internal/config"
	"wabulk/internal/contacts"
	"wabulk/internal/domain"
	"wabulk/internal/message"

	"github.com/spf13/cobra"
)

func checkCmd() *cobra.Command {
	var f planFlags
	var showMessages bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate contacts, template and attachment without sending",
		Long:  "Loads the contact list, normalizes every phone number, renders every message and validates the attachment. Nothing is sent and no browser is opened.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := loadConfig()
			defer closeLog()
			if err != nil {
				return err
			}
			return runCheck(cmd, cfg, f, showMessages)
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVar(&showMessages, "messages", false, "print each rendered message in full")
	return cmd
}

func runCheck(cmd *cobra.Command, cfg *config.Config, f planFlags, showMessages bool) error {
	plan, err := resolvePlan(cfg, f)
	if err != nil {
		return err
	}
	list, err := contacts.Load(cmd.Context(), plan.Contacts, plan.ContactOpts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	normalizer := address.New(string(cfg.Delivery.CountryCode), cfg.Delivery.NationalNumberLength)
	invalid := writeCheckTable(out, list.Recipients, plan.Template, normalizer, showMessages)

	for _, r := range list.Rejected {
		fmt.Fprintf(out, "row %d skipped: %s\n", r.Row, r.Reason)
	}

	if plan.Attachment != "" {
		v := attachment.NewValidator(attachment.ValidatorConfig{
			MaxImageBytes: cfg.Attachment.MaxImageBytes(),
			MaxVideoBytes: cfg.Attachment.MaxVideoBytes(),
			Logger:        logger,
		})
		att, err := v.Validate(plan.Attachment, filepath.Ext(plan.Attachment))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "attachment: %s\n", attachment.Describe(att))
	}

	fmt.Fprintf(out, "%d contacts ready, %d with invalid numbers, %d rows skipped\n",
		len(list.Recipients)-invalid, invalid, len(list.Rejected))
	if invalid > 0 {
		return fmt.Errorf("%d contacts have invalid phone numbers", invalid)
	}
	return nil
}

// writeCheckTable prints one row per recipient and returns how many
// addresses failed to normalize.
func writeCheckTable(w io.Writer, recs []domain.RecipientRecord, template string, n address.Normalizer, full bool) int {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ROW\tNAME\tPHONE\tADDRESS\tMESSAGE")
	invalid := 0
	for _, r := range recs {
		var addr string
		if a, err := n.Normalize(r.Address); err != nil {
			addr = "INVALID: " + err.Error()
			invalid++
		} else {
			addr = a.String()
		}
		msg := message.Render(template, r)
		if !full {
			msg = preview(msg, 40)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", r.Row, r.Name, r.Address, addr, msg)
	}
	tw.Flush()
	return invalid
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "..."
	}
	return s
}

