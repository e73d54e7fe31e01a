package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"wabulk/internal/campaign"
	"wabulk/internal/config"

	"github.com/spf13/cobra"
)

func campaignsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "campaigns [dir]",
		Short: "List the campaign files in the workspace",
		Long: `Lists every .yaml campaign in dir (default: general.workspace). A campaign
listed here can be sent by name: wabulk send --campaign <name>.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := loadConfig()
			defer closeLog()
			if err != nil {
				return err
			}
			dir := cfg.General.Workspace
			if len(args) == 1 {
				dir = args[0]
			}
			list, err := campaign.LoadDir(dir, logger)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no campaigns in %s\n", dir)
				return nil
			}
			writeCampaignTable(cmd.OutOrStdout(), list)
			return nil
		},
	}
}

func writeCampaignTable(w io.Writer, list []*campaign.Campaign) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCONTACTS\tATTACHMENT\tTEMPLATE")
	for _, c := range list {
		att := "-"
		if c.Attachment != "" {
			att = filepath.Base(c.Attachment)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Name, filepath.Base(c.Contacts), att, preview(c.Template, 40))
	}
	tw.Flush()
}

// campaignPath maps a bare campaign name to <workspace>/<name>.yaml (or
// .yml). Anything that looks like a path is returned unchanged.
func campaignPath(cfg *config.Config, ref string) string {
	if strings.ContainsRune(ref, os.PathSeparator) || strings.ContainsRune(ref, '/') {
		return ref
	}
	if ext := filepath.Ext(ref); ext == ".yaml" || ext == ".yml" {
		return ref
	}
	for _, ext := range []string{".yaml", ".yml"} {
		p := filepath.Join(cfg.General.Workspace, ref+ext)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return filepath.Join(cfg.General.Workspace, ref+".yaml")
}
