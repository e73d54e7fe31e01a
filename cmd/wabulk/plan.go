package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"wabulk/internal/campaign"
	"wabulk/internal/config"
	"wabulk/internal/contacts"
	"wabulk/internal/message"

	"github.com/spf13/cobra"
)

// planFlags are the inputs shared by send and check.
type planFlags struct {
	campaign     string
	contacts     string
	template     string
	templateFile string
	attachment   string
	nameColumn   string
	phoneColumn  string
	sheet        string
}

func (f *planFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.campaign, "campaign", "", "campaign YAML file, or the name of one in the workspace")
	fl.StringVar(&f.contacts, "contacts", "", "contact list (.csv, .xlsx, .db)")
	fl.StringVarP(&f.template, "template", "t", "", "message template; {{Name}} is replaced per contact")
	fl.StringVar(&f.templateFile, "template-file", "", "read the message template from a file")
	fl.StringVarP(&f.attachment, "attachment", "a", "", "image or video sent with every message")
	fl.StringVar(&f.nameColumn, "name-column", "", "override contacts.nameColumn")
	fl.StringVar(&f.phoneColumn, "phone-column", "", "override contacts.phoneColumn")
	fl.StringVar(&f.sheet, "sheet", "", "XLSX sheet to read (default: first sheet)")
}

// sendPlan is the resolved input of one run.
type sendPlan struct {
	Name        string // campaign name, shown in logs and the summary
	Contacts    string
	Template    string
	Attachment  string
	ContactOpts contacts.Options
}

// resolvePlan layers config, then the campaign file, then explicit flags.
func resolvePlan(cfg *config.Config, f planFlags) (*sendPlan, error) {
	p := &sendPlan{
		ContactOpts: contacts.Options{
			NameColumn:  cfg.Contacts.NameColumn,
			PhoneColumn: cfg.Contacts.PhoneColumn,
			Sheet:       cfg.Contacts.Sheet,
			Table:       cfg.Contacts.SQLiteTable,
			Logger:      logger,
		},
	}

	if f.campaign != "" {
		c, err := campaign.Load(campaignPath(cfg, f.campaign))
		if err != nil {
			return nil, err
		}
		p.Name = c.Name
		p.Contacts = c.Contacts
		p.Template = c.Template
		p.Attachment = c.Attachment
		override(&p.ContactOpts.NameColumn, c.NameColumn)
		override(&p.ContactOpts.PhoneColumn, c.PhoneColumn)
		override(&p.ContactOpts.Sheet, c.Sheet)
	}

	override(&p.Contacts, f.contacts)
	override(&p.Attachment, f.attachment)
	override(&p.ContactOpts.NameColumn, f.nameColumn)
	override(&p.ContactOpts.PhoneColumn, f.phoneColumn)
	override(&p.ContactOpts.Sheet, f.sheet)

	switch {
	case f.template != "" && f.templateFile != "":
		return nil, errors.New("use either --template or --template-file, not both")
	case f.template != "":
		p.Template = unescapeNewlines(f.template)
	case f.templateFile != "":
		body, err := os.ReadFile(f.templateFile)
		if err != nil {
			return nil, fmt.Errorf("read template: %w", err)
		}
		p.Template = string(body)
	}

	if p.Contacts == "" {
		return nil, errors.New("no contact list given (use --contacts or --campaign)")
	}
	if strings.TrimSpace(p.Template) == "" {
		return nil, errors.New("no message template given (use --template, --template-file or --campaign)")
	}
	if p.Name == "" {
		base := filepath.Base(p.Contacts)
		p.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if !message.HasPlaceholder(p.Template) {
		logger.Warn("template has no " + message.NamePlaceholder + " placeholder, every contact gets the same text")
	}
	return p, nil
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// unescapeNewlines lets a shell argument carry line breaks as "\n".
func unescapeNewlines(s string) string {
	return strings.ReplaceAll(s, `\n`, "\n")
}
