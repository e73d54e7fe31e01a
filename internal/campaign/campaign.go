package campaign

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Campaign bundles everything a send needs in one YAML file:
//
//	name: diwali
//	contacts: contacts.xlsx
//	templateFile: message.txt
//	attachment: poster.png
//
// Relative paths are resolved against the campaign file's directory.
type Campaign struct {
	Name         string `yaml:"name"`
	Contacts     string `yaml:"contacts"`
	Template     string `yaml:"template,omitempty"`
	TemplateFile string `yaml:"templateFile,omitempty"`
	Attachment   string `yaml:"attachment,omitempty"`
	NameColumn   string `yaml:"nameColumn,omitempty"`
	PhoneColumn  string `yaml:"phoneColumn,omitempty"`
	Sheet        string `yaml:"sheet,omitempty"`

	Path string `yaml:"-"`
}

// Load reads a campaign file, resolves its paths and inlines templateFile
// into Template.
func Load(path string) (*Campaign, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read campaign: %w", err)
	}

	var c Campaign
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse campaign %s: %w", path, err)
	}
	c.Path = path
	if c.Name == "" {
		base := filepath.Base(path)
		c.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}

	dir := filepath.Dir(path)
	c.Contacts = resolve(dir, c.Contacts)
	c.TemplateFile = resolve(dir, c.TemplateFile)
	c.Attachment = resolve(dir, c.Attachment)

	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("campaign %s: %w", c.Name, err)
	}

	if c.TemplateFile != "" {
		body, err := os.ReadFile(c.TemplateFile)
		if err != nil {
			return nil, fmt.Errorf("campaign %s: read template: %w", c.Name, err)
		}
		c.Template = string(body)
	}
	return &c, nil
}

func (c *Campaign) validate() error {
	var errs []error
	if c.Contacts == "" {
		errs = append(errs, errors.New("contacts is required"))
	}
	switch {
	case c.Template != "" && c.TemplateFile != "":
		errs = append(errs, errors.New("set either template or templateFile, not both"))
	case strings.TrimSpace(c.Template) == "" && c.TemplateFile == "":
		errs = append(errs, errors.New("template or templateFile is required"))
	}
	return errors.Join(errs...)
}

func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	return filepath.Join(dir, p)
}

// LoadDir loads every .yaml/.yml campaign in dir, sorted by name. Files that
// fail to load are logged and skipped.
func LoadDir(dir string, logger *slog.Logger) ([]*Campaign, error) {
	if logger == nil {
		logger = slog.Default()
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		logger.Debug("campaign directory does not exist, skipping", "dir", dir)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read campaign dir: %w", err)
	}

	var out []*Campaign
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || (!strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml")) {
			continue
		}
		c, err := Load(filepath.Join(dir, name))
		if err != nil {
			logger.Warn("skipping campaign", "file", name, "err", err)
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
