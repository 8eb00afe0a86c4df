// Package catalog serves agent procedures and rule references from YAML
// files in the workspace.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/example/apm/internal/ports/secondary"
)

// ProcedureFile is the on-disk shape of the procedures catalog.
type ProcedureFile struct {
	Procedures map[string]string `yaml:"procedures"`
}

// RuleEntry is one rule in the rules catalog. Empty TaskTypes or Phases
// means the rule applies to every task type or phase.
type RuleEntry struct {
	secondary.RuleRef `yaml:",inline"`
	TaskTypes         []string `yaml:"task_types,omitempty"`
	Phases            []string `yaml:"phases,omitempty"`
}

// RuleFile is the on-disk shape of the rules catalog.
type RuleFile struct {
	Rules []RuleEntry `yaml:"rules"`
}

// Catalog implements secondary.ProcedureProvider and secondary.RulesProvider.
// Files are read on first use and kept until Reload. A missing file is an
// empty catalog.
type Catalog struct {
	fs             afero.Fs
	proceduresPath string
	rulesPath      string

	mu         sync.Mutex
	loaded     bool
	procedures map[string]string
	rules      []RuleEntry
}

var (
	_ secondary.ProcedureProvider = (*Catalog)(nil)
	_ secondary.RulesProvider     = (*Catalog)(nil)
)

// New creates a catalog reading the given files from fs.
func New(fsys afero.Fs, proceduresPath, rulesPath string) *Catalog {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &Catalog{fs: fsys, proceduresPath: proceduresPath, rulesPath: rulesPath}
}

// Reload drops the loaded catalogs so the next call re-reads the files.
func (c *Catalog) Reload() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = false
}

// ProcedureText returns the procedure for role. Role names are matched
// case-insensitively.
func (c *Catalog) ProcedureText(ctx context.Context, role string) (string, bool, error) {
	if err := c.load(); err != nil {
		return "", false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	text, ok := c.procedures[normalize(role)]
	if !ok || strings.TrimSpace(text) == "" {
		return "", false, nil
	}
	return text, true, nil
}

// ApplicableRules returns the rules matching taskType and phase in catalog
// order. An empty argument does not filter on that dimension.
func (c *Catalog) ApplicableRules(ctx context.Context, taskType, phase string) ([]secondary.RuleRef, error) {
	if err := c.load(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	out := []secondary.RuleRef{}
	for _, r := range c.rules {
		if taskType != "" && !matches(r.TaskTypes, taskType) {
			continue
		}
		if phase != "" && !matches(r.Phases, phase) {
			continue
		}
		out = append(out, r.RuleRef)
	}
	return out, nil
}

func (c *Catalog) load() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return nil
	}

	var pf ProcedureFile
	if err := readYAML(c.fs, c.proceduresPath, &pf); err != nil {
		return err
	}
	var rf RuleFile
	if err := readYAML(c.fs, c.rulesPath, &rf); err != nil {
		return err
	}

	c.procedures = make(map[string]string, len(pf.Procedures))
	for role, text := range pf.Procedures {
		c.procedures[normalize(role)] = text
	}
	c.rules = make([]RuleEntry, 0, len(rf.Rules))
	for i, r := range rf.Rules {
		if strings.TrimSpace(r.ID) == "" {
			return fmt.Errorf("rule %d in %s has no id", i+1, c.rulesPath)
		}
		c.rules = append(c.rules, r)
	}
	c.loaded = true
	return nil
}

func readYAML(fsys afero.Fs, path string, out any) error {
	if path == "" {
		return nil
	}
	data, err := afero.ReadFile(fsys, path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func matches(allowed []string, v string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if strings.EqualFold(a, v) {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
