package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/SethBurkart123/covalt/pkg/flow"
)

// definitionFile is the on-disk YAML shape: one file holds any number of
// node definitions.
type definitionFile struct {
	Nodes []*flow.NodeDefinition `yaml:"nodes"`
}

// LoadFile parses node definitions from a YAML file.
func LoadFile(path string) ([]*flow.NodeDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	var doc definitionFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog file %s: %w", path, err)
	}
	for _, def := range doc.Nodes {
		if err := validateDefinition(def); err != nil {
			return nil, fmt.Errorf("catalog file %s: %w", path, err)
		}
	}
	return doc.Nodes, nil
}

// LoadDir loads every .yaml/.yml file in a directory into the registry,
// in lexical order so registration conflicts are deterministic.
func LoadDir(reg *flow.DefinitionRegistry, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read catalog dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yaml", ".yml":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	for _, path := range files {
		defs, err := LoadFile(path)
		if err != nil {
			return err
		}
		for _, def := range defs {
			if err := reg.Register(def); err != nil {
				return fmt.Errorf("catalog file %s: %w", path, err)
			}
		}
	}
	return nil
}

func validateDefinition(def *flow.NodeDefinition) error {
	if def == nil || def.ID == "" {
		return fmt.Errorf("node definition missing id")
	}
	if def.Name == "" {
		return fmt.Errorf("node %q: missing name", def.ID)
	}
	seen := make(map[string]bool)
	for _, p := range def.Parameters {
		if p.ID == "" {
			return fmt.Errorf("node %q: parameter missing id", def.ID)
		}
		if seen[p.ID] {
			return fmt.Errorf("node %q: duplicate parameter %q", def.ID, p.ID)
		}
		seen[p.ID] = true
		switch p.Mode {
		case flow.ModeConstant, flow.ModeInput, flow.ModeOutput, flow.ModeHybrid:
		default:
			return fmt.Errorf("node %q: parameter %q has invalid mode %q", def.ID, p.ID, p.Mode)
		}
		if p.AutoExpand != nil && p.AutoExpand.Max > 0 && p.AutoExpand.Max < p.AutoExpand.Min {
			return fmt.Errorf("node %q: parameter %q: autoExpand max below min", def.ID, p.ID)
		}
	}
	return nil
}
