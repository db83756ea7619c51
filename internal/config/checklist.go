package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"homeinspect/internal/core"
)

// checklistFile is the on-disk layout of CHECKLIST_FILE:
//
//	items:
//	  - Home roof
//	  - Thermostat
type checklistFile struct {
	Items []string `yaml:"items"`
}

// LoadChecklist reads the checklist from path, or returns the default
// checklist when path is empty.
func LoadChecklist(path string) (core.Checklist, error) {
	if path == "" {
		return core.DefaultChecklist(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return core.Checklist{}, fmt.Errorf("read checklist file: %w", err)
	}
	return ParseChecklist(data)
}

func ParseChecklist(data []byte) (core.Checklist, error) {
	var f checklistFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return core.Checklist{}, fmt.Errorf("parse checklist yaml: %w", err)
	}
	return core.NewChecklist(f.Items...)
}
