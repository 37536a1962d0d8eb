package extensions

import (
	"fmt"
	"os"
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Loader handles loading and parsing of the extensions catalogue
type Loader struct {
	filePath string
}

// NewLoader creates a new catalogue loader
func NewLoader(filePath string) *Loader {
	return &Loader{
		filePath: filePath,
	}
}

// Path returns the catalogue file path
func (l *Loader) Path() string { return l.filePath }

// Load reads and parses the catalogue file
func (l *Loader) Load() (CatalogueConfig, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return CatalogueConfig{}, fmt.Errorf("failed to read extensions file: %w", err)
	}

	data = expandTemplateVariables(data)

	var config CatalogueConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return CatalogueConfig{}, fmt.Errorf("failed to parse extensions yaml: %w", err)
	}

	return config, nil
}

var templateVar = regexp.MustCompile(`\{\{\s*(ORBIT_VAR_[A-Za-z0-9_]+)\s*\}\}`)

// expandTemplateVariables replaces {{ORBIT_VAR_X}} with the quoted value
// of the environment variable, or "" when unset.
func expandTemplateVariables(data []byte) []byte {
	return templateVar.ReplaceAllFunc(data, func(m []byte) []byte {
		name := templateVar.FindSubmatch(m)[1]
		return []byte(strconv.Quote(os.Getenv(string(name))))
	})
}
