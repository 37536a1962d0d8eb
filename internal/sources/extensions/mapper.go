package extensions

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/MrSnakeDoc/orbit/internal/domain"
)

// Mapper converts catalogue entries to domain extensions
type Mapper struct{}

// NewMapper creates a new mapper
func NewMapper() *Mapper {
	return &Mapper{}
}

// MapExtensions converts the catalogue to domain.Extension values.
// Entries without a name or an instruction are skipped; the first entry
// wins on duplicate ids.
func (m *Mapper) MapExtensions(config CatalogueConfig) ([]domain.Extension, error) {
	out := make([]domain.Extension, 0, len(config.Extensions))
	seen := make(map[string]bool, len(config.Extensions))

	for _, e := range config.Extensions {
		name := strings.TrimSpace(e.Name)
		if name == "" || strings.TrimSpace(e.Instruction) == "" {
			continue
		}
		id := strings.TrimSpace(e.ID)
		if id == "" {
			id = generateExtensionID(name)
		}
		if seen[id] {
			continue
		}
		seen[id] = true

		ext := domain.Extension{
			ID:          id,
			Name:        name,
			Icon:        e.Icon,
			Description: strings.TrimSpace(e.Description),
			Instruction: strings.TrimSpace(e.Instruction),
		}
		for _, w := range e.Widgets {
			if w.Type == "" {
				continue
			}
			ext.Widgets = append(ext.Widgets, domain.Widget{
				Type:        strings.ToUpper(w.Type),
				Description: w.Description,
			})
		}
		out = append(out, ext)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no valid extensions found in config")
	}
	return out, nil
}

// generateExtensionID creates a stable ID from the extension name
func generateExtensionID(name string) string {
	hash := sha256.Sum256([]byte(strings.ToLower(name)))
	return hex.EncodeToString(hash[:])[:16]
}
