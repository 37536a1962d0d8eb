package extensions

// WidgetEntry is a widget declared by an extension
type WidgetEntry struct {
	Type        string `yaml:"type"`
	Description string `yaml:"description"`
}

// ExtensionEntry is one extension in the catalogue file
type ExtensionEntry struct {
	ID          string        `yaml:"id"`
	Name        string        `yaml:"name"`
	Icon        string        `yaml:"icon"`
	Description string        `yaml:"description"`
	Instruction string        `yaml:"instruction"`
	Widgets     []WidgetEntry `yaml:"widgets"`
}

// CatalogueConfig is the root structure of extensions.yaml
//
//	extensions:
//	  - id: pirate
//	    name: Pirate
//	    instruction: Talk like a pirate.
type CatalogueConfig struct {
	Extensions []ExtensionEntry `yaml:"extensions"`
}
