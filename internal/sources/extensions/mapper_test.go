package extensions

import (
	"testing"
)

func TestMapExtensions(t *testing.T) {
	config, err := NewLoader(writeFile(t, sampleCatalogue)).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	exts, err := NewMapper().MapExtensions(config)
	if err != nil {
		t.Fatalf("MapExtensions() error = %v", err)
	}
	if len(exts) != 2 {
		t.Fatalf("MapExtensions() = %d extensions, want 2 (invalid and duplicate skipped)", len(exts))
	}

	pirate := exts[0]
	if pirate.ID != "pirate" || pirate.Name != "Pirate" {
		t.Errorf("first extension = %+v, want pirate", pirate)
	}
	if pirate.Instruction != "Talk like a pirate." {
		t.Errorf("instruction = %q, want trimmed text", pirate.Instruction)
	}
	if len(pirate.Widgets) != 1 || pirate.Widgets[0].Type != "MAP" {
		t.Errorf("widgets = %+v, want one MAP widget", pirate.Widgets)
	}

	if exts[1].ID != generateExtensionID("Concise") {
		t.Errorf("missing id should be derived from name, got %q", exts[1].ID)
	}
}

func TestMapExtensionsEmpty(t *testing.T) {
	if _, err := NewMapper().MapExtensions(CatalogueConfig{}); err == nil {
		t.Fatal("MapExtensions() on an empty catalogue should fail")
	}
}

func TestGenerateExtensionIDStable(t *testing.T) {
	a := generateExtensionID("Concise")
	b := generateExtensionID("concise")
	if a != b || len(a) != 16 {
		t.Errorf("generateExtensionID() = %q / %q, want equal 16-char ids", a, b)
	}
}
