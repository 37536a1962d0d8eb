package domain

// DefaultProfileID is the profile used when none has been chosen.
const DefaultProfileID = "default"

// UserProfile is a named configuration scope.
//
// Switching the active profile swaps the whole session state for this
// profile's snapshot. It never merges.
type UserProfile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Theme string `json:"theme,omitempty"`

	// EnabledExtensions is the set of Extension ids active for this profile.
	EnabledExtensions []string `json:"enabledExtensions"`

	EnabledSidebarApps []string   `json:"enabledSidebarApps,omitempty"`
	CustomShortcuts    []Shortcut `json:"customShortcuts,omitempty"`

	PreferredModel      string `json:"preferredModel,omitempty"`
	PreferredImageModel string `json:"preferredImageModel,omitempty"`
}

// Clone returns a deep copy of the profile.
func (p *UserProfile) Clone() *UserProfile {
	if p == nil {
		return nil
	}
	c := *p
	c.EnabledExtensions = append([]string(nil), p.EnabledExtensions...)
	c.EnabledSidebarApps = append([]string(nil), p.EnabledSidebarApps...)
	c.CustomShortcuts = append([]Shortcut(nil), p.CustomShortcuts...)
	return &c
}

// HasExtension reports whether the extension id is enabled.
func (p *UserProfile) HasExtension(id string) bool {
	for _, e := range p.EnabledExtensions {
		if e == id {
			return true
		}
	}
	return false
}

// Shortcut is a user-defined quick link on the new-tab page.
type Shortcut struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Extension is a named behavior injected into model requests.
// Extensions are process-wide and shared by every profile.
type Extension struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Icon        string   `json:"icon,omitempty" yaml:"icon,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Instruction string   `json:"instruction" yaml:"instruction"`
	Widgets     []Widget `json:"widgets,omitempty" yaml:"widgets,omitempty"`
}

// Widget is a declarative UI affordance the model may emit through
// the $$$UI:<TYPE>:::<content>$$$ token.
type Widget struct {
	Type        string `json:"type" yaml:"type"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}
