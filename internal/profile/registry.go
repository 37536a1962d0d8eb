// Package profile holds user profiles and the process-wide extension set.
//
// Extensions are shared by every profile. A profile only stores the ids it
// has enabled, so deleting an extension prunes it from every profile.
package profile

import (
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/orbit/internal/domain"
)

var (
	ErrNotFound          = errors.New("profile not found")
	ErrLastProfile       = errors.New("cannot delete the last profile")
	ErrUnknownExtension  = errors.New("extension not found")
	ErrInvalidExtension  = errors.New("extension needs a name and an instruction")
	ErrCatalogueReadOnly = errors.New("catalogue extensions are managed by the catalogue file")
)

// StateVersion is the current persisted registry layout.
const StateVersion = 1

// State is the persisted form of the registry.
type State struct {
	Version         int                  `json:"version"`
	ActiveProfileID string               `json:"activeProfileId"`
	Profiles        []domain.UserProfile `json:"profiles"`

	// Extensions holds user-created extensions only. Catalogue entries are
	// reloaded from their file.
	Extensions []domain.Extension `json:"extensions,omitempty"`
}

// Registry owns profiles, extensions and the active profile pointer.
type Registry struct {
	mu       sync.RWMutex
	profiles map[string]*domain.UserProfile
	order    []string
	activeID string

	extensions map[string]domain.Extension
	extOrder   []string
	catalogue  map[string]bool // ids loaded from the catalogue file

	newID    func() string
	onChange func()
}

// New creates a registry holding only the default profile.
func New() *Registry {
	r := &Registry{
		profiles:   make(map[string]*domain.UserProfile),
		extensions: make(map[string]domain.Extension),
		catalogue:  make(map[string]bool),
		newID:      uuid.NewString,
	}
	r.putDefaultLocked()
	return r
}

func (r *Registry) putDefaultLocked() {
	r.profiles[domain.DefaultProfileID] = &domain.UserProfile{ID: domain.DefaultProfileID, Name: "Default"}
	r.order = append(r.order, domain.DefaultProfileID)
	r.activeID = domain.DefaultProfileID
}

// OnChange registers a callback run after every mutation, outside the lock.
func (r *Registry) OnChange(fn func()) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

func (r *Registry) changed() {
	r.mu.RLock()
	fn := r.onChange
	r.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// ─────────────────────────────────────────────────────────────────
// Profiles
// ─────────────────────────────────────────────────────────────────

// Profiles returns copies of all profiles in creation order.
func (r *Registry) Profiles() []domain.UserProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.UserProfile, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.profiles[id].Clone())
	}
	return out
}

// Profile returns a copy of the profile.
func (r *Registry) Profile(id string) (*domain.UserProfile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[id]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// ActiveID returns the active profile id.
func (r *Registry) ActiveID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeID
}

// Active returns a copy of the active profile.
func (r *Registry) Active() *domain.UserProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.profiles[r.activeID].Clone()
}

// SetActive moves the active pointer. It does not touch session state;
// the caller swaps snapshots.
func (r *Registry) SetActive(id string) error {
	r.mu.Lock()
	if _, ok := r.profiles[id]; !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	r.activeID = id
	r.mu.Unlock()

	r.changed()
	return nil
}

// CreateProfile adds a new profile with nothing enabled.
func (r *Registry) CreateProfile(name string) domain.UserProfile {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "New Profile"
	}

	r.mu.Lock()
	p := &domain.UserProfile{ID: r.newID(), Name: name}
	r.profiles[p.ID] = p
	r.order = append(r.order, p.ID)
	out := *p.Clone()
	r.mu.Unlock()

	r.changed()
	return out
}

// Update applies fn to the stored profile. The id cannot be changed, and
// enabled extensions are filtered to ones that exist.
func (r *Registry) Update(id string, fn func(*domain.UserProfile)) (domain.UserProfile, error) {
	r.mu.Lock()
	p, ok := r.profiles[id]
	if !ok {
		r.mu.Unlock()
		return domain.UserProfile{}, ErrNotFound
	}
	next := p.Clone()
	fn(next)
	next.ID = id
	next.EnabledExtensions = r.knownLocked(next.EnabledExtensions)
	r.profiles[id] = next
	out := *next.Clone()
	r.mu.Unlock()

	r.changed()
	return out, nil
}

func (r *Registry) knownLocked(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := r.extensions[id]; ok && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// DeleteProfile removes a profile. Deleting the active profile moves the
// pointer to the first remaining one.
func (r *Registry) DeleteProfile(id string) error {
	r.mu.Lock()
	if _, ok := r.profiles[id]; !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	if len(r.profiles) == 1 {
		r.mu.Unlock()
		return ErrLastProfile
	}
	delete(r.profiles, id)
	r.order = slices.DeleteFunc(r.order, func(s string) bool { return s == id })
	if r.activeID == id {
		r.activeID = r.order[0]
	}
	r.mu.Unlock()

	r.changed()
	return nil
}

// EnableExtension adds the extension to the profile's enabled set.
func (r *Registry) EnableExtension(profileID, extID string) error {
	return r.toggle(profileID, extID, true)
}

// DisableExtension removes the extension from the profile's enabled set.
func (r *Registry) DisableExtension(profileID, extID string) error {
	return r.toggle(profileID, extID, false)
}

func (r *Registry) toggle(profileID, extID string, on bool) error {
	r.mu.Lock()
	p, ok := r.profiles[profileID]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	if _, ok := r.extensions[extID]; !ok && on {
		r.mu.Unlock()
		return ErrUnknownExtension
	}
	has := p.HasExtension(extID)
	switch {
	case on && !has:
		p.EnabledExtensions = append(p.EnabledExtensions, extID)
	case !on && has:
		p.EnabledExtensions = slices.DeleteFunc(p.EnabledExtensions, func(s string) bool { return s == extID })
	default:
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	r.changed()
	return nil
}

// EnabledExtensions returns the profile's enabled extensions in catalogue
// order. Unknown profiles have none.
func (r *Registry) EnabledExtensions(profileID string) []domain.Extension {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[profileID]
	if !ok {
		return nil
	}
	var out []domain.Extension
	for _, id := range r.extOrder {
		if p.HasExtension(id) {
			out = append(out, cloneExtension(r.extensions[id]))
		}
	}
	return out
}
