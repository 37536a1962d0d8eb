package profile

import (
	"slices"
	"strings"

	"github.com/MrSnakeDoc/orbit/internal/domain"
)

// Extensions returns every known extension in order.
func (r *Registry) Extensions() []domain.Extension {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Extension, 0, len(r.extOrder))
	for _, id := range r.extOrder {
		out = append(out, cloneExtension(r.extensions[id]))
	}
	return out
}

// Extension returns one extension by id.
func (r *Registry) Extension(id string) (domain.Extension, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.extensions[id]
	return cloneExtension(e), ok
}

// IsCatalogue reports whether the extension came from the catalogue file.
func (r *Registry) IsCatalogue(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.catalogue[id]
}

// SaveExtension creates or updates a user extension. An empty id creates
// a new one.
func (r *Registry) SaveExtension(ext domain.Extension) (domain.Extension, error) {
	ext.Name = strings.TrimSpace(ext.Name)
	ext.Instruction = strings.TrimSpace(ext.Instruction)
	if ext.Name == "" || ext.Instruction == "" {
		return domain.Extension{}, ErrInvalidExtension
	}

	r.mu.Lock()
	if ext.ID == "" {
		ext.ID = r.newID()
	}
	if r.catalogue[ext.ID] {
		r.mu.Unlock()
		return domain.Extension{}, ErrCatalogueReadOnly
	}
	r.putExtensionLocked(ext)
	r.mu.Unlock()

	r.changed()
	return cloneExtension(ext), nil
}

func (r *Registry) putExtensionLocked(ext domain.Extension) {
	if _, ok := r.extensions[ext.ID]; !ok {
		r.extOrder = append(r.extOrder, ext.ID)
	}
	r.extensions[ext.ID] = cloneExtension(ext)
}

// DeleteExtension removes a user extension and prunes it from every profile.
func (r *Registry) DeleteExtension(id string) error {
	r.mu.Lock()
	if _, ok := r.extensions[id]; !ok {
		r.mu.Unlock()
		return ErrUnknownExtension
	}
	if r.catalogue[id] {
		r.mu.Unlock()
		return ErrCatalogueReadOnly
	}
	r.removeExtensionLocked(id)
	r.mu.Unlock()

	r.changed()
	return nil
}

func (r *Registry) removeExtensionLocked(id string) {
	delete(r.extensions, id)
	delete(r.catalogue, id)
	r.extOrder = slices.DeleteFunc(r.extOrder, func(s string) bool { return s == id })
	for _, p := range r.profiles {
		p.EnabledExtensions = slices.DeleteFunc(p.EnabledExtensions, func(s string) bool { return s == id })
	}
}

// ReplaceCatalogue swaps the catalogue-sourced extensions for exts.
// Entries that disappeared, including ids restored for entries no longer
// in the file, are pruned from every profile. A catalogue
// entry shadows a user extension with the same id.
func (r *Registry) ReplaceCatalogue(exts []domain.Extension) {
	next := make(map[string]bool, len(exts))
	for _, e := range exts {
		next[e.ID] = true
	}

	r.mu.Lock()
	for id := range r.catalogue {
		if !next[id] {
			r.removeExtensionLocked(id)
		}
	}
	for _, e := range exts {
		r.putExtensionLocked(e)
		r.catalogue[e.ID] = true
	}
	// every extension is loaded now; what is still unknown left the
	// catalogue while the process was down
	for _, p := range r.profiles {
		p.EnabledExtensions = slices.DeleteFunc(p.EnabledExtensions, func(id string) bool {
			_, ok := r.extensions[id]
			return !ok
		})
	}
	r.mu.Unlock()

	r.changed()
}

func cloneExtension(e domain.Extension) domain.Extension {
	e.Widgets = slices.Clone(e.Widgets)
	return e
}
