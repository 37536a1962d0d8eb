package profile

import (
	"github.com/MrSnakeDoc/orbit/internal/domain"
)

// Export captures the registry for persistence.
func (r *Registry) Export() State {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st := State{Version: StateVersion, ActiveProfileID: r.activeID}
	for _, id := range r.order {
		st.Profiles = append(st.Profiles, *r.profiles[id].Clone())
	}
	for _, id := range r.extOrder {
		if !r.catalogue[id] {
			st.Extensions = append(st.Extensions, cloneExtension(r.extensions[id]))
		}
	}
	return st
}

// Restore replaces profiles and user extensions with st. Catalogue
// extensions are kept. Enabled ids for extensions that are not loaded yet
// are preserved until the next catalogue load settles them.
func (r *Registry) Restore(st State) {
	r.mu.Lock()
	r.profiles = make(map[string]*domain.UserProfile, len(st.Profiles))
	r.order = r.order[:0]
	for i := range st.Profiles {
		p := st.Profiles[i].Clone()
		if p.ID == "" {
			continue
		}
		if _, dup := r.profiles[p.ID]; dup {
			continue
		}
		r.profiles[p.ID] = p
		r.order = append(r.order, p.ID)
	}

	for id := range r.extensions {
		if !r.catalogue[id] {
			delete(r.extensions, id)
		}
	}
	kept := r.extOrder[:0]
	for _, id := range r.extOrder {
		if r.catalogue[id] {
			kept = append(kept, id)
		}
	}
	r.extOrder = kept
	for _, e := range st.Extensions {
		if e.ID == "" || r.catalogue[e.ID] {
			continue
		}
		r.putExtensionLocked(e)
	}

	if len(r.order) == 0 {
		r.putDefaultLocked()
	} else if _, ok := r.profiles[st.ActiveProfileID]; ok {
		r.activeID = st.ActiveProfileID
	} else {
		r.activeID = r.order[0]
	}
	r.mu.Unlock()

	r.changed()
}
