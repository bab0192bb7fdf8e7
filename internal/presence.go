package internal

import "errors"

// ErrDuplicateConnection is returned when a connection id is registered
// twice. The transport assigns ids, so hitting this means the connection is
// in an unknown state and gets closed.
var ErrDuplicateConnection = errors.New("connection id already registered")

// Registry maps connection ids to display names, preserving registration
// order for roster snapshots. Display names are not unique; two sessions may
// join under the same name.
//
// Registry carries no lock of its own. The Server serializes all access
// together with the history store behind one mutex so no caller observes a
// half-updated roster.
type Registry struct {
	order []string
	names map[string]string
}

func NewRegistry() *Registry {
	return &Registry{names: make(map[string]string)}
}

func (r *Registry) Register(connID, displayName string) error {
	if _, exists := r.names[connID]; exists {
		return ErrDuplicateConnection
	}
	r.names[connID] = displayName
	r.order = append(r.order, connID)
	return nil
}

// Unregister removes the session and returns the name it joined under, so
// the caller can compose a departure announcement. ok is false when the
// connection never completed a join.
func (r *Registry) Unregister(connID string) (displayName string, ok bool) {
	displayName, ok = r.names[connID]
	if !ok {
		return "", false
	}
	delete(r.names, connID)
	for i, id := range r.order {
		if id == connID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return displayName, true
}

// Snapshot returns the roster in registration order.
func (r *Registry) Snapshot() []string {
	roster := make([]string, 0, len(r.order))
	for _, id := range r.order {
		roster = append(roster, r.names[id])
	}
	return roster
}

func (r *Registry) Size() int {
	return len(r.names)
}
