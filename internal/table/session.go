package table

import "sort"

// EditSessions tracks which rows are in an editable session.
type EditSessions struct {
	editing map[Key]bool
}

// NewEditSessions creates an empty tracker.
func NewEditSessions() *EditSessions {
	return &EditSessions{editing: make(map[Key]bool)}
}

// StartEditing opens a session for key. Without multi-row editing the
// session set becomes exactly {key}.
func (e *EditSessions) StartEditing(key Key, multiRowAllowed bool) {
	if !multiRowAllowed {
		e.editing = map[Key]bool{key: true}
		return
	}
	e.editing[key] = true
}

// StopEditing closes the session for key.
func (e *EditSessions) StopEditing(key Key) {
	delete(e.editing, key)
}

// StartEditingAll opens a session for every key regardless of policy.
func (e *EditSessions) StartEditingAll(keys []Key) {
	for _, k := range keys {
		e.editing[k] = true
	}
}

// Clear closes every session.
func (e *EditSessions) Clear() {
	e.editing = make(map[Key]bool)
}

// IsEditing reports whether key is in a session.
func (e *EditSessions) IsEditing(key Key) bool {
	return e.editing[key]
}

// ActiveCount returns the number of open sessions.
func (e *EditSessions) ActiveCount() int {
	return len(e.editing)
}

// Keys returns the keys in a session, sorted.
func (e *EditSessions) Keys() []Key {
	keys := make([]Key, 0, len(e.editing))
	for k := range e.editing {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
