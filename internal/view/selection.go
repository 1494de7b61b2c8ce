package view

import (
	"sort"
	"sync"

	"github.com/JonMunkholm/editgrid/internal/table"
)

// Selection tracks selected rows by key.
type Selection struct {
	mu       sync.Mutex
	selected map[table.Key]bool
}

// NewSelection creates an empty selection.
func NewSelection() *Selection {
	return &Selection{selected: make(map[table.Key]bool)}
}

// Toggle flips the selection of key and returns the new state.
func (s *Selection) Toggle(key table.Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selected[key] {
		delete(s.selected, key)
		return false
	}
	s.selected[key] = true
	return true
}

// SetAll selects or deselects every key in keys, typically the current page.
func (s *Selection) SetAll(keys []table.Key, selected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range keys {
		if selected {
			s.selected[k] = true
		} else {
			delete(s.selected, k)
		}
	}
}

// IsSelected reports whether key is selected.
func (s *Selection) IsSelected(key table.Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected[key]
}

// AllSelected reports whether every key in keys is selected. An empty list
// is never all selected.
func (s *Selection) AllSelected(keys []table.Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(keys) == 0 {
		return false
	}
	for _, k := range keys {
		if !s.selected[k] {
			return false
		}
	}
	return true
}

// Retain drops selected keys that are no longer present, e.g. after a
// delete or a reseed.
func (s *Selection) Retain(keys []table.Key) {
	s.mu.Lock()
	defer s.mu.Unlock()

	present := make(map[table.Key]bool, len(keys))
	for _, k := range keys {
		present[k] = true
	}
	for k := range s.selected {
		if !present[k] {
			delete(s.selected, k)
		}
	}
}

// Count returns the number of selected rows.
func (s *Selection) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.selected)
}

// Keys returns the selected keys, sorted.
func (s *Selection) Keys() []table.Key {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]table.Key, 0, len(s.selected))
	for k := range s.selected {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Clear deselects everything.
func (s *Selection) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = make(map[table.Key]bool)
}
