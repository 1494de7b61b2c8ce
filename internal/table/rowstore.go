package table

import "fmt"

// RowStore holds the working row collection and the last committed snapshot.
//
// Both collections always contain the same keys in the same order; only
// UpdateField makes them diverge, and it only ever touches field values of the
// working copy. Rows are copied on the way in and on the way out, so callers
// never share maps with the store.
type RowStore struct {
	keyField string
	working  []Row
	snapshot []Row
}

// NewRowStore creates an empty store that identifies rows by keyField.
func NewRowStore(keyField string) *RowStore {
	if keyField == "" {
		keyField = DefaultKeyField
	}
	return &RowStore{keyField: keyField}
}

// KeyField returns the identity field name.
func (s *RowStore) KeyField() string {
	return s.keyField
}

// Replace overwrites both the working collection and the snapshot.
// Every row must carry a unique, non-empty key.
func (s *RowStore) Replace(rows []Row) error {
	if err := s.validate(rows); err != nil {
		return err
	}
	s.working = CloneRows(rows)
	s.snapshot = CloneRows(rows)
	return nil
}

// UpdateField sets one field of one working row. The snapshot is untouched.
// Returns false if key is absent.
func (s *RowStore) UpdateField(key Key, field string, value any) bool {
	i := indexOf(s.working, s.keyField, key)
	if i < 0 {
		return false
	}
	// Copy on write so rows handed out earlier stay unchanged.
	row := s.working[i].Clone()
	if row == nil {
		row = Row{}
	}
	row[field] = value
	s.working[i] = row
	return true
}

// Commit sets the snapshot to rows (or to the working collection when rows is
// nil) and then makes the working collection equal to the snapshot.
func (s *RowStore) Commit(rows []Row) error {
	if rows == nil {
		s.snapshot = CloneRows(s.working)
		return nil
	}
	return s.Replace(rows)
}

// CommitRow promotes a single row. A non-nil row (typically the server's
// canonical version) replaces both copies; a nil row promotes the working copy.
// The key field of a server row defaults to key when absent. A server row that
// names a different key is rejected with ErrKeyMismatch and nothing changes.
func (s *RowStore) CommitRow(key Key, row Row) error {
	wi := indexOf(s.working, s.keyField, key)
	si := indexOf(s.snapshot, s.keyField, key)
	if wi < 0 || si < 0 {
		return fmt.Errorf("commit %q: %w", key, ErrRowNotFound)
	}
	if row == nil {
		s.snapshot[si] = s.working[wi].Clone()
		return nil
	}
	row = row.Clone()
	if got, ok := KeyOf(row, s.keyField); !ok {
		row[s.keyField] = string(key)
	} else if got != key {
		return fmt.Errorf("commit %q: server returned %q: %w", key, got, ErrKeyMismatch)
	}
	s.working[wi] = row
	s.snapshot[si] = row.Clone()
	return nil
}

// RevertRow restores the working copy of key from the snapshot.
func (s *RowStore) RevertRow(key Key) bool {
	wi := indexOf(s.working, s.keyField, key)
	si := indexOf(s.snapshot, s.keyField, key)
	if wi < 0 || si < 0 {
		return false
	}
	s.working[wi] = s.snapshot[si].Clone()
	return true
}

// RevertAll discards every uncommitted edit.
func (s *RowStore) RevertAll() {
	s.working = CloneRows(s.snapshot)
}

// Remove deletes key from both collections.
func (s *RowStore) Remove(key Key) bool {
	wi := indexOf(s.working, s.keyField, key)
	if wi < 0 {
		return false
	}
	s.working = append(s.working[:wi:wi], s.working[wi+1:]...)
	if si := indexOf(s.snapshot, s.keyField, key); si >= 0 {
		s.snapshot = append(s.snapshot[:si:si], s.snapshot[si+1:]...)
	}
	return true
}

// Append adds a committed row to the end of both collections.
func (s *RowStore) Append(row Row) error {
	key, ok := KeyOf(row, s.keyField)
	if !ok {
		return fmt.Errorf("append: %w", ErrMissingKey)
	}
	if indexOf(s.working, s.keyField, key) >= 0 {
		return fmt.Errorf("append %q: %w", key, ErrDuplicateKey)
	}
	s.working = append(s.working, row.Clone())
	s.snapshot = append(s.snapshot, row.Clone())
	return nil
}

// Get returns a copy of the working row for key and its current position.
func (s *RowStore) Get(key Key) (Row, int, bool) {
	i := indexOf(s.working, s.keyField, key)
	if i < 0 {
		return nil, -1, false
	}
	return s.working[i].Clone(), i, true
}

// Committed returns a copy of the snapshot row for key.
func (s *RowStore) Committed(key Key) (Row, bool) {
	i := indexOf(s.snapshot, s.keyField, key)
	if i < 0 {
		return nil, false
	}
	return s.snapshot[i].Clone(), true
}

// KeyAt resolves a positional index in the working collection to a key.
func (s *RowStore) KeyAt(index int) (Key, bool) {
	if index < 0 || index >= len(s.working) {
		return "", false
	}
	return KeyOf(s.working[index], s.keyField)
}

// Keys returns every working row key in display order.
func (s *RowStore) Keys() []Key {
	keys := make([]Key, 0, len(s.working))
	for _, r := range s.working {
		if k, ok := KeyOf(r, s.keyField); ok {
			keys = append(keys, k)
		}
	}
	return keys
}

// Rows returns a copy of the working collection.
func (s *RowStore) Rows() []Row {
	if s.working == nil {
		return []Row{}
	}
	return CloneRows(s.working)
}

// Snapshot returns a copy of the committed collection.
func (s *RowStore) Snapshot() []Row {
	if s.snapshot == nil {
		return []Row{}
	}
	return CloneRows(s.snapshot)
}

// Len returns the number of working rows.
func (s *RowStore) Len() int {
	return len(s.working)
}

func (s *RowStore) validate(rows []Row) error {
	seen := make(map[Key]bool, len(rows))
	for i, r := range rows {
		key, ok := KeyOf(r, s.keyField)
		if !ok {
			return fmt.Errorf("row %d: %w (%s)", i, ErrMissingKey, s.keyField)
		}
		if seen[key] {
			return fmt.Errorf("row %d %q: %w", i, key, ErrDuplicateKey)
		}
		seen[key] = true
	}
	return nil
}

func indexOf(rows []Row, keyField string, key Key) int {
	for i, r := range rows {
		if k, ok := KeyOf(r, keyField); ok && k == key {
			return i
		}
	}
	return -1
}
