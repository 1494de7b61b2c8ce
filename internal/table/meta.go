package table

// CellMetaVersion identifies the CellMeta contract. Renderers built against a
// different version must not assume the same method set.
const CellMetaVersion = 1

// CellMeta is the capability handed to embedded cell renderers that address
// rows by position. rowIndex is the position of the row in the working
// collection, not its position on the current page. Hosts that address rows
// by key use Controller.UpdateField and State instead.
type CellMeta interface {
	// UpdateField routes an edit of one cell back into the working collection.
	// Out-of-range indexes are ignored.
	UpdateField(rowIndex int, columnID string, value any)

	// IsEditing reports whether the row should render inputs.
	IsEditing(rowIndex int) bool
}

type cellMeta struct {
	c *Controller
}

func (m cellMeta) UpdateField(rowIndex int, columnID string, value any) {
	_ = m.c.mutate(func() error {
		if !m.c.opt.EnableEditing {
			return ErrEditingDisabled
		}
		key, ok := m.c.store.KeyAt(rowIndex)
		if !ok || !m.c.store.UpdateField(key, columnID, value) {
			return ErrRowNotFound
		}
		return nil
	})
}

func (m cellMeta) IsEditing(rowIndex int) bool {
	m.c.mu.Lock()
	defer m.c.mu.Unlock()
	key, ok := m.c.store.KeyAt(rowIndex)
	return ok && m.c.sessions.IsEditing(key)
}
