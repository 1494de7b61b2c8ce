package table

import "slices"

// Toolbar describes which bulk controls the view should offer.
type Toolbar struct {
	ShowEditAll bool `json:"showEditAll"`
	ShowSaveAll bool `json:"showSaveAll"` // Save All and Cancel
	ShowAddRow  bool `json:"showAddRow"`
	Busy        bool `json:"busy"` // a save-all is in flight
}

// State is a consistent read model of the controller for the view layer.
type State struct {
	Rows            []Row             `json:"rows"`
	KeyField        string            `json:"keyField"`
	Editing         []Key             `json:"editing"`
	Operations      map[string]Status `json:"operations"`
	Adding          bool              `json:"adding"`
	Draft           Row               `json:"draft,omitempty"`
	Pagination      PaginationState   `json:"pagination"`
	PageCount       int               `json:"pageCount"`
	CanPrevious     bool              `json:"canPrevious"`
	CanNext         bool              `json:"canNext"`
	PageSizeOptions []int             `json:"pageSizeOptions"`
	Toolbar         Toolbar           `json:"toolbar"`
}

// State returns a copy of everything the view layer renders from.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.store.Len()
	st := State{
		Rows:            c.store.Rows(),
		KeyField:        c.store.KeyField(),
		Editing:         c.sessions.Keys(),
		Operations:      c.ops.All(),
		Adding:          c.adding,
		Pagination:      c.pagination.State(),
		PageCount:       c.pagination.PageCount(total),
		CanPrevious:     c.pagination.CanPrevious(),
		CanNext:         c.pagination.CanNext(total),
		PageSizeOptions: slices.Clone(c.opt.PageSizeOptions),
	}
	if c.adding {
		st.Draft = c.draft.Clone()
	}
	if c.opt.EnableEditing {
		st.Toolbar.ShowSaveAll = c.sessions.ActiveCount() > 0
		st.Toolbar.ShowEditAll = !st.Toolbar.ShowSaveAll
	}
	st.Toolbar.ShowAddRow = c.opt.EnableAddRow && !c.adding
	st.Toolbar.Busy = c.ops.Status(OpAll).Loading
	return st
}
