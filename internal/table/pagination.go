package table

// PaginationMode selects who computes the row window.
type PaginationMode string

const (
	// ModeClient delegates windowing to the view engine; the host is never notified.
	ModeClient PaginationMode = "client"

	// ModeServer echoes every change to the host, which supplies the page count.
	ModeServer PaginationMode = "server"
)

// Defaults applied when Options leave pagination unset.
const DefaultPageSize = 10

// DefaultPageSizeOptions are the page sizes offered to the user.
var DefaultPageSizeOptions = []int{5, 10, 20, 50, 100}

// PaginationState is the observable pagination position.
type PaginationState struct {
	PageIndex int            `json:"pageIndex"`
	PageSize  int            `json:"pageSize"`
	Mode      PaginationMode `json:"mode"`
	PageCount int            `json:"pageCount,omitempty"` // host-supplied, server mode only
}

// Pagination owns the page position and size.
//
// Mutators return true when the host must be notified: only in server mode
// and only when the index or size actually changed. The caller performs the
// notification so it can happen outside any lock.
type Pagination struct {
	state PaginationState
}

// NewPagination creates a coordinator at page 0.
func NewPagination(pageSize int, mode PaginationMode) *Pagination {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if mode != ModeServer {
		mode = ModeClient
	}
	return &Pagination{state: PaginationState{PageSize: pageSize, Mode: mode}}
}

// State returns the current pagination state.
func (p *Pagination) State() PaginationState {
	return p.state
}

// SetPage moves to pageIndex. Negative values clamp to 0.
func (p *Pagination) SetPage(pageIndex int) bool {
	if pageIndex < 0 {
		pageIndex = 0
	}
	if pageIndex == p.state.PageIndex {
		return false
	}
	p.state.PageIndex = pageIndex
	return p.state.Mode == ModeServer
}

// SetPageSize changes the page size. The page index is kept.
func (p *Pagination) SetPageSize(pageSize int) (bool, error) {
	if pageSize <= 0 {
		return false, ErrInvalidPageSize
	}
	if pageSize == p.state.PageSize {
		return false, nil
	}
	p.state.PageSize = pageSize
	return p.state.Mode == ModeServer, nil
}

// SetMode switches between client and server counting and resets the page
// index to 0. Entering server mode always notifies so the host loads page 0.
func (p *Pagination) SetMode(mode PaginationMode) bool {
	if mode != ModeServer {
		mode = ModeClient
	}
	if mode == p.state.Mode {
		return false
	}
	p.state.Mode = mode
	p.state.PageIndex = 0
	if mode == ModeClient {
		p.state.PageCount = 0
	}
	return mode == ModeServer
}

// SetPageCount records the host-supplied page count used in server mode.
func (p *Pagination) SetPageCount(n int) {
	if n < 0 {
		n = 0
	}
	p.state.PageCount = n
}

// PageCount returns the number of pages used for navigation bounds. Client
// mode derives it from totalRows; server mode uses the host-supplied value.
func (p *Pagination) PageCount(totalRows int) int {
	if p.state.Mode == ModeServer {
		return p.state.PageCount
	}
	if totalRows <= 0 {
		return 0
	}
	return (totalRows + p.state.PageSize - 1) / p.state.PageSize
}

// CanPrevious reports whether a previous page exists.
func (p *Pagination) CanPrevious() bool {
	return p.state.PageIndex > 0
}

// CanNext reports whether a next page exists.
func (p *Pagination) CanNext(totalRows int) bool {
	return p.state.PageIndex < p.PageCount(totalRows)-1
}
