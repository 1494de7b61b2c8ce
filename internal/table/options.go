package table

import (
	"log/slog"
	"slices"
)

// Options configures a Controller. The zero value is a read-only table with
// client pagination, sorting and filtering turned off.
type Options struct {
	EnableEditing         bool
	EnableMultiRowEditing bool
	EnableRowSelection    bool
	EnablePagination      bool
	EnableSorting         bool
	EnableFiltering       bool
	EnableAddRow          bool

	// ManualPagination puts pagination in server mode. OnPaginationChange is
	// then required and the page count comes from SetPageCount.
	ManualPagination bool
	InitialPageSize  int
	PageSizeOptions  []int

	// KeyField names the identity field of every row (default "id").
	KeyField string

	// NewRowTemplate seeds the draft when add mode starts.
	NewRowTemplate Row

	Gateway Gateway

	// OnDataChange receives the working collection after every successful
	// operation that changed the committed data.
	OnDataChange func(rows []Row)

	// OnPaginationChange is called once per page change in server mode.
	OnPaginationChange func(pageIndex, pageSize int)

	// OnStateChange is called after any observable transition, including
	// loading and error status. It takes no arguments; read State for details.
	OnStateChange func()

	Logger *slog.Logger
}

// withDefaults fills unset fields and validates callback requirements.
func (o Options) withDefaults() (Options, error) {
	if o.ManualPagination && o.OnPaginationChange == nil {
		return o, ErrPaginationCallback
	}
	if o.KeyField == "" {
		o.KeyField = DefaultKeyField
	}
	if o.InitialPageSize <= 0 {
		o.InitialPageSize = DefaultPageSize
	}
	if len(o.PageSizeOptions) == 0 {
		o.PageSizeOptions = slices.Clone(DefaultPageSizeOptions)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	o.NewRowTemplate = o.NewRowTemplate.Clone()
	return o, nil
}
