package table

// Operation ids for the bulk and add flows. Row saves use the row key and
// deletes use DeleteOp.
const (
	OpAll    = "all"
	OpNewRow = "newRow"
)

// RowOp returns the operation id for saving the row with key.
func RowOp(key Key) string {
	return string(key)
}

// DeleteOp returns the operation id for deleting the row with key.
func DeleteOp(key Key) string {
	return "delete-" + string(key)
}

// OpState is the lifecycle position of one operation id.
type OpState int

const (
	OpIdle OpState = iota
	OpLoading
	OpFailed
)

// String returns the lowercase state name.
func (s OpState) String() string {
	switch s {
	case OpLoading:
		return "loading"
	case OpFailed:
		return "error"
	default:
		return "idle"
	}
}

// Status is the observable status of one operation id.
type Status struct {
	Loading bool   `json:"loading"`
	Error   string `json:"error,omitempty"`
}

// State derives the lifecycle state from the status.
func (s Status) State() OpState {
	switch {
	case s.Loading:
		return OpLoading
	case s.Error != "":
		return OpFailed
	default:
		return OpIdle
	}
}

// OperationTracker records loading and error status per operation id.
// Entries are created lazily and keep their last error until the next attempt.
type OperationTracker struct {
	ops map[string]Status
}

// NewOperationTracker creates an empty tracker.
func NewOperationTracker() *OperationTracker {
	return &OperationTracker{ops: make(map[string]Status)}
}

// Begin marks op as loading and clears its previous error.
// Calling Begin on a loading op starts a new attempt.
func (t *OperationTracker) Begin(op string) {
	t.ops[op] = Status{Loading: true}
}

// Succeed marks op idle.
func (t *OperationTracker) Succeed(op string) {
	t.ops[op] = Status{}
}

// Fail marks op failed with msg.
func (t *OperationTracker) Fail(op string, msg string) {
	t.ops[op] = Status{Error: msg}
}

// Clear drops op, discarding any retained error.
func (t *OperationTracker) Clear(op string) {
	delete(t.ops, op)
}

// Reset drops every entry.
func (t *OperationTracker) Reset() {
	t.ops = make(map[string]Status)
}

// Status returns the status of op. Unknown ids are idle.
func (t *OperationTracker) Status(op string) Status {
	return t.ops[op]
}

// All returns a copy of every non-idle entry.
func (t *OperationTracker) All() map[string]Status {
	out := make(map[string]Status, len(t.ops))
	for op, st := range t.ops {
		if st.State() != OpIdle {
			out[op] = st
		}
	}
	return out
}
