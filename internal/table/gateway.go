package table

import (
	"context"
	"errors"
	"fmt"
)

// Fallback messages used when a gateway reports failure without a reason.
const (
	MsgSaveFailed    = "Failed to save"
	MsgSaveAllFailed = "Failed to save all rows"
	MsgAddFailed     = "Failed to add row"
	MsgDeleteFailed  = "Failed to delete row"
	MsgUnexpected    = "An error occurred"
)

// Result is the uniform wire contract of every gateway call.
// Error is shown to the user verbatim when present.
type Result[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// RowResult is returned by single-row gateway calls.
type RowResult = Result[Row]

// RowsResult is returned by the save-all gateway call.
type RowsResult = Result[[]Row]

// Gateway persists edits remotely. Every operation is optional.
//
// Without SaveRow or SaveAll the controller commits locally. Without AddRow
// or DeleteRow the corresponding operation is a no-op, since only a backend can
// assign a new identity or confirm a removal.
//
// A returned error or a panic is treated as an unexpected failure; the
// controller maps it to a message and never propagates it.
type Gateway struct {
	SaveRow   func(ctx context.Context, row Row, index int) (RowResult, error)
	SaveAll   func(ctx context.Context, rows []Row) (RowsResult, error)
	AddRow    func(ctx context.Context, draft Row) (RowResult, error)
	DeleteRow func(ctx context.Context, row Row, index int) (RowResult, error)
}

// gatewayOp describes one gateway-backed operation for runGateway.
type gatewayOp[T any] struct {
	id       string
	fallback string

	// prepare runs under the controller lock. It validates the request and
	// returns the call to make, or a nil call when there is nothing to await.
	prepare func() (func(context.Context) (Result[T], error), error)

	// apply runs under the lock after a successful call, before the tracker
	// settles. It mutates the RowStore and reports whether the host should be
	// notified. A non-empty failMsg turns the success into a failure.
	apply func(res Result[T]) (notify bool, failMsg string)
}

// runGateway is the single path for every gateway-backed operation.
func runGateway[T any](ctx context.Context, c *Controller, op gatewayOp[T]) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	call, err := op.prepare()
	if err != nil || call == nil {
		c.mu.Unlock()
		return err
	}
	c.ops.Begin(op.id)
	gen := c.generation
	c.mu.Unlock()
	c.stateChanged()

	res, callErr := invoke(ctx, call)

	c.mu.Lock()
	if c.closed || c.generation != gen {
		c.mu.Unlock()
		c.log.Debug("discarding stale gateway result", "op", op.id)
		return nil
	}

	msg := classify(res.Success, res.Error, callErr, op.fallback)
	notify := false
	if msg == "" {
		var failMsg string
		notify, failMsg = op.apply(res)
		if failMsg != "" {
			msg = failMsg
		}
	}
	if msg != "" {
		c.ops.Fail(op.id, msg)
		c.mu.Unlock()
		c.log.Warn("gateway operation failed", "op", op.id, "error", msg, "cause", callErr)
		c.stateChanged()
		return nil
	}

	c.ops.Succeed(op.id)
	rows := c.store.Rows()
	c.mu.Unlock()

	c.log.Debug("gateway operation succeeded", "op", op.id)
	if notify {
		c.dataChanged(rows)
	}
	c.stateChanged()
	return nil
}

// invoke calls the gateway, turning a panic into an error.
func invoke[T any](ctx context.Context, call func(context.Context) (Result[T], error)) (res Result[T], err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("gateway panic: %v", r)
		}
	}()
	return call(ctx)
}

// classify returns the user-facing failure message, or "" on success.
func classify(success bool, reported string, callErr error, fallback string) string {
	if callErr != nil {
		return exceptionMessage(callErr)
	}
	if success {
		return ""
	}
	if reported != "" {
		return reported
	}
	return fallback
}

// exceptionMessage maps an unexpected error to a message for display.
func exceptionMessage(err error) string {
	var reported interface{ UserMessage() string }
	if errors.As(err, &reported) && reported.UserMessage() != "" {
		return reported.UserMessage()
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return MsgUnexpected
}
