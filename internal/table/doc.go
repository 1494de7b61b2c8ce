// Package table provides the editable-table controller.
//
// The controller is the state machine behind an editable grid. It is
// independent of any renderer or transport and can be driven by HTTP handlers,
// a terminal UI, or tests without modification.
//
// # Architecture
//
// A [Controller] composes four single-purpose components:
//
//   - [RowStore]: the working row collection plus the last committed snapshot
//     used as the rollback target.
//   - [EditSessions]: which rows currently accept input, honouring the
//     single-row or multi-row editing policy.
//   - [OperationTracker]: loading and error status per operation id (row key,
//     "all", "newRow", "delete-<key>").
//   - [Pagination]: page position and size in client or server mode.
//
// Persistence is optional and goes through a host-supplied [Gateway]. Save
// operations without a gateway commit locally; add and delete require one.
//
// # Gateway calls
//
// Every gateway-backed operation runs through one helper that begins tracking,
// releases the controller lock while awaiting the gateway, classifies the
// outcome (success, reported failure, returned error or panic), mutates the
// RowStore, settles the tracker, and finally notifies the host:
//
//	ctrl, _ := table.New(rows, table.Options{
//	    EnableEditing: true,
//	    Gateway: table.Gateway{
//	        SaveRow: store.SaveRow,
//	    },
//	    OnDataChange: func(rows []table.Row) { publish(rows) },
//	})
//	ctrl.StartEditing("A")
//	ctrl.UpdateField("A", "name", "y")
//	ctrl.SaveRow(ctx, "A")
//
// Gateway failures never escape as Go errors. They end in an operation status
// with Error set, and the affected rows stay editable for a retry. Method
// errors are reserved for caller mistakes such as [ErrRowNotFound].
//
// # Concurrency
//
// A Controller is safe for concurrent use. All state changes happen under one
// mutex; the lock is never held while a gateway call is outstanding or while a
// host callback runs. Results that arrive after [Controller.Close] or after a
// reseed via [Controller.Replace] are discarded silently.
package table
