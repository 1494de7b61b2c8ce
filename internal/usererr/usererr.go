// Package usererr maps technical errors to user-facing messages with codes
// for support reference.
//
// # Error Codes Reference
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate key: A row with this key already exists
//	        Patterns: "duplicate key"
//	DB002 - Unique constraint: This value must be unique but already exists
//	        Patterns: "unique constraint", "violates unique"
//	DB003 - Foreign key: Referenced record does not exist
//	        Patterns: "violates foreign key"
//	DB004 - Not null: A required field is empty
//	        Patterns: "violates not-null"
//	DB005 - Type mismatch: A value does not match the column type
//	        Patterns: "invalid input syntax"
//	DB006 - Connection refused: Unable to connect to database
//	        Patterns: "connection refused"
//	DB007 - Connection reset: Database connection was interrupted
//	        Patterns: "connection reset"
//	DB008 - Timeout: Operation timed out
//	        Patterns: "timeout"
//	DB009 - Deadlock: Database was busy with conflicting operations
//	        Patterns: "deadlock"
//	DB010 - Missing relation: Database table is missing
//	        Patterns: "relation"
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Invalid number: Invalid number format
//	         Patterns: "invalid number"
//	VAL002 - Required field: Required field is empty
//	         Patterns: "required field"
//	VAL003 - Invalid option: Value is not in the allowed list
//	         Patterns: "must be one of"
//	VAL004 - Invalid boolean: Value must be yes or no
//	         Patterns: "must be yes/no"
//	VAL005 - Unknown column: No such column in this table
//	         Patterns: "unknown column"
//	VAL006 - Operator: Unsupported filter operator
//	         Patterns: "unsupported filter operator"
//	VAL007 - Filter value: Invalid filter value
//	         Patterns: "invalid filter value"
//	VAL008 - Expression: Invalid filter expression
//	         Patterns: "filter expression", "cel compile error"
//	VAL009 - Sort: This column cannot be sorted
//	         Patterns: "not sortable"
//	VAL010 - Page size: Page size must be positive
//	         Patterns: "page size"
//	VAL011 - Read-only: This column cannot be edited
//	         Patterns: "read-only"
//
// # Row Errors (ROW001-ROW099)
//
//	ROW001 - Row not found: This row no longer exists
//	         Patterns: "row not found", "no rows in result set"
//	ROW002 - Editing disabled: Editing is turned off for this table
//	         Patterns: "editing is disabled"
//	ROW003 - Adding disabled: Adding rows is turned off for this table
//	         Patterns: "adding rows is disabled"
//	ROW004 - No draft: There is no new row in progress
//	         Patterns: "no row is being added"
//	ROW005 - Missing key: A row is missing its key
//	         Patterns: "missing its key"
//	ROW006 - Duplicate key: Two rows share the same key
//	         Patterns: "duplicate row key"
//	ROW007 - Selection disabled: Row selection is turned off for this table
//	         Patterns: "row selection is disabled"
//
// # Spreadsheet Errors (FILE001-FILE099)
//
//	FILE001 - Not found: Spreadsheet file not found
//	          Patterns: "no such file"
//	FILE002 - Permission: Spreadsheet file cannot be written
//	          Patterns: "permission denied"
//	FILE003 - Sheet: Worksheet does not exist
//	          Patterns: "does not exist"
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Cancelled: Request was cancelled
//	         Patterns: "context canceled"
//	REQ002 - Deadline: Request timed out
//	         Patterns: "context deadline exceeded"
//	REQ003 - Table not found: The specified table does not exist
//	         Patterns: "table not found"
//	REQ004 - Rate limited: Too many requests
//	         Patterns: "rate limit"
//	REQ005 - Bad body: The request could not be read
//	         Patterns: "invalid request body"
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: An unexpected error occurred
//
// Patterns are matched case-insensitively with strings.Contains. The first
// matching pattern wins, so specific patterns come before general ones.
package usererr

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // what happened
	Action  string `json:"action"`  // what to do about it
	Code    string `json:"code"`    // support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Database constraints
	{"duplicate key", UserMessage{"A row with this key already exists", "Use a different key or edit the existing row", "DB001"}},
	{"unique constraint", UserMessage{"This value must be unique but already exists", "Choose a different value", "DB002"}},
	{"violates unique", UserMessage{"A duplicate value was found", "Choose a different value", "DB002"}},
	{"violates foreign key", UserMessage{"Referenced record does not exist", "Create the referenced record first", "DB003"}},
	{"violates not-null", UserMessage{"A required field is empty", "Fill in every required field", "DB004"}},
	{"invalid input syntax", UserMessage{"A value does not match the column type", "Check numbers and yes/no fields", "DB005"}},

	// Database connectivity
	{"connection refused", UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB006"}},
	{"connection reset", UserMessage{"Database connection was interrupted", "Please try again", "DB007"}},
	{"timeout", UserMessage{"Operation timed out", "Please try again", "DB008"}},
	{"deadlock", UserMessage{"Database was busy with conflicting operations", "Please try again", "DB009"}},
	{"relation", UserMessage{"Database table is missing", "Check the configured table name", "DB010"}},

	// Validation
	{"invalid number", UserMessage{"Invalid number format", "Use digits with an optional decimal point", "VAL001"}},
	{"required field", UserMessage{"Required field is empty", "Fill in every required field", "VAL002"}},
	{"must be one of", UserMessage{"Value is not in the allowed list", "Pick one of the offered options", "VAL003"}},
	{"must be yes/no", UserMessage{"Value must be yes or no", "Use yes/no, true/false, or 1/0", "VAL004"}},
	{"unknown column", UserMessage{"No such column in this table", "Check the column name", "VAL005"}},
	{"unsupported filter operator", UserMessage{"Unsupported filter operator", "Use contains, eq, starts, ends, gt, gte, lt, lte or in", "VAL006"}},
	{"invalid filter value", UserMessage{"Invalid filter value", "Check the value entered in the filter", "VAL007"}},
	{"filter expression", UserMessage{"Invalid filter expression", "Check the expression syntax", "VAL008"}},
	{"cel compile error", UserMessage{"Invalid filter expression", "Check the expression syntax", "VAL008"}},
	{"not sortable", UserMessage{"This column cannot be sorted", "Sort by a different column", "VAL009"}},
	{"page size", UserMessage{"Page size must be positive", "Pick one of the offered page sizes", "VAL010"}},
	{"read-only", UserMessage{"This column cannot be edited", "Edit a different column", "VAL011"}},

	// Rows
	{"row not found", UserMessage{"This row no longer exists", "Refresh the table", "ROW001"}},
	{"no rows in result set", UserMessage{"This row no longer exists", "Refresh the table", "ROW001"}},
	{"editing is disabled", UserMessage{"Editing is turned off for this table", "Ask an administrator to enable editing", "ROW002"}},
	{"adding rows is disabled", UserMessage{"Adding rows is turned off for this table", "Ask an administrator to enable adding rows", "ROW003"}},
	{"no row is being added", UserMessage{"There is no new row in progress", "Click Add Row first", "ROW004"}},
	{"missing its key", UserMessage{"A row is missing its key", "Make sure every row has a key value", "ROW005"}},
	{"duplicate row key", UserMessage{"Two rows share the same key", "Make sure every key is unique", "ROW006"}},
	{"row selection is disabled", UserMessage{"Row selection is turned off for this table", "Ask an administrator to enable row selection", "ROW007"}},

	// Spreadsheet
	{"no such file", UserMessage{"Spreadsheet file not found", "Check the configured workbook path", "FILE001"}},
	{"permission denied", UserMessage{"Spreadsheet file cannot be written", "Close the file in other programs and check permissions", "FILE002"}},
	{"does not exist", UserMessage{"Worksheet does not exist", "Check the configured sheet name", "FILE003"}},

	// Requests
	{"context canceled", UserMessage{"Request was cancelled", "Please try again", "REQ001"}},
	{"context deadline exceeded", UserMessage{"Request timed out", "Please try again", "REQ002"}},
	{"table not found", UserMessage{"The specified table does not exist", "Verify the table name is correct", "REQ003"}},
	{"rate limit", UserMessage{"Too many requests", "Please wait a moment before trying again", "REQ004"}},
	{"invalid request body", UserMessage{"The request could not be read", "Send a valid JSON body", "REQ005"}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. A wrapped
// *UserError keeps its own message; otherwise the first matching pattern
// wins, falling back to ERR000.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var ue *UserError
	if errors.As(err, &ue) {
		return ue.User
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// Format renders a message as "Message (Code: XXX). Action".
func (m UserMessage) Format() string {
	if m.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", m.Message, m.Code, m.Action)
}

// FormatUserError maps err and formats it for display.
func FormatUserError(err error) string {
	return MapError(err).Format()
}

// IsUserFacing reports whether err matches a known pattern rather than the
// generic fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with the message shown to users.
type UserError struct {
	Technical error       // original error, for logging
	User      UserMessage // what the user sees
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// UserMessage returns the formatted message. The table controller prefers it
// over Error when a gateway call fails unexpectedly.
func (e *UserError) UserMessage() string {
	return e.User.Format()
}

// New maps err and wraps it. Returns nil if err is nil.
func New(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{Technical: err, User: MapError(err)}
}
