package usererr

import (
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:        "duplicate key maps correctly",
			err:         errors.New("ERROR: duplicate key value violates unique constraint \"products_pkey\" (SQLSTATE 23505)"),
			wantCode:    "DB001",
			wantMessage: "A row with this key already exists",
		},
		{
			name:        "not null maps correctly",
			err:         errors.New("null value in column \"name\" violates not-null constraint"),
			wantCode:    "DB004",
			wantMessage: "A required field is empty",
		},
		{
			name:        "missing relation maps before sheet",
			err:         errors.New(`relation "products" does not exist`),
			wantCode:    "DB010",
			wantMessage: "Database table is missing",
		},
		{
			name:        "missing sheet maps correctly",
			err:         errors.New("sheet Products does not exist"),
			wantCode:    "FILE003",
			wantMessage: "Worksheet does not exist",
		},
		{
			name:        "wrapped row not found maps correctly",
			err:         fmt.Errorf("save %q: %w", "A", errors.New("row not found")),
			wantCode:    "ROW001",
			wantMessage: "This row no longer exists",
		},
		{
			name:        "timeout maps correctly",
			err:         errors.New("context deadline exceeded (timeout)"),
			wantCode:    "DB008",
			wantMessage: "Operation timed out",
		},
		{
			name:        "unknown filter column maps correctly",
			err:         fmt.Errorf("%w: %s", errors.New("unknown column"), "colour"),
			wantCode:    "VAL005",
			wantMessage: "No such column in this table",
		},
		{
			name:        "bad expression maps correctly",
			err:         errors.New("CEL compile error: undeclared reference to 'rw'"),
			wantCode:    "VAL008",
			wantMessage: "Invalid filter expression",
		},
		{
			name:        "unreadable body maps correctly",
			err:         errors.New("invalid request body: unexpected EOF"),
			wantCode:    "REQ005",
			wantMessage: "The request could not be read",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("something strange"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestMapError_CaseInsensitive(t *testing.T) {
	got := MapError(errors.New("DUPLICATE KEY VALUE"))
	if got.Code != "DB001" {
		t.Errorf("MapError() code = %q, want DB001", got.Code)
	}
}

func TestFormatUserError(t *testing.T) {
	got := FormatUserError(errors.New("dial tcp: connection refused"))
	want := "Unable to connect to database (Code: DB006). Please try again in a few moments"
	if got != want {
		t.Errorf("FormatUserError() = %q, want %q", got, want)
	}
	if FormatUserError(nil) != "" {
		t.Error("FormatUserError(nil) should be empty")
	}
}

func TestIsUserFacing(t *testing.T) {
	if IsUserFacing(nil) {
		t.Error("nil should not be user facing")
	}
	if !IsUserFacing(errors.New("rate limit exceeded")) {
		t.Error("rate limit should be user facing")
	}
	if IsUserFacing(errors.New("weird")) {
		t.Error("unknown error should not be user facing")
	}
}

func TestUserError(t *testing.T) {
	if New(nil) != nil {
		t.Fatal("New(nil) should return nil")
	}

	tech := errors.New("duplicate key value")
	ue := New(fmt.Errorf("insert: %w", tech))

	if !errors.Is(ue, tech) {
		t.Error("UserError should unwrap to the technical error")
	}
	if ue.Error() != "A row with this key already exists" {
		t.Errorf("Error() = %q", ue.Error())
	}
	if ue.UserMessage() != "A row with this key already exists (Code: DB001). Use a different key or edit the existing row" {
		t.Errorf("UserMessage() = %q", ue.UserMessage())
	}

	wrapped := fmt.Errorf("gateway: %w", ue)
	if got := MapError(wrapped); got.Code != "DB001" {
		t.Errorf("MapError(wrapped) code = %q, want DB001", got.Code)
	}
}
