package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{name: "nil error returns empty", err: nil, wantCode: ""},
		{name: "duplicate phone sentinel", err: ErrDuplicatePhone, wantCode: "DB001"},
		{name: "postgres phone constraint", err: errors.New(`ERROR: duplicate key value violates unique constraint "farmers_phone_key" (SQLSTATE 23505)`), wantCode: "DB001"},
		{name: "other unique constraint", err: errors.New("violates unique constraint \"farms_pkey\""), wantCode: "DB002"},
		{name: "foreign key", err: errors.New("violates foreign key constraint \"farmers_district_id_fkey\""), wantCode: "DB003"},
		{name: "connection refused", err: errors.New("dial tcp: connection refused"), wantCode: "DB004"},
		{name: "unknown district", err: fmt.Errorf("%w %q", ErrUnresolvedDistrict, "Nowhere"), wantCode: "VAL001"},
		{name: "unknown organization", err: ErrUnresolvedOrganization, wantCode: "VAL002"},
		{name: "organization required", err: ErrOrganizationRequired, wantCode: "VAL003"},
		{name: "file too large", err: fmt.Errorf("%w: 20971520 bytes exceeds 10485760", ErrFileTooLarge), wantCode: "FILE001"},
		{name: "unreadable file", err: fmt.Errorf("%w: zip: not a valid zip file", ErrFileReadFailure), wantCode: "FILE002"},
		{name: "missing sheet", err: ErrMissingRequiredSheet, wantCode: "FILE003"},
		{name: "no file", err: ErrNoFile, wantCode: "FILE004"},
		{name: "empty file", err: ErrEmptyFile, wantCode: "FILE005"},
		{name: "unsupported type", err: fmt.Errorf("%w: application/pdf", ErrUnsupportedFileType), wantCode: "FILE006"},
		{name: "not ready", err: ErrNotReady, wantCode: "SES001"},
		{name: "busy", err: ErrSessionBusy, wantCode: "SES002"},
		{name: "session expired", err: fmt.Errorf("%w: abc", ErrSessionNotFound), wantCode: "SES003"},
		{name: "farmer gone", err: fmt.Errorf("%w: abc", ErrFarmerNotFound), wantCode: "SES004"},
		{name: "farm gone", err: ErrFarmNotFound, wantCode: "SES004"},
		{name: "nothing staged", err: ErrNothingStaged, wantCode: "SES005"},
		{name: "superseded", err: ErrParseSuperseded, wantCode: "SES006"},
		{name: "limiter", err: ErrTooManyParses, wantCode: "SES007"},
		{name: "cancelled", err: context.Canceled, wantCode: "SES008"},
		{name: "deadline", err: context.DeadlineExceeded, wantCode: "SES009"},
		{name: "wrong step", err: ErrInvalidTransition, wantCode: "SES010"},
		{name: "rate limit", err: errors.New("rate limit exceeded"), wantCode: "RATE001"},
		{name: "unknown error returns default", err: errors.New("some random internal error"), wantCode: "ERR000"},
		{name: "case insensitive matching", err: errors.New("DUPLICATE PHONE"), wantCode: "DB001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError(%v) code = %q, want %q", tt.err, got.Code, tt.wantCode)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(ErrDuplicatePhone)

	expected := "A farmer with this phone number is already registered (Code: DB001). Correct the phone number or remove the row"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}
	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error is not user facing", err: nil, want: false},
		{name: "known error is user facing", err: ErrMissingRequiredSheet, want: true},
		{name: "unknown error is not user facing", err: errors.New("random internal error xyz"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewUserError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if got := NewUserError(nil); got != nil {
			t.Errorf("NewUserError(nil) = %v, want nil", got)
		}
	})

	t.Run("wraps technical error with user message", func(t *testing.T) {
		techErr := fmt.Errorf("sheet read: %w", ErrMissingRequiredSheet)
		userErr := NewUserError(techErr)

		if userErr.Error() != `The workbook has no sheet named "Farmers"` {
			t.Errorf("Error() = %q, want user message", userErr.Error())
		}
		if !errors.Is(userErr, ErrMissingRequiredSheet) {
			t.Error("Unwrap() should expose the original error")
		}
	})
}
