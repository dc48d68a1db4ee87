package core

// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support reference.
// When users encounter errors, they can quote the error code to support staff
// for faster diagnosis.
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate phone: A farmer with this phone number is already registered
//	        Patterns: "duplicate phone", "farmers_phone_key"
//
//	DB002 - Unique constraint: This value must be unique but already exists
//	        Patterns: "unique constraint", "violates unique", "duplicate key"
//
//	DB003 - Foreign key: Referenced district or organization does not exist
//	        Patterns: "foreign key constraint", "violates foreign key"
//
//	DB004 - Connection refused: Unable to connect to database
//	DB005 - Connection reset: Database connection was interrupted
//	DB006 - Timeout: Operation timed out
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Unknown district: District name is not in the directory
//	VAL002 - Unknown organization: Organization is not in the directory
//	VAL003 - Organization required: No organization on the row or the import
//	VAL004 - Bad date of birth: The date of birth cannot be read as a date
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: File exceeds the 10 MiB limit
//	FILE002 - Unreadable file: The spreadsheet could not be decoded
//	FILE003 - Missing sheet: No sheet named "Farmers"
//	FILE004 - No file: No file was selected
//	FILE005 - Empty file: The uploaded file is empty
//	FILE006 - Unsupported type: Not an .xlsx or .csv file
//
// # Session Errors (SES001-SES099)
//
//	SES001 - Not ready: No valid farmers to commit
//	SES002 - Busy: The import is parsing or committing
//	SES003 - Session expired: Import session not found
//	SES004 - Record gone: Staged farmer or farm not found
//	SES005 - Nothing staged: Upload and process a file first
//	SES006 - Superseded: A newer file replaced this one while it was read
//	SES007 - System busy: Too many files being processed
//	SES008 - Request cancelled
//	SES009 - Request timeout
//	SES010 - Wrong step: The action does not apply in the import's current state
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Rate limited: Too many requests
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: An unexpected error occurred
//
// # Pattern Matching
//
// Error patterns are matched case-insensitively using strings.Contains.
// The first matching pattern wins, so more specific patterns should be
// defined before general ones.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text (case-insensitive) to user messages.
// First match wins.
var errorPatterns = []errorPattern{
	// =========================================================================
	// Database (DB001-DB006)
	// =========================================================================
	{
		pattern: "duplicate phone",
		msg: UserMessage{
			Message: "A farmer with this phone number is already registered",
			Action:  "Correct the phone number or remove the row",
			Code:    "DB001",
		},
	},
	{
		pattern: "farmers_phone_key",
		msg: UserMessage{
			Message: "A farmer with this phone number is already registered",
			Action:  "Correct the phone number or remove the row",
			Code:    "DB001",
		},
	},
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "This value must be unique but already exists",
			Action:  "Check for duplicate entries in your spreadsheet",
			Code:    "DB002",
		},
	},
	{
		pattern: "violates unique",
		msg: UserMessage{
			Message: "A duplicate value was found",
			Action:  "Check for duplicate entries in your spreadsheet",
			Code:    "DB002",
		},
	},
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A duplicate value was found",
			Action:  "Check for duplicate entries in your spreadsheet",
			Code:    "DB002",
		},
	},
	{
		pattern: "foreign key",
		msg: UserMessage{
			Message: "Referenced district or organization does not exist",
			Action:  "Pick a district and organization from the lists",
			Code:    "DB003",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try again with fewer rows",
			Code:    "DB006",
		},
	},

	// =========================================================================
	// Validation (VAL001-VAL004)
	// =========================================================================
	{
		pattern: "unknown district",
		msg: UserMessage{
			Message: "District is not in the directory",
			Action:  "Use a district name from the Validation Lists sheet",
			Code:    "VAL001",
		},
	},
	{
		pattern: "unknown organization",
		msg: UserMessage{
			Message: "Organization is not in the directory",
			Action:  "Use an existing organization name",
			Code:    "VAL002",
		},
	},
	{
		pattern: "organization required",
		msg: UserMessage{
			Message: "No organization given for this farmer",
			Action:  "Fill the Organization column or choose a default organization for the import",
			Code:    "VAL003",
		},
	},

	{
		pattern: "invalid date of birth",
		msg: UserMessage{
			Message: "The date of birth is not a date",
			Action:  "Enter it as YYYY-MM-DD or DD/MM/YYYY",
			Code:    "VAL004",
		},
	},

	// =========================================================================
	// File (FILE001-FILE006)
	// =========================================================================
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit (10 MiB)",
			Action:  "Split the farmers across several files",
			Code:    "FILE001",
		},
	},
	{
		pattern: "unreadable file",
		msg: UserMessage{
			Message: "The file could not be read",
			Action:  "Save it again as .xlsx or UTF-8 .csv and re-upload",
			Code:    "FILE002",
		},
	},
	{
		pattern: "missing required sheet",
		msg: UserMessage{
			Message: `The workbook has no sheet named "Farmers"`,
			Action:  "Download the template and copy your rows into it",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no file",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a spreadsheet to upload",
			Code:    "FILE004",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Please upload a spreadsheet with farmer rows",
			Code:    "FILE005",
		},
	},
	{
		pattern: "unsupported file type",
		msg: UserMessage{
			Message: "This file type is not supported",
			Action:  "Upload an .xlsx workbook or a .csv file",
			Code:    "FILE006",
		},
	},

	// =========================================================================
	// Session (SES001-SES009)
	// =========================================================================
	{
		pattern: "no valid farmers",
		msg: UserMessage{
			Message: "No valid farmers to import",
			Action:  "Fix the highlighted errors, then try again",
			Code:    "SES001",
		},
	},
	{
		pattern: "session is busy",
		msg: UserMessage{
			Message: "This import is still being processed",
			Action:  "Wait for the current step to finish",
			Code:    "SES002",
		},
	},
	{
		pattern: "session not found",
		msg: UserMessage{
			Message: "Import session not found",
			Action:  "The import may have expired. Please start a new import",
			Code:    "SES003",
		},
	},
	{
		pattern: "not found",
		msg: UserMessage{
			Message: "That record is no longer staged",
			Action:  "Refresh the review page",
			Code:    "SES004",
		},
	},
	{
		pattern: "nothing staged",
		msg: UserMessage{
			Message: "There is nothing to review yet",
			Action:  "Upload and process a file first",
			Code:    "SES005",
		},
	},
	{
		pattern: "superseded",
		msg: UserMessage{
			Message: "A newer file replaced this one",
			Action:  "Review the newest file",
			Code:    "SES006",
		},
	},
	{
		pattern: "too many files",
		msg: UserMessage{
			Message: "System is busy processing other files",
			Action:  "Please wait a moment and try again",
			Code:    "SES007",
		},
	},
	{
		pattern: "invalid session transition",
		msg: UserMessage{
			Message: "That step is not available right now",
			Action:  "Refresh the review page",
			Code:    "SES010",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "SES008",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or check your connection",
			Code:    "SES009",
		},
	},

	// =========================================================================
	// Rate Limiting (RATE001)
	// =========================================================================
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// If no pattern matches, the ERR000 fallback is returned.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError formats err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error (for logs) with its user message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
