package core

// error_messages.go maps technical errors to user-facing messages with a code
// support staff can look up.
//
// # Error Codes Reference
//
// Database (DB001-DB099):
//
//	DB001 - Duplicate key            "duplicate key"
//	DB002 - Unique constraint        "unique constraint", "violates unique"
//	DB003 - Foreign key              "foreign key constraint", "violates foreign key"
//	DB004 - Connection refused       "connection refused"
//	DB005 - Connection reset         "connection reset"
//	DB006 - Timeout                  "timeout"
//	DB007 - Deadlock                 "deadlock"
//
// Validation (VAL001-VAL099):
//
//	VAL001 - Invalid date            "invalid date"
//	VAL002 - Invalid number          "invalid decimal", "invalid integer"
//	VAL003 - Invalid email           "invalid email"
//	VAL004 - Missing column          "missing required column"
//	VAL005 - Invalid status          "invalid status"
//
// File (FILE001-FILE099):
//
//	FILE001 - File too large         "file too large", "request body too large"
//	FILE002 - Invalid CSV            "invalid csv"
//	FILE003 - Invalid workbook       "invalid xlsx"
//	FILE004 - No file                "no file uploaded"
//	FILE005 - No data rows           "no data rows"
//	FILE006 - Unsupported format     "unsupported file format"
//	FILE007 - Duplicate file         "already been imported"
//
// Import (IMP001-IMP099):
//
//	IMP001 - System busy             "too many concurrent uploads"
//	IMP002 - Session not found       "not found"
//	IMP003 - Request cancelled       "context canceled"
//	IMP004 - Request timeout         "context deadline exceeded"
//
// Access (AUTH001-AUTH099):
//
//	AUTH001 - Missing tenant         "missing tenant"
//	AUTH002 - Invalid API key        "invalid api key"
//
// Rate limiting:
//
//	RATE001 - Rate limited           "rate limit"
//
// ERR000 is the fallback when nothing matches; the original error is in the logs.
//
// Patterns are matched case-insensitively with strings.Contains and the first
// match wins, so specific patterns come before general ones.

import (
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// =========================================================================
	// Database Constraint Errors
	// =========================================================================
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this ID already exists",
			Action:  "Check the file for rows that repeat an existing record",
			Code:    "DB001",
		},
	},
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "This value must be unique but already exists",
			Action:  "Check for duplicate entries in your file",
			Code:    "DB002",
		},
	},
	{
		pattern: "violates unique",
		msg: UserMessage{
			Message: "A duplicate value was found",
			Action:  "Review your data for duplicate key values",
			Code:    "DB002",
		},
	},
	{
		pattern: "foreign key constraint",
		msg: UserMessage{
			Message: "Referenced record does not exist",
			Action:  "Please try the import again",
			Code:    "DB003",
		},
	},
	{
		pattern: "violates foreign key",
		msg: UserMessage{
			Message: "Referenced record does not exist",
			Action:  "Please try the import again",
			Code:    "DB003",
		},
	},

	// =========================================================================
	// Database Connection Errors
	// =========================================================================
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
			Action:  "Try importing a smaller file or try again later",
			Code:    "DB006",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},

	// =========================================================================
	// Validation Errors
	// =========================================================================
	{
		pattern: "invalid date",
		msg: UserMessage{
			Message: "Invalid date format detected",
			Action:  "Use yyyy-MM-dd HH:mm or yyyy-MM-dd",
			Code:    "VAL001",
		},
	},
	{
		pattern: "invalid decimal",
		msg: UserMessage{
			Message: "Invalid number format detected",
			Action:  "Use a plain decimal such as 19.99",
			Code:    "VAL002",
		},
	},
	{
		pattern: "invalid integer",
		msg: UserMessage{
			Message: "Invalid number format detected",
			Action:  "Quantities must be whole numbers",
			Code:    "VAL002",
		},
	},
	{
		pattern: "invalid email",
		msg: UserMessage{
			Message: "Invalid email address",
			Action:  "Check the CustomerEmail column",
			Code:    "VAL003",
		},
	},
	{
		pattern: "missing required column",
		msg: UserMessage{
			Message: "Required column is missing from the file",
			Action:  "Check that all required columns are present in your file",
			Code:    "VAL004",
		},
	},
	{
		pattern: "invalid status",
		msg: UserMessage{
			Message: "Order status is not in the allowed list",
			Action:  "Use Pending, Processing, Shipped, Delivered or Cancelled",
			Code:    "VAL005",
		},
	},

	// =========================================================================
	// File Errors
	// =========================================================================
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE001",
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE001",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Ensure file is comma-separated with a header row",
			Code:    "FILE002",
		},
	},
	{
		pattern: "invalid xlsx",
		msg: UserMessage{
			Message: "File is not a valid Excel workbook",
			Action:  "Save the file as .xlsx and try again",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no file uploaded",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a CSV or XLSX file to import",
			Code:    "FILE004",
		},
	},
	{
		pattern: "no data rows",
		msg: UserMessage{
			Message: "The uploaded file has no data rows",
			Action:  "Please upload a file with at least one order line",
			Code:    "FILE005",
		},
	},
	{
		pattern: "unsupported file format",
		msg: UserMessage{
			Message: "File format is not supported",
			Action:  "Upload a .csv or .xlsx file",
			Code:    "FILE006",
		},
	},
	{
		pattern: "already been imported",
		msg: UserMessage{
			Message: "This file has already been imported",
			Action:  "Roll back the earlier import first to import it again",
			Code:    "FILE007",
		},
	},

	// =========================================================================
	// Import Errors
	// =========================================================================
	{
		pattern: "too many concurrent uploads",
		msg: UserMessage{
			Message: "System is busy processing other imports",
			Action:  "Please wait a moment and try again",
			Code:    "IMP001",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "IMP003",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try importing a smaller file or check your connection",
			Code:    "IMP004",
		},
	},

	// =========================================================================
	// Access Errors
	// =========================================================================
	{
		pattern: "missing tenant",
		msg: UserMessage{
			Message: "No tenant was identified for this request",
			Action:  "Sign in again",
			Code:    "AUTH001",
		},
	},
	{
		pattern: "invalid api key",
		msg: UserMessage{
			Message: "The API key is missing or invalid",
			Action:  "Check the X-API-Key header",
			Code:    "AUTH002",
		},
	},

	// =========================================================================
	// Rate Limiting
	// =========================================================================
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},

	// "not found" is broad, so it goes last.
	{
		pattern: "not found",
		msg: UserMessage{
			Message: "Import session not found",
			Action:  "Refresh the import history and try again",
			Code:    "IMP002",
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
// The first pattern contained in the lowercased error text wins; ERR000 is
// returned when nothing matches.
//
// Example:
//
//	err := errors.New("duplicate key violation")
//	msg := MapError(err)
//	// msg.Code == "DB001"
//	// msg.Message == "A record with this ID already exists"
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
