package models

import (
	"time"

	"github.com/google/uuid"
)

// Categorical defaults and column bounds shared by the builders and
// the writer.
const (
	// DefaultEnvironment is assumed when a record carries no
	// environment tag.
	DefaultEnvironment = "Dev"

	// SentinelName is the reference-table row substituted for absent
	// error source and file type values.
	SentinelName = "N/A"

	// DefaultHTTPMethod is assumed for request records that do not
	// name one.
	DefaultHTTPMethod = "POST"

	// MaxExceptionMessageLen bounds the exception_message column.
	MaxExceptionMessageLen = 500

	// MaxPayloadLen bounds stored request payloads. Anything longer is
	// cut and marked with TruncationMarker.
	MaxPayloadLen = 100000

	// TruncationMarker is appended to payloads cut at MaxPayloadLen.
	TruncationMarker = "... [truncated]"
)

// APICall is one request or response event bound for the api_call
// table. Optional fields are pointers or zero values; categorical
// fields carry their human-readable form here and are resolved to
// surrogate keys by the worker just before insert. A record is
// immutable once submitted.
type APICall struct {
	RequestID uuid.UUID `json:"request_id"`

	// Route
	Endpoint   string `json:"endpoint"`
	HTTPMethod string `json:"http_method,omitempty"`

	// Correlation
	ClientPhoneNumber string `json:"client_phone_number,omitempty"`
	DebtorPhoneNumber string `json:"debtor_phone_number,omitempty"`
	MatterID          string `json:"matter_id,omitempty"`
	SessionID         string `json:"session_id,omitempty"`

	// Outcome
	StatusCode     *int  `json:"status_code,omitempty"`
	ResponseTimeMS *int  `json:"response_time_ms,omitempty"`
	IsSuccess      *bool `json:"is_success,omitempty"`

	// Failure detail
	ErrorSource      string `json:"error_source,omitempty"`
	ExceptionThrown  bool   `json:"exception_thrown,omitempty"`
	ExceptionMessage string `json:"exception_message,omitempty"`
	RetryCount       int    `json:"retry_count,omitempty"`
	SSLVerified      *bool  `json:"ssl_verified,omitempty"`

	// File metadata
	FileUploaded bool   `json:"file_uploaded,omitempty"`
	FileName     string `json:"file_name,omitempty"`
	FileType     string `json:"file_type,omitempty"`
	DocumentType string `json:"document_type,omitempty"`

	// Environment tag, "Dev" when empty
	Environment string `json:"environment,omitempty"`

	// Payloads. The stored request payload is truncated at
	// MaxPayloadLen; RequestPayloadSize keeps the pre-truncation size.
	RequestPayload     string `json:"request_payload,omitempty"`
	RequestPayloadSize int    `json:"request_payload_size,omitempty"`
	ResponsePayload    string `json:"response_payload,omitempty"`
	ResponseMessage    string `json:"response_message,omitempty"`

	// Timestamps
	RequestStart time.Time `json:"request_start,omitempty"`
	RequestEnd   time.Time `json:"request_end,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
}

// ResolvedKeys carries the surrogate keys the lookup resolver derived
// for one APICall. Nil means the value could not be resolved and the
// column is inserted as NULL.
type ResolvedKeys struct {
	HTTPMethodID  *int
	StatusCodeID  *int
	ErrorSourceID *int
	EnvironmentID *int
	FileTypeID    *int
}
