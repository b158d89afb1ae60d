package apimonitor

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"apimonitor/internal/utils"
	"apimonitor/models"
)

// RequestOptions carries the optional fields of a request event.
type RequestOptions struct {
	HTTPMethod   string
	MatterID     string
	PhoneNumber  string
	SessionID    string
	FileName     string
	FileType     string
	DocumentType string
	Environment  string

	// Payload is the outbound request body: a string, or any
	// structured value, which is serialized to JSON.
	Payload interface{}
}

// ResponseOptions carries the optional fields of a response event.
type ResponseOptions struct {
	HTTPMethod  string
	MatterID    string
	PhoneNumber string
	SessionID   string
	Environment string
	ErrorSource string

	// Payload is the response body; known envelope shapes yield a
	// human-readable result message, best-effort.
	Payload interface{}

	// IsSuccess overrides the inferred success flag when set.
	IsSuccess *bool

	ExceptionThrown  bool
	ExceptionMessage string
	SSLVerified      *bool
	RetryCount       int
}

// BuildRequestRecord assembles a request event: start timestamp,
// file-uploaded flag from file-name presence, payload serialized and
// truncated at the 100000-character bound with a marker appended.
func BuildRequestRecord(endpoint, clientID string, opts RequestOptions) *models.APICall {
	method := opts.HTTPMethod
	if method == "" {
		method = models.DefaultHTTPMethod
	}

	call := &models.APICall{
		RequestID:         uuid.New(),
		Endpoint:          endpoint,
		HTTPMethod:        method,
		ClientPhoneNumber: clientID,
		DebtorPhoneNumber: opts.PhoneNumber,
		MatterID:          opts.MatterID,
		SessionID:         opts.SessionID,
		FileUploaded:      opts.FileName != "",
		FileName:          opts.FileName,
		FileType:          opts.FileType,
		DocumentType:      opts.DocumentType,
		Environment:       opts.Environment,
		RequestStart:      time.Now(),
	}

	if raw, ok := serializePayload(opts.Payload); ok {
		call.RequestPayloadSize = len(raw)
		call.RequestPayload = truncatePayload(raw)
	}

	return call
}

// BuildResponseRecord assembles a response event. The result message
// is extracted from known envelope shapes best-effort; when the
// envelope footer reports an exception it overrides the caller's
// exception fields, matching what the service actually returned.
// Success defaults to statusCode == 200 with no exception thrown.
func BuildResponseRecord(endpoint, clientID string, statusCode, responseTimeMS int, opts ResponseOptions) *models.APICall {
	call := &models.APICall{
		RequestID:         uuid.New(),
		Endpoint:          endpoint,
		HTTPMethod:        opts.HTTPMethod,
		ClientPhoneNumber: clientID,
		DebtorPhoneNumber: opts.PhoneNumber,
		MatterID:          opts.MatterID,
		SessionID:         opts.SessionID,
		Environment:       opts.Environment,
		StatusCode:        utils.IntPtr(statusCode),
		ResponseTimeMS:    utils.IntPtr(responseTimeMS),
		ErrorSource:       opts.ErrorSource,
		ExceptionThrown:   opts.ExceptionThrown,
		ExceptionMessage:  opts.ExceptionMessage,
		SSLVerified:       opts.SSLVerified,
		RetryCount:        opts.RetryCount,
		RequestEnd:        time.Now(),
	}

	if raw, ok := serializePayload(opts.Payload); ok {
		call.ResponsePayload = truncatePayload(raw)

		if extracted, ok := extractResponseMessage(raw); ok {
			call.ResponseMessage = extracted.Message
			if extracted.ExceptionThrown != nil {
				call.ExceptionThrown = *extracted.ExceptionThrown
			}
			if extracted.ExceptionMessage != "" {
				call.ExceptionMessage = extracted.ExceptionMessage
			}
		}
	}

	if opts.IsSuccess != nil {
		call.IsSuccess = opts.IsSuccess
	} else {
		call.IsSuccess = utils.BoolPtr(statusCode == 200 && !call.ExceptionThrown)
	}

	return call
}

// LogRequest builds and submits a request event, returning its
// request id for correlation. Fire-and-forget.
func (m *Monitor) LogRequest(endpoint, clientID string, opts RequestOptions) uuid.UUID {
	call := BuildRequestRecord(endpoint, clientID, opts)

	if raw, ok := serializePayload(opts.Payload); ok {
		m.archivePayload(call, "request", raw)
	}

	m.Submit(call)
	return call.RequestID
}

// LogResponse builds and submits a response event, returning its
// request id for correlation. Fire-and-forget.
func (m *Monitor) LogResponse(endpoint, clientID string, statusCode, responseTimeMS int, opts ResponseOptions) uuid.UUID {
	call := BuildResponseRecord(endpoint, clientID, statusCode, responseTimeMS, opts)

	if raw, ok := serializePayload(opts.Payload); ok {
		m.archivePayload(call, "response", raw)
	}

	m.Submit(call)
	return call.RequestID
}

// LogRequest submits a request event through the default monitor.
// Configuration failures are logged, never raised.
func LogRequest(endpoint, clientID string, opts RequestOptions) {
	m, err := Default()
	if err != nil {
		pkgLogger.Error("Monitor unavailable, dropping request record", "error", err)
		return
	}
	m.LogRequest(endpoint, clientID, opts)
}

// LogResponse submits a response event through the default monitor.
// Configuration failures are logged, never raised.
func LogResponse(endpoint, clientID string, statusCode, responseTimeMS int, opts ResponseOptions) {
	m, err := Default()
	if err != nil {
		pkgLogger.Error("Monitor unavailable, dropping response record", "error", err)
		return
	}
	m.LogResponse(endpoint, clientID, statusCode, responseTimeMS, opts)
}

// Shutdown drains and stops the default monitor, if one was started.
func Shutdown(ctx context.Context) error {
	if defaultMonitor == nil {
		return nil
	}
	return defaultMonitor.Shutdown(ctx)
}

var pkgLogger = utils.NewLogger("api-monitor")

// serializePayload turns a caller-supplied payload into text. Strings
// pass through; anything else is marshaled to JSON. Unserializable
// payloads are skipped, never fatal.
func serializePayload(payload interface{}) (string, bool) {
	switch v := payload.(type) {
	case nil:
		return "", false
	case string:
		if v == "" {
			return "", false
		}
		return v, true
	case []byte:
		if len(v) == 0 {
			return "", false
		}
		return string(v), true
	default:
		data, err := json.Marshal(v)
		if err != nil {
			pkgLogger.Warn("Failed to serialize payload, skipping", "error", err)
			return "", false
		}
		return string(data), true
	}
}

// truncatePayload cuts oversized payloads and marks the cut.
func truncatePayload(raw string) string {
	if len(raw) <= models.MaxPayloadLen {
		return raw
	}
	return raw[:models.MaxPayloadLen] + models.TruncationMarker
}
