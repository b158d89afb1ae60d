package archive

import (
	"context"
	"time"
)

// PayloadRecord is one archived request or response payload, kept in
// full even when the database copy was truncated.
type PayloadRecord struct {
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
	Endpoint  string    `json:"endpoint"`
	Kind      string    `json:"kind"` // "request" or "response"
	Payload   string    `json:"payload"`
	Size      int       `json:"size"`
}

// Archive receives payload records from the monitor. Implementations
// must not block the caller beyond an in-memory append.
type Archive interface {
	Enqueue(rec *PayloadRecord) error
	Shutdown(ctx context.Context) error
}

// NoopArchive discards payloads; the default when archiving is off.
type NoopArchive struct{}

func NewNoopArchive() *NoopArchive {
	return &NoopArchive{}
}

func (a *NoopArchive) Enqueue(rec *PayloadRecord) error {
	return nil
}

func (a *NoopArchive) Shutdown(ctx context.Context) error {
	return nil
}
