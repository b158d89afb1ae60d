package models

import (
	"time"

	"github.com/google/uuid"
)

// APICallRow is a persisted api_call row as read back from the event
// table, surrogate keys and all.
type APICallRow struct {
	ID                int64     `db:"api_call_id"`
	RequestID         uuid.UUID `db:"request_id"`
	Endpoint          string    `db:"endpoint"`
	HTTPMethodID      *int      `db:"http_method_id"`
	ClientPhoneNumber *string   `db:"client_phone_number"`
	DebtorPhoneNumber *string   `db:"debtor_phone_number"`
	StatusCodeID      *int      `db:"http_status_code_id"`
	ResponseTimeMS    *int      `db:"response_time_ms"`
	IsSuccess         int       `db:"is_success"`
	ErrorSourceID     *int      `db:"error_source_id"`
	ExceptionMessage  *string   `db:"exception_message"`
	RetryCount        int       `db:"retry_count"`
	EnvironmentID     *int      `db:"environment_id"`
	MatterID          *string   `db:"matter_id"`
	DateCreated       time.Time `db:"date_created"`
}
