package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"apimonitor/internal/utils"
	"apimonitor/models"
)

// CallRepository persists resolved API call records into the api_call
// table, one transaction per record.
type CallRepository struct {
	db     *DB
	logger *utils.Logger
}

// NewCallRepository creates a new call repository
func NewCallRepository(db *DB) *CallRepository {
	return &CallRepository{
		db:     db,
		logger: utils.NewLogger("call-repo"),
	}
}

const insertCallQuery = `
	INSERT INTO api_call (
		request_id, endpoint, http_method_id,
		client_phone_number, debtor_phone_number,
		http_status_code_id, response_time_ms, is_success,
		error_source_id, exception_message, retry_count,
		environment_id, matter_id, session_id,
		file_name, file_type_id, document_type,
		request_payload, request_payload_size,
		response_message, ssl_verified, date_created
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
		$12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22
	)
`

// Insert writes one record inside its own transaction, applying the
// field transforms: exception message truncated to 500 characters or
// NULL, success coerced to 0/1, creation timestamp defaulted to now.
func (r *CallRepository) Insert(ctx context.Context, call *models.APICall, keys *models.ResolvedKeys) error {
	tx, err := r.db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	exceptionMessage := exceptionMessageParam(call.ExceptionMessage)
	isSuccess := successParam(call.IsSuccess)
	created := createdParam(call.CreatedAt)

	requestID := call.RequestID
	if requestID == uuid.Nil {
		requestID = uuid.New()
	}

	_, err = tx.ExecContext(ctx, insertCallQuery,
		requestID,
		call.Endpoint,
		keys.HTTPMethodID,
		nullableString(call.ClientPhoneNumber),
		nullableString(call.DebtorPhoneNumber),
		keys.StatusCodeID,
		call.ResponseTimeMS,
		isSuccess,
		keys.ErrorSourceID,
		exceptionMessage,
		call.RetryCount,
		keys.EnvironmentID,
		nullableString(call.MatterID),
		nullableString(call.SessionID),
		nullableString(call.FileName),
		keys.FileTypeID,
		nullableString(call.DocumentType),
		nullableString(call.RequestPayload),
		call.RequestPayloadSize,
		nullableString(call.ResponseMessage),
		call.SSLVerified,
		created,
	)
	if err != nil {
		return fmt.Errorf("failed to insert api call: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit api call: %w", err)
	}

	return nil
}

// RecentByEndpoint returns the latest persisted calls for an endpoint,
// newest first.
func (r *CallRepository) RecentByEndpoint(ctx context.Context, endpoint string, limit int) ([]*models.APICallRow, error) {
	query := `
		SELECT api_call_id, request_id, endpoint, http_method_id,
		       client_phone_number, debtor_phone_number,
		       http_status_code_id, response_time_ms, is_success,
		       error_source_id, exception_message, retry_count,
		       environment_id, matter_id, date_created
		FROM api_call
		WHERE endpoint = $1
		ORDER BY date_created DESC
		LIMIT $2
	`

	var rows []*models.APICallRow
	if err := r.db.conn.SelectContext(ctx, &rows, query, endpoint, limit); err != nil {
		return nil, fmt.Errorf("failed to get recent calls: %w", err)
	}

	return rows, nil
}

// Failures returns persisted calls marked unsuccessful since the given
// time, newest first.
func (r *CallRepository) Failures(ctx context.Context, since time.Time, limit int) ([]*models.APICallRow, error) {
	query := `
		SELECT api_call_id, request_id, endpoint, http_method_id,
		       client_phone_number, debtor_phone_number,
		       http_status_code_id, response_time_ms, is_success,
		       error_source_id, exception_message, retry_count,
		       environment_id, matter_id, date_created
		FROM api_call
		WHERE is_success = 0 AND date_created >= $1
		ORDER BY date_created DESC
		LIMIT $2
	`

	var rows []*models.APICallRow
	if err := r.db.conn.SelectContext(ctx, &rows, query, since, limit); err != nil {
		return nil, fmt.Errorf("failed to get failed calls: %w", err)
	}

	return rows, nil
}

// exceptionMessageParam truncates the exception message to the column
// bound, NULL when absent.
func exceptionMessageParam(msg string) *string {
	if msg == "" {
		return nil
	}
	truncated := utils.Truncate(msg, models.MaxExceptionMessageLen)
	return &truncated
}

// successParam coerces the optional success flag to 0/1, absent
// meaning failure.
func successParam(isSuccess *bool) int {
	if isSuccess != nil && *isSuccess {
		return 1
	}
	return 0
}

// createdParam defaults a zero creation time to now.
func createdParam(created time.Time) time.Time {
	if created.IsZero() {
		return time.Now()
	}
	return created
}

// nullableString maps the empty string to NULL for optional columns.
func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
