package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"selsup/crptgateway/internal/core/audit"
)

// DB is the subset of *pgxpool.Pool the repository uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Repository implements audit.Repository on PostgreSQL.
type Repository struct {
	db  DB
	log *slog.Logger
}

var _ audit.Repository = (*Repository)(nil)

// NewRepository creates a PostgreSQL audit repository. log may be nil.
func NewRepository(db DB, log *slog.Logger) *Repository {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Repository{db: db, log: log}
}

const insertRecord = `
	INSERT INTO crpt_exchange_log (
		correlation_id, provider, operation, request_method, request_url,
		request_headers, request_body, response_status, response_headers,
		response_body, document_id, duration_ms, error_message
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
`

const selectRecords = `
	SELECT id, correlation_id, provider, operation, request_method, request_url,
	       request_headers, request_body, response_status, response_headers,
	       response_body, document_id, duration_ms, error_message, created_at
	FROM crpt_exchange_log
`

// Save persists one exchange.
func (r *Repository) Save(ctx context.Context, record audit.Record) error {
	requestHeaders, err := marshalHeaders(record.RequestHeaders)
	if err != nil {
		return fmt.Errorf("marshal request headers: %w", err)
	}
	responseHeaders, err := marshalHeaders(record.ResponseHeaders)
	if err != nil {
		return fmt.Errorf("marshal response headers: %w", err)
	}

	_, err = r.db.Exec(ctx, insertRecord,
		record.CorrelationID,
		record.Provider,
		record.Operation,
		record.RequestMethod,
		record.RequestURL,
		requestHeaders,
		nullableJSON(record.RequestBody),
		record.ResponseStatus,
		responseHeaders,
		nullableJSON(record.ResponseBody),
		record.DocumentID,
		record.DurationMs,
		record.ErrorMessage,
	)
	if err != nil {
		r.log.Error("failed to insert audit record",
			"correlation_id", record.CorrelationID,
			"operation", record.Operation,
			"error", err,
		)
		return fmt.Errorf("insert audit record: %w", err)
	}

	r.log.Debug("audit record saved",
		"correlation_id", record.CorrelationID,
		"document_id", record.DocumentID,
		"response_status", record.ResponseStatus,
	)
	return nil
}

// FindByCorrelationID returns every exchange of one inbound request, oldest first.
func (r *Repository) FindByCorrelationID(ctx context.Context, correlationID string) ([]audit.Record, error) {
	return r.find(ctx, selectRecords+`WHERE correlation_id = $1 ORDER BY created_at ASC, id ASC`, correlationID)
}

// FindByDocumentID returns the exchanges that produced documentID.
func (r *Repository) FindByDocumentID(ctx context.Context, documentID string) ([]audit.Record, error) {
	return r.find(ctx, selectRecords+`WHERE document_id = $1 ORDER BY created_at ASC, id ASC`, documentID)
}

// PurgeBefore deletes records older than cutoff.
func (r *Repository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM crpt_exchange_log WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge audit records: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *Repository) find(ctx context.Context, query string, arg string) ([]audit.Record, error) {
	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	var records []audit.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit records: %w", err)
	}
	return records, nil
}

func scanRecord(row pgx.Row) (audit.Record, error) {
	var record audit.Record
	var requestHeaders, responseHeaders, requestBody, responseBody []byte
	err := row.Scan(
		&record.ID,
		&record.CorrelationID,
		&record.Provider,
		&record.Operation,
		&record.RequestMethod,
		&record.RequestURL,
		&requestHeaders,
		&requestBody,
		&record.ResponseStatus,
		&responseHeaders,
		&responseBody,
		&record.DocumentID,
		&record.DurationMs,
		&record.ErrorMessage,
		&record.CreatedAt,
	)
	if err != nil {
		return audit.Record{}, fmt.Errorf("scan audit record: %w", err)
	}

	if err := unmarshalHeaders(requestHeaders, &record.RequestHeaders); err != nil {
		return audit.Record{}, fmt.Errorf("unmarshal request headers: %w", err)
	}
	if err := unmarshalHeaders(responseHeaders, &record.ResponseHeaders); err != nil {
		return audit.Record{}, fmt.Errorf("unmarshal response headers: %w", err)
	}
	record.RequestBody = requestBody
	record.ResponseBody = responseBody
	return record, nil
}

func marshalHeaders(headers map[string]string) ([]byte, error) {
	if headers == nil {
		headers = map[string]string{}
	}
	return json.Marshal(headers)
}

func unmarshalHeaders(data []byte, dst *map[string]string) error {
	if len(data) == 0 {
		*dst = map[string]string{}
		return nil
	}
	return json.Unmarshal(data, dst)
}

// nullableJSON maps an empty body to SQL NULL.
func nullableJSON(body json.RawMessage) any {
	if len(body) == 0 {
		return nil
	}
	return []byte(body)
}
