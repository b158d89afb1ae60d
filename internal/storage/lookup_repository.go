package storage

import (
	"context"
	"database/sql"
	"errors"

	"apimonitor/internal/utils"
	"apimonitor/models"
)

// queryer is the slice of sqlx.DB / sqlx.Tx the resolver needs; tests
// substitute a fake.
type queryer interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// environmentAliases maps short environment tags to the long-form
// names some deployments seed the reference table with.
var environmentAliases = map[string]string{
	"Dev": "Development",
}

// LookupRepository resolves categorical record fields to surrogate
// keys against the reference tables. Three policies apply:
//
//   - strict (http method, environment): a miss resolves to nil with a
//     warning and never mutates the table;
//   - passthrough (status code): the key is the numeric code itself;
//   - auto-provision (error source, file type): a miss inserts the row
//     and reads the generated key back.
//
// No resolution ever propagates an error: query failures are logged
// and reported as misses so one bad categorical value cannot abort an
// insert. Positive results are cached; a cache miss always goes to
// the table.
type LookupRepository struct {
	q      queryer
	logger *utils.Logger

	methods      *LRUCache
	errorSources *LRUCache
	environments *LRUCache
	fileTypes    *LRUCache

	// Sentinel keys resolved once by Prime. Only the single worker
	// goroutine reads and writes these.
	errorSourceSentinel *int
	fileTypeSentinel    *int
}

// NewLookupRepository creates a lookup repository over the pooled
// connection and the DB's caches.
func NewLookupRepository(db *DB) *LookupRepository {
	return newLookupRepository(db.conn, db.methodCache, db.errorSourceCache, db.environmentCache, db.fileTypeCache)
}

func newLookupRepository(q queryer, methods, errorSources, environments, fileTypes *LRUCache) *LookupRepository {
	return &LookupRepository{
		q:            q,
		logger:       utils.NewLogger("lookup"),
		methods:      methods,
		errorSources: errorSources,
		environments: environments,
		fileTypes:    fileTypes,
	}
}

// Prime resolves the "N/A" sentinel keys by name through the
// auto-provision path so inserts never depend on hardcoded ids.
// Best-effort: on failure the sentinels stay nil and resolution is
// retried per record.
func (r *LookupRepository) Prime(ctx context.Context) {
	if r.errorSourceSentinel == nil {
		r.errorSourceSentinel = r.ResolveErrorSource(ctx, models.SentinelName)
	}
	if r.fileTypeSentinel == nil {
		r.fileTypeSentinel = r.ResolveFileType(ctx, models.SentinelName)
	}
	if r.errorSourceSentinel == nil || r.fileTypeSentinel == nil {
		r.logger.Warn("Sentinel keys not fully resolved, will retry per record")
	}
}

// ResolveRecord derives all surrogate keys for one record, applying
// the documented defaults: method POST, environment "Dev", sentinel
// keys for absent error source and file type.
func (r *LookupRepository) ResolveRecord(ctx context.Context, call *models.APICall) *models.ResolvedKeys {
	method := call.HTTPMethod
	if method == "" {
		method = models.DefaultHTTPMethod
	}

	environment := call.Environment
	if environment == "" {
		environment = models.DefaultEnvironment
	}

	keys := &models.ResolvedKeys{
		HTTPMethodID:  r.ResolveHTTPMethod(ctx, method),
		StatusCodeID:  r.ResolveStatusCode(call.StatusCode),
		EnvironmentID: r.ResolveEnvironment(ctx, environment),
	}

	if call.ErrorSource != "" {
		keys.ErrorSourceID = r.ResolveErrorSource(ctx, call.ErrorSource)
	}
	if keys.ErrorSourceID == nil {
		keys.ErrorSourceID = r.sentinelErrorSource(ctx)
	}

	if call.FileType != "" {
		keys.FileTypeID = r.ResolveFileType(ctx, call.FileType)
	}
	if keys.FileTypeID == nil {
		keys.FileTypeID = r.sentinelFileType(ctx)
	}

	return keys
}

// ResolveHTTPMethod resolves an HTTP method name against the
// http_method table. Strict: a miss is nil, never an insert.
func (r *LookupRepository) ResolveHTTPMethod(ctx context.Context, method string) *int {
	if method == "" {
		return nil
	}

	if id, ok := r.methods.Get(method); ok {
		return &id
	}

	var id int
	err := r.q.GetContext(ctx, &id,
		"SELECT http_method_id FROM http_method WHERE http_method_name = $1", method)
	if errors.Is(err, sql.ErrNoRows) {
		r.logger.Warn("HTTP method not found in lookup table", "method", method)
		return nil
	}
	if err != nil {
		r.logger.Error("Failed to resolve HTTP method", "method", method, "error", err)
		return nil
	}

	r.methods.Set(method, id)
	return &id
}

// ResolveStatusCode resolves an HTTP status code. The surrogate key is
// the numeric code itself, so no table access is needed.
func (r *LookupRepository) ResolveStatusCode(code *int) *int {
	if code == nil {
		return nil
	}
	id := *code
	return &id
}

// ResolveErrorSource resolves an error source name, inserting the row
// when it is not present yet (auto-provision).
func (r *LookupRepository) ResolveErrorSource(ctx context.Context, source string) *int {
	return r.resolveProvisioning(ctx, r.errorSources, source,
		"SELECT error_source_id FROM error_source WHERE error_source_name = $1",
		"INSERT INTO error_source (error_source_name) VALUES ($1) ON CONFLICT (error_source_name) DO NOTHING",
		"error source")
}

// ResolveFileType resolves a file type name, inserting the row when it
// is not present yet (auto-provision).
func (r *LookupRepository) ResolveFileType(ctx context.Context, fileType string) *int {
	return r.resolveProvisioning(ctx, r.fileTypes, fileType,
		"SELECT file_type_id FROM file_type WHERE file_type_name = $1",
		"INSERT INTO file_type (file_type_name) VALUES ($1) ON CONFLICT (file_type_name) DO NOTHING",
		"file type")
}

// ResolveEnvironment resolves an environment name against the
// environment table, retrying the known long-form alias before giving
// up. Strict: a miss is nil.
func (r *LookupRepository) ResolveEnvironment(ctx context.Context, environment string) *int {
	if environment == "" {
		return nil
	}

	if id, ok := r.environments.Get(environment); ok {
		return &id
	}

	id, err := r.lookupEnvironment(ctx, environment)
	if errors.Is(err, sql.ErrNoRows) {
		if alias, ok := environmentAliases[environment]; ok {
			id, err = r.lookupEnvironment(ctx, alias)
		}
	}
	if errors.Is(err, sql.ErrNoRows) {
		r.logger.Warn("Environment not found in lookup table", "environment", environment)
		return nil
	}
	if err != nil {
		r.logger.Error("Failed to resolve environment", "environment", environment, "error", err)
		return nil
	}

	// Cache under the name the caller used, alias included
	r.environments.Set(environment, id)
	return &id
}

func (r *LookupRepository) lookupEnvironment(ctx context.Context, name string) (int, error) {
	var id int
	err := r.q.GetContext(ctx, &id,
		"SELECT environment_id FROM environment WHERE environment_name = $1", name)
	return id, err
}

// resolveProvisioning implements the shared read, insert-on-miss,
// read-back pattern for the auto-provisioning tables. The upsert is a
// no-op when a concurrent writer won the insert, so the read-back
// always converges on one canonical key.
func (r *LookupRepository) resolveProvisioning(ctx context.Context, cache *LRUCache, name, selectQuery, insertQuery, what string) *int {
	if name == "" {
		return nil
	}

	if id, ok := cache.Get(name); ok {
		return &id
	}

	var id int
	err := r.q.GetContext(ctx, &id, selectQuery, name)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err = r.q.ExecContext(ctx, insertQuery, name); err != nil {
			r.logger.Error("Failed to auto-provision "+what, "name", name, "error", err)
			return nil
		}
		err = r.q.GetContext(ctx, &id, selectQuery, name)
	}
	if err != nil {
		r.logger.Error("Failed to resolve "+what, "name", name, "error", err)
		return nil
	}

	cache.Set(name, id)
	return &id
}

func (r *LookupRepository) sentinelErrorSource(ctx context.Context) *int {
	if r.errorSourceSentinel == nil {
		r.errorSourceSentinel = r.ResolveErrorSource(ctx, models.SentinelName)
	}
	return r.errorSourceSentinel
}

func (r *LookupRepository) sentinelFileType(ctx context.Context) *int {
	if r.fileTypeSentinel == nil {
		r.fileTypeSentinel = r.ResolveFileType(ctx, models.SentinelName)
	}
	return r.fileTypeSentinel
}
