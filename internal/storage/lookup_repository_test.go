package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"apimonitor/internal/utils"
	"apimonitor/models"
)

// fakeLookupDB simulates the reference tables for resolver testing.
type fakeLookupDB struct {
	mu      sync.Mutex
	tables  map[string]map[string]int
	nextID  map[string]int
	failing bool
	selects int
	inserts int
}

func newFakeLookupDB() *fakeLookupDB {
	return &fakeLookupDB{
		tables: map[string]map[string]int{
			"http_method":  {"POST": 1, "GET": 2, "PUT": 3, "DELETE": 4},
			"error_source": {},
			"environment":  {"Development": 1, "Production": 2},
			"file_type":    {},
		},
		nextID: map[string]int{
			"http_method":  5,
			"error_source": 1,
			"environment":  3,
			"file_type":    1,
		},
	}
}

func (f *fakeLookupDB) tableFor(query string) string {
	for _, table := range []string{"error_source", "file_type", "http_method", "environment"} {
		if strings.Contains(query, table) {
			return table
		}
	}
	return ""
}

func (f *fakeLookupDB) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failing {
		return errors.New("connection refused")
	}

	f.selects++

	table := f.tables[f.tableFor(query)]
	name := args[0].(string)
	id, ok := table[name]
	if !ok {
		return sql.ErrNoRows
	}

	*(dest.(*int)) = id
	return nil
}

func (f *fakeLookupDB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failing {
		return nil, errors.New("connection refused")
	}

	f.inserts++

	tableName := f.tableFor(query)
	name := args[0].(string)
	if _, exists := f.tables[tableName][name]; !exists {
		f.tables[tableName][name] = f.nextID[tableName]
		f.nextID[tableName]++
	}

	return driver.RowsAffected(1), nil
}

func newTestLookupRepository(db *fakeLookupDB) *LookupRepository {
	cacheOf := func() *LRUCache { return NewLRUCache(16, 1*time.Minute) }
	repo := newLookupRepository(db, cacheOf(), cacheOf(), cacheOf(), cacheOf())
	repo.logger.SetLogLevel(utils.Critical)
	return repo
}

func TestResolveHTTPMethod(t *testing.T) {
	db := newFakeLookupDB()
	repo := newTestLookupRepository(db)
	ctx := context.Background()

	id := repo.ResolveHTTPMethod(ctx, "POST")
	if id == nil || *id != 1 {
		t.Fatalf("Expected POST -> 1, got %v", id)
	}

	// Strict: unknown method is a nil, not an insert
	if id := repo.ResolveHTTPMethod(ctx, "BREW"); id != nil {
		t.Errorf("Expected nil for unknown method, got %d", *id)
	}
	if db.inserts != 0 {
		t.Errorf("Strict lookup must not insert, saw %d inserts", db.inserts)
	}

	if id := repo.ResolveHTTPMethod(ctx, ""); id != nil {
		t.Errorf("Expected nil for empty method, got %d", *id)
	}
}

func TestResolveHTTPMethod_Cached(t *testing.T) {
	db := newFakeLookupDB()
	repo := newTestLookupRepository(db)
	ctx := context.Background()

	repo.ResolveHTTPMethod(ctx, "GET")
	before := db.selects
	repo.ResolveHTTPMethod(ctx, "GET")

	if db.selects != before {
		t.Errorf("Second resolve should hit the cache, saw %d extra selects", db.selects-before)
	}
}

func TestResolveStatusCode_Passthrough(t *testing.T) {
	db := newFakeLookupDB()
	repo := newTestLookupRepository(db)

	code := 404
	id := repo.ResolveStatusCode(&code)
	if id == nil || *id != 404 {
		t.Fatalf("Expected 404 -> 404, got %v", id)
	}

	if id := repo.ResolveStatusCode(nil); id != nil {
		t.Errorf("Expected nil for absent status code, got %d", *id)
	}

	if db.selects != 0 {
		t.Errorf("Status code resolution must not touch the database, saw %d selects", db.selects)
	}
}

func TestResolveErrorSource_AutoProvision(t *testing.T) {
	db := newFakeLookupDB()
	repo := newTestLookupRepository(db)
	ctx := context.Background()

	id := repo.ResolveErrorSource(ctx, "Excalibur")
	if id == nil {
		t.Fatal("Expected auto-provisioned key, got nil")
	}
	if db.inserts != 1 {
		t.Errorf("Expected 1 insert, got %d", db.inserts)
	}

	// Resolving the same value again converges on the same key
	again := repo.ResolveErrorSource(ctx, "Excalibur")
	if again == nil || *again != *id {
		t.Errorf("Expected same key %d, got %v", *id, again)
	}
	if db.inserts != 1 {
		t.Errorf("Second resolve must not insert again, saw %d inserts", db.inserts)
	}
}

func TestResolveFileType_AutoProvision(t *testing.T) {
	db := newFakeLookupDB()
	repo := newTestLookupRepository(db)
	ctx := context.Background()

	id := repo.ResolveFileType(ctx, "PDF")
	if id == nil {
		t.Fatal("Expected auto-provisioned key, got nil")
	}

	again := repo.ResolveFileType(ctx, "PDF")
	if again == nil || *again != *id {
		t.Errorf("Expected same key %d, got %v", *id, again)
	}
}

func TestResolveEnvironment_Alias(t *testing.T) {
	db := newFakeLookupDB()
	repo := newTestLookupRepository(db)
	ctx := context.Background()

	// "Dev" is absent from the table; the long-form alias resolves it
	id := repo.ResolveEnvironment(ctx, "Dev")
	if id == nil || *id != 1 {
		t.Fatalf("Expected Dev -> Development -> 1, got %v", id)
	}

	if id := repo.ResolveEnvironment(ctx, "Staging"); id != nil {
		t.Errorf("Expected nil for unknown environment, got %d", *id)
	}

	if db.inserts != 0 {
		t.Errorf("Environment lookup must not insert, saw %d inserts", db.inserts)
	}
}

func TestResolve_QueryFailureIsMiss(t *testing.T) {
	db := newFakeLookupDB()
	repo := newTestLookupRepository(db)
	db.failing = true
	ctx := context.Background()

	if id := repo.ResolveHTTPMethod(ctx, "POST"); id != nil {
		t.Errorf("Expected nil on query failure, got %d", *id)
	}
	if id := repo.ResolveErrorSource(ctx, "Excalibur"); id != nil {
		t.Errorf("Expected nil on query failure, got %d", *id)
	}
	if id := repo.ResolveEnvironment(ctx, "Dev"); id != nil {
		t.Errorf("Expected nil on query failure, got %d", *id)
	}
}

func TestPrime_ResolvesSentinels(t *testing.T) {
	db := newFakeLookupDB()
	repo := newTestLookupRepository(db)
	ctx := context.Background()

	repo.Prime(ctx)

	if repo.errorSourceSentinel == nil {
		t.Fatal("Expected error source sentinel to be primed")
	}
	if repo.fileTypeSentinel == nil {
		t.Fatal("Expected file type sentinel to be primed")
	}

	if _, ok := db.tables["error_source"][models.SentinelName]; !ok {
		t.Error("Expected N/A row auto-provisioned in error_source")
	}
	if _, ok := db.tables["file_type"][models.SentinelName]; !ok {
		t.Error("Expected N/A row auto-provisioned in file_type")
	}
}

func TestResolveRecord_Defaults(t *testing.T) {
	db := newFakeLookupDB()
	repo := newTestLookupRepository(db)
	ctx := context.Background()
	repo.Prime(ctx)

	// A bare response-style record: no method, no environment, no
	// error source, no file type.
	status := 200
	call := &models.APICall{
		Endpoint:   "/api/test",
		StatusCode: &status,
	}

	keys := repo.ResolveRecord(ctx, call)

	if keys.HTTPMethodID == nil || *keys.HTTPMethodID != 1 {
		t.Errorf("Expected default method POST -> 1, got %v", keys.HTTPMethodID)
	}
	if keys.StatusCodeID == nil || *keys.StatusCodeID != 200 {
		t.Errorf("Expected status 200 passthrough, got %v", keys.StatusCodeID)
	}
	if keys.EnvironmentID == nil || *keys.EnvironmentID != 1 {
		t.Errorf("Expected default Dev -> Development -> 1, got %v", keys.EnvironmentID)
	}
	if keys.ErrorSourceID == nil || *keys.ErrorSourceID != *repo.errorSourceSentinel {
		t.Errorf("Expected N/A sentinel error source, got %v", keys.ErrorSourceID)
	}
	if keys.FileTypeID == nil || *keys.FileTypeID != *repo.fileTypeSentinel {
		t.Errorf("Expected N/A sentinel file type, got %v", keys.FileTypeID)
	}
}

func TestResolveRecord_ExplicitValuesWin(t *testing.T) {
	db := newFakeLookupDB()
	repo := newTestLookupRepository(db)
	ctx := context.Background()
	repo.Prime(ctx)

	call := &models.APICall{
		Endpoint:    "/api/test",
		HTTPMethod:  "DELETE",
		Environment: "Production",
		ErrorSource: "Excalibur",
		FileType:    "PDF",
	}

	keys := repo.ResolveRecord(ctx, call)

	if keys.HTTPMethodID == nil || *keys.HTTPMethodID != 4 {
		t.Errorf("Expected DELETE -> 4, got %v", keys.HTTPMethodID)
	}
	if keys.EnvironmentID == nil || *keys.EnvironmentID != 2 {
		t.Errorf("Expected Production -> 2, got %v", keys.EnvironmentID)
	}
	if keys.ErrorSourceID == nil || *keys.ErrorSourceID == *repo.errorSourceSentinel {
		t.Errorf("Expected provisioned error source, got %v", keys.ErrorSourceID)
	}
	if keys.FileTypeID == nil || *keys.FileTypeID == *repo.fileTypeSentinel {
		t.Errorf("Expected provisioned file type, got %v", keys.FileTypeID)
	}
}
