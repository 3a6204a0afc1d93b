// Package sqlite provides the SQLite storage backend. Entities are stored as
// JSON documents in a data column, with the fields that uniqueness and lookup
// indexes need extracted into ordinary columns alongside. On reads the
// extracted columns are authoritative over the document.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dekarrin/taffy"
	"github.com/dekarrin/taffy/db"
	"modernc.org/sqlite"
)

// Store is the SQLite implementation of db.Store. Its zero-value should not
// be used; call NewStore to get a Store ready for use.
type Store struct {
	db         *sql.DB
	dbFilename string

	environments     *EnvironmentsDB
	schemas          *SchemasDB
	schemaVersions   *SchemaVersionsDB
	clients          *ClientsDB
	clientVersions   *ClientVersionsDB
	queries          *QueriesDB
	publishReports   *PublishReportsDB
	publishedClients *PublishedClientsDB
}

// NewStore opens (creating if needed) the registry database file inside
// storageDir and ensures every table and index exists. Opening a directory
// that already holds a registry database is a no-op with respect to its data.
func NewStore(storageDir string) (*Store, error) {
	st := &Store{
		dbFilename: "registry.db",
	}

	fileName := filepath.Join(storageDir, st.dbFilename)

	var err error
	st.db, err = sql.Open("sqlite", fileName)
	if err != nil {
		return nil, wrapDBError(err, "registry")
	}

	// WAL lets readers proceed during writes, and the busy timeout makes
	// concurrent writers wait for the lock instead of failing with SQLITE_BUSY
	pragmas := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA busy_timeout=5000;`,
	}
	for _, p := range pragmas {
		if _, err := st.db.Exec(p); err != nil {
			st.db.Close()
			return nil, wrapDBError(err, "registry")
		}
	}

	st.environments = &EnvironmentsDB{DB: st.db}
	st.schemas = &SchemasDB{DB: st.db}
	st.schemaVersions = &SchemaVersionsDB{DB: st.db}
	st.clients = &ClientsDB{DB: st.db}
	st.clientVersions = &ClientVersionsDB{DB: st.db}
	st.queries = &QueriesDB{DB: st.db}
	st.publishReports = &PublishReportsDB{DB: st.db}
	st.publishedClients = &PublishedClientsDB{DB: st.db}

	inits := []struct {
		name string
		fn   func() error
	}{
		{"environments", st.environments.init},
		{"schemas", st.schemas.init},
		{"schema_versions", st.schemaVersions.init},
		{"clients", st.clients.init},
		{"client_versions", st.clientVersions.init},
		{"queries", st.queries.init},
		{"publish_reports", st.publishReports.init},
		{"published_clients", st.publishedClients.init},
	}
	for _, in := range inits {
		if err := in.fn(); err != nil {
			st.db.Close()
			return nil, fmt.Errorf("init %s: %w", in.name, err)
		}
	}

	return st, nil
}

func (st *Store) Environments() db.EnvironmentRepo {
	return st.environments
}

func (st *Store) Schemas() db.SchemaRepo {
	return st.schemas
}

func (st *Store) SchemaVersions() db.SchemaVersionRepo {
	return st.schemaVersions
}

func (st *Store) Clients() db.ClientRepo {
	return st.clients
}

func (st *Store) ClientVersions() db.ClientVersionRepo {
	return st.clientVersions
}

func (st *Store) Queries() db.QueryRepo {
	return st.queries
}

func (st *Store) PublishReports() db.PublishReportRepo {
	return st.publishReports
}

func (st *Store) PublishedClients() db.PublishedClientRepo {
	return st.publishedClients
}

func (st *Store) Close() error {
	err := st.db.Close()
	if err != nil {
		return fmt.Errorf("%s: %w", st.dbFilename, err)
	}
	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// SQLite extended result codes for the members of the constraint family that
// mean a duplicate key specifically.
const (
	sqliteConstraintPrimaryKey = 1555
	sqliteConstraintUnique     = 2067
)

// constraintFields maps the qualified column names that appear in SQLite
// constraint failure messages to the entity field reported as violated. The
// composite constraints report their first declared column.
var constraintFields = []struct {
	column string
	field  string
}{
	{"environments.name", "Name"},
	{"schemas.name", "Name"},
	{"schema_versions.hash", "Hash"},
	{"clients.name", "Name"},
	{"client_versions.external_id", "ExternalID"},
	{"queries.hash", "Hash"},
	{"publish_reports.client_version_id", "ClientVersionID-EnvironmentID pair"},
	{"published_clients.environment_id", "EnvironmentID-SchemaID-ClientID triple"},
}

func violatedField(msg string) string {
	for _, cf := range constraintFields {
		if strings.Contains(msg, cf.column) {
			return cf.field
		}
	}
	return "ID"
}

// wrapDBError converts an error from the SQLite engine into an error usable
// by the rest of taffy. It should be called on any error returned from SQLite
// before a repo passes the error back to a caller. entity names the entity
// kind for duplicate-key messages.
func wrapDBError(err error, entity string) error {
	sqliteErr := &sqlite.Error{}
	if errors.As(err, &sqliteErr) {
		primaryCode := sqliteErr.Code() & 0xff
		if primaryCode == 19 {
			code := sqliteErr.Code()
			if code == sqliteConstraintPrimaryKey || code == sqliteConstraintUnique {
				return db.NewDuplicateKeyError(entity, violatedField(err.Error()), err)
			}
			return fmt.Errorf("%w: %s", taffy.ErrDB, err.Error())
		}
		if primaryCode == 1 {
			// this is a generic error and thus the string is not descriptive,
			// so preserve the original error instead
			return err
		}
		return fmt.Errorf("%s", sqlite.ErrorCodeString[sqliteErr.Code()])
	} else if errors.Is(err, sql.ErrNoRows) {
		return taffy.ErrNotFound
	}
	return err
}
