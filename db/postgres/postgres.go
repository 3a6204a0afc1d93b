// Package postgres provides the PostgreSQL storage backend. Like the sqlite
// backend it stores entities as JSON documents, here in a JSONB data column,
// with the fields that uniqueness and lookup indexes need extracted into
// ordinary columns alongside. On reads the extracted columns are
// authoritative over the document.
package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/dekarrin/taffy"
	"github.com/dekarrin/taffy/db"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Store is the PostgreSQL implementation of db.Store. Its zero-value should
// not be used; call NewStore to get a Store ready for use.
type Store struct {
	db *sql.DB

	environments     *EnvironmentsDB
	schemas          *SchemasDB
	schemaVersions   *SchemaVersionsDB
	clients          *ClientsDB
	clientVersions   *ClientVersionsDB
	queries          *QueriesDB
	publishReports   *PublishReportsDB
	publishedClients *PublishedClientsDB
}

// NewStore connects to the PostgreSQL database at the given DSN and ensures
// every table and index exists. Connecting to a database that already holds
// registry tables is a no-op with respect to their data.
func NewStore(dsn string) (*Store, error) {
	st := &Store{}

	var err error
	st.db, err = sql.Open("pgx", dsn)
	if err != nil {
		return nil, wrapDBError(err, "registry")
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
	return st.db.Close()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// pgUniqueViolation is the PostgreSQL error code for unique_violation.
const pgUniqueViolation = "23505"

// constraintFields maps the named unique constraints in the registry schema
// to the entity field reported as violated.
var constraintFields = map[string]string{
	"environments_name_uniq":           "Name",
	"schemas_name_uniq":                "Name",
	"schema_versions_hash_uniq":        "Hash",
	"clients_name_uniq":                "Name",
	"client_versions_external_id_uniq": "ExternalID",
	"queries_hash_uniq":                "Hash",
	"publish_reports_pair_uniq":        "ClientVersionID-EnvironmentID pair",
	"published_clients_triple_uniq":    "EnvironmentID-SchemaID-ClientID triple",
}

func violatedField(constraint string) string {
	if f, ok := constraintFields[constraint]; ok {
		return f
	}
	// primary key constraints keep their default names
	return "ID"
}

// wrapDBError converts an error from the PostgreSQL engine into an error
// usable by the rest of taffy. It should be called on any error returned from
// PostgreSQL before a repo passes the error back to a caller. entity names
// the entity kind for duplicate-key messages.
func wrapDBError(err error, entity string) error {
	pgErr := &pgconn.PgError{}
	if errors.As(err, &pgErr) {
		if pgErr.Code == pgUniqueViolation {
			return db.NewDuplicateKeyError(entity, violatedField(pgErr.ConstraintName), err)
		}
		return fmt.Errorf("%w: %s", taffy.ErrDB, pgErr.Error())
	} else if errors.Is(err, sql.ErrNoRows) {
		return taffy.ErrNotFound
	}
	return err
}
