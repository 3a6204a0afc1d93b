// Package db defines the entities stored by a taffy registry and the
// repository contracts that every storage backend implements. The backends
// themselves live in the subpackages inmem, sqlite, and postgres; all of them
// satisfy Store.
//
// Entities are plain structs addressed by uuid.UUID. Uniqueness is enforced
// by the storage engine's indexes, never by locking in this layer: a write
// that loses a race is reported as a duplicate-key error exactly as if the
// conflicting entity had been there all along. Repositories perform no
// retries and hold no cache.
//
// Expected failure conditions are reported with the taffy error vocabulary:
// a single-entity Get with no match returns an error satisfying
// taffy.ErrNotFound, and a write rejected by a uniqueness index returns an
// error satisfying taffy.ErrDuplicateKey whose message names the violated
// field. Lookups by alternate keys (names, hashes, external IDs) instead
// report absence with a false ok value, and batch gets silently omit missing
// ids, because for those callers absence is an ordinary answer rather than a
// failure.
package db

import (
	"context"

	"github.com/dekarrin/taffy"
	"github.com/google/uuid"
)

// Model is any entity that can be uniquely identified by an ID.
type Model[ID any] interface {
	// ModelID returns the ID that identifies the Model uniquely.
	ModelID() ID
}

// Store provides access to every repository of a single registry database.
// All repositories returned by one Store operate on the same underlying
// storage. Close releases the storage; after Close returns, no repository
// obtained from the Store may be used.
//
// Opening a Store ensures that every uniqueness and lookup index the
// repositories rely on exists, creating any that are missing. Opening an
// already-initialized database is a no-op with respect to its data.
type Store interface {
	Environments() EnvironmentRepo
	Schemas() SchemaRepo
	SchemaVersions() SchemaVersionRepo
	Clients() ClientRepo
	ClientVersions() ClientVersionRepo
	Queries() QueryRepo
	PublishReports() PublishReportRepo
	PublishedClients() PublishedClientRepo

	Close() error
}

// ClientRepo stores Clients. Client.Name is unique across the store.
type ClientRepo interface {
	// Create inserts the given Client. If c.ID is the zero UUID, a new ID is
	// generated; otherwise the caller's ID is kept. The stored Client is
	// returned. If another Client already holds the same Name (or ID), the
	// returned error matches taffy.ErrDuplicateKey and its message names the
	// violated field.
	Create(ctx context.Context, c Client) (Client, error)

	// Get returns the Client with the given ID. If no Client has that ID,
	// the returned error matches taffy.ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (Client, error)

	// GetByName returns the Client with the given Name. A Name held by no
	// Client is not an error; ok is false and err is nil.
	GetByName(ctx context.Context, name string) (c Client, ok bool, err error)

	// GetMany returns the Clients with the given IDs, keyed by ID. IDs that
	// match no Client are omitted from the result without error; callers
	// that care must compare the result against the request.
	GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Client, error)

	// Update replaces the entire stored Client whose ID is c.ID with c. The
	// same duplicate-key translation as Create applies if the new Name
	// collides. Updating an ID that matches no stored Client changes nothing
	// and is not an error.
	Update(ctx context.Context, c Client) error

	// Delete removes the Client with the given ID and returns it. If no
	// Client has that ID, the returned error matches taffy.ErrNotFound.
	Delete(ctx context.Context, id uuid.UUID) (Client, error)

	// List returns a listing of Clients, optionally narrowed by filter (nil
	// means all). No storage access happens until the listing is executed,
	// and every execution reflects the data stored at that moment.
	List(filter *ClientFilter) *Listing[Client]
}

// ClientVersionRepo stores ClientVersions. ClientVersion.ExternalID is
// unique across the store.
type ClientVersionRepo interface {
	Create(ctx context.Context, v ClientVersion) (ClientVersion, error)
	Get(ctx context.Context, id uuid.UUID) (ClientVersion, error)
	GetByExternalID(ctx context.Context, externalID string) (v ClientVersion, ok bool, err error)
	GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]ClientVersion, error)
	Update(ctx context.Context, v ClientVersion) error

	// UpdateTags replaces only the Tags of the ClientVersion with the given
	// ID, leaving the rest of the stored entity untouched. When tags holds
	// more than one element it is de-duplicated with DedupTags first; a
	// single-element or empty list is stored as-is. Updating an ID that
	// matches no stored ClientVersion changes nothing and is not an error.
	UpdateTags(ctx context.Context, id uuid.UUID, tags []Tag) error

	Delete(ctx context.Context, id uuid.UUID) (ClientVersion, error)
	List(filter *ClientVersionFilter) *Listing[ClientVersion]
}

// QueryRepo stores Queries. The primary hash value Query.Hash.Hash is unique
// across the store; external hash values are a non-unique lookup index.
type QueryRepo interface {
	Create(ctx context.Context, q Query) (Query, error)
	Get(ctx context.Context, id uuid.UUID) (Query, error)

	// GetByHash returns the Query owning the given hash value. The primary
	// hash index is probed first; only if no Query's primary hash matches is
	// the external-hash index consulted. If multiple Queries list the value
	// among their external hashes, which of them is returned is unspecified.
	// A value in neither index is not an error; ok is false and err is nil.
	GetByHash(ctx context.Context, hash string) (q Query, ok bool, err error)

	GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Query, error)
	Update(ctx context.Context, q Query) error
	Delete(ctx context.Context, id uuid.UUID) (Query, error)
	List(filter *QueryFilter) *Listing[Query]
}

// PublishReportRepo stores PublishReports. The pair (ClientVersionID,
// EnvironmentID) is unique across the store: there is at most one report per
// client version per environment.
type PublishReportRepo interface {
	Create(ctx context.Context, r PublishReport) (PublishReport, error)
	Get(ctx context.Context, id uuid.UUID) (PublishReport, error)

	// GetByVersionAndEnvironment returns the report for the given client
	// version in the given environment. Absence of a report is not an
	// error; ok is false and err is nil.
	GetByVersionAndEnvironment(ctx context.Context, clientVersionID, environmentID uuid.UUID) (r PublishReport, ok bool, err error)

	GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]PublishReport, error)
	Update(ctx context.Context, r PublishReport) error
	Delete(ctx context.Context, id uuid.UUID) (PublishReport, error)
	List(filter *PublishReportFilter) *Listing[PublishReport]
}

// PublishedClientRepo stores PublishedClients, the record of which client
// version is live per (environment, schema, client) triple. The triple is
// unique across the store.
//
// PublishedClients are written only through Set; there are no Create or
// Update operations.
type PublishedClientRepo interface {
	// Set records pc as published. The upsert is keyed by pc.ID: if no
	// entity has that ID, pc is inserted, fixing its EnvironmentID,
	// SchemaID, ClientID, and ClientVersionID. If one already exists,
	// nothing is changed and Set returns nil, so retrying a Set is
	// idempotent and the values recorded first win. Inserting under a fresh
	// ID whose (EnvironmentID, SchemaID, ClientID) triple is already
	// published violates the triple's unique index and returns an error
	// matching taffy.ErrDuplicateKey.
	Set(ctx context.Context, pc PublishedClient) error

	// Get returns the PublishedClient for the given triple. An unpublished
	// triple is not an error; ok is false and err is nil.
	Get(ctx context.Context, environmentID, schemaID, clientID uuid.UUID) (pc PublishedClient, ok bool, err error)

	// GetByID returns the PublishedClient with the given ID. If no
	// PublishedClient has that ID, the returned error matches
	// taffy.ErrNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (PublishedClient, error)

	GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]PublishedClient, error)
	Delete(ctx context.Context, id uuid.UUID) (PublishedClient, error)
	List(filter *PublishedClientFilter) *Listing[PublishedClient]
}

// EnvironmentRepo stores Environments. Environment.Name is unique across the
// store.
type EnvironmentRepo interface {
	Create(ctx context.Context, env Environment) (Environment, error)
	Get(ctx context.Context, id uuid.UUID) (Environment, error)
	GetByName(ctx context.Context, name string) (env Environment, ok bool, err error)
	GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Environment, error)
	Update(ctx context.Context, env Environment) error
	Delete(ctx context.Context, id uuid.UUID) (Environment, error)
	List() *Listing[Environment]
}

// SchemaRepo stores Schemas. Schema.Name is unique across the store.
type SchemaRepo interface {
	Create(ctx context.Context, s Schema) (Schema, error)
	Get(ctx context.Context, id uuid.UUID) (Schema, error)
	GetByName(ctx context.Context, name string) (s Schema, ok bool, err error)
	GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Schema, error)
	Update(ctx context.Context, s Schema) error
	Delete(ctx context.Context, id uuid.UUID) (Schema, error)
	List() *Listing[Schema]
}

// SchemaVersionRepo stores SchemaVersions. The document hash value
// SchemaVersion.Hash.Hash is unique across the store. Tags follow the same
// update protocol as ClientVersionRepo.UpdateTags.
type SchemaVersionRepo interface {
	Create(ctx context.Context, v SchemaVersion) (SchemaVersion, error)
	Get(ctx context.Context, id uuid.UUID) (SchemaVersion, error)
	GetByHash(ctx context.Context, hash string) (v SchemaVersion, ok bool, err error)
	GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]SchemaVersion, error)
	Update(ctx context.Context, v SchemaVersion) error
	UpdateTags(ctx context.Context, id uuid.UUID, tags []Tag) error
	Delete(ctx context.Context, id uuid.UUID) (SchemaVersion, error)
	List(filter *SchemaVersionFilter) *Listing[SchemaVersion]
}

// ClientFilter narrows a Client listing. Set fields are combined with AND.
type ClientFilter struct {
	// SchemaID selects Clients associated with the given Schema.
	SchemaID *uuid.UUID
}

// ClientVersionFilter narrows a ClientVersion listing. Set fields are
// combined with AND.
type ClientVersionFilter struct {
	// ClientID selects versions of the given Client.
	ClientID *uuid.UUID
}

// QueryFilter narrows a Query listing. Set fields are combined with AND.
type QueryFilter struct {
	// SchemaID selects Queries registered against the given Schema.
	SchemaID *uuid.UUID
}

// PublishReportFilter narrows a PublishReport listing. Set fields are
// combined with AND.
type PublishReportFilter struct {
	// ClientVersionID selects reports about the given client version.
	ClientVersionID *uuid.UUID

	// EnvironmentID selects reports for the given environment.
	EnvironmentID *uuid.UUID
}

// PublishedClientFilter narrows a PublishedClient listing. Set fields are
// combined with AND.
type PublishedClientFilter struct {
	// EnvironmentID selects publications into the given environment.
	EnvironmentID *uuid.UUID

	// SchemaID selects publications against the given schema.
	SchemaID *uuid.UUID
}

// SchemaVersionFilter narrows a SchemaVersion listing. Set fields are
// combined with AND.
type SchemaVersionFilter struct {
	// SchemaID selects versions of the given Schema.
	SchemaID *uuid.UUID
}

// NewDuplicateKeyError builds the error every backend returns when a
// uniqueness index rejects a write. entity names the entity kind in lower
// case ("client") and field names the entity field whose uniqueness was
// violated ("Name", "ExternalID"). cause, if non-nil, is the storage
// engine's own error and is preserved for inspection.
//
// The returned error matches taffy.ErrDuplicateKey under errors.Is.
func NewDuplicateKeyError(entity, field string, cause error) error {
	causes := []error{taffy.ErrDuplicateKey}
	if cause != nil {
		causes = []error{cause, taffy.ErrDuplicateKey}
	}
	return taffy.NewErrorf(causes, "a %s with that %s already exists", entity, field)
}

// NewNotFoundError builds the error every backend returns when a
// single-entity lookup by ID matches nothing. entity names the entity kind
// in lower case ("client").
//
// The returned error matches taffy.ErrNotFound under errors.Is.
func NewNotFoundError(entity string, id uuid.UUID) error {
	return taffy.NewErrorf([]error{taffy.ErrNotFound}, "no %s with ID %s", entity, id)
}
