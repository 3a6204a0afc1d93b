package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dekarrin/taffy/dochash"
	"github.com/google/uuid"
)

func NowTimestamp() Timestamp {
	return Timestamp(time.Now())
}

// Timestamp is a time.Time variation that stores itself as the number of
// seconds since the Unix epoch, both in JSON documents and in binary
// snapshots. Sub-second precision is not preserved by storage.
type Timestamp time.Time

func (ts Timestamp) Format(layout string) string {
	return ts.Time().Format(layout)
}

func (ts Timestamp) Value() (driver.Value, error) {
	return time.Time(ts).Unix(), nil
}

func (ts *Timestamp) Scan(value interface{}) error {
	iVal, ok := value.(int64)
	if !ok {
		return fmt.Errorf("not an integer value: %v", value)
	}

	tVal := time.Unix(iVal, 0)
	*ts = Timestamp(tVal)
	return nil
}

func (ts Timestamp) Time() time.Time {
	return time.Time(ts)
}

// IsZero returns whether ts is the zero instant.
func (ts Timestamp) IsZero() bool {
	return ts.Time().IsZero()
}

// Equal returns whether ts and other represent the same instant, at the
// second precision Timestamps are stored with.
func (ts Timestamp) Equal(other Timestamp) bool {
	return ts.Time().Unix() == other.Time().Unix()
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(ts.Time().Unix())
}

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	var secs int64
	if err := json.Unmarshal(data, &secs); err != nil {
		return fmt.Errorf("not a unix timestamp: %w", err)
	}
	*ts = Timestamp(time.Unix(secs, 0))
	return nil
}

// PublishState is the outcome recorded in a PublishReport.
type PublishState string

func (ps PublishState) String() string {
	return string(ps)
}

const (
	PublishStatePublished PublishState = "published"
	PublishStateFailed    PublishState = "failed"
)

// Environment is a deployment target that schemas and clients are published
// into, such as production or staging.
type Environment struct {
	ID          uuid.UUID `json:"id"`   // PK, NOT NULL
	Name        string    `json:"name"` // UNIQUE, NOT NULL
	Description string    `json:"description"`
}

func (env Environment) ModelID() uuid.UUID {
	return env.ID
}

// Schema is a named GraphQL schema whose versions are tracked by the
// registry.
type Schema struct {
	ID          uuid.UUID `json:"id"`   // PK, NOT NULL
	Name        string    `json:"name"` // UNIQUE, NOT NULL
	Description string    `json:"description"`
}

func (s Schema) ModelID() uuid.UUID {
	return s.ID
}

// SchemaVersion is one concrete revision of a Schema's SDL document,
// identified by the document's content hash.
type SchemaVersion struct {
	ID       uuid.UUID    `json:"id"`        // PK, NOT NULL
	SchemaID uuid.UUID    `json:"schema_id"` // NOT NULL
	Hash     dochash.Hash `json:"hash"`      // Hash.Hash UNIQUE, NOT NULL
	Source   string       `json:"source"`
	Tags     []Tag        `json:"tags"`
	Created  Timestamp    `json:"created"` // NOT NULL
}

func (v SchemaVersion) ModelID() uuid.UUID {
	return v.ID
}

// Client is a registered consumer of a Schema, such as a frontend or another
// service.
type Client struct {
	ID   uuid.UUID `json:"id"`   // PK, NOT NULL
	Name string    `json:"name"` // UNIQUE, NOT NULL

	// SchemaID associates the Client with the Schema it consumes. It is the
	// zero UUID for Clients not associated with any Schema.
	SchemaID uuid.UUID `json:"schema_id"`
}

func (c Client) ModelID() uuid.UUID {
	return c.ID
}

// ClientVersion is one released revision of a Client, carrying the set of
// Queries that revision uses. ExternalID is the identifier the client build
// itself is known by, such as a release tag or artifact checksum.
type ClientVersion struct {
	ID         uuid.UUID   `json:"id"`          // PK, NOT NULL
	ClientID   uuid.UUID   `json:"client_id"`   // NOT NULL
	ExternalID string      `json:"external_id"` // UNIQUE, NOT NULL
	QueryIDs   []uuid.UUID `json:"query_ids"`
	Tags       []Tag       `json:"tags"`
	Created    Timestamp   `json:"created"` // NOT NULL
}

func (v ClientVersion) ModelID() uuid.UUID {
	return v.ID
}

// Query is a persisted GraphQL query document registered against a Schema.
// Its primary Hash is its identity; ExternalHashes are additional hashes of
// the same document that clients may look it up by.
type Query struct {
	ID             uuid.UUID      `json:"id"`        // PK, NOT NULL
	SchemaID       uuid.UUID      `json:"schema_id"` // NOT NULL
	Hash           dochash.Hash   `json:"hash"`      // Hash.Hash UNIQUE, NOT NULL
	ExternalHashes []dochash.Hash `json:"external_hashes"`
	Source         string         `json:"source"`
}

func (q Query) ModelID() uuid.UUID {
	return q.ID
}

// PublishReport records the outcome of publishing one client version into
// one environment. There is at most one report per (ClientVersionID,
// EnvironmentID) pair; republishing replaces the report through Update.
type PublishReport struct {
	ID              uuid.UUID    `json:"id"`                // PK, NOT NULL
	ClientVersionID uuid.UUID    `json:"client_version_id"` // UNIQUE with EnvironmentID, NOT NULL
	EnvironmentID   uuid.UUID    `json:"environment_id"`    // NOT NULL
	State           PublishState `json:"state"`
	PublishedOn     Timestamp    `json:"published_on"` // NOT NULL
}

func (r PublishReport) ModelID() uuid.UUID {
	return r.ID
}

// PublishedClient records which client version is live for a client against
// a schema in an environment. The (EnvironmentID, SchemaID, ClientID) triple
// is unique; ClientVersionID is fixed when the entity is first written.
type PublishedClient struct {
	ID              uuid.UUID `json:"id"`                // PK, NOT NULL
	EnvironmentID   uuid.UUID `json:"environment_id"`    // UNIQUE with SchemaID and ClientID, NOT NULL
	SchemaID        uuid.UUID `json:"schema_id"`         // NOT NULL
	ClientID        uuid.UUID `json:"client_id"`         // NOT NULL
	ClientVersionID uuid.UUID `json:"client_version_id"` // NOT NULL
}

func (pc PublishedClient) ModelID() uuid.UUID {
	return pc.ID
}
