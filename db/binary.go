package db

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/dekarrin/rezi/v2"
)

// This file gives every entity a binary form via rezi so that whole
// registries can be snapshotted to disk and loaded back, regardless of which
// backend holds them. The in-memory backend uses it for its persistence
// file; the taffyctl export and import commands use it for backups of any
// backend.

func (t Tag) MarshalBinary() ([]byte, error) {
	var enc []byte

	enc = append(enc, rezi.MustEnc(t.Key)...)
	enc = append(enc, rezi.MustEnc(t.Value)...)

	return enc, nil
}

func (t *Tag) UnmarshalBinary(data []byte) error {
	rr, err := rezi.NewReader(bytes.NewBuffer(data), nil)
	if err != nil {
		return err
	}

	var decoded Tag

	err = rr.Dec(&decoded.Key)
	if err != nil {
		return rezi.Wrapf(0, "key: %s", err)
	}

	err = rr.Dec(&decoded.Value)
	if err != nil {
		return rezi.Wrapf(0, "value: %s", err)
	}

	*t = decoded
	return nil
}

func (env Environment) MarshalBinary() ([]byte, error) {
	var enc []byte

	enc = append(enc, rezi.MustEnc(env.ID)...)
	enc = append(enc, rezi.MustEnc(env.Name)...)
	enc = append(enc, rezi.MustEnc(env.Description)...)

	return enc, nil
}

func (env *Environment) UnmarshalBinary(data []byte) error {
	rr, err := rezi.NewReader(bytes.NewBuffer(data), nil)
	if err != nil {
		return err
	}

	var decoded Environment

	err = rr.Dec(&decoded.ID)
	if err != nil {
		return rezi.Wrapf(0, "id: %s", err)
	}

	err = rr.Dec(&decoded.Name)
	if err != nil {
		return rezi.Wrapf(0, "name: %s", err)
	}

	err = rr.Dec(&decoded.Description)
	if err != nil {
		return rezi.Wrapf(0, "description: %s", err)
	}

	*env = decoded
	return nil
}

func (s Schema) MarshalBinary() ([]byte, error) {
	var enc []byte

	enc = append(enc, rezi.MustEnc(s.ID)...)
	enc = append(enc, rezi.MustEnc(s.Name)...)
	enc = append(enc, rezi.MustEnc(s.Description)...)

	return enc, nil
}

func (s *Schema) UnmarshalBinary(data []byte) error {
	rr, err := rezi.NewReader(bytes.NewBuffer(data), nil)
	if err != nil {
		return err
	}

	var decoded Schema

	err = rr.Dec(&decoded.ID)
	if err != nil {
		return rezi.Wrapf(0, "id: %s", err)
	}

	err = rr.Dec(&decoded.Name)
	if err != nil {
		return rezi.Wrapf(0, "name: %s", err)
	}

	err = rr.Dec(&decoded.Description)
	if err != nil {
		return rezi.Wrapf(0, "description: %s", err)
	}

	*s = decoded
	return nil
}

func (v SchemaVersion) MarshalBinary() ([]byte, error) {
	var enc []byte

	enc = append(enc, rezi.MustEnc(v.ID)...)
	enc = append(enc, rezi.MustEnc(v.SchemaID)...)
	enc = append(enc, rezi.MustEnc(v.Hash)...)
	enc = append(enc, rezi.MustEnc(v.Source)...)
	enc = append(enc, rezi.MustEnc(v.Tags)...)
	enc = append(enc, rezi.MustEnc(v.Created.Time())...)

	return enc, nil
}

func (v *SchemaVersion) UnmarshalBinary(data []byte) error {
	rr, err := rezi.NewReader(bytes.NewBuffer(data), nil)
	if err != nil {
		return err
	}

	var decoded SchemaVersion
	var created time.Time

	err = rr.Dec(&decoded.ID)
	if err != nil {
		return rezi.Wrapf(0, "id: %s", err)
	}

	err = rr.Dec(&decoded.SchemaID)
	if err != nil {
		return rezi.Wrapf(0, "schema id: %s", err)
	}

	err = rr.Dec(&decoded.Hash)
	if err != nil {
		return rezi.Wrapf(0, "hash: %s", err)
	}

	err = rr.Dec(&decoded.Source)
	if err != nil {
		return rezi.Wrapf(0, "source: %s", err)
	}

	err = rr.Dec(&decoded.Tags)
	if err != nil {
		return rezi.Wrapf(0, "tags: %s", err)
	}

	err = rr.Dec(&created)
	if err != nil {
		return rezi.Wrapf(0, "created: %s", err)
	}
	decoded.Created = Timestamp(created)

	*v = decoded
	return nil
}

func (c Client) MarshalBinary() ([]byte, error) {
	var enc []byte

	enc = append(enc, rezi.MustEnc(c.ID)...)
	enc = append(enc, rezi.MustEnc(c.Name)...)
	enc = append(enc, rezi.MustEnc(c.SchemaID)...)

	return enc, nil
}

func (c *Client) UnmarshalBinary(data []byte) error {
	rr, err := rezi.NewReader(bytes.NewBuffer(data), nil)
	if err != nil {
		return err
	}

	var decoded Client

	err = rr.Dec(&decoded.ID)
	if err != nil {
		return rezi.Wrapf(0, "id: %s", err)
	}

	err = rr.Dec(&decoded.Name)
	if err != nil {
		return rezi.Wrapf(0, "name: %s", err)
	}

	err = rr.Dec(&decoded.SchemaID)
	if err != nil {
		return rezi.Wrapf(0, "schema id: %s", err)
	}

	*c = decoded
	return nil
}

func (v ClientVersion) MarshalBinary() ([]byte, error) {
	var enc []byte

	enc = append(enc, rezi.MustEnc(v.ID)...)
	enc = append(enc, rezi.MustEnc(v.ClientID)...)
	enc = append(enc, rezi.MustEnc(v.ExternalID)...)
	enc = append(enc, rezi.MustEnc(v.QueryIDs)...)
	enc = append(enc, rezi.MustEnc(v.Tags)...)
	enc = append(enc, rezi.MustEnc(v.Created.Time())...)

	return enc, nil
}

func (v *ClientVersion) UnmarshalBinary(data []byte) error {
	rr, err := rezi.NewReader(bytes.NewBuffer(data), nil)
	if err != nil {
		return err
	}

	var decoded ClientVersion
	var created time.Time

	err = rr.Dec(&decoded.ID)
	if err != nil {
		return rezi.Wrapf(0, "id: %s", err)
	}

	err = rr.Dec(&decoded.ClientID)
	if err != nil {
		return rezi.Wrapf(0, "client id: %s", err)
	}

	err = rr.Dec(&decoded.ExternalID)
	if err != nil {
		return rezi.Wrapf(0, "external id: %s", err)
	}

	err = rr.Dec(&decoded.QueryIDs)
	if err != nil {
		return rezi.Wrapf(0, "query ids: %s", err)
	}

	err = rr.Dec(&decoded.Tags)
	if err != nil {
		return rezi.Wrapf(0, "tags: %s", err)
	}

	err = rr.Dec(&created)
	if err != nil {
		return rezi.Wrapf(0, "created: %s", err)
	}
	decoded.Created = Timestamp(created)

	*v = decoded
	return nil
}

func (q Query) MarshalBinary() ([]byte, error) {
	var enc []byte

	enc = append(enc, rezi.MustEnc(q.ID)...)
	enc = append(enc, rezi.MustEnc(q.SchemaID)...)
	enc = append(enc, rezi.MustEnc(q.Hash)...)
	enc = append(enc, rezi.MustEnc(q.ExternalHashes)...)
	enc = append(enc, rezi.MustEnc(q.Source)...)

	return enc, nil
}

func (q *Query) UnmarshalBinary(data []byte) error {
	rr, err := rezi.NewReader(bytes.NewBuffer(data), nil)
	if err != nil {
		return err
	}

	var decoded Query

	err = rr.Dec(&decoded.ID)
	if err != nil {
		return rezi.Wrapf(0, "id: %s", err)
	}

	err = rr.Dec(&decoded.SchemaID)
	if err != nil {
		return rezi.Wrapf(0, "schema id: %s", err)
	}

	err = rr.Dec(&decoded.Hash)
	if err != nil {
		return rezi.Wrapf(0, "hash: %s", err)
	}

	err = rr.Dec(&decoded.ExternalHashes)
	if err != nil {
		return rezi.Wrapf(0, "external hashes: %s", err)
	}

	err = rr.Dec(&decoded.Source)
	if err != nil {
		return rezi.Wrapf(0, "source: %s", err)
	}

	*q = decoded
	return nil
}

func (r PublishReport) MarshalBinary() ([]byte, error) {
	var enc []byte

	enc = append(enc, rezi.MustEnc(r.ID)...)
	enc = append(enc, rezi.MustEnc(r.ClientVersionID)...)
	enc = append(enc, rezi.MustEnc(r.EnvironmentID)...)
	enc = append(enc, rezi.MustEnc(string(r.State))...)
	enc = append(enc, rezi.MustEnc(r.PublishedOn.Time())...)

	return enc, nil
}

func (r *PublishReport) UnmarshalBinary(data []byte) error {
	rr, err := rezi.NewReader(bytes.NewBuffer(data), nil)
	if err != nil {
		return err
	}

	var decoded PublishReport
	var state string
	var publishedOn time.Time

	err = rr.Dec(&decoded.ID)
	if err != nil {
		return rezi.Wrapf(0, "id: %s", err)
	}

	err = rr.Dec(&decoded.ClientVersionID)
	if err != nil {
		return rezi.Wrapf(0, "client version id: %s", err)
	}

	err = rr.Dec(&decoded.EnvironmentID)
	if err != nil {
		return rezi.Wrapf(0, "environment id: %s", err)
	}

	err = rr.Dec(&state)
	if err != nil {
		return rezi.Wrapf(0, "state: %s", err)
	}
	decoded.State = PublishState(state)

	err = rr.Dec(&publishedOn)
	if err != nil {
		return rezi.Wrapf(0, "published on: %s", err)
	}
	decoded.PublishedOn = Timestamp(publishedOn)

	*r = decoded
	return nil
}

func (pc PublishedClient) MarshalBinary() ([]byte, error) {
	var enc []byte

	enc = append(enc, rezi.MustEnc(pc.ID)...)
	enc = append(enc, rezi.MustEnc(pc.EnvironmentID)...)
	enc = append(enc, rezi.MustEnc(pc.SchemaID)...)
	enc = append(enc, rezi.MustEnc(pc.ClientID)...)
	enc = append(enc, rezi.MustEnc(pc.ClientVersionID)...)

	return enc, nil
}

func (pc *PublishedClient) UnmarshalBinary(data []byte) error {
	rr, err := rezi.NewReader(bytes.NewBuffer(data), nil)
	if err != nil {
		return err
	}

	var decoded PublishedClient

	err = rr.Dec(&decoded.ID)
	if err != nil {
		return rezi.Wrapf(0, "id: %s", err)
	}

	err = rr.Dec(&decoded.EnvironmentID)
	if err != nil {
		return rezi.Wrapf(0, "environment id: %s", err)
	}

	err = rr.Dec(&decoded.SchemaID)
	if err != nil {
		return rezi.Wrapf(0, "schema id: %s", err)
	}

	err = rr.Dec(&decoded.ClientID)
	if err != nil {
		return rezi.Wrapf(0, "client id: %s", err)
	}

	err = rr.Dec(&decoded.ClientVersionID)
	if err != nil {
		return rezi.Wrapf(0, "client version id: %s", err)
	}

	*pc = decoded
	return nil
}

// Snapshot is a point-in-time copy of every entity in a Store. Its binary
// form is stable across backends, so a Snapshot taken from one Store can be
// restored into a Store of a different backend.
type Snapshot struct {
	Environments     []Environment
	Schemas          []Schema
	SchemaVersions   []SchemaVersion
	Clients          []Client
	ClientVersions   []ClientVersion
	Queries          []Query
	PublishReports   []PublishReport
	PublishedClients []PublishedClient
}

func (snap Snapshot) MarshalBinary() ([]byte, error) {
	var enc []byte

	enc = append(enc, rezi.MustEnc(snap.Environments)...)
	enc = append(enc, rezi.MustEnc(snap.Schemas)...)
	enc = append(enc, rezi.MustEnc(snap.SchemaVersions)...)
	enc = append(enc, rezi.MustEnc(snap.Clients)...)
	enc = append(enc, rezi.MustEnc(snap.ClientVersions)...)
	enc = append(enc, rezi.MustEnc(snap.Queries)...)
	enc = append(enc, rezi.MustEnc(snap.PublishReports)...)
	enc = append(enc, rezi.MustEnc(snap.PublishedClients)...)

	return enc, nil
}

func (snap *Snapshot) UnmarshalBinary(data []byte) error {
	rr, err := rezi.NewReader(bytes.NewBuffer(data), nil)
	if err != nil {
		return err
	}

	var decoded Snapshot

	err = rr.Dec(&decoded.Environments)
	if err != nil {
		return rezi.Wrapf(0, "environments: %s", err)
	}

	err = rr.Dec(&decoded.Schemas)
	if err != nil {
		return rezi.Wrapf(0, "schemas: %s", err)
	}

	err = rr.Dec(&decoded.SchemaVersions)
	if err != nil {
		return rezi.Wrapf(0, "schema versions: %s", err)
	}

	err = rr.Dec(&decoded.Clients)
	if err != nil {
		return rezi.Wrapf(0, "clients: %s", err)
	}

	err = rr.Dec(&decoded.ClientVersions)
	if err != nil {
		return rezi.Wrapf(0, "client versions: %s", err)
	}

	err = rr.Dec(&decoded.Queries)
	if err != nil {
		return rezi.Wrapf(0, "queries: %s", err)
	}

	err = rr.Dec(&decoded.PublishReports)
	if err != nil {
		return rezi.Wrapf(0, "publish reports: %s", err)
	}

	err = rr.Dec(&decoded.PublishedClients)
	if err != nil {
		return rezi.Wrapf(0, "published clients: %s", err)
	}

	*snap = decoded
	return nil
}

// TakeSnapshot reads every entity out of the given Store.
func TakeSnapshot(ctx context.Context, s Store) (Snapshot, error) {
	var snap Snapshot
	var err error

	snap.Environments, err = s.Environments().List().All(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("environments: %w", err)
	}

	snap.Schemas, err = s.Schemas().List().All(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("schemas: %w", err)
	}

	snap.SchemaVersions, err = s.SchemaVersions().List(nil).All(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("schema versions: %w", err)
	}

	snap.Clients, err = s.Clients().List(nil).All(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("clients: %w", err)
	}

	snap.ClientVersions, err = s.ClientVersions().List(nil).All(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("client versions: %w", err)
	}

	snap.Queries, err = s.Queries().List(nil).All(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("queries: %w", err)
	}

	snap.PublishReports, err = s.PublishReports().List(nil).All(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("publish reports: %w", err)
	}

	snap.PublishedClients, err = s.PublishedClients().List(nil).All(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("published clients: %w", err)
	}

	return snap, nil
}

// Restore writes every entity in the Snapshot into the given Store through
// its ordinary repository operations, preserving IDs. The Store should be
// empty; restoring over existing data fails with a duplicate-key error as
// soon as a snapshot entity collides with a stored one.
func (snap Snapshot) Restore(ctx context.Context, s Store) error {
	for _, env := range snap.Environments {
		if _, err := s.Environments().Create(ctx, env); err != nil {
			return fmt.Errorf("environment %s: %w", env.ID, err)
		}
	}

	for _, sc := range snap.Schemas {
		if _, err := s.Schemas().Create(ctx, sc); err != nil {
			return fmt.Errorf("schema %s: %w", sc.ID, err)
		}
	}

	for _, v := range snap.SchemaVersions {
		if _, err := s.SchemaVersions().Create(ctx, v); err != nil {
			return fmt.Errorf("schema version %s: %w", v.ID, err)
		}
	}

	for _, c := range snap.Clients {
		if _, err := s.Clients().Create(ctx, c); err != nil {
			return fmt.Errorf("client %s: %w", c.ID, err)
		}
	}

	for _, v := range snap.ClientVersions {
		if _, err := s.ClientVersions().Create(ctx, v); err != nil {
			return fmt.Errorf("client version %s: %w", v.ID, err)
		}
	}

	for _, q := range snap.Queries {
		if _, err := s.Queries().Create(ctx, q); err != nil {
			return fmt.Errorf("query %s: %w", q.ID, err)
		}
	}

	for _, r := range snap.PublishReports {
		if _, err := s.PublishReports().Create(ctx, r); err != nil {
			return fmt.Errorf("publish report %s: %w", r.ID, err)
		}
	}

	for _, pc := range snap.PublishedClients {
		if err := s.PublishedClients().Set(ctx, pc); err != nil {
			return fmt.Errorf("published client %s: %w", pc.ID, err)
		}
	}

	return nil
}
