package inmem

import (
	"context"
	"fmt"

	"github.com/dekarrin/taffy/db"
	"github.com/dekarrin/taffy/internal/sortby"
	"github.com/google/uuid"
)

func newSchemaRepo(s *Store) *SchemaRepo {
	return &SchemaRepo{
		s:           s,
		schemas:     make(map[uuid.UUID]db.Schema),
		byNameIndex: make(map[string]uuid.UUID),
	}
}

type SchemaRepo struct {
	s           *Store
	schemas     map[uuid.UUID]db.Schema
	byNameIndex map[string]uuid.UUID
}

func (sr *SchemaRepo) Create(ctx context.Context, sc db.Schema) (db.Schema, error) {
	sr.s.mtx.Lock()
	defer sr.s.mtx.Unlock()

	if sc.ID == uuid.Nil {
		newID, err := uuid.NewRandom()
		if err != nil {
			return db.Schema{}, fmt.Errorf("could not generate ID: %w", err)
		}
		sc.ID = newID
	}

	if _, ok := sr.schemas[sc.ID]; ok {
		return db.Schema{}, db.NewDuplicateKeyError("schema", "ID", nil)
	}
	if _, ok := sr.byNameIndex[sc.Name]; ok {
		return db.Schema{}, db.NewDuplicateKeyError("schema", "Name", nil)
	}

	sr.schemas[sc.ID] = sc
	sr.byNameIndex[sc.Name] = sc.ID

	return sc, nil
}

func (sr *SchemaRepo) Get(ctx context.Context, id uuid.UUID) (db.Schema, error) {
	sr.s.mtx.RLock()
	defer sr.s.mtx.RUnlock()

	sc, ok := sr.schemas[id]
	if !ok {
		return db.Schema{}, db.NewNotFoundError("schema", id)
	}

	return sc, nil
}

func (sr *SchemaRepo) GetByName(ctx context.Context, name string) (db.Schema, bool, error) {
	sr.s.mtx.RLock()
	defer sr.s.mtx.RUnlock()

	id, ok := sr.byNameIndex[name]
	if !ok {
		return db.Schema{}, false, nil
	}

	return sr.schemas[id], true, nil
}

func (sr *SchemaRepo) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]db.Schema, error) {
	sr.s.mtx.RLock()
	defer sr.s.mtx.RUnlock()

	found := make(map[uuid.UUID]db.Schema)
	for _, id := range ids {
		if sc, ok := sr.schemas[id]; ok {
			found[id] = sc
		}
	}

	return found, nil
}

func (sr *SchemaRepo) Update(ctx context.Context, sc db.Schema) error {
	sr.s.mtx.Lock()
	defer sr.s.mtx.Unlock()

	existing, ok := sr.schemas[sc.ID]
	if !ok {
		return nil
	}

	if sc.Name != existing.Name {
		if _, ok := sr.byNameIndex[sc.Name]; ok {
			return db.NewDuplicateKeyError("schema", "Name", nil)
		}
		delete(sr.byNameIndex, existing.Name)
	}

	sr.schemas[sc.ID] = sc
	sr.byNameIndex[sc.Name] = sc.ID

	return nil
}

func (sr *SchemaRepo) Delete(ctx context.Context, id uuid.UUID) (db.Schema, error) {
	sr.s.mtx.Lock()
	defer sr.s.mtx.Unlock()

	sc, ok := sr.schemas[id]
	if !ok {
		return db.Schema{}, db.NewNotFoundError("schema", id)
	}

	delete(sr.byNameIndex, sc.Name)
	delete(sr.schemas, sc.ID)

	return sc, nil
}

func (sr *SchemaRepo) List() *db.Listing[db.Schema] {
	return db.NewListing(func(ctx context.Context) ([]db.Schema, error) {
		sr.s.mtx.RLock()
		defer sr.s.mtx.RUnlock()

		var all []db.Schema
		for k := range sr.schemas {
			all = append(all, sr.schemas[k])
		}

		all = sortby.Less(all, func(l, r db.Schema) bool {
			return l.ID.String() < r.ID.String()
		})

		return all, nil
	})
}

func newSchemaVersionRepo(s *Store) *SchemaVersionRepo {
	return &SchemaVersionRepo{
		s:           s,
		versions:    make(map[uuid.UUID]db.SchemaVersion),
		byHashIndex: make(map[string]uuid.UUID),
	}
}

type SchemaVersionRepo struct {
	s           *Store
	versions    map[uuid.UUID]db.SchemaVersion
	byHashIndex map[string]uuid.UUID
}

func (svr *SchemaVersionRepo) Create(ctx context.Context, v db.SchemaVersion) (db.SchemaVersion, error) {
	svr.s.mtx.Lock()
	defer svr.s.mtx.Unlock()

	if v.ID == uuid.Nil {
		newID, err := uuid.NewRandom()
		if err != nil {
			return db.SchemaVersion{}, fmt.Errorf("could not generate ID: %w", err)
		}
		v.ID = newID
	}

	if _, ok := svr.versions[v.ID]; ok {
		return db.SchemaVersion{}, db.NewDuplicateKeyError("schema version", "ID", nil)
	}
	if _, ok := svr.byHashIndex[v.Hash.Hash]; ok {
		return db.SchemaVersion{}, db.NewDuplicateKeyError("schema version", "Hash", nil)
	}

	v.Tags = db.DedupTags(v.Tags)
	if v.Created.IsZero() {
		v.Created = db.NowTimestamp()
	}

	svr.versions[v.ID] = v
	svr.byHashIndex[v.Hash.Hash] = v.ID

	return v, nil
}

func (svr *SchemaVersionRepo) Get(ctx context.Context, id uuid.UUID) (db.SchemaVersion, error) {
	svr.s.mtx.RLock()
	defer svr.s.mtx.RUnlock()

	v, ok := svr.versions[id]
	if !ok {
		return db.SchemaVersion{}, db.NewNotFoundError("schema version", id)
	}

	return v, nil
}

func (svr *SchemaVersionRepo) GetByHash(ctx context.Context, hash string) (db.SchemaVersion, bool, error) {
	svr.s.mtx.RLock()
	defer svr.s.mtx.RUnlock()

	id, ok := svr.byHashIndex[hash]
	if !ok {
		return db.SchemaVersion{}, false, nil
	}

	return svr.versions[id], true, nil
}

func (svr *SchemaVersionRepo) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]db.SchemaVersion, error) {
	svr.s.mtx.RLock()
	defer svr.s.mtx.RUnlock()

	found := make(map[uuid.UUID]db.SchemaVersion)
	for _, id := range ids {
		if v, ok := svr.versions[id]; ok {
			found[id] = v
		}
	}

	return found, nil
}

func (svr *SchemaVersionRepo) Update(ctx context.Context, v db.SchemaVersion) error {
	svr.s.mtx.Lock()
	defer svr.s.mtx.Unlock()

	existing, ok := svr.versions[v.ID]
	if !ok {
		return nil
	}

	if v.Hash.Hash != existing.Hash.Hash {
		if _, ok := svr.byHashIndex[v.Hash.Hash]; ok {
			return db.NewDuplicateKeyError("schema version", "Hash", nil)
		}
		delete(svr.byHashIndex, existing.Hash.Hash)
	}

	v.Tags = db.DedupTags(v.Tags)

	svr.versions[v.ID] = v
	svr.byHashIndex[v.Hash.Hash] = v.ID

	return nil
}

func (svr *SchemaVersionRepo) UpdateTags(ctx context.Context, id uuid.UUID, tags []db.Tag) error {
	svr.s.mtx.Lock()
	defer svr.s.mtx.Unlock()

	v, ok := svr.versions[id]
	if !ok {
		return nil
	}

	v.Tags = db.DedupTags(tags)
	svr.versions[id] = v

	return nil
}

func (svr *SchemaVersionRepo) Delete(ctx context.Context, id uuid.UUID) (db.SchemaVersion, error) {
	svr.s.mtx.Lock()
	defer svr.s.mtx.Unlock()

	v, ok := svr.versions[id]
	if !ok {
		return db.SchemaVersion{}, db.NewNotFoundError("schema version", id)
	}

	delete(svr.byHashIndex, v.Hash.Hash)
	delete(svr.versions, v.ID)

	return v, nil
}

func (svr *SchemaVersionRepo) List(filter *db.SchemaVersionFilter) *db.Listing[db.SchemaVersion] {
	return db.NewListing(func(ctx context.Context) ([]db.SchemaVersion, error) {
		svr.s.mtx.RLock()
		defer svr.s.mtx.RUnlock()

		var all []db.SchemaVersion
		for k := range svr.versions {
			v := svr.versions[k]
			if filter != nil && filter.SchemaID != nil && v.SchemaID != *filter.SchemaID {
				continue
			}
			all = append(all, v)
		}

		all = sortby.Less(all, func(l, r db.SchemaVersion) bool {
			return l.ID.String() < r.ID.String()
		})

		return all, nil
	})
}
