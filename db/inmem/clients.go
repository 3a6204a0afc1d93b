package inmem

import (
	"context"
	"fmt"

	"github.com/dekarrin/taffy/db"
	"github.com/dekarrin/taffy/internal/sortby"
	"github.com/google/uuid"
)

func newClientRepo(s *Store) *ClientRepo {
	return &ClientRepo{
		s:           s,
		clients:     make(map[uuid.UUID]db.Client),
		byNameIndex: make(map[string]uuid.UUID),
	}
}

type ClientRepo struct {
	s           *Store
	clients     map[uuid.UUID]db.Client
	byNameIndex map[string]uuid.UUID
}

func (cr *ClientRepo) Create(ctx context.Context, c db.Client) (db.Client, error) {
	cr.s.mtx.Lock()
	defer cr.s.mtx.Unlock()

	if c.ID == uuid.Nil {
		newID, err := uuid.NewRandom()
		if err != nil {
			return db.Client{}, fmt.Errorf("could not generate ID: %w", err)
		}
		c.ID = newID
	}

	// make sure it's not already in the DB
	if _, ok := cr.clients[c.ID]; ok {
		return db.Client{}, db.NewDuplicateKeyError("client", "ID", nil)
	}
	if _, ok := cr.byNameIndex[c.Name]; ok {
		return db.Client{}, db.NewDuplicateKeyError("client", "Name", nil)
	}

	cr.clients[c.ID] = c
	cr.byNameIndex[c.Name] = c.ID

	return c, nil
}

func (cr *ClientRepo) Get(ctx context.Context, id uuid.UUID) (db.Client, error) {
	cr.s.mtx.RLock()
	defer cr.s.mtx.RUnlock()

	c, ok := cr.clients[id]
	if !ok {
		return db.Client{}, db.NewNotFoundError("client", id)
	}

	return c, nil
}

func (cr *ClientRepo) GetByName(ctx context.Context, name string) (db.Client, bool, error) {
	cr.s.mtx.RLock()
	defer cr.s.mtx.RUnlock()

	id, ok := cr.byNameIndex[name]
	if !ok {
		return db.Client{}, false, nil
	}

	return cr.clients[id], true, nil
}

func (cr *ClientRepo) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]db.Client, error) {
	cr.s.mtx.RLock()
	defer cr.s.mtx.RUnlock()

	found := make(map[uuid.UUID]db.Client)
	for _, id := range ids {
		if c, ok := cr.clients[id]; ok {
			found[id] = c
		}
	}

	return found, nil
}

func (cr *ClientRepo) Update(ctx context.Context, c db.Client) error {
	cr.s.mtx.Lock()
	defer cr.s.mtx.Unlock()

	existing, ok := cr.clients[c.ID]
	if !ok {
		// nothing stored under that ID; not an error
		return nil
	}

	// check for conflicts on this table only
	// (inmem does not support enforcement of foreign keys)
	if c.Name != existing.Name {
		if _, ok := cr.byNameIndex[c.Name]; ok {
			return db.NewDuplicateKeyError("client", "Name", nil)
		}
		delete(cr.byNameIndex, existing.Name)
	}

	cr.clients[c.ID] = c
	cr.byNameIndex[c.Name] = c.ID

	return nil
}

func (cr *ClientRepo) Delete(ctx context.Context, id uuid.UUID) (db.Client, error) {
	cr.s.mtx.Lock()
	defer cr.s.mtx.Unlock()

	c, ok := cr.clients[id]
	if !ok {
		return db.Client{}, db.NewNotFoundError("client", id)
	}

	delete(cr.byNameIndex, c.Name)
	delete(cr.clients, c.ID)

	return c, nil
}

func (cr *ClientRepo) List(filter *db.ClientFilter) *db.Listing[db.Client] {
	return db.NewListing(func(ctx context.Context) ([]db.Client, error) {
		cr.s.mtx.RLock()
		defer cr.s.mtx.RUnlock()

		var all []db.Client
		for k := range cr.clients {
			c := cr.clients[k]
			if filter != nil && filter.SchemaID != nil && c.SchemaID != *filter.SchemaID {
				continue
			}
			all = append(all, c)
		}

		all = sortby.Less(all, func(l, r db.Client) bool {
			return l.ID.String() < r.ID.String()
		})

		return all, nil
	})
}

func newClientVersionRepo(s *Store) *ClientVersionRepo {
	return &ClientVersionRepo{
		s:                 s,
		versions:          make(map[uuid.UUID]db.ClientVersion),
		byExternalIDIndex: make(map[string]uuid.UUID),
	}
}

type ClientVersionRepo struct {
	s                 *Store
	versions          map[uuid.UUID]db.ClientVersion
	byExternalIDIndex map[string]uuid.UUID
}

func (cvr *ClientVersionRepo) Create(ctx context.Context, v db.ClientVersion) (db.ClientVersion, error) {
	cvr.s.mtx.Lock()
	defer cvr.s.mtx.Unlock()

	if v.ID == uuid.Nil {
		newID, err := uuid.NewRandom()
		if err != nil {
			return db.ClientVersion{}, fmt.Errorf("could not generate ID: %w", err)
		}
		v.ID = newID
	}

	if _, ok := cvr.versions[v.ID]; ok {
		return db.ClientVersion{}, db.NewDuplicateKeyError("client version", "ID", nil)
	}
	if _, ok := cvr.byExternalIDIndex[v.ExternalID]; ok {
		return db.ClientVersion{}, db.NewDuplicateKeyError("client version", "ExternalID", nil)
	}

	v.Tags = db.DedupTags(v.Tags)
	if v.Created.IsZero() {
		v.Created = db.NowTimestamp()
	}

	cvr.versions[v.ID] = v
	cvr.byExternalIDIndex[v.ExternalID] = v.ID

	return v, nil
}

func (cvr *ClientVersionRepo) Get(ctx context.Context, id uuid.UUID) (db.ClientVersion, error) {
	cvr.s.mtx.RLock()
	defer cvr.s.mtx.RUnlock()

	v, ok := cvr.versions[id]
	if !ok {
		return db.ClientVersion{}, db.NewNotFoundError("client version", id)
	}

	return v, nil
}

func (cvr *ClientVersionRepo) GetByExternalID(ctx context.Context, externalID string) (db.ClientVersion, bool, error) {
	cvr.s.mtx.RLock()
	defer cvr.s.mtx.RUnlock()

	id, ok := cvr.byExternalIDIndex[externalID]
	if !ok {
		return db.ClientVersion{}, false, nil
	}

	return cvr.versions[id], true, nil
}

func (cvr *ClientVersionRepo) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]db.ClientVersion, error) {
	cvr.s.mtx.RLock()
	defer cvr.s.mtx.RUnlock()

	found := make(map[uuid.UUID]db.ClientVersion)
	for _, id := range ids {
		if v, ok := cvr.versions[id]; ok {
			found[id] = v
		}
	}

	return found, nil
}

func (cvr *ClientVersionRepo) Update(ctx context.Context, v db.ClientVersion) error {
	cvr.s.mtx.Lock()
	defer cvr.s.mtx.Unlock()

	existing, ok := cvr.versions[v.ID]
	if !ok {
		return nil
	}

	if v.ExternalID != existing.ExternalID {
		if _, ok := cvr.byExternalIDIndex[v.ExternalID]; ok {
			return db.NewDuplicateKeyError("client version", "ExternalID", nil)
		}
		delete(cvr.byExternalIDIndex, existing.ExternalID)
	}

	v.Tags = db.DedupTags(v.Tags)

	cvr.versions[v.ID] = v
	cvr.byExternalIDIndex[v.ExternalID] = v.ID

	return nil
}

func (cvr *ClientVersionRepo) UpdateTags(ctx context.Context, id uuid.UUID, tags []db.Tag) error {
	cvr.s.mtx.Lock()
	defer cvr.s.mtx.Unlock()

	v, ok := cvr.versions[id]
	if !ok {
		return nil
	}

	v.Tags = db.DedupTags(tags)
	cvr.versions[id] = v

	return nil
}

func (cvr *ClientVersionRepo) Delete(ctx context.Context, id uuid.UUID) (db.ClientVersion, error) {
	cvr.s.mtx.Lock()
	defer cvr.s.mtx.Unlock()

	v, ok := cvr.versions[id]
	if !ok {
		return db.ClientVersion{}, db.NewNotFoundError("client version", id)
	}

	delete(cvr.byExternalIDIndex, v.ExternalID)
	delete(cvr.versions, v.ID)

	return v, nil
}

func (cvr *ClientVersionRepo) List(filter *db.ClientVersionFilter) *db.Listing[db.ClientVersion] {
	return db.NewListing(func(ctx context.Context) ([]db.ClientVersion, error) {
		cvr.s.mtx.RLock()
		defer cvr.s.mtx.RUnlock()

		var all []db.ClientVersion
		for k := range cvr.versions {
			v := cvr.versions[k]
			if filter != nil && filter.ClientID != nil && v.ClientID != *filter.ClientID {
				continue
			}
			all = append(all, v)
		}

		all = sortby.Less(all, func(l, r db.ClientVersion) bool {
			return l.ID.String() < r.ID.String()
		})

		return all, nil
	})
}
