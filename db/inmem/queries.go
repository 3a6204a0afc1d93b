package inmem

import (
	"context"
	"fmt"

	"github.com/dekarrin/taffy/db"
	"github.com/dekarrin/taffy/internal/sortby"
	"github.com/google/uuid"
)

func newQueryRepo(s *Store) *QueryRepo {
	return &QueryRepo{
		s:              s,
		queries:        make(map[uuid.UUID]db.Query),
		byHashIndex:    make(map[string]uuid.UUID),
		byExternalHash: make(map[string][]uuid.UUID),
	}
}

type QueryRepo struct {
	s       *Store
	queries map[uuid.UUID]db.Query

	// byHashIndex maps primary hash values to the single query owning each.
	byHashIndex map[string]uuid.UUID

	// byExternalHash maps external hash values to every query listing each.
	// Unlike the primary index it is not unique.
	byExternalHash map[string][]uuid.UUID
}

func (qr *QueryRepo) Create(ctx context.Context, q db.Query) (db.Query, error) {
	qr.s.mtx.Lock()
	defer qr.s.mtx.Unlock()

	if q.ID == uuid.Nil {
		newID, err := uuid.NewRandom()
		if err != nil {
			return db.Query{}, fmt.Errorf("could not generate ID: %w", err)
		}
		q.ID = newID
	}

	if _, ok := qr.queries[q.ID]; ok {
		return db.Query{}, db.NewDuplicateKeyError("query", "ID", nil)
	}
	if _, ok := qr.byHashIndex[q.Hash.Hash]; ok {
		return db.Query{}, db.NewDuplicateKeyError("query", "Hash", nil)
	}

	qr.queries[q.ID] = q
	qr.byHashIndex[q.Hash.Hash] = q.ID
	for _, h := range q.ExternalHashes {
		qr.byExternalHash[h.Hash] = append(qr.byExternalHash[h.Hash], q.ID)
	}

	return q, nil
}

func (qr *QueryRepo) Get(ctx context.Context, id uuid.UUID) (db.Query, error) {
	qr.s.mtx.RLock()
	defer qr.s.mtx.RUnlock()

	q, ok := qr.queries[id]
	if !ok {
		return db.Query{}, db.NewNotFoundError("query", id)
	}

	return q, nil
}

func (qr *QueryRepo) GetByHash(ctx context.Context, hash string) (db.Query, bool, error) {
	qr.s.mtx.RLock()
	defer qr.s.mtx.RUnlock()

	// primary index first; externals are consulted only on a miss
	if id, ok := qr.byHashIndex[hash]; ok {
		return qr.queries[id], true, nil
	}

	ids := qr.byExternalHash[hash]
	if len(ids) == 0 {
		return db.Query{}, false, nil
	}

	return qr.queries[ids[0]], true, nil
}

func (qr *QueryRepo) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]db.Query, error) {
	qr.s.mtx.RLock()
	defer qr.s.mtx.RUnlock()

	found := make(map[uuid.UUID]db.Query)
	for _, id := range ids {
		if q, ok := qr.queries[id]; ok {
			found[id] = q
		}
	}

	return found, nil
}

func (qr *QueryRepo) Update(ctx context.Context, q db.Query) error {
	qr.s.mtx.Lock()
	defer qr.s.mtx.Unlock()

	existing, ok := qr.queries[q.ID]
	if !ok {
		return nil
	}

	if q.Hash.Hash != existing.Hash.Hash {
		if _, ok := qr.byHashIndex[q.Hash.Hash]; ok {
			return db.NewDuplicateKeyError("query", "Hash", nil)
		}
		delete(qr.byHashIndex, existing.Hash.Hash)
	}

	for _, h := range existing.ExternalHashes {
		qr.dropExternal(h.Hash, q.ID)
	}

	qr.queries[q.ID] = q
	qr.byHashIndex[q.Hash.Hash] = q.ID
	for _, h := range q.ExternalHashes {
		qr.byExternalHash[h.Hash] = append(qr.byExternalHash[h.Hash], q.ID)
	}

	return nil
}

func (qr *QueryRepo) Delete(ctx context.Context, id uuid.UUID) (db.Query, error) {
	qr.s.mtx.Lock()
	defer qr.s.mtx.Unlock()

	q, ok := qr.queries[id]
	if !ok {
		return db.Query{}, db.NewNotFoundError("query", id)
	}

	delete(qr.byHashIndex, q.Hash.Hash)
	for _, h := range q.ExternalHashes {
		qr.dropExternal(h.Hash, q.ID)
	}
	delete(qr.queries, q.ID)

	return q, nil
}

func (qr *QueryRepo) List(filter *db.QueryFilter) *db.Listing[db.Query] {
	return db.NewListing(func(ctx context.Context) ([]db.Query, error) {
		qr.s.mtx.RLock()
		defer qr.s.mtx.RUnlock()

		var all []db.Query
		for k := range qr.queries {
			q := qr.queries[k]
			if filter != nil && filter.SchemaID != nil && q.SchemaID != *filter.SchemaID {
				continue
			}
			all = append(all, q)
		}

		all = sortby.Less(all, func(l, r db.Query) bool {
			return l.ID.String() < r.ID.String()
		})

		return all, nil
	})
}

// dropExternal removes every occurrence of id from the external-hash bucket
// for hash, deleting the bucket entirely when it empties.
func (qr *QueryRepo) dropExternal(hash string, id uuid.UUID) {
	ids := qr.byExternalHash[hash]

	var kept []uuid.UUID
	for _, cur := range ids {
		if cur != id {
			kept = append(kept, cur)
		}
	}

	if len(kept) == 0 {
		delete(qr.byExternalHash, hash)
	} else {
		qr.byExternalHash[hash] = kept
	}
}
