package inmem

import (
	"context"
	"fmt"

	"github.com/dekarrin/taffy/db"
	"github.com/dekarrin/taffy/internal/sortby"
	"github.com/google/uuid"
)

// reportPairKey is the unique key of a PublishReport: one report per client
// version per environment.
type reportPairKey struct {
	clientVersionID uuid.UUID
	environmentID   uuid.UUID
}

func newPublishReportRepo(s *Store) *PublishReportRepo {
	return &PublishReportRepo{
		s:           s,
		reports:     make(map[uuid.UUID]db.PublishReport),
		byPairIndex: make(map[reportPairKey]uuid.UUID),
	}
}

type PublishReportRepo struct {
	s           *Store
	reports     map[uuid.UUID]db.PublishReport
	byPairIndex map[reportPairKey]uuid.UUID
}

func (prr *PublishReportRepo) Create(ctx context.Context, r db.PublishReport) (db.PublishReport, error) {
	prr.s.mtx.Lock()
	defer prr.s.mtx.Unlock()

	if r.ID == uuid.Nil {
		newID, err := uuid.NewRandom()
		if err != nil {
			return db.PublishReport{}, fmt.Errorf("could not generate ID: %w", err)
		}
		r.ID = newID
	}

	if _, ok := prr.reports[r.ID]; ok {
		return db.PublishReport{}, db.NewDuplicateKeyError("publish report", "ID", nil)
	}
	key := reportPairKey{r.ClientVersionID, r.EnvironmentID}
	if _, ok := prr.byPairIndex[key]; ok {
		return db.PublishReport{}, db.NewDuplicateKeyError("publish report", "ClientVersionID-EnvironmentID pair", nil)
	}

	if r.PublishedOn.IsZero() {
		r.PublishedOn = db.NowTimestamp()
	}

	prr.reports[r.ID] = r
	prr.byPairIndex[key] = r.ID

	return r, nil
}

func (prr *PublishReportRepo) Get(ctx context.Context, id uuid.UUID) (db.PublishReport, error) {
	prr.s.mtx.RLock()
	defer prr.s.mtx.RUnlock()

	r, ok := prr.reports[id]
	if !ok {
		return db.PublishReport{}, db.NewNotFoundError("publish report", id)
	}

	return r, nil
}

func (prr *PublishReportRepo) GetByVersionAndEnvironment(ctx context.Context, clientVersionID, environmentID uuid.UUID) (db.PublishReport, bool, error) {
	prr.s.mtx.RLock()
	defer prr.s.mtx.RUnlock()

	id, ok := prr.byPairIndex[reportPairKey{clientVersionID, environmentID}]
	if !ok {
		return db.PublishReport{}, false, nil
	}

	return prr.reports[id], true, nil
}

func (prr *PublishReportRepo) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]db.PublishReport, error) {
	prr.s.mtx.RLock()
	defer prr.s.mtx.RUnlock()

	found := make(map[uuid.UUID]db.PublishReport)
	for _, id := range ids {
		if r, ok := prr.reports[id]; ok {
			found[id] = r
		}
	}

	return found, nil
}

func (prr *PublishReportRepo) Update(ctx context.Context, r db.PublishReport) error {
	prr.s.mtx.Lock()
	defer prr.s.mtx.Unlock()

	existing, ok := prr.reports[r.ID]
	if !ok {
		return nil
	}

	oldKey := reportPairKey{existing.ClientVersionID, existing.EnvironmentID}
	newKey := reportPairKey{r.ClientVersionID, r.EnvironmentID}
	if newKey != oldKey {
		if _, ok := prr.byPairIndex[newKey]; ok {
			return db.NewDuplicateKeyError("publish report", "ClientVersionID-EnvironmentID pair", nil)
		}
		delete(prr.byPairIndex, oldKey)
	}

	prr.reports[r.ID] = r
	prr.byPairIndex[newKey] = r.ID

	return nil
}

func (prr *PublishReportRepo) Delete(ctx context.Context, id uuid.UUID) (db.PublishReport, error) {
	prr.s.mtx.Lock()
	defer prr.s.mtx.Unlock()

	r, ok := prr.reports[id]
	if !ok {
		return db.PublishReport{}, db.NewNotFoundError("publish report", id)
	}

	delete(prr.byPairIndex, reportPairKey{r.ClientVersionID, r.EnvironmentID})
	delete(prr.reports, r.ID)

	return r, nil
}

func (prr *PublishReportRepo) List(filter *db.PublishReportFilter) *db.Listing[db.PublishReport] {
	return db.NewListing(func(ctx context.Context) ([]db.PublishReport, error) {
		prr.s.mtx.RLock()
		defer prr.s.mtx.RUnlock()

		var all []db.PublishReport
		for k := range prr.reports {
			r := prr.reports[k]
			if filter != nil {
				if filter.ClientVersionID != nil && r.ClientVersionID != *filter.ClientVersionID {
					continue
				}
				if filter.EnvironmentID != nil && r.EnvironmentID != *filter.EnvironmentID {
					continue
				}
			}
			all = append(all, r)
		}

		all = sortby.Less(all, func(l, r db.PublishReport) bool {
			return l.ID.String() < r.ID.String()
		})

		return all, nil
	})
}

// publishedTripleKey is the unique key of a PublishedClient: one live client
// version per (environment, schema, client).
type publishedTripleKey struct {
	environmentID uuid.UUID
	schemaID      uuid.UUID
	clientID      uuid.UUID
}

func newPublishedClientRepo(s *Store) *PublishedClientRepo {
	return &PublishedClientRepo{
		s:             s,
		published:     make(map[uuid.UUID]db.PublishedClient),
		byTripleIndex: make(map[publishedTripleKey]uuid.UUID),
	}
}

type PublishedClientRepo struct {
	s             *Store
	published     map[uuid.UUID]db.PublishedClient
	byTripleIndex map[publishedTripleKey]uuid.UUID
}

func (pcr *PublishedClientRepo) Set(ctx context.Context, pc db.PublishedClient) error {
	pcr.s.mtx.Lock()
	defer pcr.s.mtx.Unlock()

	if pc.ID == uuid.Nil {
		newID, err := uuid.NewRandom()
		if err != nil {
			return fmt.Errorf("could not generate ID: %w", err)
		}
		pc.ID = newID
	}

	if _, ok := pcr.published[pc.ID]; ok {
		// already recorded under this ID; all fields are insert-only
		return nil
	}

	key := publishedTripleKey{pc.EnvironmentID, pc.SchemaID, pc.ClientID}
	if _, ok := pcr.byTripleIndex[key]; ok {
		return db.NewDuplicateKeyError("published client", "EnvironmentID-SchemaID-ClientID triple", nil)
	}

	pcr.published[pc.ID] = pc
	pcr.byTripleIndex[key] = pc.ID

	return nil
}

func (pcr *PublishedClientRepo) Get(ctx context.Context, environmentID, schemaID, clientID uuid.UUID) (db.PublishedClient, bool, error) {
	pcr.s.mtx.RLock()
	defer pcr.s.mtx.RUnlock()

	id, ok := pcr.byTripleIndex[publishedTripleKey{environmentID, schemaID, clientID}]
	if !ok {
		return db.PublishedClient{}, false, nil
	}

	return pcr.published[id], true, nil
}

func (pcr *PublishedClientRepo) GetByID(ctx context.Context, id uuid.UUID) (db.PublishedClient, error) {
	pcr.s.mtx.RLock()
	defer pcr.s.mtx.RUnlock()

	pc, ok := pcr.published[id]
	if !ok {
		return db.PublishedClient{}, db.NewNotFoundError("published client", id)
	}

	return pc, nil
}

func (pcr *PublishedClientRepo) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]db.PublishedClient, error) {
	pcr.s.mtx.RLock()
	defer pcr.s.mtx.RUnlock()

	found := make(map[uuid.UUID]db.PublishedClient)
	for _, id := range ids {
		if pc, ok := pcr.published[id]; ok {
			found[id] = pc
		}
	}

	return found, nil
}

func (pcr *PublishedClientRepo) Delete(ctx context.Context, id uuid.UUID) (db.PublishedClient, error) {
	pcr.s.mtx.Lock()
	defer pcr.s.mtx.Unlock()

	pc, ok := pcr.published[id]
	if !ok {
		return db.PublishedClient{}, db.NewNotFoundError("published client", id)
	}

	delete(pcr.byTripleIndex, publishedTripleKey{pc.EnvironmentID, pc.SchemaID, pc.ClientID})
	delete(pcr.published, pc.ID)

	return pc, nil
}

func (pcr *PublishedClientRepo) List(filter *db.PublishedClientFilter) *db.Listing[db.PublishedClient] {
	return db.NewListing(func(ctx context.Context) ([]db.PublishedClient, error) {
		pcr.s.mtx.RLock()
		defer pcr.s.mtx.RUnlock()

		var all []db.PublishedClient
		for k := range pcr.published {
			pc := pcr.published[k]
			if filter != nil {
				if filter.EnvironmentID != nil && pc.EnvironmentID != *filter.EnvironmentID {
					continue
				}
				if filter.SchemaID != nil && pc.SchemaID != *filter.SchemaID {
					continue
				}
			}
			all = append(all, pc)
		}

		all = sortby.Less(all, func(l, r db.PublishedClient) bool {
			return l.ID.String() < r.ID.String()
		})

		return all, nil
	})
}
