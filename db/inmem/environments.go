package inmem

import (
	"context"
	"fmt"

	"github.com/dekarrin/taffy/db"
	"github.com/dekarrin/taffy/internal/sortby"
	"github.com/google/uuid"
)

func newEnvironmentRepo(s *Store) *EnvironmentRepo {
	return &EnvironmentRepo{
		s:            s,
		environments: make(map[uuid.UUID]db.Environment),
		byNameIndex:  make(map[string]uuid.UUID),
	}
}

type EnvironmentRepo struct {
	s            *Store
	environments map[uuid.UUID]db.Environment
	byNameIndex  map[string]uuid.UUID
}

func (er *EnvironmentRepo) Create(ctx context.Context, env db.Environment) (db.Environment, error) {
	er.s.mtx.Lock()
	defer er.s.mtx.Unlock()

	if env.ID == uuid.Nil {
		newID, err := uuid.NewRandom()
		if err != nil {
			return db.Environment{}, fmt.Errorf("could not generate ID: %w", err)
		}
		env.ID = newID
	}

	if _, ok := er.environments[env.ID]; ok {
		return db.Environment{}, db.NewDuplicateKeyError("environment", "ID", nil)
	}
	if _, ok := er.byNameIndex[env.Name]; ok {
		return db.Environment{}, db.NewDuplicateKeyError("environment", "Name", nil)
	}

	er.environments[env.ID] = env
	er.byNameIndex[env.Name] = env.ID

	return env, nil
}

func (er *EnvironmentRepo) Get(ctx context.Context, id uuid.UUID) (db.Environment, error) {
	er.s.mtx.RLock()
	defer er.s.mtx.RUnlock()

	env, ok := er.environments[id]
	if !ok {
		return db.Environment{}, db.NewNotFoundError("environment", id)
	}

	return env, nil
}

func (er *EnvironmentRepo) GetByName(ctx context.Context, name string) (db.Environment, bool, error) {
	er.s.mtx.RLock()
	defer er.s.mtx.RUnlock()

	id, ok := er.byNameIndex[name]
	if !ok {
		return db.Environment{}, false, nil
	}

	return er.environments[id], true, nil
}

func (er *EnvironmentRepo) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]db.Environment, error) {
	er.s.mtx.RLock()
	defer er.s.mtx.RUnlock()

	found := make(map[uuid.UUID]db.Environment)
	for _, id := range ids {
		if env, ok := er.environments[id]; ok {
			found[id] = env
		}
	}

	return found, nil
}

func (er *EnvironmentRepo) Update(ctx context.Context, env db.Environment) error {
	er.s.mtx.Lock()
	defer er.s.mtx.Unlock()

	existing, ok := er.environments[env.ID]
	if !ok {
		return nil
	}

	if env.Name != existing.Name {
		if _, ok := er.byNameIndex[env.Name]; ok {
			return db.NewDuplicateKeyError("environment", "Name", nil)
		}
		delete(er.byNameIndex, existing.Name)
	}

	er.environments[env.ID] = env
	er.byNameIndex[env.Name] = env.ID

	return nil
}

func (er *EnvironmentRepo) Delete(ctx context.Context, id uuid.UUID) (db.Environment, error) {
	er.s.mtx.Lock()
	defer er.s.mtx.Unlock()

	env, ok := er.environments[id]
	if !ok {
		return db.Environment{}, db.NewNotFoundError("environment", id)
	}

	delete(er.byNameIndex, env.Name)
	delete(er.environments, env.ID)

	return env, nil
}

func (er *EnvironmentRepo) List() *db.Listing[db.Environment] {
	return db.NewListing(func(ctx context.Context) ([]db.Environment, error) {
		er.s.mtx.RLock()
		defer er.s.mtx.RUnlock()

		var all []db.Environment
		for k := range er.environments {
			all = append(all, er.environments[k])
		}

		all = sortby.Less(all, func(l, r db.Environment) bool {
			return l.ID.String() < r.ID.String()
		})

		return all, nil
	})
}
