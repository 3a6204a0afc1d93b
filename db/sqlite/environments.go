package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dekarrin/taffy"
	"github.com/dekarrin/taffy/db"
	"github.com/google/uuid"
)

type EnvironmentsDB struct {
	DB *sql.DB
}

func (repo *EnvironmentsDB) init() error {
	_, err := repo.DB.Exec(`CREATE TABLE IF NOT EXISTS environments (
		id TEXT NOT NULL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		data TEXT NOT NULL
	);`)
	if err != nil {
		return wrapDBError(err, "environment")
	}

	return nil
}

func scanEnvironment(r rowScanner) (db.Environment, error) {
	var env db.Environment
	var id uuid.UUID
	var name string
	var data []byte

	if err := r.Scan(&id, &name, &data); err != nil {
		return db.Environment{}, err
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return db.Environment{}, taffy.NewErrorf([]error{err, taffy.ErrDecodingFailure}, "decode environment document")
	}

	env.ID = id
	env.Name = name

	return env, nil
}

func (repo *EnvironmentsDB) Create(ctx context.Context, env db.Environment) (db.Environment, error) {
	if env.ID == uuid.Nil {
		newID, err := uuid.NewRandom()
		if err != nil {
			return db.Environment{}, fmt.Errorf("could not generate ID: %w", err)
		}
		env.ID = newID
	}

	data, err := json.Marshal(env)
	if err != nil {
		return db.Environment{}, fmt.Errorf("encode environment document: %w", err)
	}

	_, err = repo.DB.ExecContext(ctx, `INSERT INTO environments (id, name, data) VALUES (?, ?, ?);`,
		env.ID,
		env.Name,
		string(data),
	)
	if err != nil {
		return db.Environment{}, wrapDBError(err, "environment")
	}

	return env, nil
}

func (repo *EnvironmentsDB) Get(ctx context.Context, id uuid.UUID) (db.Environment, error) {
	row := repo.DB.QueryRowContext(ctx, `SELECT id, name, data FROM environments WHERE id = ?;`, id)

	env, err := scanEnvironment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return db.Environment{}, db.NewNotFoundError("environment", id)
		}
		return db.Environment{}, wrapDBError(err, "environment")
	}

	return env, nil
}

func (repo *EnvironmentsDB) GetByName(ctx context.Context, name string) (db.Environment, bool, error) {
	row := repo.DB.QueryRowContext(ctx, `SELECT id, name, data FROM environments WHERE name = ?;`, name)

	env, err := scanEnvironment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return db.Environment{}, false, nil
		}
		return db.Environment{}, false, wrapDBError(err, "environment")
	}

	return env, true, nil
}

func (repo *EnvironmentsDB) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]db.Environment, error) {
	found := make(map[uuid.UUID]db.Environment)
	if len(ids) == 0 {
		return found, nil
	}

	qMarks := make([]string, len(ids))
	args := make([]any, len(ids))
	for i := range ids {
		qMarks[i] = "?"
		args[i] = ids[i]
	}

	rows, err := repo.DB.QueryContext(ctx, `SELECT id, name, data FROM environments WHERE id IN (`+strings.Join(qMarks, ", ")+`);`, args...)
	if err != nil {
		return nil, wrapDBError(err, "environment")
	}
	defer rows.Close()

	for rows.Next() {
		env, err := scanEnvironment(rows)
		if err != nil {
			return nil, wrapDBError(err, "environment")
		}
		found[env.ID] = env
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError(err, "environment")
	}

	return found, nil
}

func (repo *EnvironmentsDB) Update(ctx context.Context, env db.Environment) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode environment document: %w", err)
	}

	_, err = repo.DB.ExecContext(ctx, `UPDATE environments SET name=?, data=? WHERE id=?;`,
		env.Name,
		string(data),
		env.ID,
	)
	if err != nil {
		return wrapDBError(err, "environment")
	}

	return nil
}

func (repo *EnvironmentsDB) Delete(ctx context.Context, id uuid.UUID) (db.Environment, error) {
	curVal, err := repo.Get(ctx, id)
	if err != nil {
		return curVal, err
	}

	res, err := repo.DB.ExecContext(ctx, `DELETE FROM environments WHERE id = ?;`, id)
	if err != nil {
		return curVal, wrapDBError(err, "environment")
	}
	rowsAff, err := res.RowsAffected()
	if err != nil {
		return curVal, wrapDBError(err, "environment")
	}
	if rowsAff < 1 {
		return curVal, db.NewNotFoundError("environment", id)
	}

	return curVal, nil
}

func (repo *EnvironmentsDB) List() *db.Listing[db.Environment] {
	return db.NewListing(func(ctx context.Context) ([]db.Environment, error) {
		rows, err := repo.DB.QueryContext(ctx, `SELECT id, name, data FROM environments ORDER BY id;`)
		if err != nil {
			return nil, wrapDBError(err, "environment")
		}
		defer rows.Close()

		var all []db.Environment
		for rows.Next() {
			env, err := scanEnvironment(rows)
			if err != nil {
				return nil, wrapDBError(err, "environment")
			}
			all = append(all, env)
		}
		if err := rows.Err(); err != nil {
			return all, wrapDBError(err, "environment")
		}

		return all, nil
	})
}
