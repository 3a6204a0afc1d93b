package postgres

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

type SchemasDB struct {
	DB *sql.DB
}

func (repo *SchemasDB) init() error {
	_, err := repo.DB.Exec(`CREATE TABLE IF NOT EXISTS schemas (
		id UUID NOT NULL PRIMARY KEY,
		name TEXT NOT NULL,
		data JSONB NOT NULL,
		CONSTRAINT schemas_name_uniq UNIQUE (name)
	);`)
	if err != nil {
		return wrapDBError(err, "schema")
	}

	return nil
}

func scanSchema(r rowScanner) (db.Schema, error) {
	var sc db.Schema
	var id uuid.UUID
	var name string
	var data []byte

	if err := r.Scan(&id, &name, &data); err != nil {
		return db.Schema{}, err
	}
	if err := json.Unmarshal(data, &sc); err != nil {
		return db.Schema{}, taffy.NewErrorf([]error{err, taffy.ErrDecodingFailure}, "decode schema document")
	}

	sc.ID = id
	sc.Name = name

	return sc, nil
}

func (repo *SchemasDB) Create(ctx context.Context, sc db.Schema) (db.Schema, error) {
	if sc.ID == uuid.Nil {
		newID, err := uuid.NewRandom()
		if err != nil {
			return db.Schema{}, fmt.Errorf("could not generate ID: %w", err)
		}
		sc.ID = newID
	}

	data, err := json.Marshal(sc)
	if err != nil {
		return db.Schema{}, fmt.Errorf("encode schema document: %w", err)
	}

	_, err = repo.DB.ExecContext(ctx, `INSERT INTO schemas (id, name, data) VALUES ($1, $2, $3);`,
		sc.ID,
		sc.Name,
		string(data),
	)
	if err != nil {
		return db.Schema{}, wrapDBError(err, "schema")
	}

	return sc, nil
}

func (repo *SchemasDB) Get(ctx context.Context, id uuid.UUID) (db.Schema, error) {
	row := repo.DB.QueryRowContext(ctx, `SELECT id, name, data FROM schemas WHERE id = $1;`, id)

	sc, err := scanSchema(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return db.Schema{}, db.NewNotFoundError("schema", id)
		}
		return db.Schema{}, wrapDBError(err, "schema")
	}

	return sc, nil
}

func (repo *SchemasDB) GetByName(ctx context.Context, name string) (db.Schema, bool, error) {
	row := repo.DB.QueryRowContext(ctx, `SELECT id, name, data FROM schemas WHERE name = $1;`, name)

	sc, err := scanSchema(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return db.Schema{}, false, nil
		}
		return db.Schema{}, false, wrapDBError(err, "schema")
	}

	return sc, true, nil
}

func (repo *SchemasDB) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]db.Schema, error) {
	found := make(map[uuid.UUID]db.Schema)
	if len(ids) == 0 {
		return found, nil
	}

	params := make([]string, len(ids))
	args := make([]any, len(ids))
	for i := range ids {
		params[i] = fmt.Sprintf("$%d", i+1)
		args[i] = ids[i]
	}

	rows, err := repo.DB.QueryContext(ctx, `SELECT id, name, data FROM schemas WHERE id IN (`+strings.Join(params, ", ")+`);`, args...)
	if err != nil {
		return nil, wrapDBError(err, "schema")
	}
	defer rows.Close()

	for rows.Next() {
		sc, err := scanSchema(rows)
		if err != nil {
			return nil, wrapDBError(err, "schema")
		}
		found[sc.ID] = sc
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError(err, "schema")
	}

	return found, nil
}

func (repo *SchemasDB) Update(ctx context.Context, sc db.Schema) error {
	data, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("encode schema document: %w", err)
	}

	_, err = repo.DB.ExecContext(ctx, `UPDATE schemas SET name=$1, data=$2 WHERE id=$3;`,
		sc.Name,
		string(data),
		sc.ID,
	)
	if err != nil {
		return wrapDBError(err, "schema")
	}

	return nil
}

func (repo *SchemasDB) Delete(ctx context.Context, id uuid.UUID) (db.Schema, error) {
	curVal, err := repo.Get(ctx, id)
	if err != nil {
		return curVal, err
	}

	res, err := repo.DB.ExecContext(ctx, `DELETE FROM schemas WHERE id = $1;`, id)
	if err != nil {
		return curVal, wrapDBError(err, "schema")
	}
	rowsAff, err := res.RowsAffected()
	if err != nil {
		return curVal, wrapDBError(err, "schema")
	}
	if rowsAff < 1 {
		return curVal, db.NewNotFoundError("schema", id)
	}

	return curVal, nil
}

func (repo *SchemasDB) List() *db.Listing[db.Schema] {
	return db.NewListing(func(ctx context.Context) ([]db.Schema, error) {
		rows, err := repo.DB.QueryContext(ctx, `SELECT id, name, data FROM schemas ORDER BY id;`)
		if err != nil {
			return nil, wrapDBError(err, "schema")
		}
		defer rows.Close()

		var all []db.Schema
		for rows.Next() {
			sc, err := scanSchema(rows)
			if err != nil {
				return nil, wrapDBError(err, "schema")
			}
			all = append(all, sc)
		}
		if err := rows.Err(); err != nil {
			return all, wrapDBError(err, "schema")
		}

		return all, nil
	})
}

type SchemaVersionsDB struct {
	DB *sql.DB
}

func (repo *SchemaVersionsDB) init() error {
	_, err := repo.DB.Exec(`CREATE TABLE IF NOT EXISTS schema_versions (
		id UUID NOT NULL PRIMARY KEY,
		schema_id UUID NOT NULL,
		hash TEXT NOT NULL,
		data JSONB NOT NULL,
		CONSTRAINT schema_versions_hash_uniq UNIQUE (hash)
	);`)
	if err != nil {
		return wrapDBError(err, "schema version")
	}

	_, err = repo.DB.Exec(`CREATE INDEX IF NOT EXISTS idx_schema_versions_schema_id ON schema_versions (schema_id);`)
	if err != nil {
		return wrapDBError(err, "schema version")
	}

	return nil
}

func scanSchemaVersion(r rowScanner) (db.SchemaVersion, error) {
	var v db.SchemaVersion
	var id, schemaID uuid.UUID
	var hash string
	var data []byte

	if err := r.Scan(&id, &schemaID, &hash, &data); err != nil {
		return db.SchemaVersion{}, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return db.SchemaVersion{}, taffy.NewErrorf([]error{err, taffy.ErrDecodingFailure}, "decode schema version document")
	}

	v.ID = id
	v.SchemaID = schemaID
	v.Hash.Hash = hash

	return v, nil
}

func (repo *SchemaVersionsDB) Create(ctx context.Context, v db.SchemaVersion) (db.SchemaVersion, error) {
	if v.ID == uuid.Nil {
		newID, err := uuid.NewRandom()
		if err != nil {
			return db.SchemaVersion{}, fmt.Errorf("could not generate ID: %w", err)
		}
		v.ID = newID
	}

	v.Tags = db.DedupTags(v.Tags)
	if v.Created.IsZero() {
		v.Created = db.NowTimestamp()
	}

	data, err := json.Marshal(v)
	if err != nil {
		return db.SchemaVersion{}, fmt.Errorf("encode schema version document: %w", err)
	}

	_, err = repo.DB.ExecContext(ctx, `INSERT INTO schema_versions (id, schema_id, hash, data) VALUES ($1, $2, $3, $4);`,
		v.ID,
		v.SchemaID,
		v.Hash.Hash,
		string(data),
	)
	if err != nil {
		return db.SchemaVersion{}, wrapDBError(err, "schema version")
	}

	return v, nil
}

func (repo *SchemaVersionsDB) Get(ctx context.Context, id uuid.UUID) (db.SchemaVersion, error) {
	row := repo.DB.QueryRowContext(ctx, `SELECT id, schema_id, hash, data FROM schema_versions WHERE id = $1;`, id)

	v, err := scanSchemaVersion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return db.SchemaVersion{}, db.NewNotFoundError("schema version", id)
		}
		return db.SchemaVersion{}, wrapDBError(err, "schema version")
	}

	return v, nil
}

func (repo *SchemaVersionsDB) GetByHash(ctx context.Context, hash string) (db.SchemaVersion, bool, error) {
	row := repo.DB.QueryRowContext(ctx, `SELECT id, schema_id, hash, data FROM schema_versions WHERE hash = $1;`, hash)

	v, err := scanSchemaVersion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return db.SchemaVersion{}, false, nil
		}
		return db.SchemaVersion{}, false, wrapDBError(err, "schema version")
	}

	return v, true, nil
}

func (repo *SchemaVersionsDB) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]db.SchemaVersion, error) {
	found := make(map[uuid.UUID]db.SchemaVersion)
	if len(ids) == 0 {
		return found, nil
	}

	params := make([]string, len(ids))
	args := make([]any, len(ids))
	for i := range ids {
		params[i] = fmt.Sprintf("$%d", i+1)
		args[i] = ids[i]
	}

	rows, err := repo.DB.QueryContext(ctx, `SELECT id, schema_id, hash, data FROM schema_versions WHERE id IN (`+strings.Join(params, ", ")+`);`, args...)
	if err != nil {
		return nil, wrapDBError(err, "schema version")
	}
	defer rows.Close()

	for rows.Next() {
		v, err := scanSchemaVersion(rows)
		if err != nil {
			return nil, wrapDBError(err, "schema version")
		}
		found[v.ID] = v
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError(err, "schema version")
	}

	return found, nil
}

func (repo *SchemaVersionsDB) Update(ctx context.Context, v db.SchemaVersion) error {
	v.Tags = db.DedupTags(v.Tags)

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode schema version document: %w", err)
	}

	_, err = repo.DB.ExecContext(ctx, `UPDATE schema_versions SET schema_id=$1, hash=$2, data=$3 WHERE id=$4;`,
		v.SchemaID,
		v.Hash.Hash,
		string(data),
		v.ID,
	)
	if err != nil {
		return wrapDBError(err, "schema version")
	}

	return nil
}

func (repo *SchemaVersionsDB) UpdateTags(ctx context.Context, id uuid.UUID, tags []db.Tag) error {
	v, err := repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, taffy.ErrNotFound) {
			// nothing stored under that ID; not an error
			return nil
		}
		return err
	}

	v.Tags = db.DedupTags(tags)

	return repo.Update(ctx, v)
}

func (repo *SchemaVersionsDB) Delete(ctx context.Context, id uuid.UUID) (db.SchemaVersion, error) {
	curVal, err := repo.Get(ctx, id)
	if err != nil {
		return curVal, err
	}

	res, err := repo.DB.ExecContext(ctx, `DELETE FROM schema_versions WHERE id = $1;`, id)
	if err != nil {
		return curVal, wrapDBError(err, "schema version")
	}
	rowsAff, err := res.RowsAffected()
	if err != nil {
		return curVal, wrapDBError(err, "schema version")
	}
	if rowsAff < 1 {
		return curVal, db.NewNotFoundError("schema version", id)
	}

	return curVal, nil
}

func (repo *SchemaVersionsDB) List(filter *db.SchemaVersionFilter) *db.Listing[db.SchemaVersion] {
	return db.NewListing(func(ctx context.Context) ([]db.SchemaVersion, error) {
		q := `SELECT id, schema_id, hash, data FROM schema_versions`
		var args []any
		if filter != nil && filter.SchemaID != nil {
			q += ` WHERE schema_id = $1`
			args = append(args, *filter.SchemaID)
		}
		q += ` ORDER BY id;`

		rows, err := repo.DB.QueryContext(ctx, q, args...)
		if err != nil {
			return nil, wrapDBError(err, "schema version")
		}
		defer rows.Close()

		var all []db.SchemaVersion
		for rows.Next() {
			v, err := scanSchemaVersion(rows)
			if err != nil {
				return nil, wrapDBError(err, "schema version")
			}
			all = append(all, v)
		}
		if err := rows.Err(); err != nil {
			return all, wrapDBError(err, "schema version")
		}

		return all, nil
	})
}
