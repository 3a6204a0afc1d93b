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

type QueriesDB struct {
	DB *sql.DB
}

func (repo *QueriesDB) init() error {
	_, err := repo.DB.Exec(`CREATE TABLE IF NOT EXISTS queries (
		id TEXT NOT NULL PRIMARY KEY,
		schema_id TEXT NOT NULL,
		hash TEXT NOT NULL UNIQUE,
		data TEXT NOT NULL
	);`)
	if err != nil {
		return wrapDBError(err, "query")
	}

	_, err = repo.DB.Exec(`CREATE INDEX IF NOT EXISTS idx_queries_schema_id ON queries (schema_id);`)
	if err != nil {
		return wrapDBError(err, "query")
	}

	// external hash values are a non-unique lookup index, so they live in a
	// side table rather than a column constraint
	_, err = repo.DB.Exec(`CREATE TABLE IF NOT EXISTS query_external_hashes (
		hash TEXT NOT NULL,
		query_id TEXT NOT NULL
	);`)
	if err != nil {
		return wrapDBError(err, "query")
	}

	_, err = repo.DB.Exec(`CREATE INDEX IF NOT EXISTS idx_query_external_hashes_hash ON query_external_hashes (hash);`)
	if err != nil {
		return wrapDBError(err, "query")
	}

	_, err = repo.DB.Exec(`CREATE INDEX IF NOT EXISTS idx_query_external_hashes_query_id ON query_external_hashes (query_id);`)
	if err != nil {
		return wrapDBError(err, "query")
	}

	return nil
}

func scanQuery(r rowScanner) (db.Query, error) {
	var q db.Query
	var id, schemaID uuid.UUID
	var hash string
	var data []byte

	if err := r.Scan(&id, &schemaID, &hash, &data); err != nil {
		return db.Query{}, err
	}
	if err := json.Unmarshal(data, &q); err != nil {
		return db.Query{}, taffy.NewErrorf([]error{err, taffy.ErrDecodingFailure}, "decode query document")
	}

	q.ID = id
	q.SchemaID = schemaID
	q.Hash.Hash = hash

	return q, nil
}

func (repo *QueriesDB) Create(ctx context.Context, q db.Query) (db.Query, error) {
	if q.ID == uuid.Nil {
		newID, err := uuid.NewRandom()
		if err != nil {
			return db.Query{}, fmt.Errorf("could not generate ID: %w", err)
		}
		q.ID = newID
	}

	data, err := json.Marshal(q)
	if err != nil {
		return db.Query{}, fmt.Errorf("encode query document: %w", err)
	}

	// the main row and the side-table rows must land together
	tx, err := repo.DB.BeginTx(ctx, nil)
	if err != nil {
		return db.Query{}, wrapDBError(err, "query")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO queries (id, schema_id, hash, data) VALUES (?, ?, ?, ?);`,
		q.ID,
		q.SchemaID,
		q.Hash.Hash,
		string(data),
	)
	if err != nil {
		return db.Query{}, wrapDBError(err, "query")
	}

	if err := insertExternalHashes(ctx, tx, q); err != nil {
		return db.Query{}, err
	}

	if err := tx.Commit(); err != nil {
		return db.Query{}, wrapDBError(err, "query")
	}

	return q, nil
}

func insertExternalHashes(ctx context.Context, tx *sql.Tx, q db.Query) error {
	for _, h := range q.ExternalHashes {
		_, err := tx.ExecContext(ctx, `INSERT INTO query_external_hashes (hash, query_id) VALUES (?, ?);`,
			h.Hash,
			q.ID,
		)
		if err != nil {
			return wrapDBError(err, "query")
		}
	}
	return nil
}

func (repo *QueriesDB) Get(ctx context.Context, id uuid.UUID) (db.Query, error) {
	row := repo.DB.QueryRowContext(ctx, `SELECT id, schema_id, hash, data FROM queries WHERE id = ?;`, id)

	q, err := scanQuery(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return db.Query{}, db.NewNotFoundError("query", id)
		}
		return db.Query{}, wrapDBError(err, "query")
	}

	return q, nil
}

func (repo *QueriesDB) GetByHash(ctx context.Context, hash string) (db.Query, bool, error) {
	// primary hash index first
	row := repo.DB.QueryRowContext(ctx, `SELECT id, schema_id, hash, data FROM queries WHERE hash = ?;`, hash)

	q, err := scanQuery(row)
	if err == nil {
		return q, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return db.Query{}, false, wrapDBError(err, "query")
	}

	// only on a primary miss is the external index consulted
	row = repo.DB.QueryRowContext(ctx, `SELECT q.id, q.schema_id, q.hash, q.data
		FROM queries q INNER JOIN query_external_hashes x ON x.query_id = q.id
		WHERE x.hash = ? LIMIT 1;`, hash)

	q, err = scanQuery(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return db.Query{}, false, nil
		}
		return db.Query{}, false, wrapDBError(err, "query")
	}

	return q, true, nil
}

func (repo *QueriesDB) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]db.Query, error) {
	found := make(map[uuid.UUID]db.Query)
	if len(ids) == 0 {
		return found, nil
	}

	qMarks := make([]string, len(ids))
	args := make([]any, len(ids))
	for i := range ids {
		qMarks[i] = "?"
		args[i] = ids[i]
	}

	rows, err := repo.DB.QueryContext(ctx, `SELECT id, schema_id, hash, data FROM queries WHERE id IN (`+strings.Join(qMarks, ", ")+`);`, args...)
	if err != nil {
		return nil, wrapDBError(err, "query")
	}
	defer rows.Close()

	for rows.Next() {
		q, err := scanQuery(rows)
		if err != nil {
			return nil, wrapDBError(err, "query")
		}
		found[q.ID] = q
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError(err, "query")
	}

	return found, nil
}

func (repo *QueriesDB) Update(ctx context.Context, q db.Query) error {
	data, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("encode query document: %w", err)
	}

	tx, err := repo.DB.BeginTx(ctx, nil)
	if err != nil {
		return wrapDBError(err, "query")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE queries SET schema_id=?, hash=?, data=? WHERE id=?;`,
		q.SchemaID,
		q.Hash.Hash,
		string(data),
		q.ID,
	)
	if err != nil {
		return wrapDBError(err, "query")
	}
	rowsAff, err := res.RowsAffected()
	if err != nil {
		return wrapDBError(err, "query")
	}
	if rowsAff < 1 {
		// nothing stored under that ID; not an error, and the side table
		// must not be touched
		return nil
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM query_external_hashes WHERE query_id = ?;`, q.ID)
	if err != nil {
		return wrapDBError(err, "query")
	}

	if err := insertExternalHashes(ctx, tx, q); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return wrapDBError(err, "query")
	}

	return nil
}

func (repo *QueriesDB) Delete(ctx context.Context, id uuid.UUID) (db.Query, error) {
	curVal, err := repo.Get(ctx, id)
	if err != nil {
		return curVal, err
	}

	tx, err := repo.DB.BeginTx(ctx, nil)
	if err != nil {
		return curVal, wrapDBError(err, "query")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM queries WHERE id = ?;`, id)
	if err != nil {
		return curVal, wrapDBError(err, "query")
	}
	rowsAff, err := res.RowsAffected()
	if err != nil {
		return curVal, wrapDBError(err, "query")
	}
	if rowsAff < 1 {
		return curVal, db.NewNotFoundError("query", id)
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM query_external_hashes WHERE query_id = ?;`, id)
	if err != nil {
		return curVal, wrapDBError(err, "query")
	}

	if err := tx.Commit(); err != nil {
		return curVal, wrapDBError(err, "query")
	}

	return curVal, nil
}

func (repo *QueriesDB) List(filter *db.QueryFilter) *db.Listing[db.Query] {
	return db.NewListing(func(ctx context.Context) ([]db.Query, error) {
		q := `SELECT id, schema_id, hash, data FROM queries`
		var args []any
		if filter != nil && filter.SchemaID != nil {
			q += ` WHERE schema_id = ?`
			args = append(args, *filter.SchemaID)
		}
		q += ` ORDER BY id;`

		rows, err := repo.DB.QueryContext(ctx, q, args...)
		if err != nil {
			return nil, wrapDBError(err, "query")
		}
		defer rows.Close()

		var all []db.Query
		for rows.Next() {
			item, err := scanQuery(rows)
			if err != nil {
				return nil, wrapDBError(err, "query")
			}
			all = append(all, item)
		}
		if err := rows.Err(); err != nil {
			return all, wrapDBError(err, "query")
		}

		return all, nil
	})
}
