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

type ClientsDB struct {
	DB *sql.DB
}

func (repo *ClientsDB) init() error {
	_, err := repo.DB.Exec(`CREATE TABLE IF NOT EXISTS clients (
		id TEXT NOT NULL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		schema_id TEXT NOT NULL,
		data TEXT NOT NULL
	);`)
	if err != nil {
		return wrapDBError(err, "client")
	}

	_, err = repo.DB.Exec(`CREATE INDEX IF NOT EXISTS idx_clients_schema_id ON clients (schema_id);`)
	if err != nil {
		return wrapDBError(err, "client")
	}

	return nil
}

func scanClient(r rowScanner) (db.Client, error) {
	var c db.Client
	var id, schemaID uuid.UUID
	var name string
	var data []byte

	if err := r.Scan(&id, &name, &schemaID, &data); err != nil {
		return db.Client{}, err
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return db.Client{}, taffy.NewErrorf([]error{err, taffy.ErrDecodingFailure}, "decode client document")
	}

	// the indexed columns are authoritative over the document
	c.ID = id
	c.Name = name
	c.SchemaID = schemaID

	return c, nil
}

func (repo *ClientsDB) Create(ctx context.Context, c db.Client) (db.Client, error) {
	if c.ID == uuid.Nil {
		newID, err := uuid.NewRandom()
		if err != nil {
			return db.Client{}, fmt.Errorf("could not generate ID: %w", err)
		}
		c.ID = newID
	}

	data, err := json.Marshal(c)
	if err != nil {
		return db.Client{}, fmt.Errorf("encode client document: %w", err)
	}

	_, err = repo.DB.ExecContext(ctx, `INSERT INTO clients (id, name, schema_id, data) VALUES (?, ?, ?, ?);`,
		c.ID,
		c.Name,
		c.SchemaID,
		string(data),
	)
	if err != nil {
		return db.Client{}, wrapDBError(err, "client")
	}

	return c, nil
}

func (repo *ClientsDB) Get(ctx context.Context, id uuid.UUID) (db.Client, error) {
	row := repo.DB.QueryRowContext(ctx, `SELECT id, name, schema_id, data FROM clients WHERE id = ?;`, id)

	c, err := scanClient(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return db.Client{}, db.NewNotFoundError("client", id)
		}
		return db.Client{}, wrapDBError(err, "client")
	}

	return c, nil
}

func (repo *ClientsDB) GetByName(ctx context.Context, name string) (db.Client, bool, error) {
	row := repo.DB.QueryRowContext(ctx, `SELECT id, name, schema_id, data FROM clients WHERE name = ?;`, name)

	c, err := scanClient(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return db.Client{}, false, nil
		}
		return db.Client{}, false, wrapDBError(err, "client")
	}

	return c, true, nil
}

func (repo *ClientsDB) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]db.Client, error) {
	found := make(map[uuid.UUID]db.Client)
	if len(ids) == 0 {
		return found, nil
	}

	qMarks := make([]string, len(ids))
	args := make([]any, len(ids))
	for i := range ids {
		qMarks[i] = "?"
		args[i] = ids[i]
	}

	rows, err := repo.DB.QueryContext(ctx, `SELECT id, name, schema_id, data FROM clients WHERE id IN (`+strings.Join(qMarks, ", ")+`);`, args...)
	if err != nil {
		return nil, wrapDBError(err, "client")
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, wrapDBError(err, "client")
		}
		found[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError(err, "client")
	}

	return found, nil
}

func (repo *ClientsDB) Update(ctx context.Context, c db.Client) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode client document: %w", err)
	}

	// an ID that matches no row updates nothing, which is the contract
	_, err = repo.DB.ExecContext(ctx, `UPDATE clients SET name=?, schema_id=?, data=? WHERE id=?;`,
		c.Name,
		c.SchemaID,
		string(data),
		c.ID,
	)
	if err != nil {
		return wrapDBError(err, "client")
	}

	return nil
}

func (repo *ClientsDB) Delete(ctx context.Context, id uuid.UUID) (db.Client, error) {
	curVal, err := repo.Get(ctx, id)
	if err != nil {
		return curVal, err
	}

	res, err := repo.DB.ExecContext(ctx, `DELETE FROM clients WHERE id = ?;`, id)
	if err != nil {
		return curVal, wrapDBError(err, "client")
	}
	rowsAff, err := res.RowsAffected()
	if err != nil {
		return curVal, wrapDBError(err, "client")
	}
	if rowsAff < 1 {
		return curVal, db.NewNotFoundError("client", id)
	}

	return curVal, nil
}

func (repo *ClientsDB) List(filter *db.ClientFilter) *db.Listing[db.Client] {
	return db.NewListing(func(ctx context.Context) ([]db.Client, error) {
		q := `SELECT id, name, schema_id, data FROM clients`
		var args []any
		if filter != nil && filter.SchemaID != nil {
			q += ` WHERE schema_id = ?`
			args = append(args, *filter.SchemaID)
		}
		q += ` ORDER BY id;`

		rows, err := repo.DB.QueryContext(ctx, q, args...)
		if err != nil {
			return nil, wrapDBError(err, "client")
		}
		defer rows.Close()

		var all []db.Client
		for rows.Next() {
			c, err := scanClient(rows)
			if err != nil {
				return nil, wrapDBError(err, "client")
			}
			all = append(all, c)
		}
		if err := rows.Err(); err != nil {
			return all, wrapDBError(err, "client")
		}

		return all, nil
	})
}

type ClientVersionsDB struct {
	DB *sql.DB
}

func (repo *ClientVersionsDB) init() error {
	_, err := repo.DB.Exec(`CREATE TABLE IF NOT EXISTS client_versions (
		id TEXT NOT NULL PRIMARY KEY,
		client_id TEXT NOT NULL,
		external_id TEXT NOT NULL UNIQUE,
		data TEXT NOT NULL
	);`)
	if err != nil {
		return wrapDBError(err, "client version")
	}

	_, err = repo.DB.Exec(`CREATE INDEX IF NOT EXISTS idx_client_versions_client_id ON client_versions (client_id);`)
	if err != nil {
		return wrapDBError(err, "client version")
	}

	return nil
}

func scanClientVersion(r rowScanner) (db.ClientVersion, error) {
	var v db.ClientVersion
	var id, clientID uuid.UUID
	var externalID string
	var data []byte

	if err := r.Scan(&id, &clientID, &externalID, &data); err != nil {
		return db.ClientVersion{}, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return db.ClientVersion{}, taffy.NewErrorf([]error{err, taffy.ErrDecodingFailure}, "decode client version document")
	}

	v.ID = id
	v.ClientID = clientID
	v.ExternalID = externalID

	return v, nil
}

func (repo *ClientVersionsDB) Create(ctx context.Context, v db.ClientVersion) (db.ClientVersion, error) {
	if v.ID == uuid.Nil {
		newID, err := uuid.NewRandom()
		if err != nil {
			return db.ClientVersion{}, fmt.Errorf("could not generate ID: %w", err)
		}
		v.ID = newID
	}

	v.Tags = db.DedupTags(v.Tags)
	if v.Created.IsZero() {
		v.Created = db.NowTimestamp()
	}

	data, err := json.Marshal(v)
	if err != nil {
		return db.ClientVersion{}, fmt.Errorf("encode client version document: %w", err)
	}

	_, err = repo.DB.ExecContext(ctx, `INSERT INTO client_versions (id, client_id, external_id, data) VALUES (?, ?, ?, ?);`,
		v.ID,
		v.ClientID,
		v.ExternalID,
		string(data),
	)
	if err != nil {
		return db.ClientVersion{}, wrapDBError(err, "client version")
	}

	return v, nil
}

func (repo *ClientVersionsDB) Get(ctx context.Context, id uuid.UUID) (db.ClientVersion, error) {
	row := repo.DB.QueryRowContext(ctx, `SELECT id, client_id, external_id, data FROM client_versions WHERE id = ?;`, id)

	v, err := scanClientVersion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return db.ClientVersion{}, db.NewNotFoundError("client version", id)
		}
		return db.ClientVersion{}, wrapDBError(err, "client version")
	}

	return v, nil
}

func (repo *ClientVersionsDB) GetByExternalID(ctx context.Context, externalID string) (db.ClientVersion, bool, error) {
	row := repo.DB.QueryRowContext(ctx, `SELECT id, client_id, external_id, data FROM client_versions WHERE external_id = ?;`, externalID)

	v, err := scanClientVersion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return db.ClientVersion{}, false, nil
		}
		return db.ClientVersion{}, false, wrapDBError(err, "client version")
	}

	return v, true, nil
}

func (repo *ClientVersionsDB) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]db.ClientVersion, error) {
	found := make(map[uuid.UUID]db.ClientVersion)
	if len(ids) == 0 {
		return found, nil
	}

	qMarks := make([]string, len(ids))
	args := make([]any, len(ids))
	for i := range ids {
		qMarks[i] = "?"
		args[i] = ids[i]
	}

	rows, err := repo.DB.QueryContext(ctx, `SELECT id, client_id, external_id, data FROM client_versions WHERE id IN (`+strings.Join(qMarks, ", ")+`);`, args...)
	if err != nil {
		return nil, wrapDBError(err, "client version")
	}
	defer rows.Close()

	for rows.Next() {
		v, err := scanClientVersion(rows)
		if err != nil {
			return nil, wrapDBError(err, "client version")
		}
		found[v.ID] = v
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError(err, "client version")
	}

	return found, nil
}

func (repo *ClientVersionsDB) Update(ctx context.Context, v db.ClientVersion) error {
	v.Tags = db.DedupTags(v.Tags)

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode client version document: %w", err)
	}

	_, err = repo.DB.ExecContext(ctx, `UPDATE client_versions SET client_id=?, external_id=?, data=? WHERE id=?;`,
		v.ClientID,
		v.ExternalID,
		string(data),
		v.ID,
	)
	if err != nil {
		return wrapDBError(err, "client version")
	}

	return nil
}

func (repo *ClientVersionsDB) UpdateTags(ctx context.Context, id uuid.UUID, tags []db.Tag) error {
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

func (repo *ClientVersionsDB) Delete(ctx context.Context, id uuid.UUID) (db.ClientVersion, error) {
	curVal, err := repo.Get(ctx, id)
	if err != nil {
		return curVal, err
	}

	res, err := repo.DB.ExecContext(ctx, `DELETE FROM client_versions WHERE id = ?;`, id)
	if err != nil {
		return curVal, wrapDBError(err, "client version")
	}
	rowsAff, err := res.RowsAffected()
	if err != nil {
		return curVal, wrapDBError(err, "client version")
	}
	if rowsAff < 1 {
		return curVal, db.NewNotFoundError("client version", id)
	}

	return curVal, nil
}

func (repo *ClientVersionsDB) List(filter *db.ClientVersionFilter) *db.Listing[db.ClientVersion] {
	return db.NewListing(func(ctx context.Context) ([]db.ClientVersion, error) {
		q := `SELECT id, client_id, external_id, data FROM client_versions`
		var args []any
		if filter != nil && filter.ClientID != nil {
			q += ` WHERE client_id = ?`
			args = append(args, *filter.ClientID)
		}
		q += ` ORDER BY id;`

		rows, err := repo.DB.QueryContext(ctx, q, args...)
		if err != nil {
			return nil, wrapDBError(err, "client version")
		}
		defer rows.Close()

		var all []db.ClientVersion
		for rows.Next() {
			v, err := scanClientVersion(rows)
			if err != nil {
				return nil, wrapDBError(err, "client version")
			}
			all = append(all, v)
		}
		if err := rows.Err(); err != nil {
			return all, wrapDBError(err, "client version")
		}

		return all, nil
	})
}
