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

type PublishReportsDB struct {
	DB *sql.DB
}

func (repo *PublishReportsDB) init() error {
	_, err := repo.DB.Exec(`CREATE TABLE IF NOT EXISTS publish_reports (
		id UUID NOT NULL PRIMARY KEY,
		client_version_id UUID NOT NULL,
		environment_id UUID NOT NULL,
		data JSONB NOT NULL,
		CONSTRAINT publish_reports_pair_uniq UNIQUE (client_version_id, environment_id)
	);`)
	if err != nil {
		return wrapDBError(err, "publish report")
	}

	return nil
}

func scanPublishReport(r rowScanner) (db.PublishReport, error) {
	var pr db.PublishReport
	var id, clientVersionID, environmentID uuid.UUID
	var data []byte

	if err := r.Scan(&id, &clientVersionID, &environmentID, &data); err != nil {
		return db.PublishReport{}, err
	}
	if err := json.Unmarshal(data, &pr); err != nil {
		return db.PublishReport{}, taffy.NewErrorf([]error{err, taffy.ErrDecodingFailure}, "decode publish report document")
	}

	pr.ID = id
	pr.ClientVersionID = clientVersionID
	pr.EnvironmentID = environmentID

	return pr, nil
}

func (repo *PublishReportsDB) Create(ctx context.Context, r db.PublishReport) (db.PublishReport, error) {
	if r.ID == uuid.Nil {
		newID, err := uuid.NewRandom()
		if err != nil {
			return db.PublishReport{}, fmt.Errorf("could not generate ID: %w", err)
		}
		r.ID = newID
	}

	if r.PublishedOn.IsZero() {
		r.PublishedOn = db.NowTimestamp()
	}

	data, err := json.Marshal(r)
	if err != nil {
		return db.PublishReport{}, fmt.Errorf("encode publish report document: %w", err)
	}

	_, err = repo.DB.ExecContext(ctx, `INSERT INTO publish_reports (id, client_version_id, environment_id, data) VALUES ($1, $2, $3, $4);`,
		r.ID,
		r.ClientVersionID,
		r.EnvironmentID,
		string(data),
	)
	if err != nil {
		return db.PublishReport{}, wrapDBError(err, "publish report")
	}

	return r, nil
}

func (repo *PublishReportsDB) Get(ctx context.Context, id uuid.UUID) (db.PublishReport, error) {
	row := repo.DB.QueryRowContext(ctx, `SELECT id, client_version_id, environment_id, data FROM publish_reports WHERE id = $1;`, id)

	r, err := scanPublishReport(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return db.PublishReport{}, db.NewNotFoundError("publish report", id)
		}
		return db.PublishReport{}, wrapDBError(err, "publish report")
	}

	return r, nil
}

func (repo *PublishReportsDB) GetByVersionAndEnvironment(ctx context.Context, clientVersionID, environmentID uuid.UUID) (db.PublishReport, bool, error) {
	row := repo.DB.QueryRowContext(ctx, `SELECT id, client_version_id, environment_id, data FROM publish_reports WHERE client_version_id = $1 AND environment_id = $2;`,
		clientVersionID,
		environmentID,
	)

	r, err := scanPublishReport(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return db.PublishReport{}, false, nil
		}
		return db.PublishReport{}, false, wrapDBError(err, "publish report")
	}

	return r, true, nil
}

func (repo *PublishReportsDB) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]db.PublishReport, error) {
	found := make(map[uuid.UUID]db.PublishReport)
	if len(ids) == 0 {
		return found, nil
	}

	params := make([]string, len(ids))
	args := make([]any, len(ids))
	for i := range ids {
		params[i] = fmt.Sprintf("$%d", i+1)
		args[i] = ids[i]
	}

	rows, err := repo.DB.QueryContext(ctx, `SELECT id, client_version_id, environment_id, data FROM publish_reports WHERE id IN (`+strings.Join(params, ", ")+`);`, args...)
	if err != nil {
		return nil, wrapDBError(err, "publish report")
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanPublishReport(rows)
		if err != nil {
			return nil, wrapDBError(err, "publish report")
		}
		found[r.ID] = r
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError(err, "publish report")
	}

	return found, nil
}

func (repo *PublishReportsDB) Update(ctx context.Context, r db.PublishReport) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode publish report document: %w", err)
	}

	_, err = repo.DB.ExecContext(ctx, `UPDATE publish_reports SET client_version_id=$1, environment_id=$2, data=$3 WHERE id=$4;`,
		r.ClientVersionID,
		r.EnvironmentID,
		string(data),
		r.ID,
	)
	if err != nil {
		return wrapDBError(err, "publish report")
	}

	return nil
}

func (repo *PublishReportsDB) Delete(ctx context.Context, id uuid.UUID) (db.PublishReport, error) {
	curVal, err := repo.Get(ctx, id)
	if err != nil {
		return curVal, err
	}

	res, err := repo.DB.ExecContext(ctx, `DELETE FROM publish_reports WHERE id = $1;`, id)
	if err != nil {
		return curVal, wrapDBError(err, "publish report")
	}
	rowsAff, err := res.RowsAffected()
	if err != nil {
		return curVal, wrapDBError(err, "publish report")
	}
	if rowsAff < 1 {
		return curVal, db.NewNotFoundError("publish report", id)
	}

	return curVal, nil
}

func (repo *PublishReportsDB) List(filter *db.PublishReportFilter) *db.Listing[db.PublishReport] {
	return db.NewListing(func(ctx context.Context) ([]db.PublishReport, error) {
		q := `SELECT id, client_version_id, environment_id, data FROM publish_reports`
		var conds []string
		var args []any
		if filter != nil && filter.ClientVersionID != nil {
			args = append(args, *filter.ClientVersionID)
			conds = append(conds, fmt.Sprintf("client_version_id = $%d", len(args)))
		}
		if filter != nil && filter.EnvironmentID != nil {
			args = append(args, *filter.EnvironmentID)
			conds = append(conds, fmt.Sprintf("environment_id = $%d", len(args)))
		}
		if len(conds) > 0 {
			q += ` WHERE ` + strings.Join(conds, " AND ")
		}
		q += ` ORDER BY id;`

		rows, err := repo.DB.QueryContext(ctx, q, args...)
		if err != nil {
			return nil, wrapDBError(err, "publish report")
		}
		defer rows.Close()

		var all []db.PublishReport
		for rows.Next() {
			r, err := scanPublishReport(rows)
			if err != nil {
				return nil, wrapDBError(err, "publish report")
			}
			all = append(all, r)
		}
		if err := rows.Err(); err != nil {
			return all, wrapDBError(err, "publish report")
		}

		return all, nil
	})
}

type PublishedClientsDB struct {
	DB *sql.DB
}

func (repo *PublishedClientsDB) init() error {
	_, err := repo.DB.Exec(`CREATE TABLE IF NOT EXISTS published_clients (
		id UUID NOT NULL PRIMARY KEY,
		environment_id UUID NOT NULL,
		schema_id UUID NOT NULL,
		client_id UUID NOT NULL,
		data JSONB NOT NULL,
		CONSTRAINT published_clients_triple_uniq UNIQUE (environment_id, schema_id, client_id)
	);`)
	if err != nil {
		return wrapDBError(err, "published client")
	}

	return nil
}

func scanPublishedClient(r rowScanner) (db.PublishedClient, error) {
	var pc db.PublishedClient
	var id, environmentID, schemaID, clientID uuid.UUID
	var data []byte

	if err := r.Scan(&id, &environmentID, &schemaID, &clientID, &data); err != nil {
		return db.PublishedClient{}, err
	}
	if err := json.Unmarshal(data, &pc); err != nil {
		return db.PublishedClient{}, taffy.NewErrorf([]error{err, taffy.ErrDecodingFailure}, "decode published client document")
	}

	pc.ID = id
	pc.EnvironmentID = environmentID
	pc.SchemaID = schemaID
	pc.ClientID = clientID

	return pc, nil
}

func (repo *PublishedClientsDB) Set(ctx context.Context, pc db.PublishedClient) error {
	if pc.ID == uuid.Nil {
		newID, err := uuid.NewRandom()
		if err != nil {
			return fmt.Errorf("could not generate ID: %w", err)
		}
		pc.ID = newID
	}

	data, err := json.Marshal(pc)
	if err != nil {
		return fmt.Errorf("encode published client document: %w", err)
	}

	// a conflict on the id means it is already recorded and every field is
	// insert-only; a fresh id colliding on the triple is still an error
	_, err = repo.DB.ExecContext(ctx, `INSERT INTO published_clients (id, environment_id, schema_id, client_id, data) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING;`,
		pc.ID,
		pc.EnvironmentID,
		pc.SchemaID,
		pc.ClientID,
		string(data),
	)
	if err != nil {
		return wrapDBError(err, "published client")
	}

	return nil
}

func (repo *PublishedClientsDB) Get(ctx context.Context, environmentID, schemaID, clientID uuid.UUID) (db.PublishedClient, bool, error) {
	row := repo.DB.QueryRowContext(ctx, `SELECT id, environment_id, schema_id, client_id, data FROM published_clients WHERE environment_id = $1 AND schema_id = $2 AND client_id = $3;`,
		environmentID,
		schemaID,
		clientID,
	)

	pc, err := scanPublishedClient(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return db.PublishedClient{}, false, nil
		}
		return db.PublishedClient{}, false, wrapDBError(err, "published client")
	}

	return pc, true, nil
}

func (repo *PublishedClientsDB) GetByID(ctx context.Context, id uuid.UUID) (db.PublishedClient, error) {
	row := repo.DB.QueryRowContext(ctx, `SELECT id, environment_id, schema_id, client_id, data FROM published_clients WHERE id = $1;`, id)

	pc, err := scanPublishedClient(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return db.PublishedClient{}, db.NewNotFoundError("published client", id)
		}
		return db.PublishedClient{}, wrapDBError(err, "published client")
	}

	return pc, nil
}

func (repo *PublishedClientsDB) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]db.PublishedClient, error) {
	found := make(map[uuid.UUID]db.PublishedClient)
	if len(ids) == 0 {
		return found, nil
	}

	params := make([]string, len(ids))
	args := make([]any, len(ids))
	for i := range ids {
		params[i] = fmt.Sprintf("$%d", i+1)
		args[i] = ids[i]
	}

	rows, err := repo.DB.QueryContext(ctx, `SELECT id, environment_id, schema_id, client_id, data FROM published_clients WHERE id IN (`+strings.Join(params, ", ")+`);`, args...)
	if err != nil {
		return nil, wrapDBError(err, "published client")
	}
	defer rows.Close()

	for rows.Next() {
		pc, err := scanPublishedClient(rows)
		if err != nil {
			return nil, wrapDBError(err, "published client")
		}
		found[pc.ID] = pc
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError(err, "published client")
	}

	return found, nil
}

func (repo *PublishedClientsDB) Delete(ctx context.Context, id uuid.UUID) (db.PublishedClient, error) {
	curVal, err := repo.GetByID(ctx, id)
	if err != nil {
		return curVal, err
	}

	res, err := repo.DB.ExecContext(ctx, `DELETE FROM published_clients WHERE id = $1;`, id)
	if err != nil {
		return curVal, wrapDBError(err, "published client")
	}
	rowsAff, err := res.RowsAffected()
	if err != nil {
		return curVal, wrapDBError(err, "published client")
	}
	if rowsAff < 1 {
		return curVal, db.NewNotFoundError("published client", id)
	}

	return curVal, nil
}

func (repo *PublishedClientsDB) List(filter *db.PublishedClientFilter) *db.Listing[db.PublishedClient] {
	return db.NewListing(func(ctx context.Context) ([]db.PublishedClient, error) {
		q := `SELECT id, environment_id, schema_id, client_id, data FROM published_clients`
		var conds []string
		var args []any
		if filter != nil && filter.EnvironmentID != nil {
			args = append(args, *filter.EnvironmentID)
			conds = append(conds, fmt.Sprintf("environment_id = $%d", len(args)))
		}
		if filter != nil && filter.SchemaID != nil {
			args = append(args, *filter.SchemaID)
			conds = append(conds, fmt.Sprintf("schema_id = $%d", len(args)))
		}
		if len(conds) > 0 {
			q += ` WHERE ` + strings.Join(conds, " AND ")
		}
		q += ` ORDER BY id;`

		rows, err := repo.DB.QueryContext(ctx, q, args...)
		if err != nil {
			return nil, wrapDBError(err, "published client")
		}
		defer rows.Close()

		var all []db.PublishedClient
		for rows.Next() {
			pc, err := scanPublishedClient(rows)
			if err != nil {
				return nil, wrapDBError(err, "published client")
			}
			all = append(all, pc)
		}
		if err := rows.Err(); err != nil {
			return all, wrapDBError(err, "published client")
		}

		return all, nil
	})
}
