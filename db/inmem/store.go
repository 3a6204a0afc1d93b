// Package inmem provides the in-memory storage backend. It enforces the same
// uniqueness rules as the disk-backed backends, but holds everything in maps.
//
// A Store from [New] lives only as long as the process. A Store from [Open]
// additionally syncs itself to a data file: the file is loaded on Open and
// written back on every call to [Store.Persist] and on [Store.Close]. The
// data file holds the binary form of a [db.Snapshot], so it can also be
// produced and consumed by the taffyctl export and import commands.
//
// Store is safe to use from multiple goroutines concurrently. It serializes
// access to internal storage.
package inmem

import (
	"fmt"
	"os"
	"sync"

	"github.com/dekarrin/taffy"
	"github.com/dekarrin/taffy/db"
	"github.com/dekarrin/taffy/internal/sortby"
	"github.com/google/uuid"
)

// Store is the in-memory implementation of db.Store. Create one with [New]
// or [Open]; the zero value is not usable. Store must not be copied once
// created.
type Store struct {
	// dataFile is the file the store persists to. If empty, calls to Persist
	// have no effect and the store is in-memory only.
	dataFile string

	mtx    sync.RWMutex
	closed bool

	environments     *EnvironmentRepo
	schemas          *SchemaRepo
	schemaVersions   *SchemaVersionRepo
	clients          *ClientRepo
	clientVersions   *ClientVersionRepo
	queries          *QueryRepo
	publishReports   *PublishReportRepo
	publishedClients *PublishedClientRepo
}

// New creates an empty in-memory Store that does not persist to disk.
func New() *Store {
	s := &Store{}

	s.environments = newEnvironmentRepo(s)
	s.schemas = newSchemaRepo(s)
	s.schemaVersions = newSchemaVersionRepo(s)
	s.clients = newClientRepo(s)
	s.clientVersions = newClientVersionRepo(s)
	s.queries = newQueryRepo(s)
	s.publishReports = newPublishReportRepo(s)
	s.publishedClients = newPublishedClientRepo(s)

	return s
}

// Open creates a Store that persists itself to the given data file. If the
// file already exists, its entire contents are loaded into the new Store. If
// it does not exist, it is created immediately so that a failure to persist
// later is caught now.
//
// If file is the empty string, the Store is opened in in-memory mode and
// calls to Persist and Close do not write to disk.
func Open(file string) (*Store, error) {
	s := New()
	if file == "" {
		return s, nil
	}
	s.dataFile = file

	data, err := os.ReadFile(file)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read data file: %w", err)
	}

	if err == nil {
		if len(data) > 0 {
			var snap db.Snapshot
			if err := snap.UnmarshalBinary(data); err != nil {
				return nil, taffy.NewErrorf([]error{err, taffy.ErrDecodingFailure}, "malformed data file %q", file)
			}
			s.loadSnapshot(snap)
		}
	} else {
		if err := s.Persist(); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (s *Store) Environments() db.EnvironmentRepo {
	return s.environments
}

func (s *Store) Schemas() db.SchemaRepo {
	return s.schemas
}

func (s *Store) SchemaVersions() db.SchemaVersionRepo {
	return s.schemaVersions
}

func (s *Store) Clients() db.ClientRepo {
	return s.clients
}

func (s *Store) ClientVersions() db.ClientVersionRepo {
	return s.clientVersions
}

func (s *Store) Queries() db.QueryRepo {
	return s.queries
}

func (s *Store) PublishReports() db.PublishReportRepo {
	return s.publishReports
}

func (s *Store) PublishedClients() db.PublishedClientRepo {
	return s.publishedClients
}

// Persist writes the entire contents of the Store to its data file. If the
// Store was created without a data file, Persist does nothing.
//
// Persist is not called automatically on writes; the user must do so at an
// appropriate frequency. Close calls it once as part of shutting down.
//
// All data is written on every call, regardless of whether anything changed
// since the last one. The previous file contents are kept in a backup next to
// the data file until the write succeeds.
func (s *Store) Persist() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	return s.persistUnsafe()
}

// persistUnsafe does the actual work of Persist. It assumes the caller has
// acquired a write lock on the data mutex.
func (s *Store) persistUnsafe() error {
	if s.closed {
		return fmt.Errorf("operation called on closed *Store")
	}
	if s.dataFile == "" {
		return nil
	}

	buFile, err := createFileBackup(s.dataFile)
	if err != nil {
		if os.IsNotExist(err) {
			// no original to back up; nothing to restore from on failure either
			buFile = ""
		} else {
			return fmt.Errorf("create backup: %w", err)
		}
	}

	snap := s.snapshotUnsafe()
	data, err := snap.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode data: %w", err)
	}

	if err := os.WriteFile(s.dataFile, data, 0644); err != nil {
		return fmt.Errorf("write data file: %w", err)
	}

	if buFile != "" {
		os.Remove(buFile)
	}

	return nil
}

// Close persists any data to the data file (if one is configured) and marks
// the Store as closed. After Close returns, the Store cannot be used again,
// regardless of whether the returned error is nil.
//
// Calling Close on an already-closed Store has no effect and returns nil.
func (s *Store) Close() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.closed {
		return nil
	}

	err := s.persistUnsafe()

	// mark closed even if err is not nil; the Store must not be usable after
	// return.
	s.closed = true

	if err != nil {
		return fmt.Errorf("persist data to disk: %w", err)
	}
	return nil
}

// snapshotUnsafe copies every entity into a Snapshot. It assumes the caller
// holds at least a read lock on the data mutex.
func (s *Store) snapshotUnsafe() db.Snapshot {
	return db.Snapshot{
		Environments:     sortedValues(s.environments.environments),
		Schemas:          sortedValues(s.schemas.schemas),
		SchemaVersions:   sortedValues(s.schemaVersions.versions),
		Clients:          sortedValues(s.clients.clients),
		ClientVersions:   sortedValues(s.clientVersions.versions),
		Queries:          sortedValues(s.queries.queries),
		PublishReports:   sortedValues(s.publishReports.reports),
		PublishedClients: sortedValues(s.publishedClients.published),
	}
}

// loadSnapshot fills the Store's maps and indexes from a Snapshot. It is
// called only on a freshly-created Store during Open.
func (s *Store) loadSnapshot(snap db.Snapshot) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	for _, env := range snap.Environments {
		s.environments.environments[env.ID] = env
		s.environments.byNameIndex[env.Name] = env.ID
	}

	for _, sc := range snap.Schemas {
		s.schemas.schemas[sc.ID] = sc
		s.schemas.byNameIndex[sc.Name] = sc.ID
	}

	for _, v := range snap.SchemaVersions {
		s.schemaVersions.versions[v.ID] = v
		s.schemaVersions.byHashIndex[v.Hash.Hash] = v.ID
	}

	for _, c := range snap.Clients {
		s.clients.clients[c.ID] = c
		s.clients.byNameIndex[c.Name] = c.ID
	}

	for _, v := range snap.ClientVersions {
		s.clientVersions.versions[v.ID] = v
		s.clientVersions.byExternalIDIndex[v.ExternalID] = v.ID
	}

	for _, q := range snap.Queries {
		s.queries.queries[q.ID] = q
		s.queries.byHashIndex[q.Hash.Hash] = q.ID
		for _, h := range q.ExternalHashes {
			s.queries.byExternalHash[h.Hash] = append(s.queries.byExternalHash[h.Hash], q.ID)
		}
	}

	for _, r := range snap.PublishReports {
		s.publishReports.reports[r.ID] = r
		s.publishReports.byPairIndex[reportPairKey{r.ClientVersionID, r.EnvironmentID}] = r.ID
	}

	for _, pc := range snap.PublishedClients {
		s.publishedClients.published[pc.ID] = pc
		s.publishedClients.byTripleIndex[publishedTripleKey{pc.EnvironmentID, pc.SchemaID, pc.ClientID}] = pc.ID
	}
}

// sortedValues copies the values of an entity map into a slice ordered by ID
// string so that snapshots of the same data come out byte-identical.
func sortedValues[M db.Model[uuid.UUID]](m map[uuid.UUID]M) []M {
	all := make([]M, len(m))

	i := 0
	for k := range m {
		all[i] = m[k]
		i++
	}

	all = sortby.Less(all, func(l, r M) bool {
		return l.ModelID().String() < r.ModelID().String()
	})

	return all
}

// createFileBackup makes a duplicate of file in the same location with '.bak'
// appended to its filename. Any existing backup is overwritten.
//
// Returns the path to the new backup file and any error that occurred.
func createFileBackup(file string) (string, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		// pass through unchanged so the caller can check os.IsNotExist
		return "", err
	}

	buPath := file + ".bak"
	if err := os.WriteFile(buPath, data, 0644); err != nil {
		return buPath, fmt.Errorf("write backup: %w", err)
	}

	return buPath, nil
}
