package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dekarrin/taffy/db"
	"github.com/dekarrin/taffy/db/inmem"
	"github.com/dekarrin/taffy/db/postgres"
	"github.com/dekarrin/taffy/db/sqlite"
)

// DBType is the type of a Database connection.
type DBType string

func (dbt DBType) String() string {
	return string(dbt)
}

const (
	DatabaseNone     DBType = "none"
	DatabaseInMemory DBType = "inmem"
	DatabaseSQLite   DBType = "sqlite"
	DatabasePostgres DBType = "postgres"
)

// ParseDBType parses a string found in a connection string into a DBType.
func ParseDBType(s string) (DBType, error) {
	sLower := strings.ToLower(s)

	switch sLower {
	case DatabaseInMemory.String():
		return DatabaseInMemory, nil
	case DatabaseSQLite.String():
		return DatabaseSQLite, nil
	case DatabasePostgres.String():
		return DatabasePostgres, nil
	default:
		return DatabaseNone, fmt.Errorf("DB type not one of 'inmem', 'sqlite', or 'postgres': %q", s)
	}
}

// Database contains configuration settings for connecting to the registry's
// persistence layer.
type Database struct {
	// Type is the type of database the config refers to. It also determines
	// which of its other fields are valid.
	Type DBType

	// DataDir is the path on disk to a directory to use to store data in. This
	// is only applicable for certain DB types: SQLite, and in-memory when a
	// DataFile is set.
	DataDir string

	// DataFile is the name of the data file an in-memory store persists
	// itself to, relative to DataDir. If left blank, an in-memory store
	// holds its data only for the life of the process. This is only
	// applicable for the in-memory DB type.
	DataFile string

	// DSN is the connection string passed to the database server. This is
	// only applicable for certain DB types: Postgres.
	DSN string
}

// FillDefaults returns a new Database identical to cfg but with unset values
// set to their defaults.
func (cfg Database) FillDefaults() Database {
	newCFG := cfg

	if newCFG.Type == DatabaseNone || newCFG.Type == "" {
		newCFG.Type = DatabaseInMemory
	}
	if newCFG.Type == DatabaseInMemory && newCFG.DataDir != "" && newCFG.DataFile == "" {
		newCFG.DataFile = "registry.dat"
	}

	return newCFG
}

// Validate returns an error if the Database does not have the correct fields
// set. Its type will be checked to ensure that it is a valid type to use and
// any fields necessary for connecting to that type of DB are also checked.
func (cfg Database) Validate() error {
	switch cfg.Type {
	case DatabaseInMemory:
		if cfg.DataFile != "" && cfg.DataDir == "" {
			return fmt.Errorf("DataFile is set but DataDir is not set to path")
		}
		return nil
	case DatabaseSQLite:
		if cfg.DataDir == "" {
			return fmt.Errorf("DataDir not set to path")
		}
		return nil
	case DatabasePostgres:
		if cfg.DSN == "" {
			return fmt.Errorf("DSN not set to connection string")
		}
		return nil
	case DatabaseNone:
		return fmt.Errorf("'none' DB is not valid")
	default:
		return fmt.Errorf("unknown database type: %q", cfg.Type.String())
	}
}

// Connect performs all logic needed to connect to the configured DB and
// initialize the store for use.
func (cfg Database) Connect() (db.Store, error) {
	switch cfg.Type {
	case DatabaseInMemory:
		if cfg.DataFile == "" {
			return inmem.New(), nil
		}

		err := os.MkdirAll(cfg.DataDir, 0770)
		if err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}

		fullPath := filepath.Join(cfg.DataDir, cfg.DataFile)
		store, err := inmem.Open(fullPath)
		if err != nil {
			return nil, fmt.Errorf("initialize in-memory store: %w", err)
		}

		return store, nil
	case DatabaseSQLite:
		err := os.MkdirAll(cfg.DataDir, 0770)
		if err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}

		store, err := sqlite.NewStore(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("initialize sqlite: %w", err)
		}

		return store, nil
	case DatabasePostgres:
		store, err := postgres.NewStore(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("initialize postgres: %w", err)
		}

		return store, nil
	case DatabaseNone:
		return nil, fmt.Errorf("cannot connect to 'none' DB")
	default:
		return nil, fmt.Errorf("unknown database type: %q", cfg.Type.String())
	}
}

// ParseDBConnString parses a database connection string of the form
// "engine:params" (or just "engine" if no other params are required) into a
// valid Database config object.
//
// Supported database types and a sample string containing valid configurations
// for each are shown below. Placeholder values are between angle brackets,
// optional parts are between square brackets. Ordering of parameters does not
// matter.
//
// * In-memory database: "inmem[:dir=<path/to/data/dir>[,file=<registry.dat>]]"
// * SQLite3 DB file: "sqlite:</path/to/db/dir>"
// * PostgreSQL server: "postgres:<connection string>"
func ParseDBConnString(s string) (Database, error) {
	var paramStr string
	dbParts := strings.SplitN(s, ":", 2)

	if len(dbParts) == 2 {
		paramStr = strings.TrimSpace(dbParts[1])
	}

	// parse the first section into a type, from there we can determine if
	// further params are required.
	dbEng, err := ParseDBType(strings.TrimSpace(dbParts[0]))
	if err != nil {
		return Database{}, fmt.Errorf("unsupported DB engine: %w", err)
	}

	switch dbEng {
	case DatabaseInMemory:
		// options are allowed but not required
		if paramStr == "" {
			return Database{Type: DatabaseInMemory}, nil
		}

		params, err := parseParamsMap(paramStr)
		if err != nil {
			return Database{}, err
		}

		cfg := Database{Type: DatabaseInMemory}

		if val, ok := params["dir"]; ok {
			cfg.DataDir = filepath.FromSlash(val)
		} else {
			return Database{}, fmt.Errorf("in-memory DB engine params missing qualified path to data directory in key 'dir'")
		}

		if val, ok := params["file"]; ok {
			cfg.DataFile = val
		} else {
			cfg.DataFile = "registry.dat"
		}
		return cfg, nil
	case DatabaseSQLite:
		// there must be options
		if paramStr == "" {
			return Database{}, fmt.Errorf("sqlite DB engine requires path to data directory after ':'")
		}

		// the only option is the DB path, as long as the param str isn't
		// literally blank, it can be used.

		// convert slashes to correct type
		dd := filepath.FromSlash(paramStr)
		return Database{Type: DatabaseSQLite, DataDir: dd}, nil
	case DatabasePostgres:
		// there must be options
		if paramStr == "" {
			return Database{}, fmt.Errorf("postgres DB engine requires connection string after ':'")
		}

		// the rest of the string is the DSN, passed to the server verbatim.
		return Database{Type: DatabasePostgres, DSN: paramStr}, nil
	case DatabaseNone:
		// not allowed
		return Database{}, fmt.Errorf("cannot specify DB engine 'none' (perhaps you wanted 'inmem'?)")
	default:
		// unknown
		return Database{}, fmt.Errorf("unknown DB engine: %q", dbEng.String())
	}
}

func parseParamsMap(paramStr string) (map[string]string, error) {
	seqs := splitWithEscaped(paramStr, ",")
	if len(seqs) < 1 {
		return nil, fmt.Errorf("not a map format string: %q", paramStr)
	}

	params := map[string]string{}
	for idx, kv := range seqs {
		parsed := splitWithEscaped(kv, "=")
		if len(parsed) != 2 {
			return nil, fmt.Errorf("param %d: not a kv-pair: %q", idx, kv)
		}
		k := parsed[0]
		v := parsed[1]
		params[strings.ToLower(k)] = v
	}

	return params, nil
}

// splitWithEscaped splits s on every unescaped occurrence of sep. A backslash
// escapes the rune after it, so "a\,b,c" split on "," gives ["a,b" "c"]. If
// sep contains a backslash, nil is returned.
func splitWithEscaped(s, sep string) []string {
	if strings.Contains(sep, "\\") {
		return nil
	}
	var split []string
	var cur strings.Builder
	sepr := []rune(sep)
	sr := []rune(s)
	for i := 0; i < len(sr); i++ {
		if sr[i] == '\\' {
			if i+1 < len(sr) {
				cur.WriteRune(sr[i+1])
				i++
			}
			continue
		}

		if strings.HasPrefix(string(sr[i:]), sep) {
			split = append(split, cur.String())
			cur.Reset()
			i += len(sepr) - 1
			continue
		}

		cur.WriteRune(sr[i])
	}

	split = append(split, cur.String())
	return split
}
