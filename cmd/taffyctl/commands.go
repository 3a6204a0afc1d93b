package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dekarrin/taffy"
	"github.com/dekarrin/taffy/config"
	"github.com/dekarrin/taffy/db"
	"github.com/dekarrin/taffy/directive"
	"github.com/dekarrin/taffy/dochash"
	"github.com/dekarrin/taffy/logging"
	"github.com/google/uuid"
)

// openStore loads the config file, builds the configured logger, and connects
// to the configured store. The caller owns the returned store and must Close
// it.
func openStore() (db.Store, logging.Logger, error) {
	conf, err := config.Load(*flagConf)
	if err != nil {
		return nil, nil, err
	}
	conf = conf.FillDefaults()
	if err := conf.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", *flagConf, err)
	}

	logger, err := conf.Log.Create()
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}

	logger.Debugf("Connecting to %s store...", conf.DB.Type.String())
	store, err := conf.DB.Connect()
	if err != nil {
		return nil, nil, err
	}

	return store, logger, nil
}

func cmdInit(ctx context.Context) error {
	if _, err := os.Stat(*flagConf); os.IsNotExist(err) {
		starter := config.Config{
			DB: config.Database{
				Type:    config.DatabaseSQLite,
				DataDir: "taffy-data",
			},
			Log: config.Log{
				Enabled: true,
			},
		}.FillDefaults()

		data, err := config.Dump(starter)
		if err != nil {
			return err
		}
		if err := os.WriteFile(*flagConf, data, 0644); err != nil {
			return fmt.Errorf("write config file: %w", err)
		}
		fmt.Printf("Wrote starter config to %s\n", *flagConf)
	}

	store, logger, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	// connecting has already created every table and index; the count just
	// proves the store answers queries
	count, err := store.Clients().List(nil).Count(ctx)
	if err != nil {
		return err
	}

	logger.Infof("Store initialized; %d client(s) registered", count)
	return nil
}

func cmdStats(ctx context.Context) error {
	store, _, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	rows := []struct {
		label string
		count func(context.Context) (int, error)
	}{
		{"environments", store.Environments().List().Count},
		{"schemas", store.Schemas().List().Count},
		{"schema versions", store.SchemaVersions().List(nil).Count},
		{"clients", store.Clients().List(nil).Count},
		{"client versions", store.ClientVersions().List(nil).Count},
		{"queries", store.Queries().List(nil).Count},
		{"publish reports", store.PublishReports().List(nil).Count},
		{"published clients", store.PublishedClients().List(nil).Count},
	}

	for _, row := range rows {
		n, err := row.count(ctx)
		if err != nil {
			return fmt.Errorf("count %s: %w", row.label, err)
		}
		fmt.Printf("%-18s %d\n", row.label+":", n)
	}

	return nil
}

func cmdExport(ctx context.Context) error {
	store, logger, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	snap, err := db.TakeSnapshot(ctx, store)
	if err != nil {
		return fmt.Errorf("read store: %w", err)
	}

	data, err := snap.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	if err := os.WriteFile(*flagOutput, data, 0644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	logger.Infof("Exported %d entities to %s", snapEntityCount(snap), *flagOutput)
	return nil
}

func cmdImport(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("import requires exactly one snapshot FILE argument")
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	var snap db.Snapshot
	if err := snap.UnmarshalBinary(data); err != nil {
		return taffy.NewErrorf([]error{err, taffy.ErrDecodingFailure}, "malformed snapshot file %q", args[0])
	}

	store, logger, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := snap.Restore(ctx, store); err != nil {
		return fmt.Errorf("restore: %w", err)
	}

	logger.Infof("Imported %d entities from %s", snapEntityCount(snap), args[0])
	return nil
}

func snapEntityCount(snap db.Snapshot) int {
	return len(snap.Environments) + len(snap.Schemas) + len(snap.SchemaVersions) +
		len(snap.Clients) + len(snap.ClientVersions) + len(snap.Queries) +
		len(snap.PublishReports) + len(snap.PublishedClients)
}

func cmdHash(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("hash requires at least one document FILE argument")
	}

	alg, err := dochash.ParseAlgorithm(*flagAlgorithm)
	if err != nil {
		return err
	}
	format, err := dochash.ParseFormat(*flagFormat)
	if err != nil {
		return err
	}
	hasher, err := dochash.New(alg, format)
	if err != nil {
		return err
	}

	for _, file := range args {
		doc, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("%q: %w", file, err)
		}
		fmt.Printf("%s  %s\n", hasher.Hash(doc).Hash, file)
	}

	return nil
}

func cmdDirectives() error {
	for _, def := range directive.All() {
		fmt.Printf("@%s", def.Name)
		if def.Repeatable {
			fmt.Print(" (repeatable)")
		}
		fmt.Println()
		fmt.Printf("    %s\n", def.Description)

		locs := make([]string, len(def.Locations))
		for i, loc := range def.Locations {
			locs[i] = string(loc)
		}
		fmt.Printf("    on: %s\n", strings.Join(locs, " | "))

		for _, arg := range def.Args {
			argLine := fmt.Sprintf("    %s: %s", arg.Name, arg.Type)
			if arg.DefaultValue != "" {
				argLine += " = " + arg.DefaultValue
			}
			fmt.Println(argLine)
		}
	}

	return nil
}

func cmdEnvs(ctx context.Context) error {
	store, _, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	envs := store.Environments().List().
		SortedBy(func(l, r db.Environment) bool { return l.Name < r.Name })

	return envs.Each(ctx, func(env db.Environment) error {
		line := env.Name
		if env.Description != "" {
			line += " - " + env.Description
		}
		fmt.Println(line)
		return nil
	})
}

func cmdAddEnv(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("add-env requires exactly one NAME argument")
	}

	store, _, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	env, err := store.Environments().Create(ctx, db.Environment{
		Name:        args[0],
		Description: *flagDescription,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Created environment %s (%s)\n", env.Name, env.ID)
	return nil
}

func cmdSchemas(ctx context.Context) error {
	store, _, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	schemas := store.Schemas().List().
		SortedBy(func(l, r db.Schema) bool { return l.Name < r.Name })

	return schemas.Each(ctx, func(s db.Schema) error {
		line := s.Name
		if s.Description != "" {
			line += " - " + s.Description
		}
		fmt.Println(line)
		return nil
	})
}

func cmdAddSchema(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("add-schema requires exactly one NAME argument")
	}

	store, _, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	s, err := store.Schemas().Create(ctx, db.Schema{
		Name:        args[0],
		Description: *flagDescription,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Created schema %s (%s)\n", s.Name, s.ID)
	return nil
}

func cmdClients(ctx context.Context) error {
	store, _, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	clients, err := store.Clients().List(nil).
		SortedBy(func(l, r db.Client) bool { return l.Name < r.Name }).
		All(ctx)
	if err != nil {
		return err
	}

	var schemaIDs []uuid.UUID
	for _, c := range clients {
		if c.SchemaID != uuid.Nil {
			schemaIDs = append(schemaIDs, c.SchemaID)
		}
	}
	schemas, err := store.Schemas().GetMany(ctx, schemaIDs)
	if err != nil {
		return err
	}

	for _, c := range clients {
		line := c.Name
		if s, ok := schemas[c.SchemaID]; ok {
			line += " -> " + s.Name
		}
		fmt.Println(line)
	}

	return nil
}

func cmdAddClient(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("add-client requires exactly one NAME argument")
	}

	store, _, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	c := db.Client{Name: args[0]}

	if *flagSchema != "" {
		s, ok, err := store.Schemas().GetByName(ctx, *flagSchema)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no schema named %q", *flagSchema)
		}
		c.SchemaID = s.ID
	}

	c, err = store.Clients().Create(ctx, c)
	if err != nil {
		return err
	}

	fmt.Printf("Created client %s (%s)\n", c.Name, c.ID)
	return nil
}
