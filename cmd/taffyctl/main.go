/*
Taffyctl manages a taffy schema-registry store from the command line. It
connects to whichever backend the config file names and performs one operation
per invocation.

Usage:

	taffyctl [flags] COMMAND [ARG...]

The commands are:

	init
		Create a starter config file if one does not exist yet, then connect
		to the configured store once so that its data files and indexes
		exist.
	stats
		Print the number of stored entities of each kind.
	export
		Write every entity in the store to a snapshot file. The file can be
		imported into a store of any backend.
	import FILE
		Load every entity in the snapshot FILE into the store. The store
		should be empty; a snapshot entity that collides with a stored one
		fails the import.
	hash FILE...
		Print the content hash of each document file.
	directives
		Print the table of directives built in to the GraphQL language.
	envs
		List environments by name.
	add-env NAME
		Create an environment.
	schemas
		List schemas by name.
	add-schema NAME
		Create a schema.
	clients
		List clients by name along with the schemas they consume.
	add-client NAME
		Create a client, optionally associated with a schema.

The flags are:

	-c, --config PATH
		Use the given file for the configuration instead of './taffy.yml'.
		The file must be in JSON or YAML format.
	-o, --output PATH
		Write the export snapshot to the given file instead of
		'./registry-export.dat'.
	-a, --algorithm NAME
		Hash with the given algorithm instead of sha256. One of sha256,
		sha1, md5, blake2b.
	-f, --format NAME
		Print hashes in the given text format instead of hex. One of hex,
		base64.
	-d, --description TEXT
		Set the description of an entity created with add-env or add-schema.
	-s, --schema NAME
		Associate a client created with add-client with the named schema.
*/
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/pflag"
)

const (
	exitSuccess   = 0
	exitError     = 1
	exitPanic     = 2
	exitInterrupt = 3
)

var exitCode int

var (
	flagConf        = pflag.StringP("config", "c", "taffy.yml", "Path to configuration file")
	flagOutput      = pflag.StringP("output", "o", "registry-export.dat", "Path the export command writes the snapshot to")
	flagAlgorithm   = pflag.StringP("algorithm", "a", "sha256", "Hash algorithm for the hash command")
	flagFormat      = pflag.StringP("format", "f", "hex", "Hash text format for the hash command")
	flagDescription = pflag.StringP("description", "d", "", "Description for entities created with add-env or add-schema")
	flagSchema      = pflag.StringP("schema", "s", "", "Schema name to associate a created client with")
)

func main() {
	// context for signal handling: the first interrupt cancels in-flight
	// store operations, a second one hard-exits.
	ctx := context.Background()
	ctx, cancelMainContext := context.WithCancel(ctx)
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt)
	defer func() {
		signal.Stop(signalChan)
		cancelMainContext()
	}()
	go func() {
		select {
		case <-signalChan: // first signal, cancel context
			cancelMainContext()
		case <-ctx.Done():
		}

		<-signalChan // second signal, hard exit
		os.Exit(exitInterrupt)
	}()

	defer func() {
		if panicErr := recover(); panicErr != nil {
			fmt.Fprintf(os.Stderr, "fatal panic: %v\n", panicErr)
			exitCode = exitPanic
		}
		os.Exit(exitCode)
	}()

	pflag.Parse()

	if pflag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "ERROR: missing COMMAND; run with --help for usage\n")
		exitCode = exitError
		return
	}

	cmd := pflag.Arg(0)
	args := pflag.Args()[1:]

	var err error
	switch cmd {
	case "init":
		err = cmdInit(ctx)
	case "stats":
		err = cmdStats(ctx)
	case "export":
		err = cmdExport(ctx)
	case "import":
		err = cmdImport(ctx, args)
	case "hash":
		err = cmdHash(args)
	case "directives":
		err = cmdDirectives()
	case "envs":
		err = cmdEnvs(ctx)
	case "add-env":
		err = cmdAddEnv(ctx, args)
	case "schemas":
		err = cmdSchemas(ctx)
	case "add-schema":
		err = cmdAddSchema(ctx, args)
	case "clients":
		err = cmdClients(ctx)
	case "add-client":
		err = cmdAddClient(ctx, args)
	default:
		err = fmt.Errorf("unknown command %q; run with --help for usage", cmd)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err.Error())
		exitCode = exitError
	}
}
