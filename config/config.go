// Package config contains configuration options for the registry store as
// well as various config constants.
package config

import (
	"fmt"

	"github.com/dekarrin/taffy/logging"
)

// Log contains logging options. If logging is enabled, the configured
// provider is used for messages about the store and the tools operating on
// it.
type Log struct {
	// Enabled is whether to enable built-in logging statements.
	Enabled bool

	// Provider must be the name of one of the logging providers. If set to
	// None or unset, it will default to logging.Jellog.
	Provider logging.Provider

	// File to log to. If not set, all logging will be done to stderr and it
	// will display all logging statements. If set, the file will receive all
	// levels of log messages and stderr will show only those of Info level or
	// higher.
	File string
}

// Create builds a Logger from the options in the Log. If the Log is not
// Enabled, a no-op logger is returned.
func (log Log) Create() (logging.Logger, error) {
	if !log.Enabled {
		return logging.NoOpLogger{}, nil
	}
	return logging.New(log.Provider, log.File)
}

// FillDefaults returns a new Log identical to log but with unset values set
// to their defaults.
func (log Log) FillDefaults() Log {
	newLog := log

	if newLog.Provider == logging.None {
		newLog.Provider = logging.Jellog
	}

	return newLog
}

// Validate returns an error if the Log has invalid field values set.
func (log Log) Validate() error {
	if log.Provider == logging.None {
		return fmt.Errorf("provider: must not be empty")
	}

	return nil
}

// Config is a complete configuration for opening a registry store. It
// contains all parameters that can be used to configure its operation.
type Config struct {
	// DB is the configuration to use for connecting to the database. If not
	// provided, it will be set to a configuration for using an in-memory
	// persistence layer.
	DB Database

	// Log is used to configure the built-in logging system. It can be left
	// blank to disable logging entirely.
	Log Log
}

// FillDefaults returns a new Config identical to cfg but with unset values
// set to their defaults.
func (cfg Config) FillDefaults() Config {
	newCFG := cfg

	newCFG.DB = newCFG.DB.FillDefaults()
	newCFG.Log = newCFG.Log.FillDefaults()

	return newCFG
}

// Validate returns an error if the Config has invalid field values set. Empty
// and unset values are considered invalid; if defaults are intended to be
// used, call Validate on the return value of FillDefaults.
func (cfg Config) Validate() error {
	if err := cfg.DB.Validate(); err != nil {
		return fmt.Errorf("db: %w", err)
	}
	if err := cfg.Log.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}

	return nil
}
