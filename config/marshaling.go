package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dekarrin/taffy/logging"
	"gopkg.in/yaml.v3"
)

type marshaledDatabase struct {
	Type string `yaml:"type" json:"type"`
	Dir  string `yaml:"dir,omitempty" json:"dir,omitempty"`
	File string `yaml:"file,omitempty" json:"file,omitempty"`
	DSN  string `yaml:"dsn,omitempty" json:"dsn,omitempty"`
}

type marshaledLog struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Provider string `yaml:"provider,omitempty" json:"provider,omitempty"`
	File     string `yaml:"file,omitempty" json:"file,omitempty"`
}

type marshaledConfig struct {
	DB  marshaledDatabase `yaml:"db" json:"db"`
	Log marshaledLog      `yaml:"logging" json:"logging"`
}

// Load loads a configuration from a JSON or YAML file. The format of the file
// is determined by examining its extension; files ending in .json are parsed
// as JSON files, and files ending in .yaml or .yml are parsed as YAML files.
// Other extensions are not supported. The extension is not case-sensitive.
func Load(file string) (Config, error) {
	var cfg Config
	var mc marshaledConfig

	switch filepath.Ext(strings.ToLower(file)) {
	case ".json":
		// json file
		data, err := os.ReadFile(file)
		if err != nil {
			return cfg, fmt.Errorf("%q: %w", file, err)
		}
		err = json.Unmarshal(data, &mc)
		if err != nil {
			return cfg, fmt.Errorf("%q: %w", file, err)
		}
	case ".yaml", ".yml":
		// yaml file
		data, err := os.ReadFile(file)
		if err != nil {
			return cfg, fmt.Errorf("%q: %w", file, err)
		}
		err = yaml.Unmarshal(data, &mc)
		if err != nil {
			return cfg, fmt.Errorf("%q: %w", file, err)
		}
	default:
		return cfg, fmt.Errorf("%q: incompatible format; must be .json, .yml, or .yaml file", file)
	}

	err := cfg.unmarshal(mc)
	return cfg, err
}

// Dump returns the configuration as YAML bytes, suitable for writing to a
// config file that Load can read back.
func Dump(cfg Config) ([]byte, error) {
	mc := cfg.marshal()

	data, err := yaml.Marshal(mc)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	return data, nil
}

// unmarshal completely replaces all attributes with the values or missing
// values in the marshaledConfig.
//
// does no validation except that which is required for parsing.
func (cfg *Config) unmarshal(m marshaledConfig) error {
	if err := cfg.DB.unmarshal(m.DB); err != nil {
		return fmt.Errorf("db: %w", err)
	}
	if err := cfg.Log.unmarshal(m.Log); err != nil {
		return fmt.Errorf("logging: %w", err)
	}

	return nil
}

func (cfg Config) marshal() marshaledConfig {
	return marshaledConfig{
		DB:  cfg.DB.marshal(),
		Log: cfg.Log.marshal(),
	}
}

// unmarshal completely replaces all attributes with the values or missing
// values in the marshaledDatabase.
//
// does no validation except that which is required for parsing.
func (cfg *Database) unmarshal(m marshaledDatabase) error {
	var err error

	if m.Type == "" {
		// an absent db section selects the default engine in FillDefaults
		cfg.Type = DatabaseNone
	} else {
		cfg.Type, err = ParseDBType(m.Type)
		if err != nil {
			return fmt.Errorf("type: %w", err)
		}
	}

	cfg.DataDir = m.Dir
	cfg.DataFile = m.File
	cfg.DSN = m.DSN

	return nil
}

func (cfg Database) marshal() marshaledDatabase {
	typ := cfg.Type.String()
	if cfg.Type == DatabaseNone || cfg.Type == "" {
		typ = ""
	}

	return marshaledDatabase{
		Type: typ,
		Dir:  cfg.DataDir,
		File: cfg.DataFile,
		DSN:  cfg.DSN,
	}
}

// unmarshal completely replaces all attributes with the values or missing
// values in the marshaledLog.
//
// does no validation except that which is required for parsing.
func (log *Log) unmarshal(m marshaledLog) error {
	var err error

	log.Provider, err = logging.ParseProvider(m.Provider)
	if err != nil {
		return fmt.Errorf("provider: %w", err)
	}

	log.Enabled = m.Enabled
	log.File = m.File

	return nil
}

func (log Log) marshal() marshaledLog {
	prov := log.Provider.String()
	if log.Provider == logging.None {
		prov = ""
	}

	return marshaledLog{
		Enabled:  log.Enabled,
		Provider: prov,
		File:     log.File,
	}
}
