package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/andreyvit/pkstore"
)

// Environment variables consulted when the corresponding flag is not set.
const (
	EnvDB     = "PKSTORE_DB"
	EnvEngine = "PKSTORE_ENGINE"
)

const (
	defaultDB     = "db"
	defaultEngine = pkstore.EngineBolt
)

// Config is the store configuration. Values are resolved in order of
// precedence: flags, environment (including the .env file), config file,
// defaults.
type Config struct {
	DB              string `yaml:"db"`
	Engine          string `yaml:"engine"`
	Encoding        string `yaml:"encoding"` // "msgpack" | "json"
	NoChecksum      bool   `yaml:"no_checksum"`
	ScanBatchSize   int    `yaml:"scan_batch_size"`
	EntityTypeField string `yaml:"entity_type_field"`
}

// LoadConfigFile reads a YAML config file. Unknown keys are rejected.
func LoadConfigFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// loadDotEnv reads a .env file without touching the process environment.
// A missing file is not an error.
func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	env, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return env, nil
}

func lookupEnv(dotenv map[string]string, key string) (string, bool) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v, true
	}
	v, ok := dotenv[key]
	return v, ok && v != ""
}

func (cfg *Config) applyEnv(dotenv map[string]string) {
	if v, ok := lookupEnv(dotenv, EnvDB); ok {
		cfg.DB = v
	}
	if v, ok := lookupEnv(dotenv, EnvEngine); ok {
		cfg.Engine = v
	}
}

func (cfg *Config) setDefaults() {
	if cfg.DB == "" {
		cfg.DB = defaultDB
	}
	if cfg.Engine == "" {
		cfg.Engine = defaultEngine
	}
}

func (cfg *Config) codec() (pkstore.ValueCodec, error) {
	enc, err := pkstore.ParseEncoding(cfg.Encoding)
	if err != nil {
		return nil, err
	}
	return pkstore.EnvelopeCodec{Encoding: enc, NoChecksum: cfg.NoChecksum}, nil
}
