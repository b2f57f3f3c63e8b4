package store

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/sit-fyi/sit-sub000/digest"
)

// Version is the repository format version this implementation writes and
// expects on open. Readers MUST reject a config.json naming any other
// version (spec.md §6).
const Version = "1"

// configFileName is the on-disk name of the repository's config file,
// relative to the repository root.
const configFileName = "config.json"

// IDGenerator names the scheme used to mint item identifiers. UUIDv4 is the
// only variant the original implementation supports, and the only one this
// port carries.
type IDGenerator string

// UUIDv4 generates identifiers with google/uuid, grounded on
// original_source/sit-core/src/id.rs's IdGenerator::UUIDv4 variant.
const UUIDv4 IDGenerator = "uuidv4"

// Config is the repository's config.json: hashing algorithm, digest
// encoding, format version, and any extension properties passed through
// untouched for collaborators outside the core (spec.md §6).
type Config struct {
	HashingAlgorithm digest.HashingAlgorithm `json:"hashing_algorithm"`
	Encoding         string                  `json:"encoding"`
	IDGenerator      IDGenerator             `json:"id_generator"`
	Version          string                  `json:"version"`

	// Extras holds any additional config.json keys verbatim (e.g. a
	// nominated external module manager name) so the core can round-trip
	// them without needing to understand their meaning.
	Extras map[string]json.RawMessage `json:"-"`
}

// DefaultConfig returns the configuration written by Init: BLAKE2b-160
// hashing, Base32 encoding, UUIDv4 IDs, current version.
func DefaultConfig() Config {
	return Config{
		HashingAlgorithm: digest.DefaultHashingAlgorithm(),
		Encoding:         "base32",
		IDGenerator:      UUIDv4,
		Version:          Version,
	}
}

// MarshalJSON flattens Extras alongside the named fields.
func (c Config) MarshalJSON() ([]byte, error) {
	out := map[string]json.RawMessage{}
	for k, v := range c.Extras {
		out[k] = v
	}

	type alias Config
	named, err := json.Marshal(alias(c))
	if err != nil {
		return nil, err
	}
	var namedMap map[string]json.RawMessage
	if err := json.Unmarshal(named, &namedMap); err != nil {
		return nil, err
	}
	for k, v := range namedMap {
		out[k] = v
	}
	return json.Marshal(out)
}

// UnmarshalJSON populates the named fields and stashes everything else in
// Extras.
func (c *Config) UnmarshalJSON(data []byte) error {
	type alias Config
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*c = Config(a)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	known := map[string]bool{
		"hashing_algorithm": true,
		"encoding":          true,
		"id_generator":      true,
		"version":           true,
	}
	c.Extras = map[string]json.RawMessage{}
	for k, v := range raw {
		if !known[k] {
			c.Extras[k] = v
		}
	}
	return nil
}

// loadConfig reads and validates config.json from the repository root,
// rejecting a version mismatch (spec.md §6).
func loadConfig(repoPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Join(repoPath, configFileName))
	if err != nil {
		return Config{}, IOError{Op: "reading config.json", Err: err}
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, SerializationError{Err: err}
	}
	if cfg.Version != Version {
		return Config{}, InvalidVersionError{Expected: Version, Got: cfg.Version}
	}
	return cfg, nil
}

// saveConfig writes cfg as config.json in the repository root.
func saveConfig(repoPath string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return SerializationError{Err: err}
	}
	if err := os.WriteFile(filepath.Join(repoPath, configFileName), data, 0o644); err != nil {
		return IOError{Op: "writing config.json", Err: err}
	}
	return nil
}
