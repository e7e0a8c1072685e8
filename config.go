package primeshard

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tailscale/hujson"
	"go.uber.org/zap"
)

// Default byte budgets (spec.md §6): 25 MiB per chunk, 250 MiB per shard.
const (
	DefaultChunkBytes uint64 = 25 * 1024 * 1024
	DefaultShardBytes uint64 = 10 * DefaultChunkBytes

	// LockTimeoutSeconds is the compile-time staleness threshold for LockFile
	// (spec.md §4.2): a lock older than this is reclaimable.
	LockTimeoutSeconds = 60

	// HashBlockSize is the streaming read size HashFile uses (spec.md §4.1).
	HashBlockSize = 8 * 1024
)

// ConfigFileName is the optional per-directory config file name, parsed as
// JSON-with-comments (hujson), the way the teacher parses ".tk.json".
const ConfigFileName = ".primeshard.json"

// Config carries every knob spec.md §9 calls an "ambient global constant":
// default byte sizes, the data directory, and (new here) the logger every
// component uses for its side-channel notices. It's always threaded through
// constructors explicitly; nothing in this module reads a package-level
// global or an environment variable directly.
type Config struct {
	// DataDir is where shard files and (by default) the metadata file live.
	// Defaults to "./data", a relative path resolved against the process's
	// working directory; it is not derived from the module or source location.
	DataDir string `json:"data_dir"` //nolint:tagliatelle // snake_case for config file

	DefaultChunkBytes uint64 `json:"-"`
	DefaultShardBytes uint64 `json:"-"`

	// Logger receives the side-channel notices spec.md §7 calls for
	// (hash mismatches, corrupt metadata swallowed, stale locks reclaimed).
	// Defaults to a no-op logger.
	Logger *zap.Logger `json:"-"`
}

// Option customizes a Config produced by DefaultConfig/LoadConfig.
type Option func(*Config)

// WithLogger plugs an external *zap.Logger, mirroring arena-cache's
// WithLogger option. The store never logs on a happy path; only on the
// specific swallowed-error paths spec.md §7 documents.
func WithLogger(l *zap.Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	}
}

// WithDataDir overrides the data directory.
func WithDataDir(dir string) Option {
	return func(c *Config) {
		if dir != "" {
			c.DataDir = dir
		}
	}
}

// DefaultConfig returns the zero-configuration defaults.
func DefaultConfig(opts ...Option) Config {
	cfg := Config{
		DataDir:           filepath.Join(".", "data"),
		DefaultChunkBytes: DefaultChunkBytes,
		DefaultShardBytes: DefaultShardBytes,
		Logger:            zap.NewNop(),
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg
}

// fileConfig is the on-disk shape of ConfigFileName: only the fields an
// operator might reasonably want to override ambiently. Byte budgets and
// the lock timeout stay compile-time constants (spec.md §6: "None are
// env-configurable in this version") — only the data directory is exposed
// here, for relocating the store without recompiling.
type fileConfig struct {
	DataDir string `json:"data_dir"` //nolint:tagliatelle // snake_case for config file
}

// LoadConfig resolves a Config with the same precedence the teacher's
// LoadConfig uses for ticket config: defaults, then a global user config
// ($XDG_CONFIG_HOME/primeshard/config.json or ~/.config/primeshard/config.json),
// then a project-local ConfigFileName in workDir, then caller-supplied
// Options (highest precedence). Missing config files are not an error.
func LoadConfig(workDir string, opts ...Option) (Config, error) {
	cfg := DefaultConfig()

	if global := globalConfigPath(); global != "" {
		fc, loaded, err := readFileConfig(global, false)
		if err != nil {
			return Config{}, err
		}

		if loaded {
			applyFileConfig(&cfg, fc)
		}
	}

	projectPath := filepath.Join(workDir, ConfigFileName)

	fc, loaded, err := readFileConfig(projectPath, false)
	if err != nil {
		return Config{}, err
	}

	if loaded {
		applyFileConfig(&cfg, fc)
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.DataDir == "" {
		return Config{}, fmt.Errorf("%w: data_dir cannot be empty", ErrInvalidArgument)
	}

	return cfg, nil
}

func applyFileConfig(cfg *Config, fc fileConfig) {
	if fc.DataDir != "" {
		cfg.DataDir = fc.DataDir
	}
}

func globalConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "primeshard", "config.json")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".config", "primeshard", "config.json")
}

// readFileConfig reads and hujson-standardizes a config file. A missing
// file is not an error unless mustExist is set.
func readFileConfig(path string, mustExist bool) (fileConfig, bool, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is constructed from trusted inputs
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return fileConfig{}, false, nil
		}

		return fileConfig{}, false, fmt.Errorf("reading config %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return fileConfig{}, false, fmt.Errorf("%w: invalid JSONC in %s: %w", ErrCorrupt, path, err)
	}

	var fc fileConfig

	if err := json.Unmarshal(standardized, &fc); err != nil {
		return fileConfig{}, false, fmt.Errorf("%w: invalid JSON in %s: %w", ErrCorrupt, path, err)
	}

	fc.DataDir = strings.TrimSpace(fc.DataDir)

	return fc, true, nil
}
