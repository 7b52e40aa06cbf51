package rcache

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tailscale/hujson"
)

// fileConfig is the on-disk shape accepted by [LoadConfigFile], mirroring
// the teacher pack's tk.json Config struct: a small, flat JSON object, but
// parsed as human JSON so operators can comment out fields while testing
// budgets.
type fileConfig struct {
	CacheLocation  string `json:"cache_location,omitempty"`
	MaxDiskBytes   int64  `json:"max_disk_bytes,omitempty"`
	MaxMemoryBytes int64  `json:"max_memory_bytes,omitempty"`
}

// LoadConfigFile reads a human-JSON (JWCC) config file at path - plain
// JSON with // and /* */ comments and trailing commas allowed - and
// returns an [Option] applying its fields. Fields left zero in the file
// are left untouched, so LoadConfigFile composes with explicit With*
// options placed after it in an Open call.
func LoadConfigFile(path string) (Option, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rcache: read config file: %w", err)
	}

	standard, err := hujson.Standardize(raw)
	if err != nil {
		return nil, fmt.Errorf("rcache: parse config file %s: %w", path, err)
	}

	var fc fileConfig

	if err := json.Unmarshal(standard, &fc); err != nil {
		return nil, fmt.Errorf("rcache: decode config file %s: %w", path, err)
	}

	return func(c *config) {
		if fc.CacheLocation != "" {
			c.cacheLocation = fc.CacheLocation
		}

		if fc.MaxDiskBytes > 0 {
			c.maxDiskBytes = fc.MaxDiskBytes
		}

		if fc.MaxMemoryBytes > 0 {
			c.maxMemoryBytes = fc.MaxMemoryBytes
		}
	}, nil
}
