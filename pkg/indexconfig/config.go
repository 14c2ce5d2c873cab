// Package indexconfig loads the engine's environment/configuration surface
// from a YAML file, with the same fallback-chain approach the original
// tool used for its project configuration.
package indexconfig

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Mode selects whether RecursiveResolver may use a type-backed fallback.
type Mode string

const (
	ModeHybrid     Mode = "hybrid"
	ModeStandalone Mode = "standalone"
)

// Config is the engine's full effect-bearing configuration surface.
type Config struct {
	CacheDirectory      string   `yaml:"cacheDirectory"`
	ExcludePatterns     []string `yaml:"excludePatterns"`
	MaxIndexedFileSize  int64    `yaml:"maxIndexedFileSize"`
	MaxCacheSizeMB      int      `yaml:"maxCacheSizeMB"`
	MaxConcurrentJobs   int      `yaml:"maxConcurrentIndexJobs"`
	EnableGitIntegration bool    `yaml:"enableGitIntegration"`
	Mode                Mode     `yaml:"mode"`
	HybridTimeoutMs     int      `yaml:"hybridTimeoutMs"`
	DebounceMs          int      `yaml:"debounceMs"`
}

// hardExcludes are applied unconditionally regardless of user config.
var hardExcludes = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/dist/**",
	"**/build/**",
	"**/out/**",
	"**/.smart-index/**",
	"**/coverage/**",
}

// Default returns the configuration the engine uses when no config file is
// present.
func Default() Config {
	return Config{
		CacheDirectory:       ".smart-index",
		ExcludePatterns:      append([]string{}, hardExcludes...),
		MaxIndexedFileSize:   2 * 1024 * 1024,
		MaxCacheSizeMB:       512,
		MaxConcurrentJobs:    0, // 0 means "derive from hardware"
		EnableGitIntegration: false,
		Mode:                 ModeStandalone,
		HybridTimeoutMs:      150,
		DebounceMs:           600,
	}
}

// AllExcludes returns the user's exclude patterns plus the unconditional
// hard excludes, deduplicated.
func (c Config) AllExcludes() []string {
	seen := make(map[string]bool, len(c.ExcludePatterns)+len(hardExcludes))
	out := make([]string, 0, len(c.ExcludePatterns)+len(hardExcludes))
	add := func(pats []string) {
		for _, p := range pats {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	add(hardExcludes)
	add(c.ExcludePatterns)
	return out
}

// Load reads workspaceRoot/.symgraph/config.yaml, falling back to Default()
// for any field the file omits, and to pure defaults if the file is absent.
func Load(workspaceRoot string) (Config, error) {
	cfg := Default()

	path := filepath.Join(workspaceRoot, ".symgraph", "config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	var loaded Config
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return cfg, err
	}

	merge(&cfg, loaded)
	return cfg, nil
}

// merge overlays any non-zero field from loaded onto base.
func merge(base *Config, loaded Config) {
	if loaded.CacheDirectory != "" {
		base.CacheDirectory = loaded.CacheDirectory
	}
	if len(loaded.ExcludePatterns) > 0 {
		base.ExcludePatterns = loaded.ExcludePatterns
	}
	if loaded.MaxIndexedFileSize > 0 {
		base.MaxIndexedFileSize = loaded.MaxIndexedFileSize
	}
	if loaded.MaxCacheSizeMB > 0 {
		base.MaxCacheSizeMB = loaded.MaxCacheSizeMB
	}
	if loaded.MaxConcurrentJobs > 0 {
		base.MaxConcurrentJobs = loaded.MaxConcurrentJobs
	}
	if loaded.Mode != "" {
		base.Mode = loaded.Mode
	}
	if loaded.HybridTimeoutMs > 0 {
		base.HybridTimeoutMs = loaded.HybridTimeoutMs
	}
	if loaded.DebounceMs > 0 {
		base.DebounceMs = loaded.DebounceMs
	}
	base.EnableGitIntegration = loaded.EnableGitIntegration
}
