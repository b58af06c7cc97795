// Package config loads a project's optional kooix.yaml: extra module
// search roots, strict-warnings-as-errors mode, and native build tool
// defaults. Modeled on sunholo-data-ailang and intelligencedev-manifold's
// gopkg.in/yaml.v3 config structs — a plain tagged struct unmarshaled
// directly, with defaults applied after load rather than via a builder.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the typed shape of kooix.yaml.
type Config struct {
	ModuleRoots   []string   `yaml:"module_roots"`
	StrictWarnings bool      `yaml:"strict_warnings"`
	Native        NativeConfig `yaml:"native"`
}

// NativeConfig configures the native build shim's default tool names and
// timeout when a project doesn't override them on the command line.
type NativeConfig struct {
	LLC       string `yaml:"llc"`
	Clang     string `yaml:"clang"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// Default returns the configuration used when no kooix.yaml is present.
func Default() Config {
	return Config{
		Native: NativeConfig{LLC: "llc", Clang: "clang", TimeoutMs: 30_000},
	}
}

// Load reads and parses path, applying Default() for any field the file
// leaves unset. A missing file is not an error: Load returns Default().
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	if cfg.Native.LLC == "" {
		cfg.Native.LLC = "llc"
	}
	if cfg.Native.Clang == "" {
		cfg.Native.Clang = "clang"
	}
	if cfg.Native.TimeoutMs == 0 {
		cfg.Native.TimeoutMs = 30_000
	}
	return cfg, nil
}
