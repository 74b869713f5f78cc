// Package tables registers all table configs with the core registry.
// Import this package to ensure all tables are registered.
//
// The built-in tables are declared as YAML under configs/ and embedded in
// the binary. Deployments can add tables at runtime with LoadDir.
package tables

import (
	"embed"
	"fmt"
	"os"

	"github.com/JonMunkholm/joyeria/internal/core"
)

//go:embed configs/*.yaml
var builtin embed.FS

func init() {
	configs, err := core.LoadTableConfigs(builtin, "configs")
	if err != nil {
		panic(err.Error())
	}
	for _, cfg := range configs {
		core.Register(cfg)
	}
}

// Builtin returns the embedded table configs without registering them.
func Builtin() ([]core.TableConfig, error) {
	return core.LoadTableConfigs(builtin, "configs")
}

// LoadDir registers every table declared in the YAML files of dir.
// Keys already registered are rejected.
func LoadDir(dir string) (int, error) {
	configs, err := core.LoadTableConfigs(os.DirFS(dir), ".")
	if err != nil {
		return 0, err
	}
	for i, cfg := range configs {
		if err := core.Add(cfg); err != nil {
			return i, fmt.Errorf("register %s: %w", cfg.Key, err)
		}
	}
	return len(configs), nil
}
