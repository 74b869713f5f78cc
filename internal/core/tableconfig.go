package core

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// tableFile is the on-disk shape of one table declaration. A file holds
// either a single table or a "tables" list.
type tableFile struct {
	TableConfig `yaml:",inline"`
	Tables      []TableConfig `yaml:"tables"`
}

// LoadTableConfigs reads every *.yaml and *.yml file in dir of fsys and
// returns the declared tables sorted by key. Each table is validated;
// the first invalid file aborts the load.
func LoadTableConfigs(fsys fs.FS, dir string) ([]TableConfig, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read table config dir %s: %w", dir, err)
	}

	var configs []TableConfig
	seen := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !(strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")) {
			continue
		}

		file := path.Join(dir, name)
		data, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}

		tables, err := ParseTableConfigs(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		for _, t := range tables {
			if prev, dup := seen[t.Key]; dup {
				return nil, fmt.Errorf("%w: table %q declared in %s and %s", ErrInvalidConfig, t.Key, prev, file)
			}
			seen[t.Key] = file
			configs = append(configs, t)
		}
	}

	sort.Slice(configs, func(i, j int) bool { return configs[i].Key < configs[j].Key })
	return configs, nil
}

// ParseTableConfigs decodes and validates one YAML document.
func ParseTableConfigs(data []byte) ([]TableConfig, error) {
	var tf tableFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	tables := tf.Tables
	if tf.Key != "" {
		tables = append([]TableConfig{tf.TableConfig}, tables...)
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("%w: no tables declared", ErrInvalidConfig)
	}

	for _, t := range tables {
		if err := t.Validate(); err != nil {
			return nil, err
		}
	}
	return tables, nil
}
