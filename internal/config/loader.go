package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// File locations searched by LoadConfig.
const (
	GlobalConfigDir   = "mapedit"         // below $XDG_CONFIG_HOME or ~/.config
	GlobalConfigFile  = "config.yaml"     // global settings
	ProjectConfigDir  = ".mapedit"        // below the working directory
	ProjectConfigFile = "config.yaml"     // project settings
	PreferencesFile   = "preferences.ini" // next to the global config
)

// layer is one configuration file merged over the defaults. Optional
// layers that do not exist are skipped.
type layer struct {
	name     string
	path     string
	required bool
}

// layers returns the configuration files in merge order: global, project,
// then the file named by the "config" key.
func layers(v *viper.Viper) []layer {
	var out []layer
	if home := configHome(); home != "" {
		out = append(out, layer{name: "global", path: filepath.Join(home, GlobalConfigDir, GlobalConfigFile)})
	}
	out = append(out, layer{name: "project", path: filepath.Join(ProjectConfigDir, ProjectConfigFile)})
	if explicit := v.GetString("config"); explicit != "" {
		out = append(out, layer{name: "explicit", path: explicit, required: true})
	}
	return out
}

// LoadConfig builds the effective configuration. Values already set on v by
// environment variables (MAPEDIT_*) or bound flags win over every file; the
// files win over Default(). Paths starting with ~/ are expanded before the
// result is validated.
func LoadConfig(v *viper.Viper) (*Config, error) {
	cfg := Default()

	defaults, err := structToMap(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode defaults: %w", err)
	}
	if err := v.MergeConfigMap(defaults); err != nil {
		return nil, fmt.Errorf("merge defaults: %w", err)
	}

	for _, l := range layers(v) {
		if err := l.merge(v); err != nil {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg, viperDecodeHook()); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Paths.expand(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// merge reads the layer's YAML file through its own viper and merges the
// settings into v.
func (l layer) merge(v *viper.Viper) error {
	fileViper := viper.New()
	fileViper.SetConfigFile(l.path)
	fileViper.SetConfigType("yaml")

	if err := fileViper.ReadInConfig(); err != nil {
		if !l.required && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s config %s: %w", l.name, l.path, err)
	}
	if err := v.MergeConfigMap(fileViper.AllSettings()); err != nil {
		return fmt.Errorf("merge %s config %s: %w", l.name, l.path, err)
	}
	return nil
}

// expand resolves a leading ~ in every configured path.
func (p *PathsConfig) expand() error {
	for _, field := range []*string{&p.Preferences, &p.Log, &p.Journal} {
		expanded, err := expandHome(*field)
		if err != nil {
			return fmt.Errorf("paths: %w", err)
		}
		*field = expanded
	}
	return nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand %s: %w", path, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// configHome returns $XDG_CONFIG_HOME or ~/.config.
func configHome() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config")
}

// defaultPreferencesPath places preferences next to the global config.
func defaultPreferencesPath() string {
	dir := configHome()
	if dir == "" {
		return filepath.Join(ProjectConfigDir, PreferencesFile)
	}
	return filepath.Join(dir, GlobalConfigDir, PreferencesFile)
}

func viperDecodeHook() viper.DecoderConfigOption {
	return viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
}

// structToMap flattens cfg into the nested map MergeConfigMap expects.
// Durations become strings so they decode like values read from YAML.
func structToMap(cfg *Config) (map[string]any, error) {
	result := make(map[string]any)
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "mapstructure",
		Result:  &result,
		DecodeHook: func(from, to reflect.Type, data any) (any, error) {
			if d, ok := data.(time.Duration); ok {
				return d.String(), nil
			}
			return data, nil
		},
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(cfg); err != nil {
		return nil, err
	}
	return result, nil
}
