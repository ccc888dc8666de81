package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Where growth looks for its files.
const (
	// GlobalConfigDir is the directory under $XDG_CONFIG_HOME.
	GlobalConfigDir = "growth"
	// GlobalConfigFile is the config file name inside GlobalConfigDir.
	GlobalConfigFile = "config.yaml"
	// ProjectConfigDir is the per-project directory.
	ProjectConfigDir = ".growth"
	// ProjectConfigFile is the config file name inside ProjectConfigDir.
	ProjectConfigFile = "config.yaml"
	// RoutineFile is the routine file name looked up in both directories.
	RoutineFile = "routine.yaml"
)

// ErrRoutineNotFound is returned by FindRoutine when no routine file exists.
var ErrRoutineNotFound = errors.New("routine file not found")

// source is one config file layer.
type source struct {
	label    string
	path     string
	required bool
}

// LoadConfig builds the configuration. Later layers override earlier ones:
//
//  1. Default()
//  2. $XDG_CONFIG_HOME/growth/config.yaml
//  3. the nearest .growth/config.yaml at or above the working directory
//  4. the file named by --config (must exist)
//  5. GROWTH_* environment variables and bound flags, resolved by v
//
// The files actually read are recorded in Config.Sources.
func LoadConfig(v *viper.Viper) (*Config, error) {
	cfg := Default()

	defaults, err := toSettings(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode defaults: %w", err)
	}
	if err := v.MergeConfigMap(defaults); err != nil {
		return nil, fmt.Errorf("merge defaults: %w", err)
	}

	var loaded []string
	for _, src := range configSources(v.GetString("config")) {
		ok, err := mergeFile(v, src)
		if err != nil {
			return nil, err
		}
		if ok {
			loaded = append(loaded, src.path)
		}
	}

	if err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Sources = loaded

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func configSources(explicit string) []source {
	var out []source
	if dir := GlobalDir(); dir != "" {
		out = append(out, source{label: "global", path: filepath.Join(dir, GlobalConfigFile)})
	}
	if dir := FindProjectDir(""); dir != "" {
		out = append(out, source{label: "project", path: filepath.Join(dir, ProjectConfigFile)})
	}
	if explicit != "" {
		out = append(out, source{label: "explicit", path: expandHome(explicit), required: true})
	}
	return out
}

// mergeFile merges one YAML file into v. A missing optional file is skipped
// and reported as not loaded.
func mergeFile(v *viper.Viper, src source) (bool, error) {
	file, err := os.Open(src.path)
	if err != nil {
		if os.IsNotExist(err) && !src.required {
			return false, nil
		}
		return false, fmt.Errorf("%s config: %w", src.label, err)
	}
	defer func() { _ = file.Close() }()

	layer := viper.New()
	layer.SetConfigType("yaml")
	if err := layer.ReadConfig(file); err != nil {
		return false, fmt.Errorf("%s config %s: %w", src.label, src.path, err)
	}
	if err := v.MergeConfigMap(layer.AllSettings()); err != nil {
		return false, fmt.Errorf("%s config %s: %w", src.label, src.path, err)
	}
	return true, nil
}

// GlobalDir returns $XDG_CONFIG_HOME/growth, falling back to
// ~/.config/growth. It returns "" when no home directory is known.
func GlobalDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, GlobalConfigDir)
}

// FindProjectDir walks up from start (the working directory when empty) and
// returns the first .growth directory found. The walk stops at a repository
// root so a routine in a parent project is never picked up by accident.
func FindProjectDir(start string) string {
	dir := start
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return ""
		}
		dir = wd
	}

	for {
		candidate := filepath.Join(dir, ProjectConfigDir)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return ""
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// FindRoutine resolves the routine file to load. A path given explicitly, as
// a flag or routine.file, is taken relative to projectRoot and must exist.
// The default path falls back to the global routine when the project has
// none.
func FindRoutine(path, projectRoot string) (string, error) {
	def := Default().Routine.File
	if path == "" {
		path = def
	}

	candidates := []string{resolve(expandHome(path), projectRoot)}
	if path == def {
		if dir := GlobalDir(); dir != "" {
			candidates = append(candidates, filepath.Join(dir, RoutineFile))
		}
	}

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: tried %s (run 'growth init' to create one)",
		ErrRoutineNotFound, strings.Join(candidates, ", "))
}

func resolve(path, root string) string {
	if path == "" || filepath.IsAbs(path) || root == "" {
		return path
	}
	return filepath.Join(root, path)
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// toSettings flattens cfg into the nested map viper merges. Durations are
// written in their string form so they decode the same way as YAML values.
func toSettings(cfg *Config) (map[string]interface{}, error) {
	settings := make(map[string]interface{})
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "mapstructure",
		Result:  &settings,
		DecodeHook: func(from, _ reflect.Type, data interface{}) (interface{}, error) {
			if d, ok := data.(time.Duration); ok && from == reflect.TypeOf(d) {
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
	return settings, nil
}
