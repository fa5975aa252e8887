// Package config loads jobweaver settings and the JSON documents (parameters,
// reference, resources) that pipelines read values from.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// FileNames are the settings files looked for, in order, in every directory
// from the working directory up to the filesystem root.
var FileNames = []string{".managerconf.json", ".managerconf.yaml", ".managerconf.yml"}

const EnvPrefix = "JOBWEAVER"

// Settings are the resolved jobweaver settings.
type Settings struct {
	ParametersJSON string `mapstructure:"parameters_json"`
	ReferenceJSON  string `mapstructure:"reference_json"`
	ResourcesJSON  string `mapstructure:"resources_json"`

	CondaConfigDir string `mapstructure:"conda_config_dir"`
	CondaEnvsDir   string `mapstructure:"conda_envs_dir"`

	WorkflowRoot string `mapstructure:"workflow_root"`
	CleanUp      bool   `mapstructure:"clean_up"`

	// MetadataSchema restricts sample metadata values per key.
	MetadataSchema map[string][]string `mapstructure:"metadata_schema"`

	Log LogSettings `mapstructure:"log"`

	// Source is the settings file that was read, if any.
	Source string `mapstructure:"-"`
}

type LogSettings struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("parameters_json", "input/parameters.json")
	v.SetDefault("reference_json", "input/reference.json")
	v.SetDefault("resources_json", "input/resources.json")
	v.SetDefault("conda_config_dir", "input/conda")
	v.SetDefault("conda_envs_dir", "")
	v.SetDefault("workflow_root", ".")
	v.SetDefault("clean_up", true)
	v.SetDefault("metadata_schema", map[string][]string{})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Locate walks from dir up to the filesystem root and returns the first
// settings file found. ok is false when there is none.
func Locate(fs afero.Fs, dir string) (path string, ok bool, err error) {
	dir = filepath.Clean(dir)
	for {
		for _, name := range FileNames {
			candidate := filepath.Join(dir, name)
			exists, err := afero.Exists(fs, candidate)
			if err != nil {
				return "", false, fmt.Errorf("stat %s: %w", candidate, err)
			}
			if exists {
				return candidate, true, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false, nil
		}
		dir = parent
	}
}

// Load resolves settings from defaults, the nearest settings file above dir
// and JOBWEAVER_* environment variables, in increasing precedence. Flags
// bound to v by the caller take precedence over all of them.
func Load(fs afero.Fs, dir string, v *viper.Viper) (*Settings, error) {
	if v == nil {
		v = viper.New()
	}
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	src, found, err := Locate(fs, dir)
	if err != nil {
		return nil, err
	}
	if found {
		v.SetFs(fs)
		v.SetConfigFile(src)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read settings %s: %w", src, err)
		}
	}

	var s Settings
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&s, hook); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if found {
		s.Source = src
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

var ErrInvalidSettings = errors.New("invalid settings")

func (s *Settings) Validate() error {
	switch strings.ToLower(s.Log.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("%w: log.format must be console or json (got %q)", ErrInvalidSettings, s.Log.Format)
	}
	if s.WorkflowRoot == "" {
		return fmt.Errorf("%w: workflow_root must not be empty", ErrInvalidSettings)
	}
	return nil
}
