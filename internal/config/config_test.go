package config

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/work/project", 0o755))

	s, err := Load(fs, "/work/project", viper.New())
	require.NoError(t, err)

	assert.Equal(t, "input/parameters.json", s.ParametersJSON)
	assert.Equal(t, "input/reference.json", s.ReferenceJSON)
	assert.Equal(t, "input/resources.json", s.ResourcesJSON)
	assert.Equal(t, "input/conda", s.CondaConfigDir)
	assert.Equal(t, "", s.CondaEnvsDir)
	assert.Equal(t, ".", s.WorkflowRoot)
	assert.True(t, s.CleanUp)
	assert.Equal(t, "info", s.Log.Level)
	assert.Equal(t, "console", s.Log.Format)
	assert.Empty(t, s.Source)
}

func TestLoad_DiscoversFileInParentDirectory(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/work/project/sub/dir", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/work/.managerconf.json", []byte(`{
		"parameters_json": "conf/params.json",
		"conda_envs_dir": "/envs",
		"clean_up": false,
		"metadata_schema": {"tissue": ["tumor", "normal"]},
		"log": {"level": "debug"}
	}`), 0o644))

	s, err := Load(fs, "/work/project/sub/dir", viper.New())
	require.NoError(t, err)

	assert.Equal(t, "/work/.managerconf.json", s.Source)
	assert.Equal(t, "conf/params.json", s.ParametersJSON)
	assert.Equal(t, "input/reference.json", s.ReferenceJSON, "unset keys keep their default")
	assert.Equal(t, "/envs", s.CondaEnvsDir)
	assert.False(t, s.CleanUp)
	assert.Equal(t, []string{"tumor", "normal"}, s.MetadataSchema["tissue"])
	assert.Equal(t, "debug", s.Log.Level)
}

func TestLoad_NearestFileWins(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/a/b", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/a/.managerconf.json", []byte(`{"workflow_root": "outer"}`), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/a/b/.managerconf.yaml", []byte("workflow_root: inner\n"), 0o644))

	s, err := Load(fs, "/a/b", viper.New())
	require.NoError(t, err)
	assert.Equal(t, "inner", s.WorkflowRoot)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/w", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/w/.managerconf.json", []byte(`{"resources_json": "file.json"}`), 0o644))
	t.Setenv("JOBWEAVER_RESOURCES_JSON", "env.json")
	t.Setenv("JOBWEAVER_LOG_LEVEL", "warn")

	s, err := Load(fs, "/w", viper.New())
	require.NoError(t, err)
	assert.Equal(t, "env.json", s.ResourcesJSON)
	assert.Equal(t, "warn", s.Log.Level)
}

func TestLoad_RejectsInvalidSettings(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/w", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/w/.managerconf.json", []byte(`{"log": {"format": "xml"}}`), 0o644))

	_, err := Load(fs, "/w", viper.New())
	assert.ErrorIs(t, err, ErrInvalidSettings)
}

func TestDocument_GetIn(t *testing.T) {
	d := Document{
		"align": map[string]any{
			"cores":  float64(8),
			"memory": "16g",
			"tools":  []any{"bwa"},
		},
		"genome": "ref/hg38.fa",
	}

	v, err := d.GetIn("align", "memory")
	require.NoError(t, err)
	assert.Equal(t, "16g", v)

	v, err = d.GetIn()
	require.NoError(t, err)
	assert.Equal(t, map[string]any(d), v)

	_, err = d.GetIn("align", "walltime")
	require.ErrorIs(t, err, ErrKeyNotFound)
	assert.Contains(t, err.Error(), "align -> walltime")

	_, err = d.GetIn("genome", "path")
	require.ErrorIs(t, err, ErrNotTraversable)
	assert.Contains(t, err.Error(), `"genome"`)

	_, err = d.GetIn("align", "tools", "x")
	assert.ErrorIs(t, err, ErrNotTraversable)

	s, err := d.GetString("genome")
	require.NoError(t, err)
	assert.Equal(t, "ref/hg38.fa", s)
	_, err = d.GetString("align")
	assert.ErrorIs(t, err, ErrNotTraversable)
}

func TestDocument_Decode(t *testing.T) {
	d := Document{"align": map[string]any{"cores": float64(8), "memory": "16g"}}
	var out struct {
		Cores  int    `mapstructure:"cores"`
		Memory string `mapstructure:"memory"`
	}
	require.NoError(t, d.Decode(&out, "align"))
	assert.Equal(t, 8, out.Cores)
	assert.Equal(t, "16g", out.Memory)
}

func TestLoadDocuments(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "input/parameters.json", []byte(`{"min_quality": 20}`), 0o644))
	require.NoError(t, afero.WriteFile(fs, "input/resources.json", []byte(`[1, 2]`), 0o644))

	s := &Settings{ParametersJSON: "input/parameters.json", ReferenceJSON: "input/missing.json", ResourcesJSON: "input/resources.json"}
	_, err := LoadDocuments(fs, s, nil)
	require.Error(t, err, "top level must be an object")

	s.ResourcesJSON = "input/also-missing.json"
	docs, err := LoadDocuments(fs, s, nil)
	require.NoError(t, err)
	v, err := docs.Parameters.GetIn("min_quality")
	require.NoError(t, err)
	assert.Equal(t, float64(20), v)
	assert.Empty(t, docs.Reference)
	assert.Empty(t, docs.Resources)
}
