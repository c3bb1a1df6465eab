package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidmeta/internal/naming"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadTOML(t *testing.T) {
	path := writeConfig(t, "config.toml", `
ffmpeg_path = "/opt/ffmpeg/bin/ffmpeg"
default_input_dir = "downloads"
writer_names = ["Someone"]

[file_naming]
uuid_max_length = 12
prefix = "clip"
existing_policy = "rename"

[log]
level = "debug"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/opt/ffmpeg/bin/ffmpeg", cfg.FFmpegPath)
	assert.Equal(t, "downloads", cfg.DefaultInputDir)
	assert.Equal(t, "output", cfg.DefaultOutputDir, "unset keys keep their defaults")
	assert.Equal(t, []string{"Someone"}, cfg.WriterNames)
	assert.Equal(t, 12, cfg.FileNaming.UUIDMaxLength)
	assert.Equal(t, "clip", cfg.FileNaming.Prefix)
	assert.Equal(t, naming.DefaultSeparator, cfg.FileNaming.Separator)
	assert.Equal(t, PolicyRename, cfg.FileNaming.ExistingPolicy)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Audit.Enabled)
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{
  "default_output_dir": "tagged",
  "file_naming": {"separator": "-", "uuid_max_length": 0},
  "audit": {"enabled": false}
}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "tagged", cfg.DefaultOutputDir)
	assert.Equal(t, "-", cfg.FileNaming.Separator)
	assert.False(t, cfg.Audit.Enabled)
	assert.Equal(t, naming.DefaultPrefix, cfg.FileNaming.Prefix)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, FileNotFound, cfgErr.Type)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeConfig(t, "config.toml", "prefix = [unterminated"))
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, InvalidFormat, cfgErr.Type)

	_, err = Load(writeConfig(t, "config.json", "{not json"))
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, InvalidFormat, cfgErr.Type)
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFindsDefaultFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultJSONFile), []byte(`{"default_input_dir":"from-json"}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultTOMLFile), []byte(`default_input_dir = "from-toml"`), 0644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-toml", cfg.DefaultInputDir)
}

func TestEnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("VIDMETA_FFMPEG_PATH", "/env/ffmpeg")
	t.Setenv("VIDMETA_UUID_MAX_LENGTH", "8")
	t.Setenv("VIDMETA_WRITER_NAMES", "A,B,C")
	t.Setenv("VIDMETA_AUDIT_ENABLED", "false")

	cfg, err := Load(writeConfig(t, "config.toml", `ffmpeg_path = "/file/ffmpeg"`))
	require.NoError(t, err)
	assert.Equal(t, "/env/ffmpeg", cfg.FFmpegPath)
	assert.Equal(t, 8, cfg.FileNaming.UUIDMaxLength)
	assert.Equal(t, []string{"A", "B", "C"}, cfg.WriterNames)
	assert.False(t, cfg.Audit.Enabled)
}

func TestEnvOverrideInvalid(t *testing.T) {
	t.Setenv("VIDMETA_UUID_MAX_LENGTH", "many")

	err := ApplyEnv(Default(), "")
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, InvalidEnv, cfgErr.Type)
}

func TestDotEnvFile(t *testing.T) {
	envFile := writeConfig(t, ".env", "VIDMETA_OUTPUT_DIR=from-dotenv\n")
	t.Setenv("VIDMETA_OUTPUT_DIR", "")
	os.Unsetenv("VIDMETA_OUTPUT_DIR")

	cfg := Default()
	require.NoError(t, ApplyEnv(cfg, envFile))
	assert.Equal(t, "from-dotenv", cfg.DefaultOutputDir)
}

func TestNamingOptions(t *testing.T) {
	cfg := Default()
	cfg.FileNaming.UUIDMaxLength = 5
	assert.Equal(t, naming.Options{
		Prefix:        naming.DefaultPrefix,
		Separator:     naming.DefaultSeparator,
		Extension:     naming.DefaultExtension,
		UUIDMaxLength: 5,
	}, cfg.NamingOptions())
}

func genConfiguration() gopter.Gen {
	return gopter.CombineGens(
		gen.AlphaString(),
		gen.AlphaString(),
		gen.SliceOf(gen.AlphaString().SuchThat(func(s string) bool { return s != "" })),
		gen.IntRange(0, 64),
		gen.OneConstOf(PolicyOverwrite, PolicyRename),
		gen.Bool(),
	).Map(func(vals []interface{}) *Configuration {
		cfg := Default()
		cfg.FFmpegPath = vals[0].(string)
		cfg.DefaultInputDir = vals[1].(string)
		cfg.WriterNames = vals[2].([]string)
		cfg.FileNaming.UUIDMaxLength = vals[3].(int)
		cfg.FileNaming.ExistingPolicy = vals[4].(string)
		cfg.Audit.Enabled = vals[5].(bool)
		return cfg
	})
}

func TestSaveLoadRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	for _, name := range []string{"config.toml", "config.json"} {
		name := name
		properties.Property(name+" round-trips through Save and Load", prop.ForAll(
			func(cfg *Configuration) bool {
				path := filepath.Join(t.TempDir(), name)
				if err := Save(cfg, path); err != nil {
					t.Logf("Save failed: %v", err)
					return false
				}
				loaded := Default()
				if err := decodeFile(path, loaded); err != nil {
					t.Logf("decode failed: %v", err)
					return false
				}
				// An empty writer list decodes as "keep the default".
				if len(cfg.WriterNames) == 0 {
					loaded.WriterNames = cfg.WriterNames
				}
				return reflect.DeepEqual(cfg, loaded)
			},
			genConfiguration(),
		))
	}

	properties.TestingRun(t)
}

// chdir is a stand-in for testing.T.Chdir (Go 1.24+) on older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
