package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig(t *testing.T) *Configuration {
	t.Helper()
	root := t.TempDir()
	cfg := Default()
	cfg.DefaultInputDir = filepath.Join(root, "input")
	cfg.DefaultOutputDir = filepath.Join(root, "output")
	require.NoError(t, os.Mkdir(cfg.DefaultInputDir, 0755))
	return cfg
}

func fields(findings []ConfigValidationError) []string {
	out := make([]string, 0, len(findings))
	for _, f := range findings {
		out = append(out, f.Field)
	}
	return out
}

func TestValidateConfigValid(t *testing.T) {
	result := ValidateConfig(validConfig(t))
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
}

func TestValidatePaths(t *testing.T) {
	t.Run("missing input", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.DefaultInputDir = filepath.Join(t.TempDir(), "nope")
		assert.Contains(t, fields(ValidatePaths(cfg)), "default_input_dir")
	})

	t.Run("input is a file", func(t *testing.T) {
		cfg := validConfig(t)
		file := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(file, nil, 0644))
		cfg.DefaultInputDir = file
		findings := ValidatePaths(cfg)
		require.Len(t, findings, 1)
		assert.Contains(t, findings[0].Message, "not a directory")
	})

	t.Run("output is a file", func(t *testing.T) {
		cfg := validConfig(t)
		file := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(file, nil, 0644))
		cfg.DefaultOutputDir = file
		assert.Equal(t, []string{"default_output_dir"}, fields(ValidatePaths(cfg)))
	})

	t.Run("nested output is creatable", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.DefaultOutputDir = filepath.Join(t.TempDir(), "a", "b", "c")
		assert.Empty(t, ValidatePaths(cfg))
	})

	t.Run("output inside input warns", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.DefaultOutputDir = filepath.Join(cfg.DefaultInputDir, "tagged")
		result := ValidateConfig(cfg)
		assert.True(t, result.Valid)
		assert.Equal(t, []string{"default_output_dir"}, fields(result.Warnings))
	})
}

func TestValidateNaming(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Configuration)
		field   string
		isError bool
	}{
		{"empty prefix", func(c *Configuration) { c.FileNaming.Prefix = "" }, "file_naming.prefix", true},
		{"empty separator", func(c *Configuration) { c.FileNaming.Separator = "" }, "file_naming.separator", true},
		{"slash in prefix", func(c *Configuration) { c.FileNaming.Prefix = "a/b" }, "file_naming", true},
		{"extension without dot", func(c *Configuration) { c.FileNaming.Extension = "mp4" }, "file_naming.extension", true},
		{"negative uuid length", func(c *Configuration) { c.FileNaming.UUIDMaxLength = -1 }, "file_naming.uuid_max_length", true},
		{"short uuid length", func(c *Configuration) { c.FileNaming.UUIDMaxLength = 4 }, "file_naming.uuid_max_length", false},
		{"no writers", func(c *Configuration) { c.WriterNames = nil }, "writer_names", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			result := ValidateConfig(cfg)
			if tt.isError {
				assert.False(t, result.Valid)
				assert.Contains(t, fields(result.Errors), tt.field)
			} else {
				assert.True(t, result.Valid)
				assert.Contains(t, fields(result.Warnings), tt.field)
			}
		})
	}
}

func TestValidatePolicies(t *testing.T) {
	cfg := validConfig(t)
	cfg.FileNaming.ExistingPolicy = "append"
	cfg.SymlinkPolicy = "maybe"
	cfg.Watch.DebounceSeconds = -1

	assert.ElementsMatch(t,
		[]string{"file_naming.existing_policy", "symlink_policy", "watch"},
		fields(ValidatePolicies(cfg)))
}

func TestDirectoriesOverlap(t *testing.T) {
	assert.True(t, directoriesOverlap("/a/b", "/a/b/"))
	assert.True(t, directoriesOverlap("/a", "/a/b"))
	assert.True(t, directoriesOverlap("/a/b", "/a"))
	assert.False(t, directoriesOverlap("/a/b", "/a/bc"))
}
