package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/tutor/internal/config"
)

func TestConfigShow_YAML(t *testing.T) {
	dir := newProject(t)

	out, err := runCLI(t, dir, "config", "show")

	require.NoError(t, err)
	assert.Contains(t, out, "chunk_size_words: 8")
	assert.Contains(t, out, "file_timeout: 2m0s")
}

func TestConfigShow_JSON(t *testing.T) {
	dir := newProject(t)

	out, err := runCLI(t, dir, "config", "show", "--json")

	require.NoError(t, err)
	var cfg config.Config
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.Equal(t, filepath.Join(dir, "books"), cfg.Paths.SourceDir)
}

func TestConfigInit_Project(t *testing.T) {
	// Given: a project directory without a config
	isolate(t)
	dir := t.TempDir()

	// When: initialising twice
	out, err := runCLI(t, dir, "config", "init")
	require.NoError(t, err)
	again, err := runCLI(t, dir, "config", "init")
	require.NoError(t, err)

	// Then: defaults are written once and loadable
	assert.Contains(t, out, "Wrote")
	assert.Contains(t, again, "already exists")
	cfg, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.Chunking.ChunkSizeWords)
	data, err := os.ReadFile(filepath.Join(dir, ".tutor.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Tutor project configuration")
}

func TestConfigInit_UserForceBacksUp(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	userPath := config.GetUserConfigPath()
	require.NoError(t, os.MkdirAll(filepath.Dir(userPath), 0o755))
	require.NoError(t, os.WriteFile(userPath, []byte("retrieval:\n  top_k: 9\n"), 0o644))

	out, err := runCLI(t, dir, "config", "init", "--user", "--force")

	require.NoError(t, err)
	assert.Contains(t, out, "Backed up to")
	backups, err := config.ListUserConfigBackups()
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

func TestConfigShow_BrokenConfigReported(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".tutor.yaml"), []byte("retrieval: [oops"), 0o644))

	_, err := runCLI(t, dir, "config", "show")
	require.Error(t, err)

	out, err := runCLI(t, dir, "config", "path")
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(dir, ".tutor.yaml"))
}
