package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsApplyWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "manifest.yaml", cfg.ManifestPath)
	assert.Equal(t, ":7000", cfg.Observability.Addr)
	assert.Equal(t, uint64(1), cfg.Recording.EveryN)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cyclerd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
manifest_path: custom.yaml
observability:
  addr: ":9000"
recording:
  enabled: true
  path: frames.bolt
  every_n: 5
log:
  level: debug
  format: json
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "custom.yaml", cfg.ManifestPath)
	assert.Equal(t, ":9000", cfg.Observability.Addr)
	assert.True(t, cfg.Recording.Enabled)
	assert.Equal(t, "frames.bolt", cfg.Recording.Path)
	assert.Equal(t, uint64(5), cfg.Recording.EveryN)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_MissingFileErrors(t *testing.T) {
	_, err := Load("/nonexistent/path/cyclerd.yaml")
	assert.Error(t, err)
}

func TestValidate_RejectsEmptyManifestPath(t *testing.T) {
	cfg := Defaults()
	cfg.ManifestPath = ""
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsRecordingEnabledWithoutPath(t *testing.T) {
	cfg := Defaults()
	cfg.Recording.Enabled = true
	cfg.Recording.Path = ""
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsZeroEveryN(t *testing.T) {
	cfg := Defaults()
	cfg.Recording.EveryN = 0
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsUnknownLogFormat(t *testing.T) {
	cfg := Defaults()
	cfg.Log.Format = "xml"
	assert.Error(t, cfg.Validate())
}

func TestLoadManifest_ReadsAndParsesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
nodes:
  - name: n
    cycler: vision
    phase: cycle
`), 0o644))

	cfg := Defaults()
	cfg.ManifestPath = path

	m, err := LoadManifest(cfg)
	require.NoError(t, err)
	require.Len(t, m.Nodes, 1)
	assert.Equal(t, "n", m.Nodes[0].Name)
}
