package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutPath(t *testing.T) {
	t.Setenv("TILEWORLD_CONFIG", "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverlaysYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tileworld.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tilemap:
  chunk_width: 32
snapshot:
  format: json
  compression: gzip
logging:
  level: DEBUG
metrics:
  addr: ":9100"
`), 0o644))

	t.Setenv("TILEWORLD_CONFIG", path)
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 32, cfg.Tilemap.GetChunkWidth())
	assert.Equal(t, 16, cfg.Tilemap.GetChunkLength(), "не заданное поле берётся из Default")
	assert.Equal(t, "json", cfg.Snapshot.Format)
	assert.Equal(t, "gzip", cfg.Snapshot.Compression)
	assert.Equal(t, 100, cfg.Snapshot.GetMaxHistory())
	assert.Equal(t, "DEBUG", cfg.Logging.GetLevel())
	assert.Equal(t, ":9100", cfg.Metrics.GetAddr())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tilemap: [1, 2"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestEnvFallback(t *testing.T) {
	t.Setenv("TILEWORLD_METRICS_ADDR", "127.0.0.1:2112")
	t.Setenv("TILEWORLD_CHUNK_WIDTH", "8")
	t.Setenv("TILEWORLD_MAX_HISTORY", "not-a-number")

	var m MetricsConfig
	assert.Equal(t, "127.0.0.1:2112", m.GetAddr())
	m.Addr = ":1"
	assert.Equal(t, ":1", m.GetAddr(), "значение из конфига важнее env")

	var tm TilemapConfig
	assert.Equal(t, 8, tm.GetChunkWidth())
	var s SnapshotConfig
	assert.Equal(t, 100, s.GetMaxHistory(), "мусор в env игнорируется")
}
