package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medreport/internal/domain"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, 500, cfg.Chunker.Size)
	assert.Equal(t, 100, cfg.Chunker.Overlap)
	assert.Equal(t, "qdrant", cfg.IndexBackend)
	assert.Equal(t, "mongo", cfg.StoreBackend)
}

func TestLoadFileAndDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9000"
chunker:
  size: 200
users:
  - username: alice
    password: secret
    role: patient
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 200, cfg.Chunker.Size)
	// Unset fields keep defaults.
	assert.Equal(t, "mongodb://localhost:27017", cfg.Mongo.URI)
	require.Len(t, cfg.Users, 1)
	assert.Equal(t, domain.RolePatient, cfg.Users[0].Role)
}

func TestOverlapClamped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
chunker:
  size: 100
  overlap: 150
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Less(t, cfg.Chunker.Overlap, cfg.Chunker.Size)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://db.internal:27017")
	t.Setenv("QDRANT_ADDR", "qdrant.internal:6334")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "mongodb://db.internal:27017", cfg.Mongo.URI)
	assert.Equal(t, "qdrant.internal:6334", cfg.Qdrant.Addr)
}
