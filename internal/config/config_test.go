package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "catalog", cfg.Catalog.Path)
	assert.Equal(t, "default", cfg.Catalog.CostModel)
	assert.Equal(t, "before", cfg.Pricing.PrerequisitePolicy)
	assert.Equal(t, "USD", cfg.Pricing.Currency)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partquote.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"pricing": {"prerequisite_policy": "present"}, "server": {"addr": ":9000"}}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "present", cfg.Pricing.PrerequisitePolicy)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "catalog", cfg.Catalog.Path)
	assert.Equal(t, 512, cfg.Pricing.FormulaCacheSize)
}

func TestLoadRejectsBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partquote.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"pricing":`), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "partquote.json")
	cfg := Default()
	cfg.Catalog.Path = "/etc/partquote/catalog"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadReturnsIndependentConfigs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partquote.json")
	require.NoError(t, Default().Save(path))

	a, err := Load(path)
	require.NoError(t, err)
	b, err := Load(path)
	require.NoError(t, err)

	a.Catalog.Path = "/srv/catalog"
	assert.Equal(t, "catalog", b.Catalog.Path)
	assert.Equal(t, "catalog", Default().Catalog.Path)
}
