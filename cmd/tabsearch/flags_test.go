package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("n_iter: 4\nseed: 9\nworkers: 3\n"), 0o644))

	cfg, err := loadConfig(Flags{Config: path, Seed: -1, Workers: -999, NIter: 7, Families: "lr, rf"})
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.NIter)
	assert.Equal(t, uint64(9), cfg.Seed)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, []string{"lr", "rf"}, cfg.Families)

	cfg, err = loadConfig(Flags{Seed: 0, Workers: 0})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), cfg.Seed)
	assert.Equal(t, 0, cfg.Workers)

	_, err = loadConfig(Flags{Seed: -1, Workers: -999, Families: "SVM"})
	assert.Error(t, err)
}
