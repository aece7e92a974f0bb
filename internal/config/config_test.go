package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gavinathaya/KleoProj/internal/kleo"
	"github.com/gavinathaya/KleoProj/internal/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultResolves(t *testing.T) {
	cfg := Default()

	p, err := cfg.FieldParameters()
	require.NoError(t, err)
	require.NoError(t, p.Validate())

	sc := cfg.SearchConfig()
	require.NoError(t, sc.Validate())
	assert.Equal(t, search.DefaultConfig(), sc)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.yaml")

	cfg := Default()
	cfg.Search.X0 = RangeConfig{Min: -2.5, Max: -1.5, Step: 0.05}
	cfg.Search.Symmetry = "vertical"
	cfg.Search.Z0 = 0.1
	cfg.Params.Kappa = 1.05

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	yaml := []byte("search:\n  x0: {min: -1, max: 1, step: 0.5}\n  workers: 2\n")
	require.NoError(t, os.WriteFile(path, yaml, 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, RangeConfig{Min: -1, Max: 1, Step: 0.5}, cfg.Search.X0)
	assert.Equal(t, 2, cfg.Search.Workers)
	// Untouched knobs keep the defaults.
	def := Default()
	assert.Equal(t, def.Search.C, cfg.Search.C)
	assert.Equal(t, def.Search.Atol, cfg.Search.Atol)
	assert.Equal(t, def.Search.Symmetry, cfg.Search.Symmetry)
}

func TestFieldParametersOverride(t *testing.T) {
	cfg := Default()
	cfg.Params.Kappa = 1.2
	cfg.Params.Mu = 0.4

	p, err := cfg.FieldParameters()
	require.NoError(t, err)
	assert.Equal(t, 1.2, p.Kappa)
	assert.Equal(t, 0.4, p.Mu)
	// Unset overrides keep the body's reference values.
	assert.Equal(t, 0.163, p.MuS)
	assert.Equal(t, 0.486608, p.L1)
}

func TestFieldParametersRejectsUnknownBody(t *testing.T) {
	cfg := Default()
	cfg.Body = "eros"
	_, err := cfg.FieldParameters()
	assert.ErrorIs(t, err, kleo.ErrInvalidConfig)
}

func TestFieldParametersValidatesOverrides(t *testing.T) {
	cfg := Default()
	cfg.Params.L1 = 0.9 // breaks l1 + l2 = 1
	_, err := cfg.FieldParameters()
	assert.ErrorIs(t, err, kleo.ErrInvalidConfig)
}

func TestSearchConfigMergesOverrides(t *testing.T) {
	cfg := Default()
	cfg.Search.Rtol = 1e-8
	cfg.Search.Symmetry = "vertical"
	cfg.Search.Z0 = 0.2
	cfg.Search.Sensitivity = "fd"

	sc := cfg.SearchConfig()
	assert.Equal(t, 1e-8, sc.Rtol)
	assert.Equal(t, search.SymmetryVertical, sc.Symmetry)
	assert.Equal(t, 0.2, sc.Z0)
	assert.Equal(t, search.SensitivityFiniteDiff, sc.Sensitivity)
	// Unset knobs fall back to the search defaults.
	assert.Equal(t, search.DefaultConfig().Atol, sc.Atol)
	assert.Equal(t, search.DefaultConfig().MaxRefine, sc.MaxRefine)
}

func TestPresets(t *testing.T) {
	assert.Nil(t, GetPreset("nope"))
	assert.ElementsMatch(t, []string{"reference", "coarse", "vertical"}, ListPresets())

	for _, name := range ListPresets() {
		preset := GetPreset(name)
		require.NotNil(t, preset, name)

		_, err := preset.FieldParameters()
		require.NoError(t, err, name)
		require.NoError(t, preset.SearchConfig().Validate(), name)
	}

	vertical := GetPreset("vertical")
	assert.Equal(t, search.SymmetryVertical, vertical.SearchConfig().Symmetry)
	assert.Equal(t, 0.1, vertical.SearchConfig().Z0)
}
