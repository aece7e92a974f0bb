package storage

import (
	"testing"
	"time"

	"github.com/gavinathaya/KleoProj/internal/kleo"
	"github.com/gavinathaya/KleoProj/internal/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureResult() *search.Result {
	return &search.Result{
		Orbits: []search.PeriodicOrbit{
			{
				Initial:    kleo.State{-2, 0, 0, 0, 1.2961837462843, 0},
				HalfPeriod: 4.8603117,
				Period:     9.7206234,
				Jacobi:     3.3693521,
				Residual:   3.2e-12,
				Family:     "planar-prograde",
				SeedIndex:  7,
				Iterations: 4,
			},
			{
				Initial:    kleo.State{-1.8, 0, 0.1, 0, 1.41421356237, 0},
				HalfPeriod: 3.1,
				Period:     6.2,
				Jacobi:     2.95,
				Residual:   8.8e-11,
				Family:     "vertical",
				SeedIndex:  12,
				Iterations: 9,
			},
		},
		Stats: search.Stats{
			Seeded:     50,
			Infeasible: 10,
			NoEvent:    5,
			Converged:  3,
			Diverged:   20,
			Rejected:   12,
			Duplicates: 1,
			Elapsed:    3 * time.Second,
		},
	}
}

func TestSaveAndList(t *testing.T) {
	store := New(t.TempDir())
	require.NoError(t, store.Init())

	ids, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, ids)

	runID, err := store.Save("kleopatra", search.DefaultConfig(), fixtureResult())
	require.NoError(t, err)
	assert.NotEmpty(t, runID)

	ids, err = store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{runID}, ids)
}

func TestListMissingBaseDir(t *testing.T) {
	store := New("/nonexistent/kleoproj-test")
	ids, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestMetadataRoundTrip(t *testing.T) {
	store := New(t.TempDir())
	require.NoError(t, store.Init())

	cfg := search.DefaultConfig()
	result := fixtureResult()
	runID, err := store.Save("kleopatra", cfg, result)
	require.NoError(t, err)

	meta, err := store.LoadMetadata(runID)
	require.NoError(t, err)
	assert.Equal(t, runID, meta.ID)
	assert.Equal(t, "kleopatra", meta.Body)
	assert.Equal(t, string(cfg.Symmetry), meta.Symmetry)
	assert.Equal(t, result.Stats, meta.Stats)
	assert.Equal(t, cfg, meta.Config)
}

func TestCatalogRoundTrip(t *testing.T) {
	store := New(t.TempDir())
	require.NoError(t, store.Init())

	result := fixtureResult()
	runID, err := store.Save("kleopatra", search.DefaultConfig(), result)
	require.NoError(t, err)

	orbits, err := store.LoadCatalog(runID)
	require.NoError(t, err)
	// Full float64 precision survives the text format.
	assert.Equal(t, result.Orbits, orbits)
}

func TestLoadCatalogEmptyRun(t *testing.T) {
	store := New(t.TempDir())
	require.NoError(t, store.Init())

	runID, err := store.Save("kleopatra", search.DefaultConfig(), &search.Result{})
	require.NoError(t, err)

	orbits, err := store.LoadCatalog(runID)
	require.NoError(t, err)
	assert.Empty(t, orbits)
}

func TestLoadMissingRun(t *testing.T) {
	store := New(t.TempDir())
	require.NoError(t, store.Init())

	_, err := store.LoadMetadata("scan_0")
	assert.Error(t, err)
	_, err = store.LoadCatalog("scan_0")
	assert.Error(t, err)
}
