// Package storage persists finished scans as run directories: a JSON
// metadata file (configuration echo plus outcome counts) and a CSV
// catalog, one row per converged orbit. Serialization beyond this is a
// collaborator concern; the search core itself never touches disk.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/gavinathaya/KleoProj/internal/kleo"
	"github.com/gavinathaya/KleoProj/internal/search"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Body      string        `json:"body"`
	Symmetry  string        `json:"symmetry"`
	Stats     search.Stats  `json:"stats"`
	Config    search.Config `json:"config"`
}

var catalogHeader = []string{
	"seed_index", "family",
	"x0", "y0", "z0", "vx0", "vy0", "vz0",
	"half_period", "period", "jacobi", "residual", "iterations",
}

// Save writes one finished scan and returns its run ID.
func (s *Store) Save(body string, cfg search.Config, result *search.Result) (string, error) {
	runID := fmt.Sprintf("scan_%d", time.Now().Unix())
	runDir := filepath.Join(s.baseDir, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:        runID,
		Timestamp: time.Now(),
		Body:      body,
		Symmetry:  string(cfg.Symmetry),
		Stats:     result.Stats,
		Config:    cfg,
	}

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()
	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, "catalog.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	defer w.Flush()
	if err := w.Write(catalogHeader); err != nil {
		return "", err
	}
	for _, orb := range result.Orbits {
		row := []string{
			strconv.Itoa(orb.SeedIndex),
			orb.Family,
		}
		for _, v := range orb.Initial {
			row = append(row, formatF(v))
		}
		row = append(row,
			formatF(orb.HalfPeriod),
			formatF(orb.Period),
			formatF(orb.Jacobi),
			formatF(orb.Residual),
			strconv.Itoa(orb.Iterations),
		)
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	return runID, w.Error()
}

func formatF(v float64) string {
	return strconv.FormatFloat(v, 'e', 16, 64)
}

// List returns the stored run IDs, oldest first.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// LoadMetadata reads a run's metadata.
func (s *Store) LoadMetadata(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadCatalog reads a run's orbit catalog back into memory.
func (s *Store) LoadCatalog(runID string) ([]search.PeriodicOrbit, error) {
	f, err := os.Open(filepath.Join(s.baseDir, runID, "catalog.csv"))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	orbits := make([]search.PeriodicOrbit, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) != len(catalogHeader) {
			return nil, fmt.Errorf("catalog row has %d fields, want %d", len(row), len(catalogHeader))
		}
		seedIdx, err := strconv.Atoi(row[0])
		if err != nil {
			return nil, err
		}
		vals := make([]float64, 0, 11)
		for _, cell := range row[2:12] {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, err
			}
			vals = append(vals, v)
		}
		iters, err := strconv.Atoi(row[12])
		if err != nil {
			return nil, err
		}
		orbits = append(orbits, search.PeriodicOrbit{
			SeedIndex:  seedIdx,
			Family:     row[1],
			Initial:    kleo.State(vals[0:6]),
			HalfPeriod: vals[6],
			Period:     vals[7],
			Jacobi:     vals[8],
			Residual:   vals[9],
			Iterations: iters,
		})
	}
	return orbits, nil
}
