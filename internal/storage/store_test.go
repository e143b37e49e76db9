package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/mdnlist/internal/metrics"
)

func sampleRows() []metrics.StepRow {
	return []metrics.StepRow{
		{Step: 0, Potential: -1234.5, Kinetic: 300.25, Rebuilt: true, Reason: "initial|cutoff", Capacity: 48, MeanNeighbors: 38.2, BuildSeconds: 0.0021, StepSeconds: 0.004},
		{Step: 1, Potential: -1230.125, Kinetic: 296.5, Capacity: 48, StepSeconds: 0.001},
	}
}

func TestSaveLoad(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.Init())

	id, err := s.Save(RunMetadata{Name: "liquid", Seed: 3, N: 4096, Metrics: map[string]float64{"builds": 12}}, sampleRows())
	require.NoError(t, err)
	assert.Contains(t, id, "liquid_")

	meta, err := s.Load(id)
	require.NoError(t, err)
	assert.Equal(t, id, meta.ID)
	assert.Equal(t, 4096, meta.N)
	assert.Equal(t, 12.0, meta.Metrics["builds"])
	assert.False(t, meta.Timestamp.IsZero())

	rows, err := s.LoadSteps(id)
	require.NoError(t, err)
	if diff := cmp.Diff(sampleRows(), rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestSave_UniqueIDs(t *testing.T) {
	s := New(t.TempDir())
	a, err := s.Save(RunMetadata{Name: "x"}, nil)
	require.NoError(t, err)
	b, err := s.Save(RunMetadata{Name: "x"}, nil)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	rows, err := s.LoadSteps(a)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	runs, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, runs)

	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = s.Save(RunMetadata{Name: "old", Timestamp: older}, nil)
	require.NoError(t, err)
	_, err = s.Save(RunMetadata{Name: "new", Timestamp: older.Add(time.Hour)}, nil)
	require.NoError(t, err)
	// stray directory without metadata is ignored
	require.NoError(t, os.Mkdir(filepath.Join(dir, "junk"), 0755))

	runs, err = s.List()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "new", runs[0].Name)
	assert.Equal(t, "old", runs[1].Name)
}

func TestList_MissingDir(t *testing.T) {
	runs, err := New(filepath.Join(t.TempDir(), "nope")).List()
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestLoad_NotFound(t *testing.T) {
	s := New(t.TempDir())
	_, err := s.Load("missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.LoadSteps("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadSteps_Malformed(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	id, err := s.Save(RunMetadata{Name: "bad"}, sampleRows())
	require.NoError(t, err)

	path := filepath.Join(dir, id, "steps.csv")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data = append(data, []byte("7,abc,1,false,,48,0,0,0\n")...)
	require.NoError(t, os.WriteFile(path, data, 0644))

	_, err = s.LoadSteps(id)
	assert.Error(t, err)
}
