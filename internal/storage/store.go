package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/mdnlist/internal/metrics"
)

var ErrNotFound = errors.New("storage: run not found")

var stepHeader = []string{
	"step", "potential", "kinetic", "rebuilt", "reason",
	"capacity", "mean_neighbors", "build_seconds", "step_seconds",
}

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
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Timestamp time.Time          `json:"timestamp"`
	Seed      int64              `json:"seed"`
	N         int                `json:"n"`
	Steps     int                `json:"steps"`
	Dt        float64            `json:"dt"`
	RCut      float64            `json:"rcut"`
	RBuff     float64            `json:"rbuff"`
	Storage   string             `json:"storage"`
	Backend   string             `json:"backend"`
	Metrics   map[string]float64 `json:"metrics"`
}

// Save writes metadata.json and steps.csv under a fresh run directory and
// returns the run ID.
func (s *Store) Save(meta RunMetadata, rows []metrics.StepRow) (string, error) {
	meta.ID = fmt.Sprintf("%s_%s", meta.Name, uuid.New().String()[:8])
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	runDir := filepath.Join(s.baseDir, meta.ID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
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

	csvFile, err := os.Create(filepath.Join(runDir, "steps.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	if err := w.Write(stepHeader); err != nil {
		return "", err
	}
	for _, r := range rows {
		if err := w.Write(formatRow(r)); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}

	return meta.ID, nil
}

// List returns every readable run, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}

		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

func (s *Store) LoadSteps(runID string) ([]metrics.StepRow, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "steps.csv"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = len(stepHeader)

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	if len(records) < 2 {
		return []metrics.StepRow{}, nil
	}

	rows := make([]metrics.StepRow, 0, len(records)-1)
	for i, record := range records[1:] {
		row, err := parseRow(record)
		if err != nil {
			return nil, fmt.Errorf("steps.csv line %d: %w", i+2, err)
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func formatRow(r metrics.StepRow) []string {
	return []string{
		strconv.FormatUint(r.Step, 10),
		strconv.FormatFloat(r.Potential, 'g', -1, 64),
		strconv.FormatFloat(r.Kinetic, 'g', -1, 64),
		strconv.FormatBool(r.Rebuilt),
		r.Reason,
		strconv.Itoa(r.Capacity),
		strconv.FormatFloat(r.MeanNeighbors, 'g', -1, 64),
		strconv.FormatFloat(r.BuildSeconds, 'g', -1, 64),
		strconv.FormatFloat(r.StepSeconds, 'g', -1, 64),
	}
}

func parseRow(rec []string) (metrics.StepRow, error) {
	var (
		r   metrics.StepRow
		err error
	)
	if r.Step, err = strconv.ParseUint(rec[0], 10, 64); err != nil {
		return r, err
	}
	floats := []struct {
		dst *float64
		src string
	}{
		{&r.Potential, rec[1]},
		{&r.Kinetic, rec[2]},
		{&r.MeanNeighbors, rec[6]},
		{&r.BuildSeconds, rec[7]},
		{&r.StepSeconds, rec[8]},
	}
	for _, f := range floats {
		if *f.dst, err = strconv.ParseFloat(f.src, 64); err != nil {
			return r, err
		}
	}
	if r.Rebuilt, err = strconv.ParseBool(rec[3]); err != nil {
		return r, err
	}
	r.Reason = rec[4]
	if r.Capacity, err = strconv.Atoi(rec[5]); err != nil {
		return r, err
	}
	return r, nil
}
