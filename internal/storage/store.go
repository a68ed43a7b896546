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

	"github.com/san-kum/dynid/internal/config"
	"github.com/san-kum/dynid/internal/models"
)

const (
	metadataFile   = "metadata.json"
	lossesFile     = "losses.csv"
	checkpointFile = "checkpoint.json"
	validationFile = "validation.csv"
)

var ErrRunNotFound = errors.New("storage: run not found")

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
	ID         string               `json:"id"`
	System     string               `json:"system"`
	Variant    string               `json:"variant"`
	Timestamp  time.Time            `json:"timestamp"`
	Seed       int64                `json:"seed"`
	Iterations int                  `json:"iterations"`
	LossScale  float64              `json:"loss_scale"`
	FinalLoss  float64              `json:"final_loss"`
	Metrics    map[string][]float64 `json:"metrics,omitempty"`
	Config     *config.Config       `json:"config,omitempty"`
}

// Save creates a run directory holding meta, the loss history and the
// checkpoint, and returns the new run ID.
func (s *Store) Save(meta *RunMetadata, losses []float64, cp *models.Checkpoint) (string, error) {
	meta.ID = meta.System + "_" + uuid.NewString()[:8]
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}

	dir := s.runDir(meta.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(dir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := writeLosses(filepath.Join(dir, lossesFile), losses); err != nil {
		return "", err
	}
	if cp != nil {
		if err := SaveCheckpoint(filepath.Join(dir, checkpointFile), cp); err != nil {
			return "", err
		}
	}
	return meta.ID, nil
}

// Update rewrites the metadata of an existing run.
func (s *Store) Update(meta *RunMetadata) error {
	if _, err := os.Stat(s.runDir(meta.ID)); err != nil {
		return fmt.Errorf("%w: %s", ErrRunNotFound, meta.ID)
	}
	return writeJSON(filepath.Join(s.runDir(meta.ID), metadataFile), meta)
}

func (s *Store) runDir(id string) string {
	return filepath.Join(s.baseDir, id)
}

func (s *Store) CheckpointPath(id string) string {
	return filepath.Join(s.runDir(id), checkpointFile)
}

// List returns the stored runs, newest first.
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

func (s *Store) Load(id string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.runDir(id), metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *Store) LoadLosses(id string) ([]float64, error) {
	f, err := os.Open(filepath.Join(s.runDir(id), lossesFile))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []float64{}, nil
	}

	losses := make([]float64, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) < 2 {
			return nil, fmt.Errorf("losses line %d: want 2 fields", i+2)
		}
		v, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, fmt.Errorf("losses line %d: %w", i+2, err)
		}
		losses = append(losses, v)
	}
	return losses, nil
}

func (s *Store) LoadCheckpoint(id string) (*models.Checkpoint, error) {
	return LoadCheckpoint(s.CheckpointPath(id))
}

// Trajectories is a measured state sequence next to its simulation.
type Trajectories struct {
	Time      []float64   `json:"time"`
	Measured  [][]float32 `json:"measured"`
	Simulated [][]float32 `json:"simulated"`
}

func (s *Store) SaveValidation(id string, tr *Trajectories) error {
	f, err := os.Create(filepath.Join(s.runDir(id), validationFile))
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	n := 0
	if len(tr.Measured) > 0 {
		n = len(tr.Measured[0])
	}
	header := []string{"time"}
	for j := 0; j < n; j++ {
		header = append(header, fmt.Sprintf("meas%d", j), fmt.Sprintf("sim%d", j))
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for i := range tr.Time {
		row := []string{strconv.FormatFloat(tr.Time[i], 'g', -1, 64)}
		for j := 0; j < n; j++ {
			row = append(row,
				strconv.FormatFloat(float64(tr.Measured[i][j]), 'g', -1, 32),
				strconv.FormatFloat(float64(tr.Simulated[i][j]), 'g', -1, 32))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func (s *Store) LoadValidation(id string) (*Trajectories, error) {
	f, err := os.Open(filepath.Join(s.runDir(id), validationFile))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	tr := &Trajectories{}
	if len(records) < 2 {
		return tr, nil
	}
	n := (len(records[0]) - 1) / 2
	for i, rec := range records[1:] {
		vals := make([]float64, len(rec))
		for k, field := range rec {
			if vals[k], err = strconv.ParseFloat(field, 64); err != nil {
				return nil, fmt.Errorf("validation line %d: %w", i+2, err)
			}
		}
		meas := make([]float32, n)
		simd := make([]float32, n)
		for j := 0; j < n; j++ {
			meas[j] = float32(vals[1+2*j])
			simd[j] = float32(vals[2+2*j])
		}
		tr.Time = append(tr.Time, vals[0])
		tr.Measured = append(tr.Measured, meas)
		tr.Simulated = append(tr.Simulated, simd)
	}
	return tr, nil
}

func writeLosses(path string, losses []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"iter", "loss"}); err != nil {
		return err
	}
	for i, l := range losses {
		if err := w.Write([]string{strconv.Itoa(i), strconv.FormatFloat(l, 'g', -1, 64)}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
