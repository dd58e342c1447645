package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/kvn-sato/focsim/internal/sim"
)

// Store persists simulation runs under a base directory, one
// subdirectory per run: metadata.json plus samples.csv.
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
	Mode      string             `json:"mode"`
	Timestamp time.Time          `json:"timestamp"`
	Seed      int64              `json:"seed"`
	Dt        float64            `json:"dt"`
	Duration  float64            `json:"duration"`
	PolePairs int                `json:"pole_pairs"`
	Metrics   map[string]float64 `json:"metrics"`
}

var sampleHeader = []string{"time", "angle", "total", "velocity", "q", "d", "duty_a", "duty_b", "duty_c"}

func (s *Store) Save(mode string, dt, duration float64, seed int64, polePairs int, result *sim.Result) (string, error) {
	// Nanosecond stamp keeps IDs unique across back-to-back runs of
	// the same mode.
	runID := fmt.Sprintf("%s_%d", mode, time.Now().UnixNano())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:        runID,
		Mode:      mode,
		Timestamp: time.Now(),
		Seed:      seed,
		Dt:        dt,
		Duration:  duration,
		PolePairs: polePairs,
		Metrics:   result.Metrics,
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

	csvFile, err := os.Create(filepath.Join(runDir, "samples.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	defer w.Flush()

	if err := w.Write(sampleHeader); err != nil {
		return "", err
	}

	for _, smp := range result.Samples {
		row := make([]string, 0, len(sampleHeader))
		for _, v := range []float64{
			smp.T, smp.Angle, smp.Total, smp.Velocity,
			smp.Q, smp.D, smp.DutyA, smp.DutyB, smp.DutyC,
		} {
			row = append(row, strconv.FormatFloat(v, 'f', 6, 64))
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}

	return runID, nil
}

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

		data, err := os.ReadFile(filepath.Join(s.baseDir, entry.Name(), "metadata.json"))
		if err != nil {
			continue
		}

		var meta RunMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		runs = append(runs, meta)
	}

	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
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

func (s *Store) LoadSamples(runID string) ([]sim.Sample, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "samples.csv"))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	if len(records) < 2 {
		return []sim.Sample{}, nil
	}

	samples := make([]sim.Sample, 0, len(records)-1)
	for _, record := range records[1:] {
		if len(record) < len(sampleHeader) {
			continue
		}
		vals := make([]float64, len(sampleHeader))
		ok := true
		for i := range vals {
			v, err := strconv.ParseFloat(record[i], 64)
			if err != nil {
				ok = false
				break
			}
			vals[i] = v
		}
		if !ok {
			continue
		}
		samples = append(samples, sim.Sample{
			T: vals[0], Angle: vals[1], Total: vals[2], Velocity: vals[3],
			Q: vals[4], D: vals[5], DutyA: vals[6], DutyB: vals[7], DutyC: vals[8],
		})
	}

	return samples, nil
}
