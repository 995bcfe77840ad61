// Package storage keeps finished runs on disk: one directory per run with
// metadata.json, the run configuration and CSV tables of the tracks and
// recorded steps.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/san-kum/magtrack/internal/config"
	"github.com/san-kum/magtrack/internal/core"
	"github.com/san-kum/magtrack/internal/sim"
	"gonum.org/v1/gonum/spatial/r3"
)

var ErrRunNotFound = errors.New("storage: run not found")

const (
	metadataFile = "metadata.json"
	configFile   = "config.yaml"
	tracksFile   = "tracks.csv"
	stepsFile    = "steps.csv"
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
	ID           string             `json:"id"`
	Field        string             `json:"field"`
	Action       string             `json:"action"`
	Timestamp    time.Time          `json:"timestamp"`
	Seed         uint64             `json:"seed"`
	Integrator   string             `json:"integrator"`
	NumTracks    int                `json:"num_tracks"`
	Iterations   int                `json:"iterations"`
	TotalDeposit float64            `json:"total_deposit"`
	Statuses     map[string]int     `json:"statuses"`
	Errors       []string           `json:"errors,omitempty"`
	Metrics      map[string]float64 `json:"metrics"`
}

// NewRunID names a run after its field kind with a short random suffix.
func NewRunID(field string) string {
	return fmt.Sprintf("%s_%s", field, uuid.NewString()[:8])
}

func (s *Store) Save(cfg *config.Config, result *sim.Result) (string, error) {
	runID := NewRunID(cfg.Field.Kind)
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:           runID,
		Field:        cfg.Field.Kind,
		Action:       result.Label,
		Timestamp:    time.Now(),
		Seed:         cfg.Seed,
		Integrator:   cfg.Sim.Integrator,
		NumTracks:    len(result.Tracks),
		Iterations:   result.Iterations,
		TotalDeposit: result.TotalDeposit(),
		Statuses:     make(map[string]int),
		Metrics:      result.Metrics,
	}
	for status, n := range result.Counts() {
		meta.Statuses[status.String()] = n
	}
	for _, err := range result.Errors {
		meta.Errors = append(meta.Errors, err.Error())
	}

	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := config.Save(filepath.Join(runDir, configFile), cfg); err != nil {
		return "", err
	}
	if err := writeCSV(filepath.Join(runDir, tracksFile), tracksHeader, len(result.Tracks), func(i int) []string {
		return trackRow(result.Tracks[i])
	}); err != nil {
		return "", err
	}
	if len(result.Steps) > 0 {
		if err := writeCSV(filepath.Join(runDir, stepsFile), stepsHeader, len(result.Steps), func(i int) []string {
			return stepRow(result.Steps[i])
		}); err != nil {
			return "", err
		}
	}

	return runID, nil
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

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(s.path(runID, metadataFile))
	if err != nil {
		return nil, notFound(runID, err)
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

func (s *Store) LoadConfig(runID string) (*config.Config, error) {
	if _, err := os.Stat(s.path(runID, configFile)); err != nil {
		return nil, notFound(runID, err)
	}
	return config.Load(s.path(runID, configFile))
}

func (s *Store) LoadTracks(runID string) ([]sim.TrackSummary, error) {
	records, err := readCSV(s.path(runID, tracksFile))
	if err != nil {
		return nil, notFound(runID, err)
	}

	tracks := make([]sim.TrackSummary, 0, len(records))
	for i, record := range records {
		t, err := parseTrack(record)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", tracksFile, i+2, err)
		}
		tracks = append(tracks, t)
	}
	return tracks, nil
}

// LoadSteps returns the recorded steps, empty when the run did not record
// them.
func (s *Store) LoadSteps(runID string) ([]sim.StepEvent, error) {
	if _, err := s.Load(runID); err != nil {
		return nil, err
	}
	records, err := readCSV(s.path(runID, stepsFile))
	if errors.Is(err, os.ErrNotExist) {
		return []sim.StepEvent{}, nil
	} else if err != nil {
		return nil, err
	}

	steps := make([]sim.StepEvent, 0, len(records))
	for i, record := range records {
		ev, err := parseStep(record)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", stepsFile, i+2, err)
		}
		steps = append(steps, ev)
	}
	return steps, nil
}

func (s *Store) path(runID, name string) string {
	return filepath.Join(s.baseDir, runID, name)
}

func notFound(runID string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return err
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

func writeCSV(path string, header []string, n int, row func(i int) []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	for i := range n {
		if err := w.Write(row(i)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// readCSV returns the records after the header.
func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return [][]string{}, nil
	}
	return records[1:], nil
}

var tracksHeader = []string{
	"track_id", "particle", "status", "last_action", "num_steps",
	"initial_energy", "energy", "deposit", "time", "x", "y", "z", "escaped",
}

func trackRow(t sim.TrackSummary) []string {
	return []string{
		strconv.FormatUint(t.TrackID, 10),
		t.Particle,
		t.Status.String(),
		t.LastAction.String(),
		strconv.Itoa(t.NumSteps),
		formatFloat(t.InitialEnergy),
		formatFloat(t.Energy),
		formatFloat(t.Deposit),
		formatFloat(t.Time),
		formatFloat(t.Pos.X),
		formatFloat(t.Pos.Y),
		formatFloat(t.Pos.Z),
		strconv.FormatBool(t.Escaped),
	}
}

func parseTrack(record []string) (sim.TrackSummary, error) {
	var t sim.TrackSummary
	if len(record) != len(tracksHeader) {
		return t, fmt.Errorf("expected %d fields, got %d", len(tracksHeader), len(record))
	}
	p := parser{record: record}
	t.TrackID = p.uint(0)
	t.Particle = record[1]
	t.Status = p.status(2)
	t.LastAction = p.action(3)
	t.NumSteps = int(p.uint(4))
	t.InitialEnergy = p.float(5)
	t.Energy = p.float(6)
	t.Deposit = p.float(7)
	t.Time = p.float(8)
	t.Pos = r3.Vec{X: p.float(9), Y: p.float(10), Z: p.float(11)}
	t.Escaped = p.bool(12)
	return t, p.err
}

var stepsHeader = []string{
	"iteration", "track_id", "particle", "status", "action", "step_length",
	"energy", "deposit", "time", "x", "y", "z",
}

func stepRow(ev sim.StepEvent) []string {
	return []string{
		strconv.Itoa(ev.Iteration),
		strconv.FormatUint(ev.TrackID, 10),
		ev.Particle,
		ev.Status.String(),
		ev.Action.String(),
		formatFloat(ev.StepLength),
		formatFloat(ev.Energy),
		formatFloat(ev.Deposit),
		formatFloat(ev.Time),
		formatFloat(ev.Pos.X),
		formatFloat(ev.Pos.Y),
		formatFloat(ev.Pos.Z),
	}
}

func parseStep(record []string) (sim.StepEvent, error) {
	var ev sim.StepEvent
	if len(record) != len(stepsHeader) {
		return ev, fmt.Errorf("expected %d fields, got %d", len(stepsHeader), len(record))
	}
	p := parser{record: record}
	ev.Iteration = int(p.uint(0))
	ev.TrackID = p.uint(1)
	ev.Particle = record[2]
	ev.Status = p.status(3)
	ev.Action = p.action(4)
	ev.StepLength = p.float(5)
	ev.Energy = p.float(6)
	ev.Deposit = p.float(7)
	ev.Time = p.float(8)
	ev.Pos = r3.Vec{X: p.float(9), Y: p.float(10), Z: p.float(11)}
	return ev, p.err
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// parser keeps the first conversion error of a record.
type parser struct {
	record []string
	err    error
}

func (p *parser) fail(i int, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("field %d (%q): %w", i, p.record[i], err)
	}
}

func (p *parser) float(i int) float64 {
	v, err := strconv.ParseFloat(p.record[i], 64)
	if err != nil {
		p.fail(i, err)
	}
	return v
}

func (p *parser) uint(i int) uint64 {
	v, err := strconv.ParseUint(p.record[i], 10, 64)
	if err != nil {
		p.fail(i, err)
	}
	return v
}

func (p *parser) bool(i int) bool {
	v, err := strconv.ParseBool(p.record[i])
	if err != nil {
		p.fail(i, err)
	}
	return v
}

func (p *parser) status(i int) core.TrackStatus {
	var s core.TrackStatus
	if err := s.UnmarshalText([]byte(p.record[i])); err != nil {
		p.fail(i, err)
	}
	return s
}

func (p *parser) action(i int) core.ActionID {
	var a core.ActionID
	if err := a.UnmarshalText([]byte(p.record[i])); err != nil {
		p.fail(i, err)
	}
	return a
}

// Export is the JSON document of a stored run.
type Export struct {
	Metadata RunMetadata        `json:"metadata"`
	Tracks   []sim.TrackSummary `json:"tracks"`
	Steps    []sim.StepEvent    `json:"steps,omitempty"`
}

// ExportJSON writes a stored run as one indented JSON document.
func (s *Store) ExportJSON(runID string, w io.Writer) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	tracks, err := s.LoadTracks(runID)
	if err != nil {
		return err
	}
	steps, err := s.LoadSteps(runID)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(Export{Metadata: *meta, Tracks: tracks, Steps: steps})
}
