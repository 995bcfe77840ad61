package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/san-kum/magtrack/internal/config"
	"github.com/san-kum/magtrack/internal/core"
	"github.com/san-kum/magtrack/internal/sim"
	"gonum.org/v1/gonum/spatial/r3"
)

func testResult() *sim.Result {
	return &sim.Result{
		Label: "along-step-uniform-msc",
		Tracks: []sim.TrackSummary{
			{TrackID: 0, Particle: "e-", Status: core.StatusKilled, LastAction: core.ActionRange,
				NumSteps: 12, InitialEnergy: 10, Deposit: 10, Time: 1.5e-10, Pos: r3.Vec{X: 0.1, Y: -0.2, Z: 4.9}},
			{TrackID: 1, Particle: "gamma", Status: core.StatusKilled, LastAction: core.ActionBoundary,
				NumSteps: 3, InitialEnergy: 5, Energy: 5, Pos: r3.Vec{Z: 50}, Escaped: true},
		},
		Steps: []sim.StepEvent{
			{Iteration: 0, TrackID: 0, Particle: "e-", Status: core.StatusAlive, Action: core.ActionMscRange,
				StepLength: 0.25, Energy: 9.5, Deposit: 0.5, Pos: r3.Vec{Z: 0.25}},
		},
		Iterations: 12,
		Metrics:    map[string]float64{"energy_deposit": 10},
	}
}

func TestStoreSaveLoad(t *testing.T) {
	st := New(t.TempDir())

	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.Seed = 42
	runID, err := st.Save(cfg, testResult())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if !strings.HasPrefix(runID, "uniform_") || len(runID) != len("uniform_")+8 {
		t.Errorf("unexpected run id %q", runID)
	}

	meta, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if meta.Seed != 42 || meta.Field != "uniform" {
		t.Errorf("unexpected metadata %+v", meta)
	}
	if meta.Statuses["killed"] != 2 {
		t.Errorf("expected 2 killed tracks, got %v", meta.Statuses)
	}
	if meta.TotalDeposit != 10 {
		t.Errorf("expected total deposit 10, got %f", meta.TotalDeposit)
	}
	if meta.Metrics["energy_deposit"] != 10 {
		t.Errorf("expected metric energy_deposit=10, got %v", meta.Metrics)
	}

	loaded, err := st.LoadConfig(runID)
	if err != nil {
		t.Fatalf("load config failed: %v", err)
	}
	if loaded.Seed != 42 {
		t.Errorf("expected seed 42 in stored config, got %d", loaded.Seed)
	}
}

func TestStoreTracksRoundTrip(t *testing.T) {
	st := New(t.TempDir())
	result := testResult()
	runID, err := st.Save(config.DefaultConfig(), result)
	if err != nil {
		t.Fatal(err)
	}

	tracks, err := st.LoadTracks(runID)
	if err != nil {
		t.Fatalf("load tracks failed: %v", err)
	}
	if len(tracks) != len(result.Tracks) {
		t.Fatalf("expected %d tracks, got %d", len(result.Tracks), len(tracks))
	}
	for i := range tracks {
		if tracks[i] != result.Tracks[i] {
			t.Errorf("track %d: got %+v, want %+v", i, tracks[i], result.Tracks[i])
		}
	}

	steps, err := st.LoadSteps(runID)
	if err != nil {
		t.Fatal(err)
	}
	if len(steps) != 1 || steps[0].Action != core.ActionMscRange || steps[0].StepLength != 0.25 {
		t.Errorf("unexpected steps %+v", steps)
	}
}

func TestStoreWithoutSteps(t *testing.T) {
	st := New(t.TempDir())
	result := testResult()
	result.Steps = nil
	runID, err := st.Save(config.DefaultConfig(), result)
	if err != nil {
		t.Fatal(err)
	}
	steps, err := st.LoadSteps(runID)
	if err != nil || len(steps) != 0 {
		t.Errorf("expected no steps, got %v, %v", steps, err)
	}
}

func TestStoreList(t *testing.T) {
	st := New(t.TempDir())

	runs, err := st.List()
	if err != nil || len(runs) != 0 {
		t.Fatalf("expected empty list, got %v, %v", runs, err)
	}

	for range 3 {
		if _, err := st.Save(config.DefaultConfig(), testResult()); err != nil {
			t.Fatal(err)
		}
	}
	runs, err = st.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 3 {
		t.Errorf("expected 3 runs, got %d", len(runs))
	}
	for i := 1; i < len(runs); i++ {
		if runs[i].Timestamp.After(runs[i-1].Timestamp) {
			t.Error("runs are not sorted newest first")
		}
	}
}

func TestStoreMissingRun(t *testing.T) {
	st := New(t.TempDir())
	if _, err := st.Load("nope"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
	if _, err := st.LoadTracks("nope"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
	if _, err := st.LoadConfig("nope"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestExportJSON(t *testing.T) {
	st := New(t.TempDir())
	runID, err := st.Save(config.DefaultConfig(), testResult())
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := st.ExportJSON(runID, &buf); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	var doc Export
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if doc.Metadata.ID != runID || len(doc.Tracks) != 2 || len(doc.Steps) != 1 {
		t.Errorf("unexpected export %+v", doc)
	}
	if !strings.Contains(buf.String(), `"eloss-range"`) {
		t.Error("expected action labels in the export")
	}
}
