package runner

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/afero"

	"uiverify/internal/config"
	"uiverify/internal/verify"
)

// Manifest is persisted to run.json.
type Manifest struct {
	RunID        string              `json:"run_id"`
	Scenario     config.Scenario     `json:"scenario"`
	StartedAt    time.Time           `json:"started_at"`
	FinishedAt   time.Time           `json:"finished_at"`
	TargetURL    string              `json:"target_url"`
	Headless     bool                `json:"headless"`
	Status       verify.Status       `json:"status"`
	FailedStage  verify.Stage        `json:"failed_stage,omitempty"`
	Error        string              `json:"error,omitempty"`
	ArtifactsDir string              `json:"artifacts_dir"`
	Artifacts    []ManifestArtifact  `json:"artifacts"`
	Steps        []verify.StepRecord `json:"steps"`
	LogPath      string              `json:"log_path"`

	ConsoleMessages int64 `json:"console_messages"`
	ConsoleDropped  int64 `json:"console_dropped,omitempty"`
}

// ManifestArtifact is an artifact file name relative to ArtifactsDir.
type ManifestArtifact struct {
	File string              `json:"file"`
	Kind verify.ArtifactKind `json:"kind"`
}

func newManifest(runID string, cfg config.Config, artifactsDir, logPath string, rep verify.Report) Manifest {
	m := Manifest{
		RunID:           runID,
		Scenario:        rep.Scenario,
		StartedAt:       rep.StartedAt,
		FinishedAt:      rep.FinishedAt,
		TargetURL:       cfg.TargetURL,
		Headless:        cfg.Headless,
		Status:          rep.Status,
		ArtifactsDir:    artifactsDir,
		Artifacts:       []ManifestArtifact{},
		Steps:           rep.Steps,
		LogPath:         logPath,
		ConsoleMessages: rep.ConsoleMessages,
		ConsoleDropped:  rep.ConsoleDropped,
	}
	if rep.Failure != nil {
		m.FailedStage = rep.Failure.Stage
		m.Error = rep.Failure.Cause.Error()
	}
	for _, a := range rep.Artifacts {
		m.Artifacts = append(m.Artifacts, ManifestArtifact{File: filepath.Base(a.Path), Kind: a.Kind})
	}
	return m
}

func writeManifest(fs afero.Fs, path string, manifest Manifest) error {
	file, err := fs.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(manifest)
}

// LoadManifest reads a manifest from disk.
func LoadManifest(fs afero.Fs, path string) (Manifest, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return Manifest{}, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// FindRuns returns run ids under workspace/runs, oldest first. Runs without a
// readable manifest sort last, by id.
func FindRuns(fs afero.Fs, workspace string) ([]string, error) {
	entries, err := afero.ReadDir(fs, RunsDir(workspace))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	type run struct {
		id      string
		started time.Time
	}
	var runs []run
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		r := run{id: e.Name()}
		if m, err := LoadManifest(fs, ManifestPath(workspace, r.id)); err == nil {
			r.started = m.StartedAt
		}
		runs = append(runs, r)
	}
	sort.SliceStable(runs, func(i, j int) bool {
		a, b := runs[i], runs[j]
		switch {
		case a.started.IsZero() != b.started.IsZero():
			return !a.started.IsZero()
		case !a.started.Equal(b.started):
			return a.started.Before(b.started)
		default:
			return a.id < b.id
		}
	})

	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.id
	}
	return ids, nil
}
