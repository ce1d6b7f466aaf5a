package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"uiverify/internal/browser"
	"uiverify/internal/config"
	"uiverify/internal/verify"
)

// Options configure a run.
type Options struct {
	Config    config.Config
	Workspace string // base path; runs/ is created under it
	Launcher  browser.Launcher
	Fs        afero.Fs
	// Logger receives a copy of every run log entry. Optional.
	Logger *logrus.Logger
	// Console receives forwarded browser console lines.
	Console io.Writer
}

// Result contains the run location, its manifest and the driver's report.
type Result struct {
	RunID    string
	RunDir   string
	LogPath  string
	Manifest Manifest
	Report   verify.Report
}

// Run prepares a run directory, drives the configured scenario and persists the
// manifest. A verification failure is not an error: it is recorded in the
// report and the manifest. Errors are returned only when the run could not be
// set up at all.
func Run(ctx context.Context, opts Options) (Result, error) {
	if err := opts.Config.Validate(); err != nil {
		return Result{}, fmt.Errorf("config: %w", err)
	}
	if opts.Workspace == "" {
		opts.Workspace = "."
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}

	runID := uuid.NewString()
	runDir := filepath.Join(opts.Workspace, runsDirName, runID)
	artifactsDir := opts.Config.OutputDir
	if artifactsDir == "" {
		artifactsDir = ArtifactsPath(opts.Workspace, runID)
	}
	logsDir := filepath.Join(runDir, logsDirName)
	for _, dir := range []string{artifactsDir, logsDir} {
		if err := opts.Fs.MkdirAll(dir, 0o755); err != nil {
			return Result{}, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	logPath := filepath.Join(logsDir, logFileName)
	logFile, err := opts.Fs.Create(logPath)
	if err != nil {
		return Result{}, fmt.Errorf("create run log: %w", err)
	}
	defer logFile.Close()
	logger := newRunLogger(logFile, opts.Logger)
	log := logger.WithField("run_id", runID)

	log.WithFields(logrus.Fields{
		"scope":  "runner",
		"target": opts.Config.TargetURL,
		"output": artifactsDir,
	}).Info("run started")

	if opts.Launcher == nil {
		opts.Launcher = &browser.Playwright{Logger: log}
	}

	driver := &verify.Driver{
		Config:   opts.Config,
		Launcher: opts.Launcher,
		Store:    &fsStore{fs: opts.Fs, dir: artifactsDir},
		Logger:   log,
		Console:  opts.Console,
	}
	report := driver.Run(ctx)

	manifest := newManifest(runID, opts.Config, artifactsDir, logPath, report)
	manifestPath := filepath.Join(runDir, manifestFileName)
	if err := writeManifest(opts.Fs, manifestPath, manifest); err != nil {
		log.WithField("scope", "runner").WithError(err).Warn("write manifest failed")
	}

	return Result{
		RunID:    runID,
		RunDir:   runDir,
		LogPath:  logPath,
		Manifest: manifest,
		Report:   report,
	}, nil
}

const (
	runsDirName      = "runs"
	artifactsDirName = "artifacts"
	logsDirName      = "logs"
	logFileName      = "runner.ndjson"
	manifestFileName = "run.json"
)

// ValidateRunID rejects ids that were not produced by Run. Ids are joined into
// paths, so anything else could point outside the run directory.
func ValidateRunID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid run id %q", id)
	}
	return nil
}

// RunsDir is where run directories live under a workspace.
func RunsDir(workspace string) string {
	return filepath.Join(workspace, runsDirName)
}

// ManifestPath is the manifest location of a run.
func ManifestPath(workspace, runID string) string {
	return filepath.Join(workspace, runsDirName, runID, manifestFileName)
}

// ArtifactsPath is the default artifact directory of a run.
func ArtifactsPath(workspace, runID string) string {
	return filepath.Join(workspace, runsDirName, runID, artifactsDirName)
}

// LogPath is the NDJSON log location of a run.
func LogPath(workspace, runID string) string {
	return filepath.Join(workspace, runsDirName, runID, logsDirName, logFileName)
}

// --- helpers ---

// newRunLogger writes NDJSON lines to w and mirrors every entry to parent.
func newRunLogger(w io.Writer, parent *logrus.Logger) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrus.DebugLevel)
	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap:        logrus.FieldMap{logrus.FieldKeyTime: "ts"},
	})
	if parent != nil {
		l.AddHook(&mirrorHook{to: parent})
	}
	return l
}

type mirrorHook struct {
	to *logrus.Logger
}

func (h *mirrorHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *mirrorHook) Fire(e *logrus.Entry) error {
	h.to.WithFields(e.Data).WithTime(e.Time).Log(e.Level, e.Message)
	return nil
}

type fsStore struct {
	fs  afero.Fs
	dir string
}

func (s *fsStore) Save(name string, data []byte) (string, error) {
	if name == "" || filepath.Base(name) != name {
		return "", errors.New("artifact name must be a plain file name")
	}
	path := filepath.Join(s.dir, name)
	if err := afero.WriteFile(s.fs, path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
