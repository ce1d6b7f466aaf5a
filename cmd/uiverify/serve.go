package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"uiverify/internal/config"
	"uiverify/internal/runner"
)

func getServeCmd(gs *globalState) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "serve an HTTP API that triggers runs and exposes their artifacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := newServer(gs)
			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", port),
				Handler:           s.routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(ctx)
			}()

			gs.logger.WithField("addr", srv.Addr).Info("uiverify serve listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 8787, "port to listen on")
	return cmd
}

// --- server ---

type server struct {
	gs *globalState
	// busy admits one run at a time; a process never holds two browser sessions.
	busy sync.Mutex
}

func newServer(gs *globalState) *server {
	return &server{gs: gs}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(withCORS)
	r.Get("/health", s.health)
	r.Get("/v1/runs", s.listRuns)
	r.Post("/v1/runs", s.createRun)
	r.Get("/v1/runs/{id}", s.getRun)
	r.Get("/v1/runs/{id}/logs", s.getRunLogs)
	// static files for artifacts
	runsDir := runner.RunsDir(s.gs.workspace)
	r.Handle("/runs/*", http.StripPrefix("/runs/", http.FileServer(afero.NewHttpFs(s.gs.fs).Dir(runsDir))))
	return r
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"ok": "true"})
}

type runRequest struct {
	Scenario string `json:"scenario"`
	URL      string `json:"url"`
	Headless *bool  `json:"headless"`
}

// runResponse is a manifest plus URLs under /runs/ for every artifact.
type runResponse struct {
	runner.Manifest
	ArtifactURLs []string `json:"artifact_urls"`
}

func (s *server) createRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	scenario := config.ScenarioTheme
	if req.Scenario != "" {
		sc, err := config.ParseScenario(req.Scenario)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		scenario = sc
	}

	loader := &config.Loader{Fs: s.gs.fs, LookupEnv: s.gs.lookupEnv}
	cfg, err := loader.Load("", scenario)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if req.URL != "" {
		cfg.TargetURL = req.URL
	}
	if req.Headless != nil {
		cfg.Headless = *req.Headless
	}
	// Served artifacts must live under runs/.
	cfg.OutputDir = ""
	if err := cfg.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	if !s.busy.TryLock() {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "a run is already in progress"})
		return
	}
	defer s.busy.Unlock()

	res, err := runner.Run(r.Context(), runner.Options{
		Config:    cfg,
		Workspace: s.gs.workspace,
		Launcher:  s.gs.launcher,
		Fs:        s.gs.fs,
		Logger:    s.gs.logger,
		Console:   io.Discard,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s.newRunResponse(res.Manifest))
}

func (s *server) listRuns(w http.ResponseWriter, r *http.Request) {
	ids, err := runner.FindRuns(s.gs.fs, s.gs.workspace)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	out := []runResponse{}
	for _, id := range ids {
		m, err := runner.LoadManifest(s.gs.fs, runner.ManifestPath(s.gs.workspace, id))
		if err != nil {
			s.gs.logger.WithError(err).WithField("run_id", id).Debug("skipping run without manifest")
			continue
		}
		out = append(out, s.newRunResponse(m))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) getRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	if runner.ValidateRunID(runID) != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	m, err := runner.LoadManifest(s.gs.fs, runner.ManifestPath(s.gs.workspace, runID))
	if errors.Is(err, os.ErrNotExist) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s.newRunResponse(m))
}

func (s *server) getRunLogs(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	if runner.ValidateRunID(runID) != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	f, err := s.gs.fs.Open(runner.LogPath(s.gs.workspace, runID))
	if errors.Is(err, os.ErrNotExist) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	defer f.Close()
	w.Header().Set("Content-Type", "application/x-ndjson")
	if _, err := io.Copy(w, f); err != nil {
		s.gs.logger.WithFields(logrus.Fields{"run_id": runID}).WithError(err).Warn("stream run log")
	}
}

func (s *server) newRunResponse(m runner.Manifest) runResponse {
	resp := runResponse{Manifest: m, ArtifactURLs: []string{}}
	// Artifacts written outside runs/ are not served.
	if m.ArtifactsDir != runner.ArtifactsPath(s.gs.workspace, m.RunID) {
		return resp
	}
	for _, a := range m.Artifacts {
		resp.ArtifactURLs = append(resp.ArtifactURLs, "/runs/"+m.RunID+"/artifacts/"+a.File)
	}
	return resp
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
