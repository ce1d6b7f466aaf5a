// Package verify drives a fixed UI verification sequence against a running
// dashboard and collects screenshot evidence.
package verify

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"uiverify/internal/browser"
	"uiverify/internal/config"
)

// ArtifactStore persists screenshots under their fixed file names and returns
// the path they were written to.
type ArtifactStore interface {
	Save(name string, data []byte) (string, error)
}

const (
	defaultConsoleQueue = 256
	defaultConsoleDrain = 2 * time.Second
)

// Driver runs one scenario. It owns the browser session for the duration of Run.
type Driver struct {
	Config   config.Config
	Launcher browser.Launcher
	Store    ArtifactStore
	Logger   logrus.FieldLogger
	// Console receives forwarded browser console lines. Defaults to os.Stdout.
	Console io.Writer
	// ConsoleDrain bounds how long Run waits for queued console lines after
	// the session closes.
	ConsoleDrain time.Duration
}

type run struct {
	store  ArtifactStore
	log    logrus.FieldLogger
	report *Report
}

// Run executes the configured scenario. It never panics and never returns an
// error directly: the outcome, including the failing stage, is in the Report.
// The browser session is closed exactly once before Run returns.
func (d *Driver) Run(ctx context.Context) Report {
	log := d.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("scenario", d.Config.Scenario)

	rep := Report{Scenario: d.Config.Scenario, StartedAt: time.Now()}

	sc, err := newScenario(d.Config)
	if err != nil {
		rep.fail(StageSetup, err)
		d.finish(log, &rep)
		return rep
	}

	sess, err := d.Launcher.Launch(browser.Options{
		Headless: d.Config.Headless,
		Viewport: browser.Viewport{Width: d.Config.Viewport.Width, Height: d.Config.Viewport.Height},
	})
	if err != nil {
		rep.fail(StageLaunch, err)
		d.finish(log, &rep)
		return rep
	}
	cleanup := &sessionCloser{session: sess, log: log.WithField("scope", "runner")}
	defer cleanup.close()

	page, err := sess.NewPage()
	if err != nil {
		rep.fail(StageNewPage, err)
		cleanup.close()
		d.finish(log, &rep)
		return rep
	}

	var console *consoleForwarder
	if sc.console {
		console = newConsoleForwarder(d.console(), log, defaultConsoleQueue)
		page.OnConsole(console.observe)
	}

	r := &run{store: d.Store, log: log, report: &rep}
	if stage, err := d.steps(ctx, sc, page, r); err != nil {
		rep.fail(stage, err)
		log.WithFields(logrus.Fields{"scope": "step", "stage": stage}).WithError(err).Error("verification failed")
		if sc.errorShot {
			if err := r.screenshot(page, FileError, KindError, false); err != nil {
				log.WithField("scope", "artifact").WithError(err).Warn("error screenshot failed")
			}
		}
	}

	cleanup.close()
	if console != nil {
		console.close(d.consoleDrain())
		rep.ConsoleMessages = console.received.Load()
		rep.ConsoleDropped = console.dropped.Load()
	}
	d.finish(log, &rep)
	return rep
}

// steps runs the sequence until the first failure. A panic inside a step is
// turned into a failure of that step.
func (d *Driver) steps(ctx context.Context, sc scenario, page browser.Page, r *run) (stage Stage, err error) {
	var start time.Time
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
			r.report.Steps = append(r.report.Steps, StepRecord{Stage: stage, Elapsed: time.Since(start), Error: err.Error()})
		}
	}()
	for _, s := range sc.steps {
		stage = s.stage
		if err := ctx.Err(); err != nil {
			return stage, fmt.Errorf("cancelled: %w", err)
		}
		start = time.Now()
		stepErr := s.do(page, r)
		rec := StepRecord{Stage: s.stage, Elapsed: time.Since(start)}
		if stepErr != nil {
			rec.Error = stepErr.Error()
		}
		r.report.Steps = append(r.report.Steps, rec)
		if stepErr != nil {
			return stage, stepErr
		}
	}
	return "", nil
}

func (d *Driver) finish(log logrus.FieldLogger, rep *Report) {
	rep.FinishedAt = time.Now()
	rep.Status = StatusPassed
	if rep.Failure != nil {
		rep.Status = StatusFailed
	}
	fields := logrus.Fields{"scope": "runner", "artifacts": len(rep.Artifacts)}
	if rep.Failure != nil {
		log.WithFields(fields).WithField("stage", rep.Failure.Stage).Warn("run finished with failure")
		return
	}
	log.WithFields(fields).Info("run finished")
}

func (d *Driver) console() io.Writer {
	if d.Console != nil {
		return d.Console
	}
	return os.Stdout
}

func (d *Driver) consoleDrain() time.Duration {
	if d.ConsoleDrain > 0 {
		return d.ConsoleDrain
	}
	return defaultConsoleDrain
}

func (r *run) screenshot(p browser.Page, name string, kind ArtifactKind, fullPage bool) error {
	data, err := p.Screenshot(fullPage)
	if err != nil {
		return err
	}
	path, err := r.store.Save(name, data)
	if err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	r.report.Artifacts = append(r.report.Artifacts, Artifact{Name: name, Path: path, Kind: kind})
	r.log.WithFields(logrus.Fields{"scope": "artifact", "path": path}).Info("screenshot saved")
	return nil
}

// sessionCloser closes the session on the first call only.
type sessionCloser struct {
	session browser.Session
	log     logrus.FieldLogger
	once    sync.Once
}

func (c *sessionCloser) close() {
	c.once.Do(func() {
		c.log.Info("closing browser")
		if err := c.session.Close(); err != nil {
			c.log.WithError(err).Warn("close browser")
		}
	})
}
