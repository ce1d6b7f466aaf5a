package main

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"

	"uiverify/internal/browser"
)

type stubLauncher struct {
	page *stubPage

	mu       sync.Mutex
	launched int
	opts     browser.Options
}

func (l *stubLauncher) Launch(opts browser.Options) (browser.Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.launched++
	l.opts = opts
	return &stubSession{page: l.page}, nil
}

type stubSession struct {
	page *stubPage
}

func (s *stubSession) NewPage() (browser.Page, error) { return s.page, nil }
func (s *stubSession) Close() error                   { return nil }

// stubPage passes every step unless failWait names the locator being waited on.
type stubPage struct {
	failWait string
}

func (p *stubPage) Goto(string, time.Duration) error           { return nil }
func (p *stubPage) Click(browser.Locator, time.Duration) error { return nil }
func (p *stubPage) WaitVisible(l browser.Locator, _ time.Duration) error {
	if l.Name() == p.failWait {
		return browser.ErrTimeout
	}
	return nil
}
func (p *stubPage) WaitForCondition(string, time.Duration) error { return nil }
func (p *stubPage) Sleep(time.Duration)                          {}
func (p *stubPage) Screenshot(bool) ([]byte, error)              { return []byte("\x89PNG"), nil }
func (p *stubPage) OnConsole(browser.ConsoleObserver)            {}
func (p *stubPage) URL() string                                  { return "" }

type testState struct {
	*globalState
	stdout   *bytes.Buffer
	stderr   *bytes.Buffer
	launcher *stubLauncher
	env      map[string]string
}

func newTestState(t *testing.T) *testState {
	t.Helper()
	logger, _ := test.NewNullLogger()
	ts := &testState{
		stdout:   &bytes.Buffer{},
		stderr:   &bytes.Buffer{},
		launcher: &stubLauncher{page: &stubPage{}},
		env:      map[string]string{},
	}
	ts.globalState = &globalState{
		fs:     afero.NewMemMapFs(),
		stdout: ts.stdout,
		stderr: ts.stderr,
		lookupEnv: func(key string) (string, bool) {
			v, ok := ts.env[key]
			return v, ok
		},
		logger:    logger,
		launcher:  ts.launcher,
		workspace: "/ws",
	}
	return ts
}
