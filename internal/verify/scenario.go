package verify

import (
	"fmt"
	"time"

	"uiverify/internal/browser"
	"uiverify/internal/config"
)

// Artifact file names. They are fixed; only the directory is configurable.
const (
	FileDashboardLight = "dashboard-light.png"
	FileLightMode      = "verification-light-mode.png"
	FileDarkMode       = "verification-dark-mode.png"
	FileError          = "error.png"
)

// Accessible names the dashboard exposes.
const (
	DashboardLinkName  = "Dashboard"
	DashboardHeading   = "Most Important Tasks"
	AddMITButtonName   = "Add MIT"
	AddMITDialogHeader = "Add New MIT"
	DarkModeToggle     = "Switch to Dark Mode"
)

// darkThemeApplied is truthy once the dashboard's theme provider has put the
// dark class on the document root.
const darkThemeApplied = `() => document.documentElement.classList.contains('dark')`

// themeTransitionsDone is truthy once no CSS transition started by the theme
// switch is still running. Other animations, such as spinners, are ignored.
const themeTransitionsDone = `() => document.getAnimations().every(a => !(a instanceof CSSTransition) || a.playState === 'finished')`

type step struct {
	stage Stage
	do    func(p browser.Page, r *run) error
}

type scenario struct {
	name    config.Scenario
	steps   []step
	console bool
	// errorShot captures FileError when a step fails.
	errorShot bool
}

func newScenario(cfg config.Config) (scenario, error) {
	switch cfg.Scenario {
	case config.ScenarioDashboard:
		return dashboardScenario(cfg), nil
	case config.ScenarioTheme:
		return themeScenario(cfg), nil
	default:
		return scenario{}, fmt.Errorf("unknown scenario %q", cfg.Scenario)
	}
}

// dashboardScenario opens /dashboard directly and captures it once. Nothing
// beyond the light capture is defined for it.
func dashboardScenario(cfg config.Config) scenario {
	t := cfg.Timeouts
	return scenario{
		name: config.ScenarioDashboard,
		steps: []step{
			navigate(cfg.URL("/dashboard"), t),
			waitVisible(StageDashboardHeading, browser.ByRole(browser.RoleHeading, DashboardHeading).Exact(), t.HeadingWait),
			capture(StageCaptureLight, FileDashboardLight, KindLight, true),
		},
	}
}

func themeScenario(cfg config.Config) scenario {
	t := cfg.Timeouts
	return scenario{
		name:      config.ScenarioTheme,
		console:   true,
		errorShot: true,
		steps: []step{
			navigate(cfg.URL(""), t),
			click(StageOpenDashboard, browser.ByRole(browser.RoleLink, DashboardLinkName).Exact(), t.HeadingWait),
			waitVisible(StageDashboardHeading, browser.ByRole(browser.RoleHeading, DashboardHeading).Exact(), t.HeadingWait),
			click(StageOpenDialog, browser.ByRole(browser.RoleButton, AddMITButtonName), t.DialogWait),
			waitVisible(StageDialogHeading, browser.ByRole(browser.RoleHeading, AddMITDialogHeader), t.DialogWait),
			capture(StageCaptureLight, FileLightMode, KindLight, false),
			click(StageToggleTheme, browser.ByLabel(DarkModeToggle), t.DialogWait),
			settle(cfg.SettleMode, t),
			capture(StageCaptureDark, FileDarkMode, KindDark, false),
		},
	}
}

func navigate(url string, t config.Timeouts) step {
	return step{stage: StageNavigate, do: func(p browser.Page, r *run) error {
		r.log.WithField("url", url).Info("navigating")
		return p.Goto(url, t.Navigation)
	}}
}

func click(stage Stage, l browser.Locator, timeout time.Duration) step {
	return step{stage: stage, do: func(p browser.Page, r *run) error {
		if err := p.Click(l, timeout); err != nil {
			return err
		}
		r.log.WithField("locator", l.String()).Info("clicked")
		return nil
	}}
}

func waitVisible(stage Stage, l browser.Locator, timeout time.Duration) step {
	return step{stage: stage, do: func(p browser.Page, r *run) error {
		if err := p.WaitVisible(l, timeout); err != nil {
			return err
		}
		r.log.WithField("locator", l.String()).Info("visible")
		return nil
	}}
}

func capture(stage Stage, name string, kind ArtifactKind, fullPage bool) step {
	return step{stage: stage, do: func(p browser.Page, r *run) error {
		return r.screenshot(p, name, kind, fullPage)
	}}
}

func settle(mode config.SettleMode, t config.Timeouts) step {
	return step{stage: StageThemeSettle, do: func(p browser.Page, r *run) error {
		if mode == config.SettleSleep {
			p.Sleep(t.Settle)
			return nil
		}
		if err := p.WaitForCondition(darkThemeApplied, t.Settle); err != nil {
			return fmt.Errorf("dark theme not applied: %w", err)
		}
		// The class flips before the colour transitions run.
		if err := p.WaitForCondition(themeTransitionsDone, t.Settle); err != nil {
			return fmt.Errorf("theme transitions still running: %w", err)
		}
		return nil
	}}
}
