package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"uiverify/internal/browser"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

// exitError carries the process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func usageError(err error) error { return &exitError{code: exitUsage, err: err} }

// globalState is everything a command touches outside its own flags.
type globalState struct {
	fs        afero.Fs
	stdout    io.Writer
	stderr    io.Writer
	lookupEnv func(string) (string, bool)
	logger    *logrus.Logger
	// launcher overrides the playwright launcher; nil in production.
	launcher browser.Launcher

	workspace string
	verbose   bool
	noColor   bool
}

func newGlobalState() *globalState {
	logger := &logrus.Logger{
		Out:       os.Stderr,
		Formatter: new(logrus.TextFormatter),
		Hooks:     make(logrus.LevelHooks),
		Level:     logrus.InfoLevel,
	}
	return &globalState{
		fs:        afero.NewOsFs(),
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		lookupEnv: os.LookupEnv,
		logger:    logger,
		workspace: ".",
	}
}

func newRootCommand(gs *globalState) *cobra.Command {
	root := &cobra.Command{
		Use:           "uiverify",
		Short:         "capture dashboard verification screenshots in a headless browser",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if gs.verbose {
				gs.logger.SetLevel(logrus.DebugLevel)
			}
			if gs.noColor {
				color.NoColor = true
			}
			return nil
		},
	}
	root.SetOut(gs.stdout)
	root.SetErr(gs.stderr)
	root.PersistentFlags().AddFlagSet(rootFlagSet(gs))
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return usageError(err) })
	// Setting Args on the root replaces cobra's own unknown-command check.
	root.Args = func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			return usageError(fmt.Errorf("unknown command %q for %q", args[0], cmd.CommandPath()))
		}
		return nil
	}
	root.RunE = func(cmd *cobra.Command, _ []string) error { return cmd.Help() }

	root.AddCommand(
		getRunCmd(gs),
		getListCmd(gs),
		getShowCmd(gs),
		getServeCmd(gs),
	)
	for _, cmd := range root.Commands() {
		cmd.Args = usageArgs(cmd.Args)
	}
	return root
}

// usageArgs marks positional argument errors as usage errors.
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	if validate == nil {
		return nil
	}
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	}
}

func rootFlagSet(gs *globalState) *pflag.FlagSet {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)
	flags.StringVarP(&gs.workspace, "workspace", "w", gs.workspace, "directory that holds the runs/ folder")
	flags.BoolVarP(&gs.verbose, "verbose", "v", false, "enable debug logging")
	flags.BoolVar(&gs.noColor, "no-color", false, "disable colored output")
	return flags
}

// execute runs the command line and maps errors to exit codes.
func execute(gs *globalState, args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand(gs)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.code == exitFailed {
			// Verification failures were already reported in the summary.
			return ee.code
		}
		gs.logger.Error(ee.err)
		return ee.code
	}
	gs.logger.Error(err)
	return exitFailed
}
