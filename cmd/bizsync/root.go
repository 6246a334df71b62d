package main

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"bizsync/internal/config"
	"bizsync/internal/logging"
)

// app is the state shared by the subcommands of one invocation.
type app struct {
	cfg    *config.Config
	stdout io.Writer
	stderr io.Writer

	log      *logrus.Logger
	closeLog io.Closer
}

func newRootCmd(getenv func(string) string, stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "bizsync",
		Short:         "Sync bulk business records into a relational store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	a.cfg = config.Bind(root.PersistentFlags(), getenv)

	root.AddCommand(newSyncCmd(a), newCheckCmd(a), newEnvInitCmd(a))
	return root
}

// prepare validates the configuration and builds the logger. Warnings are
// logged; any error-severity issue stops the command.
func (a *app) prepare() error {
	issues := config.Validate(a.cfg)
	for _, iss := range issues {
		fmt.Fprintf(a.stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if err := config.Err(issues); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	l, c, err := logging.New(logging.Config{
		Level:  a.cfg.LogLevel,
		Format: a.cfg.LogFormat,
		File:   a.cfg.LogFile,
	}, a.stderr)
	if err != nil {
		return err
	}
	a.log, a.closeLog = l, c
	return nil
}

func (a *app) close() {
	if a.closeLog != nil {
		_ = a.closeLog.Close()
	}
}
