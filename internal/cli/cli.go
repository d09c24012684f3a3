// Package cli parses command-line arguments into an app.Config.
package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/XeonPhiNexus/yask/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated
// app.Config, a boolean indicating the program should exit cleanly, or an
// ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	flagSet := flag.NewFlagSet("yaskrun", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
yaskrun - stencil solver driver.

Usage:
  yaskrun [options]

Options:
`)
		flagSet.PrintDefaults()
		fmt.Fprintf(output, "\nCompiled stencils: %s\n", strings.Join(app.SolutionNames(), ", "))
	}

	configFlag := flagSet.String("config", "", "Path to the HCL tuning file.")
	stencilFlag := flagSet.String("stencil", "", "Stencil to run; overrides the tuning file.")
	stepsFlag := flagSet.Int64("steps", 0, "Steps to run; overrides the tuning file.")
	forceScalarFlag := flagSet.Bool("force-scalar", false, "Use the scalar reference path.")
	listFlag := flagSet.Bool("list", false, "List compiled stencils and exit.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	if *listFlag {
		fmt.Fprintln(output, strings.Join(app.SolutionNames(), "\n"))
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	config, err := app.NewConfig(app.Config{
		ConfigPath:  *configFlag,
		Stencil:     *stencilFlag,
		Steps:       *stepsFlag,
		ForceScalar: *forceScalarFlag,
		LogFormat:   logFormat,
		LogLevel:    logLevel,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	return config, false, nil
}
