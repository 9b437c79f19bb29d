package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vk/classkit/internal/app"
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

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("classkit", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
classkit - Resolve, load and construct classes from class resource files.

Usage:
  classkit [options] [CLASS...]

Arguments:
  CLASS
    Dotted class name or name expression to require, e.g. App.view.Main
    or 'App.view.*'.

Options:
`)
		flagSet.PrintDefaults()
	}

	entryFlag := flagSet.String("entry", "", "Comma-separated entry classes to require.")
	eFlag := flagSet.String("e", "", "Comma-separated entry classes to require (shorthand).")
	rootFlag := flagSet.String("root", ".", "Directory that relative resource paths resolve against.")
	configFlag := flagSet.String("config", "", "Loader configuration file (.hcl, .yaml or .toml).")
	preloadFlag := flagSet.String("preload", "", "Comma-separated files or directories of class resources to define first.")
	syncFlag := flagSet.Bool("sync", false, "Fetch class resources inline instead of asynchronously.")
	watchFlag := flagSet.Bool("watch", false, "Resolve again whenever a file under the root changes.")
	debounceFlag := flagSet.Duration("watch-debounce", app.DefaultWatchDebounce, "Quiet period after a change before resolving again.")
	ignoreFlag := flagSet.String("watch-ignore", "", "Comma-separated glob patterns, relative to the root, that watch mode ignores.")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	var entry []string
	switch {
	case *entryFlag != "":
		entry = splitList(*entryFlag)
	case *eFlag != "":
		entry = splitList(*eFlag)
	default:
		entry = flagSet.Args()
	}
	slog.Debug("Entry classes determined.", "entry", entry)

	if len(entry) == 0 {
		slog.Debug("No entry class provided, printing usage and exiting.")
		flagSet.Usage()
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
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		Entry:           entry,
		Root:            *rootFlag,
		ConfigPath:      *configFlag,
		Preload:         splitList(*preloadFlag),
		Sync:            *syncFlag,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
		HealthcheckPort: *healthPortFlag,
		Watch:           *watchFlag,
		WatchDebounce:   *debounceFlag,
		WatchIgnore:     splitList(*ignoreFlag),
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
