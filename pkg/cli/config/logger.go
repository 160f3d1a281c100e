package config

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/kazanshin/website/pkg/domain/model/errs"
	"github.com/kazanshin/website/pkg/utils/logging"
	"github.com/kazanshin/website/pkg/utils/safe"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// Logger configures the process logger. Logs go to stderr by default so
// that chat replies and log exports on stdout stay clean.
type Logger struct {
	level      string
	format     string
	output     string
	quiet      bool
	stacktrace bool
}

var (
	logFormats = map[string]logging.Format{
		"console": logging.FormatConsole,
		"json":    logging.FormatJSON,
	}
	logLevels = map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
)

func (x *Logger) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Category:    "logging",
			Aliases:     []string{"l"},
			Sources:     cli.EnvVars("ECHO_LOG_LEVEL"),
			Usage:       "Log level [debug|info|warn|error]",
			Value:       "info",
			Destination: &x.level,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Category:    "logging",
			Sources:     cli.EnvVars("ECHO_LOG_FORMAT"),
			Usage:       "Log format [console|json], console on a color terminal and json otherwise when unset",
			Destination: &x.format,
		},
		&cli.StringFlag{
			Name:        "log-output",
			Category:    "logging",
			Sources:     cli.EnvVars("ECHO_LOG_OUTPUT"),
			Usage:       "Log destination: 'stderr', 'stdout' or a file path",
			Value:       "stderr",
			Destination: &x.output,
		},
		&cli.BoolFlag{
			Name:        "log-quiet",
			Category:    "logging",
			Aliases:     []string{"q"},
			Usage:       "Discard all logs",
			Sources:     cli.EnvVars("ECHO_LOG_QUIET"),
			Destination: &x.quiet,
		},
		&cli.BoolFlag{
			Name:        "log-stacktrace",
			Category:    "logging",
			Usage:       "Print error stacktraces (console format only)",
			Sources:     cli.EnvVars("ECHO_LOG_STACKTRACE"),
			Destination: &x.stacktrace,
			Value:       true,
		},
	}
}

func (x Logger) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("level", x.level),
		slog.String("format", x.format),
		slog.String("output", x.output),
	)
}

func (x *Logger) resolveFormat() (logging.Format, error) {
	if x.format == "" {
		term := os.Getenv("TERM")
		if strings.Contains(term, "color") || strings.Contains(term, "xterm") {
			return logging.FormatConsole, nil
		}
		return logging.FormatJSON, nil
	}

	format, ok := logFormats[x.format]
	if !ok {
		return 0, goerr.New("invalid log format", goerr.V("format", x.format), goerr.T(errs.TagValidation))
	}
	return format, nil
}

// Configure installs the default logger. The returned closer is always
// safe to call, also when err is not nil.
func (x *Logger) Configure() (func(), error) {
	closer := func() {}
	if x.quiet {
		logging.Quiet()
		return closer, nil
	}

	format, err := x.resolveFormat()
	if err != nil {
		return closer, err
	}
	level, ok := logLevels[x.level]
	if !ok {
		return closer, goerr.New("invalid log level", goerr.V("level", x.level), goerr.T(errs.TagValidation))
	}

	var output io.Writer
	switch x.output {
	case "stderr", "":
		output = os.Stderr
	case "stdout", "-":
		output = os.Stdout
	default:
		f, err := os.OpenFile(filepath.Clean(x.output), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
		if err != nil {
			return closer, goerr.Wrap(err, "failed to open log file", goerr.V("path", x.output))
		}
		output = f
		closer = func() {
			safe.Close(context.Background(), f)
		}
	}

	logging.SetDefault(logging.New(output, level, format, x.stacktrace))
	return closer, nil
}
