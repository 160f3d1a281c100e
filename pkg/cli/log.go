package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/kazanshin/website/pkg/domain/model/errs"
	"github.com/kazanshin/website/pkg/domain/model/logentry"
	"github.com/kazanshin/website/pkg/usecase"
	"github.com/kazanshin/website/pkg/utils/logging"
	"github.com/kazanshin/website/pkg/utils/safe"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func cmdLog() *cli.Command {
	return &cli.Command{
		Name:  "log",
		Usage: "Inspect and manage the conversation log",
		Commands: []*cli.Command{
			cmdLogShow(),
			cmdLogExport(),
			cmdLogSeed(),
			cmdLogReset(),
		},
	}
}

func cmdLogShow() *cli.Command {
	var (
		logCfg logConfig
		limit  int64
	)

	return &cli.Command{
		Name:  "show",
		Usage: "Print the most recent entries",
		Flags: joinFlags([]cli.Flag{
			&cli.Int64Flag{
				Name:        "limit",
				Aliases:     []string{"n"},
				Usage:       "Number of entries (1-50)",
				Value:       usecase.DefaultLogLimit,
				Destination: &limit,
			},
		}, logCfg.Flags()),
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, closer, err := logCfg.configure(ctx)
			defer closer()
			if err != nil {
				return err
			}

			entries, err := uc.Logs(ctx, int(limit))
			if err != nil {
				return err
			}
			printEntries(os.Stdout, entries)
			return nil
		},
	}
}

func cmdLogExport() *cli.Command {
	var (
		logCfg logConfig
		output string
	)

	return &cli.Command{
		Name:  "export",
		Usage: "Write the whole log as a JSON array",
		Flags: joinFlags([]cli.Flag{
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "Output file ('-' for stdout)",
				Value:       "-",
				Destination: &output,
			},
		}, logCfg.Flags()),
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, closer, err := logCfg.configure(ctx)
			defer closer()
			if err != nil {
				return err
			}

			entries, err := uc.Export(ctx)
			if err != nil {
				return err
			}

			if output == "-" {
				return writeExport(os.Stdout, entries)
			}

			f, err := os.Create(filepath.Clean(output))
			if err != nil {
				return goerr.Wrap(err, "failed to create export file", goerr.V("path", output))
			}
			defer safe.Close(ctx, f)

			if err := writeExport(f, entries); err != nil {
				return err
			}
			logging.From(ctx).Info("log exported", "path", output, "entries", len(entries))
			return nil
		},
	}
}

func cmdLogSeed() *cli.Command {
	var logCfg logConfig

	return &cli.Command{
		Name:  "seed",
		Usage: "Append the persona's foundational entries that are not in the log yet",
		Flags: logCfg.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, closer, err := logCfg.configure(ctx)
			defer closer()
			if err != nil {
				return err
			}

			n, err := uc.Seed(ctx)
			if err != nil {
				return err
			}
			logging.From(ctx).Info("log seeded", "appended", n)
			return nil
		},
	}
}

func cmdLogReset() *cli.Command {
	var (
		logCfg logConfig
		yes    bool
	)

	return &cli.Command{
		Name:  "reset",
		Usage: "Delete every entry of the log",
		Flags: joinFlags([]cli.Flag{
			&cli.BoolFlag{
				Name:        "yes",
				Aliases:     []string{"y"},
				Usage:       "Confirm deletion",
				Destination: &yes,
			},
		}, logCfg.Flags()),
		Action: func(ctx context.Context, c *cli.Command) error {
			if !yes {
				return goerr.New("reset deletes the whole log, pass --yes to confirm",
					goerr.T(errs.TagValidation))
			}

			uc, closer, err := logCfg.configure(ctx)
			defer closer()
			if err != nil {
				return err
			}

			if err := uc.Reset(ctx); err != nil {
				return err
			}
			logging.From(ctx).Info("log cleared")
			return nil
		},
	}
}

func writeExport(w io.Writer, entries []logentry.Entry) error {
	if entries == nil {
		entries = []logentry.Entry{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return goerr.Wrap(err, "failed to encode log entries", goerr.V("count", len(entries)))
	}
	return nil
}

func roleColor(role logentry.Role) *color.Color {
	switch role {
	case logentry.RoleUser:
		return color.New(color.FgGreen, color.Bold)
	case logentry.RoleAssistant:
		return color.New(color.FgCyan, color.Bold)
	case logentry.RolePulse:
		return color.New(color.FgMagenta, color.Bold)
	default:
		return color.New(color.FgYellow, color.Bold)
	}
}

func printEntries(w io.Writer, entries []logentry.Entry) {
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(w, "(log is empty)")
		return
	}

	for _, e := range entries {
		label := string(e.Role)
		if e.Kind != logentry.KindNone {
			label += "/" + string(e.Kind)
		}
		_, _ = roleColor(e.Role).Fprintf(w, "[%s]", label)
		_, _ = fmt.Fprintf(w, " %s\n%s\n\n", e.TS, e.Content)
	}
}
