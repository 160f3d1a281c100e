package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/kazanshin/website/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// chatter is the part of the use cases the chat command drives.
type chatter interface {
	Chat(ctx context.Context, message string) (string, error)
}

func cmdChat() *cli.Command {
	var (
		turnCfg turnConfig
		message string
	)

	flags := joinFlags(
		[]cli.Flag{
			&cli.StringFlag{
				Name:        "message",
				Aliases:     []string{"m"},
				Usage:       "Message to send (if not provided, interactive mode will start)",
				Destination: &message,
			},
		},
		turnCfg.Flags(),
	)

	return &cli.Command{
		Name:    "chat",
		Aliases: []string{"c"},
		Usage:   "Talk to the log from the terminal",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logging.From(ctx).Debug("chat options", "config", turnCfg)

			uc, closer, err := turnCfg.configure(ctx)
			defer closer()
			if err != nil {
				return err
			}

			if message != "" {
				return runSingleMessage(ctx, uc, message, os.Stdout)
			}
			return runInteractiveMode(ctx, uc, os.Stdin, os.Stdout)
		},
	}
}

func runSingleMessage(ctx context.Context, uc chatter, message string, w io.Writer) error {
	reply, err := uc.Chat(ctx, message)
	if err != nil {
		return goerr.Wrap(err, "failed to process message")
	}

	_, _ = fmt.Fprintln(w, reply)
	return nil
}

func runInteractiveMode(ctx context.Context, uc chatter, r io.Reader, w io.Writer) error {
	logger := logging.From(ctx)
	logger.Debug("Starting interactive chat mode")

	prompt := color.New(color.FgCyan, color.Bold)
	failure := color.New(color.FgRed)

	_, _ = fmt.Fprintln(w, "Interactive chat started. Type 'exit' or 'quit' to end the session.")
	_, _ = fmt.Fprintln(w)

	scanner := bufio.NewScanner(r)
	for {
		_, _ = prompt.Fprint(w, "> ")

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return goerr.Wrap(err, "failed to read input")
			}
			_, _ = fmt.Fprintln(w, "\nSession ended.")
			return nil
		}

		message := strings.TrimSpace(scanner.Text())
		if message == "" {
			continue
		}
		if message == "exit" || message == "quit" {
			_, _ = fmt.Fprintln(w, "Session ended.")
			return nil
		}

		reply, err := uc.Chat(ctx, message)
		if err != nil {
			_, _ = failure.Fprintf(w, "Error: %s\n", err.Error())
			logger.Error("Chat error", "error", err)
			continue
		}

		_, _ = fmt.Fprintln(w, reply)
		_, _ = fmt.Fprintln(w)
	}
}
