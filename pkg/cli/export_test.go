package cli

import (
	"context"
	"io"

	"github.com/kazanshin/website/pkg/domain/model/logentry"
	"github.com/urfave/cli/v3"
)

var NewApp = newApp

type Chatter = chatter

type Command = cli.Command

func WriteExport(w io.Writer, entries []logentry.Entry) error {
	return writeExport(w, entries)
}

func PrintEntries(w io.Writer, entries []logentry.Entry) {
	printEntries(w, entries)
}

func RunSingleMessage(ctx context.Context, uc Chatter, message string, w io.Writer) error {
	return runSingleMessage(ctx, uc, message, w)
}

func RunInteractiveMode(ctx context.Context, uc Chatter, r io.Reader, w io.Writer) error {
	return runInteractiveMode(ctx, uc, r, w)
}
