// Command uispec validates component catalogs, renders streamed UI specs,
// and replays journaled sessions.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/roach88/uispec/internal/cli"
)

func main() {
	// render installs its own interrupt handling so a live stream can
	// settle instead of aborting.
	err := cli.NewRootCommand().ExecuteContext(context.Background())

	// Commands report their own failures; only flag and usage errors
	// reach here unprinted.
	var exitErr *cli.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(cli.GetExitCode(err))
}
