package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/aryankumar/testfleet/internal/cli"
	"github.com/aryankumar/testfleet/internal/util"
)

func main() {
	ctx, stop := util.SetupSignalHandler(nil)

	err := cli.Execute(ctx)
	stop()

	if err != nil {
		if !errors.Is(err, util.ErrTestsFailed) {
			slog.Error("command failed", "error", err)
		}
		fmt.Fprintln(os.Stderr, util.FriendlyError(err))
		os.Exit(util.ExitCode(err))
	}
}
