// Command formdesk runs the form builder API.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
)

// Version information (set by build)
var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := Execute(); err != nil {
		var sErr *ServerError
		if errors.As(err, &sErr) {
			slog.Error("command failed",
				"operation", sErr.Op,
				"error", sErr.Err,
			)
			return sErr.ExitCode
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return ExitConfigError
	}
	return ExitSuccess
}
