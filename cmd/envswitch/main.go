package main

import (
	"context"
	"errors"
	"os"

	"github.com/pterm/pterm"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	a := &app{}
	defer a.close()

	root := newRootCmd(a)
	root.SetArgs(args)

	if err := root.ExecuteContext(context.Background()); err != nil {
		var sErr *ServerError
		if errors.As(err, &sErr) {
			if a.logger != nil {
				a.logger.Error("command failed",
					"error", sErr.Err,
					"operation", sErr.Op,
				)
			}
			pterm.Error.Println(sErr.Err)
			return sErr.ExitCode
		}
		pterm.Error.Println(err)
		return ExitCommandError
	}

	return ExitSuccess
}
