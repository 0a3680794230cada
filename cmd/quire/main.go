// Command quire compiles a static site incrementally.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/quire/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		// Commands report their own failures; anything else came from
		// cobra itself (unknown flag, wrong argument count).
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(cli.ExitCommandError)
		}
		os.Exit(exitErr.Code)
	}
}
