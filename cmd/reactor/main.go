// Command reactor inspects and edits a persistent reactive store database.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/reactor/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "reactor:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
