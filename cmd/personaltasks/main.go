package main

import (
	"context"
	"fmt"
	"os"

	"personaltasks/internal/cli"
)

var version = "1.0.0"

func main() {
	if err := cli.NewRootCommand(version).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
