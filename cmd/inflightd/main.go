// Command inflightd serves HTTP with every request tracked as a task, and inspects the task
// tree of a running instance.
package main

import (
	"context"
	"fmt"
	"os"
)

// version is set at build time using -ldflags.
var version = "dev"

func main() {
	if err := newRootCommand(version).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
