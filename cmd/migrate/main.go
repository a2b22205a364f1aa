// Command migrate is the operator-facing CLI for the migration manager: it
// reports status, runs pending migrations, and lists the registered set.
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	app := NewCommand()
	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
