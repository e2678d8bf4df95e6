// Command codeparser analyses source files for risky constructs and
// structural complexity.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(&app{stdout: os.Stdout, stdin: os.Stdin}).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
