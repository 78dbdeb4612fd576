// Command codesnapctl runs maintenance tasks against a codesnap store.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
