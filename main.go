package main

import (
	"fmt"
	"os"

	"github.com/tphakala/transformer-inspect/cmd"
)

func main() {
	if err := cmd.RootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
