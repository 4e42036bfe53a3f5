package main

import (
	"fmt"
	"os"

	"github.com/printd/printd/cmd/printd"
)

func main() {
	if err := printd.RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
