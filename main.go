package main

import (
	"os"

	"github.com/codegraphhq/codegraph/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
