package main

import (
	"os"

	"github.com/tkingovr/viewfilter/cmd/viewfilter/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
