package main

import (
	"os"

	"github.com/wareshop/counter/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
