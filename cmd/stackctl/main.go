package main

import (
	"os"

	"github.com/dfinityianblenke/trainstack/cmd/stackctl/cmd"
)

func main() {
	if err := cmd.NewCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
