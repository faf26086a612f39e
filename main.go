package main

import (
	"os"

	"preset-labels/cli"
)

func main() {
	os.Exit(cli.Execute())
}
