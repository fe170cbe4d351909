package main

import (
	"os"

	"github.com/mur-run/murdev/cmd/murdev/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
