package main

import (
	"os"

	cmd "github.com/rohmanhakim/capture-crawler/internal/cli"
)

func main() {
	os.Exit(cmd.Execute())
}
