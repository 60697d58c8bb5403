package main

import (
	"os"

	"github.com/Dicklesworthstone/edgemon/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
