package main

import (
	"os"

	"github.com/satriahrh/irp-helper/adapters/cli"
)

func main() {
	os.Exit(cli.Execute())
}
