package main

import (
	"os"

	"as2org/internal/cli"
)

func main() {
	os.Exit(int(cli.Run()))
}
