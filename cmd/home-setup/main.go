package main

import (
	"os"

	"home-setup/cmd/home-setup/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
