package main

import (
	"os"

	"hbnb/src/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
