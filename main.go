package main

import (
	"os"

	"dialogue-shorts/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
