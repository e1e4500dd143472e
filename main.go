package main

import (
	"os"

	"audiobook2renpy/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
