package main

import (
	"os"

	"github.com/jcuenca6779/urbandrive/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		os.Exit(1)
	}
}
