package main

import (
	"os"

	"github.com/campusrag/advisor/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
