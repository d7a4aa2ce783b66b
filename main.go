package main

import (
	"os"

	"github.com/GoogleCloudPlatform/db-query-copilot/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
