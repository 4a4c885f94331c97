package main

import (
	"fmt"
	"os"

	"github.com/qdlab/nanolume/cmd"
	"github.com/qdlab/nanolume/internal/conf"
	"github.com/qdlab/nanolume/internal/logger"
)

// Set at build time with -ldflags "-X main.version=... -X main.buildDate=...".
var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	settings := &conf.Settings{Version: version, BuildDate: buildDate}

	rootCmd := cmd.RootCommand(settings)
	err := rootCmd.Execute()

	if flushErr := logger.Global().Flush(); flushErr != nil {
		fmt.Fprintf(os.Stderr, "error flushing logs: %v\n", flushErr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
