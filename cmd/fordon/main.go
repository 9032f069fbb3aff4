package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("fordon %s (built %s)\n", Version, BuildTime)
		os.Exit(ExitSuccess)
	}

	os.Exit(run(*configPath))
}

func run(configPath string) int {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return ExitConfigError
	}

	logger := SetupLogger(cfg)
	logger.Info("starting fordon",
		"version", Version,
		"config", configPath,
	)

	server, err := NewServer(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		return exitCode(err)
	}

	if err := server.Start(context.Background()); err != nil {
		logger.Error("server error", "error", err)
		return exitCode(err)
	}
	return ExitSuccess
}

// exitCode maps server errors to process exit codes.
func exitCode(err error) int {
	var sErr *ServerError
	if errors.As(err, &sErr) {
		return sErr.ExitCode
	}
	return ExitConfigError
}
