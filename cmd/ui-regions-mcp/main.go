package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/ironsheep/ui-regions-mcp/internal/config"
	"github.com/ironsheep/ui-regions-mcp/internal/logging"
	"github.com/ironsheep/ui-regions-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Handle --version and -v flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("ui-regions-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			fmt.Println("ui-regions-mcp - MCP server for screenshot region detection")
			fmt.Println()
			fmt.Println("Usage: ui-regions-mcp [options]")
			fmt.Println()
			fmt.Println("Options:")
			fmt.Println("  --version, -v    Print version information")
			fmt.Println("  --help, -h       Print this help message")
			fmt.Println()
			fmt.Println("Environment variables (also read from .env):")
			fmt.Println("  UI_REGIONS_LOG_LEVEL=debug           Log every pipeline stage")
			fmt.Println("  UI_REGIONS_DEFAULTS_FILE=path.yaml   Default detection parameters")
			fmt.Println("  UI_REGIONS_BATCH_CONCURRENCY=4       Parallel detections per batch call")
			fmt.Println()
			fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
			fmt.Println("Configure it in your MCP client (e.g., Claude Desktop).")
			return
		}
	}

	// A missing .env file is fine; the environment alone is enough.
	_ = godotenv.Load()

	// Logs go to stderr (stdout is for MCP protocol)
	log := logging.New("ui-regions-mcp")

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	log = cfg.Logger("ui-regions-mcp")
	server.Version = Version
	log.Debug("starting", "version", Version, "built", BuildTime, "commit", GitCommit)

	srv := server.NewWithConfig(cfg, cfg.Logger("server"))
	if err := srv.Run(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
