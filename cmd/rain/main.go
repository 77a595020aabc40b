package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/rain-protocol/rain/core/pkg/config"

	_ "github.com/lib/pq"  // Postgres driver
	_ "modernc.org/sqlite" // SQLite driver (cgo-free)
)

// Dispatcher
func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing
func Run(args []string, stdout, stderr io.Writer) int {
	cfg := config.Load()
	setupLogging(cfg.LogLevel, stderr)

	if len(args) < 2 {
		printUsage(stdout)
		return 0
	}

	switch args[1] {
	case "simulate":
		return runSimulate(args[2:], cfg, stdout, stderr)
	case "fee":
		return runFee(args[2:], stdout, stderr)
	case "version":
		fmt.Fprintf(stdout, "rain ledger engine %s\n", config.EngineVersion)
		return 0
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func setupLogging(level string, w io.Writer) {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})))
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "rain - reputation-collateralized economic ledger")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  rain simulate [-profile <path>] [-snapshot]   Run the full loan lifecycle simulation")
	fmt.Fprintln(w, "  rain fee -expr <cel> -base <fee> -actions <n> Evaluate a fee schedule expression")
	fmt.Fprintln(w, "  rain version                                  Print the engine version")
	fmt.Fprintln(w, "  rain help                                     Show this help")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  RAIN_LOG_LEVEL, RAIN_DATABASE_DRIVER, RAIN_DATABASE_DSN,")
	fmt.Fprintln(w, "  RAIN_REDIS_ADDR, RAIN_UPDATER_KEY, RAIN_PROFILE")
	fmt.Fprintln(w, "")
}
