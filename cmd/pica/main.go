// Pica CLI - replays call traces through the dispatch runtime and reports
// how its call sites behaved.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/pica/config"
)

func main() {
	configPath := flag.String("config", "", "Path to pica.toml (default: search upward from the working directory)")
	verbose := flag.Bool("v", false, "Verbose output (debug logging)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: pica [options] <command> [args...]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  replay <trace> [-o out.cbor] [-record]   Run a call trace and print site behaviour\n")
		fmt.Fprintf(os.Stderr, "  stats <profile.cbor>                     Summarise a saved dispatch profile\n")
		fmt.Fprintf(os.Stderr, "  history [-n N] [-show ID] [-rm ID]       List profiles recorded in the profile database\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  pica replay calls.trace              # Replay and print every call\n")
		fmt.Fprintf(os.Stderr, "  pica replay calls.trace -o p.cbor    # Also write the profile to p.cbor\n")
		fmt.Fprintf(os.Stderr, "  pica -v replay calls.trace -record   # Debug logging, save profile to history\n")
		fmt.Fprintf(os.Stderr, "  pica history -n 5                    # Five most recent recorded profiles\n")
	}
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *verbose {
		cfg.Log.Verbosity = 4
	}
	commonlog.Configure(cfg.Log.Verbosity, cfg.LogFile())

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	switch args[0] {
	case "replay":
		handleReplayCommand(args[1:], cfg)
	case "stats":
		handleStatsCommand(args[1:])
	case "history":
		handleHistoryCommand(args[1:], cfg)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
		flag.Usage()
		os.Exit(2)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return config.FindAndLoad(wd)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func displayName(path string) string {
	if rel, err := filepath.Rel(".", path); err == nil {
		return rel
	}
	return path
}
