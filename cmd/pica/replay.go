package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/chazu/pica/config"
	"github.com/chazu/pica/profile"
	"github.com/chazu/pica/trace"
	"github.com/chazu/pica/vm"
)

// handleReplayCommand processes the `pica replay` subcommand.
// Usage:
//
//	pica replay <trace> [-o out.cbor] [-record] [-q]
func handleReplayCommand(args []string, cfg *config.Config) {
	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	output := fs.String("o", cfg.Profile.Output, "Write the dispatch profile to this CBOR file")
	record := fs.Bool("record", false, "Save the dispatch profile to the profile database")
	quiet := fs.Bool("q", false, "Only print the summary")

	path, err := parseWithPositional(fs, args)
	if err != nil || path == "" {
		fmt.Fprintln(os.Stderr, "Usage: pica replay <trace> [-o out.cbor] [-record] [-q]")
		os.Exit(2)
	}

	prog, err := trace.ParseFile(path)
	if err != nil {
		fatal("%v", err)
	}

	rt := vm.NewRuntimeWithRegistry(vm.NewRegistry(), cfg.VM())

	var out io.Writer = os.Stdout
	if *quiet {
		out = nil
	}
	rep, err := prog.Run(rt, out)
	if err != nil {
		fatal("%v", err)
	}

	snap := profile.Capture(rt, displayName(path))
	printSummary(os.Stdout, snap)
	if rep.Failures > 0 {
		fmt.Printf("%d of %d call(s) failed\n", rep.Failures, rep.Calls)
	}

	if *output != "" {
		if err := profile.WriteFile(*output, snap); err != nil {
			fatal("%v", err)
		}
		fmt.Printf("Wrote %s\n", *output)
	}

	if *record {
		ctx := context.Background()
		store, err := profile.Open(ctx, cfg.DatabasePath())
		if err != nil {
			fatal("%v", err)
		}
		defer store.Close()
		id, err := store.Save(ctx, snap)
		if err != nil {
			fatal("%v", err)
		}
		fmt.Printf("Recorded profile #%d\n", id)
	}
}

// parseWithPositional parses fs allowing its flags on either side of a
// single positional argument.
func parseWithPositional(fs *flag.FlagSet, args []string) (string, error) {
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	rest := fs.Args()
	if len(rest) == 0 {
		return "", nil
	}
	positional := rest[0]
	if err := fs.Parse(rest[1:]); err != nil {
		return "", err
	}
	if fs.NArg() > 0 {
		return "", fmt.Errorf("unexpected argument %s", fs.Arg(0))
	}
	return positional, nil
}
