package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/chazu/pica/config"
	"github.com/chazu/pica/profile"
	"github.com/chazu/pica/vm"
)

const (
	ansiBold  = "\x1b[1m"
	ansiReset = "\x1b[0m"
)

func colorOutput() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func heading(w io.Writer, s string) {
	if colorOutput() {
		fmt.Fprintf(w, "%s%s%s\n", ansiBold, s, ansiReset)
		return
	}
	fmt.Fprintln(w, s)
}

func printSummary(w io.Writer, snap *profile.Snapshot) {
	s := snap.Summary
	heading(w, fmt.Sprintf("== %s ==", snap.Source))
	fmt.Fprintf(w, "call sites:     %d (%d empty, %d monomorphic, %d polymorphic, %d megamorphic)\n",
		s.CallSites, s.Empty, s.Monomorphic, s.Polymorphic, s.Megamorphic)
	fmt.Fprintf(w, "hits / misses:  %d / %d (%.1f%% hit rate)\n", s.Hits, s.Misses, snap.HitRate())
	fmt.Fprintf(w, "invalidations:  %d\n", s.Invalidations)
	fmt.Fprintf(w, "resolutions:    %d\n", s.Consultations)
	fmt.Fprintf(w, "shared entries: %d\n", s.MegamorphicEntries)
}

func printSites(w io.Writer, snap *profile.Snapshot) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SITE\tMETHOD\tSTATE\tGUARDS\tHITS\tMISSES\tINVALIDATED")
	for _, site := range snap.Sites {
		fmt.Fprintf(tw, "%s#%d\t%s\t%s\t%d\t%d\t%d\t%d\n",
			site.Unit, site.Index, site.Name, site.State, site.Guards, site.Hits, site.Misses, site.Invalidations)
	}
	tw.Flush()
}

// handleStatsCommand processes the `pica stats` subcommand.
func handleStatsCommand(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: pica stats <profile.cbor>")
		os.Exit(2)
	}
	snap, err := profile.ReadFile(args[0])
	if err != nil {
		fatal("%v", err)
	}
	showProfile(snap)
}

func showProfile(snap *profile.Snapshot) {
	printSummary(os.Stdout, snap)
	fmt.Println()
	printSites(os.Stdout, snap)

	if mega := snap.SitesIn(vm.CacheMegamorphic); len(mega) > 0 {
		fmt.Println()
		heading(os.Stdout, "Megamorphic sites")
		for _, site := range mega {
			fmt.Printf("  %s#%d %s\n", site.Unit, site.Index, site.Name)
		}
	}
}

// handleHistoryCommand processes the `pica history` subcommand.
// Usage:
//
//	pica history [-n N]     List recorded profiles, newest first
//	pica history -show ID   Print one recorded profile
//	pica history -rm ID     Delete one recorded profile
func handleHistoryCommand(args []string, cfg *config.Config) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	limit := fs.Int("n", 20, "Maximum number of entries to list (0 for all)")
	show := fs.Int64("show", 0, "Print the profile with this id")
	remove := fs.Int64("rm", 0, "Delete the profile with this id")
	fs.Parse(args)

	ctx := context.Background()
	store, err := profile.Open(ctx, cfg.DatabasePath())
	if err != nil {
		fatal("%v", err)
	}
	defer store.Close()

	switch {
	case *show != 0:
		snap, err := store.Load(ctx, *show)
		if err != nil {
			fatal("%v", err)
		}
		showProfile(snap)
	case *remove != 0:
		if err := store.Delete(ctx, *remove); err != nil {
			fatal("%v", err)
		}
		fmt.Printf("Deleted profile #%d\n", *remove)
	default:
		entries, err := store.List(ctx, *limit)
		if err != nil {
			fatal("%v", err)
		}
		if len(entries) == 0 {
			fmt.Println("No recorded profiles")
			return
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tRECORDED\tSOURCE\tBYTES")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n",
				strconv.FormatInt(e.ID, 10), e.CreatedAt.Format(time.DateTime), e.Source, e.Size)
		}
		tw.Flush()
	}
}
