package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/use-agent/seekjobs/config"
	"github.com/use-agent/seekjobs/models"
	"github.com/use-agent/seekjobs/output"
	"github.com/use-agent/seekjobs/scraper"
)

// CLI flags
var (
	searchURL = flag.String("search", "", "Search results URL to walk (required)")
	limit     = flag.String("limit", "", `Posting age limit, e.g. "1d ago"; empty walks every page`)
	details   = flag.Bool("details", false, "Also fetch full details for every card")
	format    = flag.String("format", "text", "Description format: text or markdown")
	outDir    = flag.String("out", "", "Output directory (default: SEEKJOBS_OUTPUT_DIR)")
	mode      = flag.String("mode", "", "Fetch mode: browser or http (default: SEEKJOBS_FETCH_MODE)")
	verbose   = flag.Bool("v", false, "Log progress to stderr")
)

func main() {
	flag.Parse()
	if *searchURL == "" {
		fmt.Fprintln(os.Stderr, "Error: -search is required")
		flag.Usage()
		os.Exit(2)
	}
	if *format != "text" && *format != "markdown" {
		fmt.Fprintf(os.Stderr, "Error: -format must be text or markdown, got %q\n", *format)
		os.Exit(2)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg := config.Load()
	if *outDir != "" {
		cfg.Output.Dir = *outDir
	}
	if *mode != "" {
		cfg.Fetch.Mode = *mode
	}

	sc, err := scraper.NewFromConfig(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	w, err := output.NewWriter(cfg.Output.Dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	fmt.Printf("Walking %s (limit %q) ...\n", *searchURL, *limit)
	refs, err := sc.ListCards(ctx, *searchURL, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Found %d job cards in %s\n", len(refs), time.Since(start).Round(time.Millisecond))

	path, err := w.WriteJSON("job_cards", refs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error writing cards: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Cards written to %s\n", path)

	if !*details || len(refs) == 0 {
		return
	}

	ids := make([]string, 0, len(refs))
	for _, r := range refs {
		ids = append(ids, r.ID)
	}
	fmt.Printf("\nFetching %d listings ...\n", len(ids))
	records, err := sc.GetDetailsBatch(ctx, ids, *format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	printTable(records)

	path, err = w.WriteJSON("job_details", records)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error writing details: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDetails written to %s (%s total)\n", path, time.Since(start).Round(time.Second))
}

func printTable(records []models.ListingRecord) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCATEGORY\tTITLE\tCOMPANY\tPOSTED")
	failed := 0
	for _, r := range records {
		if r.Failed() {
			failed++
			fmt.Fprintf(tw, "%s\t-\tFAILED: %s\t\t\n", r.JobID, r.Error)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.JobID, r.Category, r.Title, r.Company, r.PostingTime)
	}
	tw.Flush()
	fmt.Printf("%d ok, %d failed\n", len(records)-failed, failed)
}
