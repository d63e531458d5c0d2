// Command extract-html extracts records from saved EAMS portal pages without
// talking to the portal session. It is the offline counterpart of eams.
//
// Usage (stdin):
//
//	cat results.html | extract-html -kind listing
//
// Usage (saved file or fetched URL):
//
//	extract-html -kind detail -file case.html
//	extract-html -kind urlinfo -url "https://example.com/CaseDetail?id=1"
//
// Usage (directory mode):
//
//	extract-html -kind events -dir "./pages"
//
// Debug (print the tables a page has and how they classify):
//
//	cat case.html | extract-html -selector "table"
//
// Debug (print text for selector matches):
//
//	cat case.html | extract-html -selector "td.caseNumber" -text
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"eams/internal/extracthtml"
	"eams/internal/logging"

	"go.uber.org/zap"
)

func main() {
	os.Exit(run(
		context.Background(),
		os.Args[1:],
		os.Stdin,
		os.Stdout,
		os.Stderr,
		http.DefaultClient,
	))
}

// run is split out from main so the command is testable in-process.
//
// It returns a Unix-style exit code:
//   - 0 for success
//   - 2 for usage errors
//   - 1 for operational/runtime errors
func run(
	ctx context.Context,
	args []string,
	stdin io.Reader,
	stdout io.Writer,
	stderr io.Writer,
	httpClient *http.Client,
) int {
	fs := flag.NewFlagSet("extract-html", flag.ContinueOnError)
	fs.SetOutput(stderr)

	kindFlag := fs.String("kind", string(extracthtml.PageListing), "page layout: listing, detail, events or urlinfo")
	onlyText := fs.Bool("text", false, "Debug: print text blocks for -selector matches (not JSON)")
	debugSelector := fs.String("selector", "", "Debug: CSS selector to print matches for (not JSON)")
	urlFlag := fs.String("url", "", "Optional: fetch HTML from URL instead of stdin")
	fileFlag := fs.String("file", "", "Optional: read HTML from a saved page instead of stdin")
	timeout := fs.Duration("timeout", 20*time.Second, "Timeout for -url fetch")
	dirFlag := fs.String("dir", "", "Optional: directory of saved pages (records get source_file)")
	pretty := fs.Bool("pretty", false, "indent JSON output")
	verbose := fs.Bool("v", false, "enable debug logs")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "unexpected arguments: %v\n", fs.Args())
		return 2
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	logger := logging.MustNew(logging.Config{Level: level})
	defer func() { _ = logger.Sync() }()

	loader := extracthtml.NewLoader(httpClient, *timeout)
	input := extracthtml.Input{URL: *urlFlag, Path: *fileFlag, Stdin: stdin}

	// Debug selector mode needs HTML input but no page kind.
	if *debugSelector != "" {
		html, err := loader.Load(ctx, input)
		if err != nil {
			fmt.Fprintf(stderr, "load html: %v\n", err)
			return 1
		}
		if err := extracthtml.DebugPrintSelector(stdout, html, *debugSelector, *onlyText); err != nil {
			fmt.Fprintf(stderr, "debug selector: %v\n", err)
			return 1
		}
		return 0
	}

	kind, err := extracthtml.ParsePageKind(*kindFlag)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 2
	}

	enc := json.NewEncoder(stdout)
	enc.SetEscapeHTML(false)

	// Directory mode: stream output as a single JSON array.
	if *dirFlag != "" {
		if err := extracthtml.StreamFromDir(stdout, *dirFlag, kind, enc); err != nil {
			fmt.Fprintf(stderr, "dir extract: %v\n", err)
			return 1
		}
		logger.Debug("directory extracted", zap.String("dir", *dirFlag), zap.String("kind", string(kind)))
		return 0
	}

	html, err := loader.Load(ctx, input)
	if err != nil {
		fmt.Fprintf(stderr, "load html: %v\n", err)
		return 1
	}
	recs, err := extracthtml.ExtractPageHTML(html, kind)
	if err != nil {
		fmt.Fprintf(stderr, "extract: %v\n", err)
		return 1
	}
	logger.Debug("page extracted", zap.String("kind", string(kind)), zap.Int("records", len(recs)))

	if *pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(recs); err != nil {
		fmt.Fprintf(stderr, "encode json: %v\n", err)
		return 1
	}
	return 0
}
