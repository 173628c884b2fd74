// Command previewcheck fetches a URL as a link-preview crawler and prints the
// Open Graph and Twitter Card tags it received.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/JakeFAU/profile-preview/internal/inspect"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("previewcheck", flag.ContinueOnError)
	fs.SetOutput(stderr)
	agent := fs.String("ua", "facebook", "crawler name ("+agentNames()+") or a literal User-Agent")
	timeout := fs.Duration("timeout", 15*time.Second, "request timeout")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: previewcheck [-ua name] [-timeout d] URL\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := inspect.New(inspect.Config{Agent: *agent, Timeout: *timeout}).Inspect(ctx, fs.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "inspect failed: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "url:           %s\n", report.URL)
	fmt.Fprintf(stdout, "user-agent:    %s\n", report.UserAgent)
	fmt.Fprintf(stdout, "status:        %d\n", report.StatusCode)
	fmt.Fprintf(stdout, "cache-control: %s\n", report.CacheControl)
	fmt.Fprintf(stdout, "vary:          %s\n", report.Vary)
	fmt.Fprintf(stdout, "title:         %s\n", report.Title)
	for _, name := range report.TagNames() {
		fmt.Fprintf(stdout, "  %-22s %s\n", name, report.Tags[name])
	}

	if missing := report.Missing(); len(missing) > 0 {
		fmt.Fprintf(stderr, "missing required tags: %s\n", strings.Join(missing, ", "))
		return 1
	}
	if report.StatusCode < 200 || report.StatusCode > 299 {
		fmt.Fprintf(stderr, "unexpected status %d\n", report.StatusCode)
		return 1
	}
	return 0
}

func agentNames() string {
	names := make([]string, 0, len(inspect.Agents))
	for k := range inspect.Agents {
		names = append(names, k)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
