package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/eliteGoblin/focusd/appsweep/internal/domain"
)

type scanReport struct {
	Apps        []domain.AppRecord `json:"apps"`
	Diagnostics []string           `json:"diagnostics,omitempty"`
}

func runScan(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.close()

	result, err := e.scan(!noProgress && !jsonOutput)
	if err != nil {
		return err
	}

	if jsonOutput {
		report := scanReport{Apps: result.Apps}
		for _, d := range result.Diagnostics {
			report.Diagnostics = append(report.Diagnostics, d.String())
		}
		return writeJSON(os.Stdout, report)
	}

	printAppTable(os.Stdout, result.Apps)
	printDiagnostics(os.Stdout, result.Diagnostics, e.mode.IsRoot)
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.close()

	result, err := e.scan(!noProgress && !jsonOutput)
	if err != nil {
		return err
	}

	app, err := findApp(result.Apps, args[0])
	if err != nil {
		return err
	}

	if jsonOutput {
		if err := writeJSON(os.Stdout, app); err != nil {
			return err
		}
	} else {
		printAppDetail(os.Stdout, app)
		printDiagnostics(os.Stdout, result.Diagnostics, e.mode.IsRoot)
	}

	if reveal {
		if err := e.revealer.Reveal(app.BundlePath); err != nil {
			return fmt.Errorf("cannot reveal %s: %w", app.DisplayName, err)
		}
	}
	return nil
}

// findApp matches an identifier exactly, then a display name case-insensitively.
func findApp(apps []domain.AppRecord, query string) (domain.AppRecord, error) {
	for _, a := range apps {
		if a.Identifier != "" && a.Identifier == query {
			return a, nil
		}
	}

	var matches []domain.AppRecord
	for _, a := range apps {
		if strings.EqualFold(a.DisplayName, query) {
			matches = append(matches, a)
		}
	}
	switch len(matches) {
	case 0:
		return domain.AppRecord{}, fmt.Errorf("no installed app matches %q", query)
	case 1:
		return matches[0], nil
	default:
		var paths []string
		for _, m := range matches {
			paths = append(paths, m.BundlePath)
		}
		return domain.AppRecord{}, fmt.Errorf("%q is ambiguous, use the bundle identifier: %s", query, strings.Join(paths, ", "))
	}
}

func printAppTable(w io.Writer, apps []domain.AppRecord) {
	bold := color.New(color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	if len(apps) == 0 {
		fmt.Fprintln(w, "No applications found.")
		return
	}

	fmt.Fprintf(w, "%s\n", bold(fmt.Sprintf("%-28s %-36s %-12s %-8s %6s %10s",
		"APP", "IDENTIFIER", "VERSION", "RUNNING", "FILES", "SIZE")))

	var total int64
	for _, a := range apps {
		running := gray("no")
		if a.IsRunning {
			running = green("yes")
		}
		id := a.Identifier
		if a.Degraded {
			id = gray("(no manifest)")
		}
		size := a.TotalSize()
		total += size
		fmt.Fprintf(w, "%-28s %-36s %-12s %-8s %6d %10s\n",
			truncate(a.DisplayName, 28), id, truncate(a.Version, 12), running,
			len(a.RelatedFiles), humanize.Bytes(uint64(size)))
	}

	fmt.Fprintf(w, "\n%d apps, %s in related files\n", len(apps), humanize.Bytes(uint64(total)))
}

func printAppDetail(w io.Writer, app domain.AppRecord) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Fprintf(w, "%s\n", cyan(app.DisplayName))
	if app.Identifier != "" {
		fmt.Fprintf(w, "  Identifier: %s\n", app.Identifier)
	}
	if app.Version != "" {
		fmt.Fprintf(w, "  Version:    %s\n", app.Version)
	}
	fmt.Fprintf(w, "  Bundle:     %s\n", app.BundlePath)
	if app.IsRunning {
		fmt.Fprintf(w, "  %s\n", yellow("Running: related files will be skipped by remove"))
	}
	if app.Degraded {
		fmt.Fprintf(w, "  %s\n", yellow("Manifest missing or malformed: matched by folder name only"))
	}

	if len(app.RelatedFiles) == 0 {
		fmt.Fprintln(w, "\n  No related files.")
		return
	}

	fmt.Fprintln(w)
	for _, f := range app.RelatedFiles {
		marker := " "
		if f.LowConfidence() {
			marker = yellow("~")
		}
		fmt.Fprintf(w, "  %s %-12s %10s  %-11s %s\n",
			marker, f.Category, humanize.Bytes(uint64(f.SizeBytes)), f.Rule, f.Path)
	}
	fmt.Fprintf(w, "\n  Total: %s\n", humanize.Bytes(uint64(app.TotalSize())))
}

func printDiagnostics(w io.Writer, diags []domain.Diagnostic, isRoot bool) {
	if len(diags) == 0 {
		return
	}
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Fprintf(w, "\n%s\n", yellow(fmt.Sprintf("Skipped %d unreadable location(s):", len(diags))))
	for _, d := range diags {
		fmt.Fprintf(w, "  - %s\n", d.String())
	}
	if !isRoot {
		fmt.Fprintln(w, "\nRun with sudo to include system locations: sudo appsweep scan")
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
