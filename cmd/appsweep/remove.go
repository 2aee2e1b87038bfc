package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/appsweep/internal/domain"
	"github.com/eliteGoblin/focusd/appsweep/internal/scheduler"
)

var knownCategories = []domain.Category{
	domain.CategoryPreferences,
	domain.CategoryCache,
	domain.CategoryLogs,
	domain.CategorySupport,
	domain.CategoryAgent,
	domain.CategoryReceipt,
	domain.CategoryContainer,
}

func runRemove(cmd *cobra.Command, args []string) error {
	filter, err := newSelectionFilter(removeCategories, includeNameMatch)
	if err != nil {
		return err
	}

	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.close()

	if _, err := e.scan(!noProgress); err != nil {
		return err
	}

	store := e.sched.Store()
	found, err := findApp(store.Apps(), args[0])
	if err != nil {
		return err
	}
	if _, err := store.SelectWhere(found.BundlePath, filter.match); err != nil {
		return err
	}

	items := store.SelectedItems()
	if removeBundle {
		items = append(items, domain.RemovalItem{Path: found.BundlePath, Owner: found})
	}
	if len(items) == 0 {
		fmt.Printf("Nothing selected for %s.\n", found.DisplayName)
		return nil
	}

	if found.IsRunning {
		fmt.Println(color.YellowString("%s is running; its files will be skipped. Quit it first.", found.DisplayName))
	}

	if dryRun {
		printSelection(os.Stdout, found, items)
		return nil
	}

	status := newStatusLog(os.Stdout)
	done, err := e.run(scheduler.NewRemovalTask(e.remover, items), func(ev scheduler.Event) {
		if ev.Outcome != nil {
			status.add(*ev.Outcome)
		}
	})
	if err != nil {
		return err
	}

	switch done.State {
	case scheduler.StateFailed:
		if len(done.Outcomes) > 0 {
			status.summary(len(items))
			return fmt.Errorf("removal stopped: %w", done.Err)
		}
		if errors.Is(done.Err, domain.ErrUnsupported) {
			return fmt.Errorf("nothing was moved: %w", done.Err)
		}
		return fmt.Errorf("removal failed: %w", done.Err)
	case scheduler.StateCancelled:
		status.summary(len(items))
		return errCancelled
	}

	status.summary(len(items))
	if !removeBundle {
		reportRemaining(e, found)
	}
	if !status.allMoved() {
		return errIncomplete
	}
	return nil
}

// reportRemaining re-correlates app and prints how many related files are left.
func reportRemaining(e *engine, app domain.AppRecord) {
	rec, err := e.refresh(app.BundlePath)
	if err != nil {
		e.logger.Debug("could not re-check app after removal",
			zap.String("bundle", app.BundlePath), zap.Error(err))
		return
	}
	if len(rec.RelatedFiles) == 0 {
		fmt.Printf("No related files of %s remain.\n", rec.DisplayName)
		return
	}
	fmt.Printf("%d related file(s) of %s remain (%s).\n",
		len(rec.RelatedFiles), rec.DisplayName, humanize.Bytes(uint64(rec.TotalSize())))
}

// selectionFilter decides which related files remove selects.
type selectionFilter struct {
	categories  map[domain.Category]bool
	includeName bool
}

func newSelectionFilter(categories []string, includeName bool) (*selectionFilter, error) {
	f := &selectionFilter{includeName: includeName}
	if len(categories) == 0 {
		return f, nil
	}

	f.categories = make(map[domain.Category]bool)
	for _, c := range categories {
		cat := domain.Category(strings.ToLower(strings.TrimSpace(c)))
		if !isKnownCategory(cat) {
			return nil, fmt.Errorf("unknown category %q", c)
		}
		f.categories[cat] = true
	}
	return f, nil
}

func (f *selectionFilter) match(entry domain.FileEntry) bool {
	if entry.LowConfidence() && !f.includeName {
		return false
	}
	if f.categories != nil && !f.categories[entry.Category] {
		return false
	}
	return true
}

func isKnownCategory(c domain.Category) bool {
	for _, k := range knownCategories {
		if k == c {
			return true
		}
	}
	return false
}

func printSelection(w io.Writer, app domain.AppRecord, items []domain.RemovalItem) {
	fmt.Fprintf(w, "%s\n", color.YellowString("DRY RUN - nothing will be moved"))
	fmt.Fprintf(w, "Would move %d item(s) of %s to the Trash:\n", len(items), app.DisplayName)

	sizes := make(map[string]int64, len(app.RelatedFiles))
	for _, f := range app.RelatedFiles {
		sizes[f.Path] = f.SizeBytes
	}
	for _, item := range items {
		if item.IsBundle() {
			fmt.Fprintf(w, "  - %s (application bundle)\n", item.Path)
			continue
		}
		fmt.Fprintf(w, "  - %s (%s)\n", item.Path, humanize.Bytes(uint64(sizes[item.Path])))
	}
}

// statusLog prints one coloured line per removal outcome.
type statusLog struct {
	w      io.Writer
	counts map[domain.RemovalStatus]int
}

func newStatusLog(w io.Writer) *statusLog {
	return &statusLog{w: w, counts: make(map[domain.RemovalStatus]int)}
}

func (s *statusLog) add(o domain.RemovalOutcome) {
	s.counts[o.Status]++

	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	switch o.Status {
	case domain.StatusMoved:
		fmt.Fprintf(s.w, "%s %s %s\n", green("moved  "), o.Path, gray("-> "+o.Destination))
	case domain.StatusSkippedRunning:
		fmt.Fprintf(s.w, "%s %s %s\n", yellow("skipped"), o.Path, gray("("+o.Owner+" is running)"))
	case domain.StatusSkippedMissing:
		fmt.Fprintf(s.w, "%s %s %s\n", yellow("skipped"), o.Path, gray("(no longer exists)"))
	default:
		fmt.Fprintf(s.w, "%s %s %s\n", red("failed "), o.Path, gray("("+o.Reason+")"))
	}
}

func (s *statusLog) processed() int {
	n := 0
	for _, c := range s.counts {
		n += c
	}
	return n
}

func (s *statusLog) allMoved() bool {
	return s.processed() == s.counts[domain.StatusMoved]
}

func (s *statusLog) summary(total int) {
	skipped := s.counts[domain.StatusSkippedRunning] + s.counts[domain.StatusSkippedMissing]
	fmt.Fprintf(s.w, "\n%d moved, %d skipped, %d failed", s.counts[domain.StatusMoved], skipped, s.counts[domain.StatusFailed])
	if n := s.processed(); n < total {
		fmt.Fprintf(s.w, ", %d not processed", total-n)
	}
	fmt.Fprintln(s.w)
}
