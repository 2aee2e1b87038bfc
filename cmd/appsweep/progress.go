package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/eliteGoblin/focusd/appsweep/internal/domain"
)

// progressLine rewrites a single status line in place.
type progressLine struct {
	w       io.Writer
	enabled bool
	width   int
}

func newProgressLine(w io.Writer, enabled bool) *progressLine {
	return &progressLine{w: w, enabled: enabled}
}

func (p *progressLine) update(ev *domain.TaskProgress) {
	if !p.enabled || ev == nil {
		return
	}
	line := fmt.Sprintf("[%d/%d] %s", ev.Current, ev.Total, ev.Message)
	line = truncate(line, 100)
	pad := ""
	if n := p.width - len(line); n > 0 {
		pad = strings.Repeat(" ", n)
	}
	fmt.Fprintf(p.w, "\r%s%s", line, pad)
	p.width = len(line)
}

func (p *progressLine) clear() {
	if !p.enabled || p.width == 0 {
		return
	}
	fmt.Fprintf(p.w, "\r%s\r", strings.Repeat(" ", p.width))
	p.width = 0
}
