package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"geotagger/internal/logging"
	"geotagger/internal/pipeline"
)

// progressPrinter redraws a single status line on terminals and prints
// sampled lines everywhere else.
type progressPrinter struct {
	out     io.Writer
	tty     bool
	sampler *logging.ProgressSampler

	mu      sync.Mutex
	jobID   string
	lastLen int
}

func newProgressPrinter(out io.Writer) *progressPrinter {
	return &progressPrinter{
		out:     out,
		tty:     isTerminal(out),
		sampler: logging.NewProgressSampler(10),
	}
}

func (p *progressPrinter) update(job *pipeline.Job, pr pipeline.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if job.ID != p.jobID {
		p.endLineLocked()
		p.sampler.Forget(p.jobID)
		p.jobID = job.ID
	}
	line := fmt.Sprintf("%s [%3d%%] %-17s %s", job.Name, pr.Percent, pr.Stage, pr.Message)
	if !p.tty {
		if p.sampler.ShouldLog(job.ID, string(pr.Stage), pr.Percent) {
			fmt.Fprintln(p.out, line)
		}
		return
	}
	pad := ""
	if n := p.lastLen - len(line); n > 0 {
		pad = strings.Repeat(" ", n)
	}
	fmt.Fprintf(p.out, "\r%s%s", line, pad)
	p.lastLen = len(line)
}

// finish ends the live line so later output starts on a fresh one.
func (p *progressPrinter) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endLineLocked()
}

func (p *progressPrinter) endLineLocked() {
	if p.tty && p.lastLen > 0 {
		fmt.Fprintln(p.out)
	}
	p.lastLen = 0
}
