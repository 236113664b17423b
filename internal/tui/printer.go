package tui

import (
	"fmt"
	"io"
	"sync"

	"github.com/leonardotrapani/voicelink/internal/transcript"
	"github.com/leonardotrapani/voicelink/internal/transport"
)

// Printer writes a session as an append-only log for terminals that cannot
// host the live view. Only state transitions and completed entries are
// printed.
type Printer struct {
	mu      sync.Mutex
	out     io.Writer
	state   transport.State
	printed int
}

func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out, state: transport.Idle}
}

// Update prints whatever changed since the previous call.
func (p *Printer) Update(source Source) {
	status := source.Status()
	entries := source.Transcript()

	p.mu.Lock()
	defer p.mu.Unlock()

	if status.State != p.state {
		p.state = status.State
		fmt.Fprintf(p.out, "-- %s\n", StateBadge(status.State))
	}

	var done []transcript.Entry
	for _, e := range entries {
		if e.Status == transcript.Complete {
			done = append(done, e)
		}
	}
	// a shorter log means a new session started
	if len(done) < p.printed {
		p.printed = 0
	}
	for _, e := range done[p.printed:] {
		fmt.Fprintln(p.out, RenderEntry(e))
	}
	p.printed = len(done)
}
