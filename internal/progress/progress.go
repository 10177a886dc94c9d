// Package progress reports sweep progress. A Sink has a fixed capacity and a
// value that callers increment as simulation periods complete.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

// Sink receives progress increments. Implementations must be safe for
// concurrent use because parallel sweeps report from several workers.
type Sink interface {
	// Max returns the value that represents completion.
	Max() float64

	// Add increments the current value by delta.
	Add(delta float64)
}

// Nop is a Sink that ignores increments.
type Nop struct{}

// Max returns the default capacity.
func (Nop) Max() float64 { return 100 }

// Add does nothing.
func (Nop) Add(float64) {}

// Counter is a Sink that only records its value.
type Counter struct {
	mu    sync.Mutex
	max   float64
	value float64
	calls int
}

// NewCounter creates a Counter with capacity max.
func NewCounter(max float64) *Counter {
	return &Counter{max: max}
}

// Max returns the capacity.
func (c *Counter) Max() float64 { return c.max }

// Add increments the value.
func (c *Counter) Add(delta float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value += delta
	c.calls++
}

// Value returns the accumulated value.
func (c *Counter) Value() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Calls returns how many increments were received.
func (c *Counter) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Unicode block characters for the bar.
const (
	barFilled = "█"
	barEmpty  = "░"
)

// Bar draws a progress bar. On a terminal it redraws one line in place; on
// any other writer it prints a line each time another tenth completes.
type Bar struct {
	mu         sync.Mutex
	w          io.Writer
	message    string
	max        float64
	value      float64
	width      int
	isTTY      bool
	start      time.Time
	lastDecile int
	lastLen    int
	done       bool
}

// NewBar creates a bar with capacity max writing to w. A nil w means stderr.
func NewBar(w io.Writer, message string, max float64) *Bar {
	if w == nil {
		w = os.Stderr
	}
	if max <= 0 {
		max = 100
	}
	return &Bar{
		w:       w,
		message: message,
		max:     max,
		width:   30,
		isTTY:   isTerminalWriter(w),
		start:   time.Now(),
	}
}

func isTerminalWriter(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}

// Max returns the capacity.
func (b *Bar) Max() float64 { return b.max }

// Value returns the current value.
func (b *Bar) Value() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.value
}

// Add increments the value and redraws.
func (b *Bar) Add(delta float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.done {
		return
	}
	b.value += delta
	if b.value > b.max {
		b.value = b.max
	}

	if b.isTTY {
		b.redraw()
		return
	}

	decile := int(b.fraction() * 10)
	if decile > b.lastDecile {
		b.lastDecile = decile
		fmt.Fprintln(b.w, b.line())
	}
}

// Finish fills the bar and ends the line.
func (b *Bar) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.done {
		return
	}
	b.done = true
	b.value = b.max
	if b.isTTY {
		b.redraw()
		fmt.Fprintln(b.w)
	} else if b.lastDecile < 10 {
		fmt.Fprintln(b.w, b.line())
	}
}

// fraction returns completion in [0,1]. Caller must hold the mutex.
func (b *Bar) fraction() float64 {
	f := b.value / b.max
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	// Increments are fractional; treat values within rounding of max as done.
	if 1-f < 1e-9 {
		return 1
	}
	return f
}

// line renders the bar. Caller must hold the mutex.
// Output format: Message [██████░░░░] 60% (2.4s)
func (b *Bar) line() string {
	filled := int(b.fraction() * float64(b.width))
	var sb strings.Builder
	if b.message != "" {
		sb.WriteString(b.message)
		sb.WriteString(" ")
	}
	sb.WriteString("[")
	sb.WriteString(strings.Repeat(barFilled, filled))
	sb.WriteString(strings.Repeat(barEmpty, b.width-filled))
	sb.WriteString("]")
	fmt.Fprintf(&sb, " %3.0f%%", b.fraction()*100)
	fmt.Fprintf(&sb, " (%s)", formatElapsed(time.Since(b.start)))
	return sb.String()
}

// redraw overwrites the current terminal line. Caller must hold the mutex.
func (b *Bar) redraw() {
	out := b.line()
	pad := ""
	if n := len(out); n < b.lastLen {
		pad = strings.Repeat(" ", b.lastLen-n)
	}
	fmt.Fprintf(b.w, "\r%s%s", out, pad)
	b.lastLen = len(out)
}

// formatElapsed shows short durations as "1.2s" and longer ones as "1m 30s".
func formatElapsed(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
}
