package ui

import (
	"fmt"
	"io"
	"sync"
)

// Tally is one bracketed counter of the final summary line
type Tally struct {
	N     int
	Label string
}

// Console writes the single-line progress display. Transient lines end in
// a carriage return and are overwritten by the next write.
type Console struct {
	out    io.Writer
	errOut io.Writer
	color  bool
	mu     sync.Mutex
}

// NewConsole returns a console writing progress to out and failures to
// errOut. Colors are used only when out is a terminal.
func NewConsole(out, errOut io.Writer) *Console {
	return &Console{
		out:    out,
		errOut: errOut,
		color:  IsTerminal(out),
	}
}

func (c *Console) paint(fn func(string) string, text string) string {
	if !c.color {
		return text
	}
	return fn(text)
}

func (c *Console) write(format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

// Step starts a new export stage, e.g. "[*] fetching ratings"
func (c *Console) Step(title string) {
	c.write("%s%s %s\n", clearLine, c.paint(Cyan, "[*]"), title)
}

// Inline starts a stage whose result follows on the same line
func (c *Console) Inline(title string) {
	c.write("%s %s ... ", c.paint(Cyan, "[*]"), title)
}

// Line prints text and ends the line
func (c *Console) Line(text string) {
	c.write("%s\n", text)
}

// Count reports the number of records a stage produced
func (c *Console) Count(n int) {
	c.write("%s    got %d\n", clearLine, n)
}

// Progress overwrites the transient status line
func (c *Console) Progress(format string, args ...interface{}) {
	c.write("%s%s\r", clearLine, fmt.Sprintf(format, args...))
}

// Visiting shows the page currently being fetched
func (c *Console) Visiting(path string) {
	c.Progress("    %s ... ", path)
}

// Notice prints a message that stays on screen
func (c *Console) Notice(message string) {
	c.write("%s%s\n", clearLine, c.paint(Yellow, message))
}

// Fail prints a fatal message on the error stream
func (c *Console) Fail(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.errOut, c.paint(Red, message))
}

// Done prints the summary line, e.g. "[+] done [3 products] [2 ratings]"
func (c *Console) Done(tallies ...Tally) {
	line := clearLine + c.paint(Green, "[+]") + " done"
	for _, t := range tallies {
		line += fmt.Sprintf(" [%d %s]", t.N, t.Label)
	}
	c.write("%s\n", line)
}
