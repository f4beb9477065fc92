package ui

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/x/ansi"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// ErrCancelled is returned when the user aborts a masked prompt.
var ErrCancelled = errors.New("input cancelled")

// Console is the line oriented terminal. Reads happen on one goroutine;
// output may come from any goroutine. Output that arrives while a prompt
// is pending is printed above it and the prompt is drawn again.
type Console struct {
	in     *bufio.Reader
	inTTY  *os.File
	logger *zap.Logger

	mu        sync.Mutex
	out       io.Writer
	outTTY    bool
	prompt    string
	reading   bool
	suspended bool
	held      []string
}

// NewConsole wraps in and out. Masked input and terminal redraws are only
// used when the corresponding side is a terminal.
func NewConsole(in io.Reader, out io.Writer, logger *zap.Logger) *Console {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Console{
		in:     bufio.NewReader(in),
		out:    out,
		logger: logger,
	}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		c.inTTY = f
	}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		c.outTTY = true
	}
	return c
}

// Styled reports whether output goes to a terminal.
func (c *Console) Styled() bool {
	return c.outTTY
}

// ReadLine shows prompt and reads one line without its terminator.
// It returns io.EOF once input is exhausted.
func (c *Console) ReadLine(prompt string) (string, error) {
	c.mu.Lock()
	c.prompt = prompt
	c.reading = true
	c.drawPrompt()
	c.mu.Unlock()

	line, err := c.in.ReadString('\n')

	c.mu.Lock()
	c.reading = false
	c.prompt = ""
	c.mu.Unlock()

	line = strings.TrimRight(line, "\r\n")
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return line, nil
		}
		return "", err
	}
	return line, nil
}

// ReadSecret reads a value without echoing it. Without a terminal it
// falls back to a plain line read, and so it does while typed-ahead input
// sits in the line buffer, which the masked prompt cannot see.
func (c *Console) ReadSecret(prompt string) (string, error) {
	if c.inTTY == nil || c.in.Buffered() > 0 {
		return c.ReadLine(prompt)
	}

	c.mu.Lock()
	c.suspended = true
	c.mu.Unlock()

	value, err := readSecret(c.inTTY, c.out, promptStyle.Render(prompt))

	c.mu.Lock()
	c.suspended = false
	held := c.held
	c.held = nil
	for _, s := range held {
		c.write(s)
	}
	c.mu.Unlock()

	return value, err
}

// Confirm asks a yes/no question; anything but y or yes is a no.
func (c *Console) Confirm(question string) (bool, error) {
	answer, err := c.ReadLine(question + " [y/N] ")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func (c *Console) Info(format string, args ...any) {
	c.Print(infoStyle.Render(fmt.Sprintf(format, args...)))
}

func (c *Console) Success(format string, args ...any) {
	c.Print(successStyle.Render(fmt.Sprintf(format, args...)))
}

func (c *Console) Warn(format string, args ...any) {
	c.Print(warnStyle.Render(fmt.Sprintf(format, args...)))
}

func (c *Console) Error(format string, args ...any) {
	c.Print(errorStyle.Render("Error: " + fmt.Sprintf(format, args...)))
}

// Print writes an already rendered block followed by a newline.
func (c *Console) Print(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.suspended {
		c.held = append(c.held, s)
		return
	}
	c.write(s)
}

// write must be called with mu held.
func (c *Console) write(s string) {
	if c.reading {
		if c.outTTY {
			fmt.Fprint(c.out, "\r"+ansi.EraseEntireLine)
		} else {
			fmt.Fprintln(c.out)
		}
	}
	if _, err := lipgloss.Fprintln(c.out, s); err != nil {
		c.logger.Debug("console write failed", zap.Error(err))
	}
	if c.reading {
		c.drawPrompt()
	}
}

func (c *Console) drawPrompt() {
	if c.prompt == "" {
		return
	}
	lipgloss.Fprint(c.out, promptStyle.Render(c.prompt))
}
