// Package console asks the operator for values and prints tables.
//
// Every prompt can be answered ahead of time through an environment
// variable, so commands also run unattended.
package console

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/eiannone/keyboard"
)

// ErrAborted is returned when the operator interrupts or closes input.
var ErrAborted = errors.New("input aborted")

// LineReader reads one line after showing a prompt.
type LineReader interface {
	SetPrompt(prompt string)
	Readline() (string, error)
	Close() error
}

// KeyReader reads a single key press.
type KeyReader func() (rune, error)

// Console asks questions on a LineReader and writes to Out.
type Console struct {
	Out io.Writer

	lines  LineReader
	keys   KeyReader
	lookup func(string) (string, bool)
}

// New creates a Console over the given readers. A nil keys falls back to
// reading lines.
func New(lines LineReader, keys KeyReader, out io.Writer) *Console {
	return &Console{
		Out:    out,
		lines:  lines,
		keys:   keys,
		lookup: os.LookupEnv,
	}
}

// NewTerminal creates a Console on the process terminal.
func NewTerminal() (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Stdout:          os.Stderr,
		InterruptPrompt: "^C",
		EOFPrompt:       "",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open terminal: %w", err)
	}
	return New(rl, singleKey, os.Stdout), nil
}

// WithEnv replaces the environment lookup.
func (c *Console) WithEnv(lookup func(string) (string, bool)) *Console {
	c.lookup = lookup
	return c
}

// Close releases the line reader.
func (c *Console) Close() error {
	if c.lines == nil {
		return nil
	}
	return c.lines.Close()
}

// Ask returns the value of the environment variable env when set, otherwise
// prompts. Empty input takes def.
func (c *Console) Ask(env, prompt, def string) (string, error) {
	if env != "" {
		if value, ok := c.lookup(env); ok {
			return value, nil
		}
	}

	var label = prompt
	if def != "" {
		label = fmt.Sprintf("%s [%s]", prompt, def)
	}

	line, err := c.readLine(label + ": ")
	if err != nil {
		return "", err
	}
	if line == "" {
		return def, nil
	}
	return line, nil
}

func (c *Console) readLine(prompt string) (string, error) {
	c.lines.SetPrompt(prompt)
	line, err := c.lines.Readline()
	if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
		return "", ErrAborted
	}
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// AskFloat is Ask for numbers. Invalid input is asked again.
func (c *Console) AskFloat(env, prompt string, def float64) (float64, error) {
	var defText = strconv.FormatFloat(def, 'f', -1, 64)
	for {
		raw, err := c.Ask(env, prompt, defText)
		if err != nil {
			return 0, err
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err == nil {
			return value, nil
		}
		if env != "" {
			if _, fromEnv := c.lookup(env); fromEnv {
				return 0, fmt.Errorf("%s: %q is not a number", env, raw)
			}
		}
		fmt.Fprintf(c.Out, "%q is not a number\n", raw)
	}
}

// Choose lists options and returns the index picked, asking until the
// answer is in range.
func (c *Console) Choose(prompt string, options []string) (int, error) {
	if len(options) == 0 {
		return 0, errors.New("nothing to choose from")
	}
	if len(options) == 1 {
		return 0, nil
	}

	for i, option := range options {
		fmt.Fprintf(c.Out, "%d: %s\n", i+1, option)
	}
	for {
		raw, err := c.Ask("", fmt.Sprintf("%s (1-%d)", prompt, len(options)), "")
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(raw)
		if err == nil && n >= 1 && n <= len(options) {
			return n - 1, nil
		}
		fmt.Fprintf(c.Out, "pick a number between 1 and %d\n", len(options))
	}
}

// Confirm asks a yes/no question answered by a single key press.
func (c *Console) Confirm(prompt string) (bool, error) {
	fmt.Fprintf(c.Out, "%s [y/N] ", prompt)

	if c.keys == nil {
		answer, err := c.readLine("")
		if err != nil {
			return false, err
		}
		return strings.EqualFold(answer, "y") || strings.EqualFold(answer, "yes"), nil
	}

	key, err := c.keys()
	fmt.Fprintln(c.Out)
	if err != nil {
		return false, fmt.Errorf("failed to read key: %w", err)
	}
	return key == 'y' || key == 'Y', nil
}

func singleKey() (rune, error) {
	char, key, err := keyboard.GetSingleKey()
	if err != nil {
		return 0, err
	}
	if key == keyboard.KeyCtrlC || key == keyboard.KeyEsc {
		return 0, ErrAborted
	}
	return char, nil
}
