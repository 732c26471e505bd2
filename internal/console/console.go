// Package console is the operator's terminal: line prompts, masked secret
// entry and coloured status lines. Everything the operator sees goes to the
// console's output; diagnostic logging stays on stderr.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/breeze-rmm/remediate/internal/secmem"
)

// ErrInterrupted is returned by a read that was abandoned because the bound
// context ended.
var ErrInterrupted = errors.New("console input interrupted")

type lineResult struct {
	line string
	err  error
}

// Console reads operator input line by line and writes the transcript.
type Console struct {
	in  *bufio.Reader
	out io.Writer

	// secretFD is the descriptor used for masked input, or -1 when input
	// is not a terminal.
	secretFD     int
	readPassword func(fd int) ([]byte, error)

	// done interrupts blocked reads once closed. pending holds a line read
	// still in flight from an interrupted call.
	done    <-chan struct{}
	pending chan lineResult

	banner  *color.Color
	notice  *color.Color
	failure *color.Color
	success *color.Color
}

// New returns a Console over in and out. Masked input and colours are used
// only when the corresponding side is a terminal.
func New(in io.Reader, out io.Writer) *Console {
	c := &Console{
		in:           bufio.NewReader(in),
		out:          out,
		secretFD:     -1,
		readPassword: term.ReadPassword,
		banner:       color.New(color.FgCyan, color.Bold),
		notice:       color.New(color.FgYellow),
		failure:      color.New(color.FgRed),
		success:      color.New(color.FgGreen),
	}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		c.secretFD = int(f.Fd())
	}
	if f, ok := out.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		for _, col := range []*color.Color{c.banner, c.notice, c.failure, c.success} {
			col.DisableColor()
		}
	}
	return c
}

// Stdio returns a Console on the process's standard input and output.
func Stdio() *Console {
	return New(os.Stdin, os.Stdout)
}

// BindContext makes blocked reads return ErrInterrupted once ctx is done.
func (c *Console) BindContext(ctx context.Context) {
	c.done = ctx.Done()
}

func (c *Console) interrupted() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// readString reads the next line, giving up when the bound context ends.
func (c *Console) readString() (string, error) {
	if c.done == nil {
		return c.in.ReadString('\n')
	}
	if c.interrupted() {
		return "", ErrInterrupted
	}
	if c.pending == nil {
		ch := make(chan lineResult, 1)
		go func() {
			line, err := c.in.ReadString('\n')
			ch <- lineResult{line, err}
		}()
		c.pending = ch
	}
	select {
	case r := <-c.pending:
		c.pending = nil
		return r.line, r.err
	case <-c.done:
		return "", ErrInterrupted
	}
}

// ReadLine prints prompt and returns the next input line without its line
// terminator. It returns io.EOF only when input ended before any text.
func (c *Console) ReadLine(prompt string) (string, error) {
	if prompt != "" {
		fmt.Fprint(c.out, prompt)
	}
	line, err := c.readString()
	if err != nil {
		if errors.Is(err, ErrInterrupted) {
			fmt.Fprintln(c.out)
			return "", err
		}
		if errors.Is(err, io.EOF) {
			if line == "" {
				fmt.Fprintln(c.out)
				return "", io.EOF
			}
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// ReadSecret prints prompt and reads a secret. On a terminal the input is
// not echoed; otherwise a plain line is read.
func (c *Console) ReadSecret(prompt string) (*secmem.SecureString, error) {
	if c.secretFD < 0 {
		line, err := c.ReadLine(prompt)
		if err != nil {
			return nil, err
		}
		return secmem.NewSecureString(line), nil
	}

	fmt.Fprint(c.out, prompt)
	b, err := c.readMasked()
	fmt.Fprintln(c.out)
	if err != nil {
		if errors.Is(err, ErrInterrupted) {
			return nil, err
		}
		return nil, fmt.Errorf("read secret: %w", err)
	}
	return secmem.FromBytes(b), nil
}

// readMasked reads from the terminal with echo off. An interrupted read
// restores the terminal state so echo is back on when the session exits.
func (c *Console) readMasked() ([]byte, error) {
	if c.done == nil {
		return c.readPassword(c.secretFD)
	}
	if c.interrupted() {
		return nil, ErrInterrupted
	}
	state, stateErr := term.GetState(c.secretFD)

	type secretResult struct {
		b   []byte
		err error
	}
	ch := make(chan secretResult, 1)
	go func() {
		b, err := c.readPassword(c.secretFD)
		ch <- secretResult{b, err}
	}()
	select {
	case r := <-ch:
		return r.b, r.err
	case <-c.done:
		if stateErr == nil {
			_ = term.Restore(c.secretFD, state)
		}
		return nil, ErrInterrupted
	}
}

// Printf writes plain transcript text.
func (c *Console) Printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

// Banner writes a section heading.
func (c *Console) Banner(title string) {
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, c.banner.Sprintf("=== %s ===", title))
}

// Notice writes a warning or informational line.
func (c *Console) Notice(format string, args ...any) {
	fmt.Fprintln(c.out, c.notice.Sprintf(format, args...))
}

// Failure writes an error line.
func (c *Console) Failure(format string, args ...any) {
	fmt.Fprintln(c.out, c.failure.Sprintf(format, args...))
}

// Success writes a completion line.
func (c *Console) Success(format string, args ...any) {
	fmt.Fprintln(c.out, c.success.Sprintf(format, args...))
}
