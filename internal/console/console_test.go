package console

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func TestReadLineTrimsTerminator(t *testing.T) {
	var out bytes.Buffer
	c := New(strings.NewReader("yes\r\nlock\nlast"), &out)

	for _, want := range []string{"yes", "lock", "last"} {
		got, err := c.ReadLine("> ")
		if err != nil {
			t.Fatalf("ReadLine: %v", err)
		}
		if got != want {
			t.Fatalf("ReadLine() = %q, want %q", got, want)
		}
	}
	if _, err := c.ReadLine("> "); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
	if !strings.HasPrefix(out.String(), "> > > > ") {
		t.Fatalf("prompts not written: %q", out.String())
	}
}

func TestReadSecretFallsBackToLine(t *testing.T) {
	var out bytes.Buffer
	c := New(strings.NewReader("Str0ng!Pass\n"), &out)

	s, err := c.ReadSecret("Password: ")
	if err != nil {
		t.Fatalf("ReadSecret: %v", err)
	}
	if s.Reveal() != "Str0ng!Pass" {
		t.Fatalf("Reveal() = %q", s.Reveal())
	}
	if strings.Contains(out.String(), "Str0ng") {
		t.Fatal("secret echoed by console")
	}
}

func TestReadSecretMasked(t *testing.T) {
	var out bytes.Buffer
	c := New(strings.NewReader(""), &out)
	c.secretFD = 7
	c.readPassword = func(fd int) ([]byte, error) {
		if fd != 7 {
			t.Fatalf("fd = %d", fd)
		}
		return []byte("hunter2"), nil
	}

	s, err := c.ReadSecret("Password: ")
	if err != nil {
		t.Fatalf("ReadSecret: %v", err)
	}
	if s.Reveal() != "hunter2" || out.String() != "Password: \n" {
		t.Fatalf("unexpected secret or transcript %q", out.String())
	}

	c.readPassword = func(int) ([]byte, error) { return nil, io.ErrUnexpectedEOF }
	if _, err := c.ReadSecret("Password: "); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected wrapped read error, got %v", err)
	}
}

func TestStatusLinesArePlainOffTerminal(t *testing.T) {
	var out bytes.Buffer
	c := New(strings.NewReader(""), &out)
	c.Banner("Enumerate")
	c.Notice("note %d", 1)
	c.Failure("failed: %s", "x")
	c.Success("done")
	c.Printf("plain\n")

	want := "\n=== Enumerate ===\nnote 1\nfailed: x\ndone\nplain\n"
	if out.String() != want {
		t.Fatalf("transcript = %q, want %q", out.String(), want)
	}
}

func TestBoundReadLineReadsNormally(t *testing.T) {
	var out bytes.Buffer
	c := New(strings.NewReader("yes\nno\n"), &out)
	c.BindContext(context.Background())

	for _, want := range []string{"yes", "no"} {
		got, err := c.ReadLine("> ")
		if err != nil || got != want {
			t.Fatalf("ReadLine() = %q, %v, want %q", got, err, want)
		}
	}
	if _, err := c.ReadLine("> "); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestCancelInterruptsBlockedReadLine(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	var out bytes.Buffer
	c := New(pr, &out)
	ctx, cancel := context.WithCancel(context.Background())
	c.BindContext(ctx)

	errc := make(chan error, 1)
	go func() {
		_, err := c.ReadLine("Proceed? ")
		errc <- err
	}()
	cancel()

	select {
	case err := <-errc:
		if !errors.Is(err, ErrInterrupted) {
			t.Fatalf("expected ErrInterrupted, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("ReadLine still blocked after cancel")
	}

	if _, err := c.ReadLine("again? "); !errors.Is(err, ErrInterrupted) {
		t.Fatalf("read after cancel = %v, want ErrInterrupted", err)
	}
}

func TestCancelInterruptsMaskedRead(t *testing.T) {
	var out bytes.Buffer
	c := New(strings.NewReader(""), &out)
	c.secretFD = 7
	release := make(chan struct{})
	defer close(release)
	c.readPassword = func(int) ([]byte, error) {
		<-release
		return []byte("late"), nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.BindContext(ctx)

	errc := make(chan error, 1)
	go func() {
		_, err := c.ReadSecret("Password: ")
		errc <- err
	}()
	cancel()

	select {
	case err := <-errc:
		if !errors.Is(err, ErrInterrupted) {
			t.Fatalf("expected ErrInterrupted, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("ReadSecret still blocked after cancel")
	}
}
