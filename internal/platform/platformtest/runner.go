// Package platformtest provides a scripted platform.Runner for tests.
package platformtest

import (
	"context"
	"strings"
	"sync"

	"github.com/breeze-rmm/remediate/internal/platform"
)

// Response is the canned outcome for a command line.
type Response struct {
	Result platform.Result
	Err    error
}

// Runner answers commands from a table keyed by the rendered command line
// (platform.Command.String()). Unknown commands succeed with empty output.
type Runner struct {
	mu        sync.Mutex
	responses map[string]Response
	calls     []platform.Command
}

func NewRunner() *Runner {
	return &Runner{responses: make(map[string]Response)}
}

// On registers stdout for a successful command.
func (r *Runner) On(cmdline, stdout string) *Runner {
	return r.Respond(cmdline, Response{Result: platform.Result{Stdout: stdout}})
}

// Fail registers a failing command.
func (r *Runner) Fail(cmdline string, exitCode int, output string, err error) *Runner {
	return r.Respond(cmdline, Response{
		Result: platform.Result{Stdout: output, ExitCode: exitCode},
		Err:    err,
	})
}

func (r *Runner) Respond(cmdline string, resp Response) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[cmdline] = resp
	return r
}

func (r *Runner) Run(ctx context.Context, cmd platform.Command) (platform.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, cmd)
	resp, ok := r.responses[cmd.String()]
	if !ok {
		return platform.Result{}, nil
	}
	return resp.Result, resp.Err
}

// Calls returns every command run so far.
func (r *Runner) Calls() []platform.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]platform.Command, len(r.calls))
	copy(out, r.calls)
	return out
}

// CommandLines returns the rendered command lines run so far.
func (r *Runner) CommandLines() []string {
	calls := r.Calls()
	lines := make([]string, 0, len(calls))
	for _, c := range calls {
		lines = append(lines, c.String())
	}
	return lines
}

// Ran reports whether a command line starting with prefix was run.
func (r *Runner) Ran(prefix string) bool {
	for _, line := range r.CommandLines() {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}
