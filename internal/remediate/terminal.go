package remediate

import (
	"context"

	"github.com/breeze-rmm/remediate/internal/inspector"
	"github.com/breeze-rmm/remediate/internal/secmem"
)

// Terminal is the operator's console. ReadLine and ReadSecret return
// io.EOF when input has ended.
type Terminal interface {
	ReadLine(prompt string) (string, error)
	ReadSecret(prompt string) (*secmem.SecureString, error)
	Printf(format string, args ...any)
	Banner(title string)
	Notice(format string, args ...any)
	Failure(format string, args ...any)
	Success(format string, args ...any)
}

// Reporter produces the read-only status reports.
type Reporter interface {
	Collect(ctx context.Context, report inspector.Report) []inspector.Section
}
