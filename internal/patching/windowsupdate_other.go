//go:build !windows

package patching

import (
	"context"
	"fmt"

	"github.com/breeze-rmm/remediate/internal/platform"
)

func (w *WindowsUpdateProvider) UpdateAll(ctx context.Context) (UpdateResult, error) {
	return UpdateResult{}, fmt.Errorf("windows update: %w", platform.ErrToolUnavailable)
}
