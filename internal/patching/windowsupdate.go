package patching

import (
	"errors"
	"fmt"
	"strings"

	"github.com/breeze-rmm/remediate/internal/platform"
)

// WindowsUpdateProvider applies pending OS updates through the Windows
// Update Agent. It never reboots the host; RebootRequired is reported instead.
type WindowsUpdateProvider struct{}

func NewWindowsUpdateProvider() *WindowsUpdateProvider {
	return &WindowsUpdateProvider{}
}

func (w *WindowsUpdateProvider) ID() string {
	return "windows-update"
}

func (w *WindowsUpdateProvider) Name() string {
	return "Windows Update"
}

// pendingCriteria selects the updates a bulk "install all" should pick up.
const pendingCriteria = "IsInstalled=0 and Type='Software' and IsHidden=0"

// WUA OperationResultCode values.
const (
	wuResultSucceeded           = 2
	wuResultSucceededWithErrors = 3
)

func wuSucceeded(code int) bool {
	return code == wuResultSucceeded || code == wuResultSucceededWithErrors
}

// E_ACCESSDENIED, returned by WUA when the session lacks an elevated token.
const hresultAccessDenied = 0x80070005

// classifyWUAError maps an access-denied COM failure to
// platform.ErrPermissionDenied. hresult is the failing call's HRESULT, or 0
// when the error carries none.
func classifyWUAError(err error, hresult uint32) error {
	if err == nil || errors.Is(err, platform.ErrPermissionDenied) {
		return err
	}
	lower := strings.ToLower(err.Error())
	if hresult == hresultAccessDenied || strings.Contains(lower, "80070005") || strings.Contains(lower, "access is denied") {
		return fmt.Errorf("windows update: %w: %v", platform.ErrPermissionDenied, err)
	}
	return err
}
