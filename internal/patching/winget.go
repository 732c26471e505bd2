package patching

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/breeze-rmm/remediate/internal/platform"
)

// validWingetPkgID accepts winget IDs such as "Mozilla.Firefox" and
// "Notepad++.Notepad++". MSIX and ARP entries ("MSIX\...", "ARP\Machine\...")
// fail it and are not upgradable.
var validWingetPkgID = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._+\-]{0,255}$`)

// cellWidth measures terminal cells the way winget pads its tables. Ambiguous
// characters such as '…' take one cell regardless of the local locale.
var cellWidth = func() *runewidth.Condition {
	c := runewidth.NewCondition()
	c.EastAsianWidth = false
	return c
}()

var wingetCommonArgs = []string{"--accept-source-agreements", "--disable-interactivity"}

// WingetProvider integrates with Windows Package Manager (winget).
type WingetProvider struct {
	runner platform.Runner
}

func NewWingetProvider(runner platform.Runner) *WingetProvider {
	return &WingetProvider{runner: runner}
}

func (w *WingetProvider) ID() string {
	return "winget"
}

func (w *WingetProvider) Name() string {
	return "Windows Package Manager"
}

// GetInstalled lists packages winget knows how to upgrade.
func (w *WingetProvider) GetInstalled(ctx context.Context) ([]Package, error) {
	res, err := w.runner.Run(ctx, platform.Command{
		Name: "winget",
		Args: append([]string{"list"}, wingetCommonArgs...),
	})
	// winget exits non-zero for some benign conditions while still printing
	// the table, so only fail when nothing usable came back.
	if err != nil && (strings.TrimSpace(res.Stdout) == "" || isClassified(err)) {
		return nil, err
	}
	pkgs, skipped := parseWingetListOutput(res.Stdout)
	reportSkipped(skipped)
	return pkgs, nil
}

// reportSkipped logs rows winget listed without an ID it can upgrade. Store
// and ARP registrations are expected; anything else is worth a warning.
func reportSkipped(skipped []string) {
	var unexpected []string
	for _, entry := range skipped {
		if strings.HasPrefix(entry, "MSIX\\") || strings.HasPrefix(entry, "ARP\\") {
			continue
		}
		unexpected = append(unexpected, entry)
	}
	if len(skipped) > len(unexpected) {
		log.Debug("winget entries not upgradable by ID", "count", len(skipped)-len(unexpected))
	}
	if len(unexpected) > 0 {
		log.Warn("winget entries skipped, ID not recognized", "count", len(unexpected), "entries", unexpected)
	}
}

// Upgrade upgrades a package by winget ID. A package that is already
// current is reported as a successful no-op.
func (w *WingetProvider) Upgrade(ctx context.Context, packageID string) (InstallResult, error) {
	if !validWingetPkgID.MatchString(packageID) {
		return InstallResult{}, fmt.Errorf("invalid winget package ID: %q", packageID)
	}

	args := []string{
		"upgrade",
		"--exact",
		"--id", packageID,
		"--silent",
		"--accept-package-agreements",
	}
	res, err := w.runner.Run(ctx, platform.Command{Name: "winget", Args: append(args, wingetCommonArgs...)})
	combined := res.Combined()
	if err != nil {
		if !isClassified(err) && isNoUpgradeMessage(combined) {
			return InstallResult{PackageID: packageID, Message: "already up to date"}, nil
		}
		return InstallResult{}, err
	}

	result := InstallResult{
		PackageID: packageID,
		Message:   lastLine(combined),
	}
	if isNoUpgradeMessage(combined) {
		result.Message = "already up to date"
	}

	// winget signals reboot requirement in output
	result.RebootRequired = mentionsReboot(combined)
	return result, nil
}

func isClassified(err error) bool {
	return errors.Is(err, platform.ErrToolUnavailable) || errors.Is(err, platform.ErrPermissionDenied)
}

func isNoUpgradeMessage(output string) bool {
	lower := strings.ToLower(output)
	return strings.Contains(lower, "no available upgrade found") ||
		strings.Contains(lower, "no applicable upgrade found") ||
		strings.Contains(lower, "no newer package versions are available")
}

// parseWingetListOutput parses `winget list` table output. Rows whose Id
// cell is not an upgradable winget ID are returned as skipped, rendered as
// "id (name)".
//
//	Name            Id                  Version   Source
//	----------------------------------------------------
//	Mozilla Firefox Mozilla.Firefox     128.0     winget
func parseWingetListOutput(output string) (installed []Package, skipped []string) {
	output = stripProgressResidue(output)
	layout := parseTableHeader(output)
	if layout == nil {
		return nil, nil
	}

	scanner := bufio.NewScanner(strings.NewReader(output))
	pastRule := false

	for scanner.Scan() {
		line := scanner.Text()

		if !pastRule {
			pastRule = isRuleLine(line)
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		name, id, version := layout.split(line)
		if id == "" && name == "" {
			continue
		}
		if !validWingetPkgID.MatchString(id) {
			skipped = append(skipped, fmt.Sprintf("%s (%s)", id, name))
			continue
		}
		if name == "" {
			name = id
		}
		installed = append(installed, Package{ID: id, Name: name, Version: version})
	}
	return installed, skipped
}

// stripProgressResidue drops the spinner frames winget writes before the
// table. Each frame ends in '\r', so only the text after the last one on a
// line is real.
func stripProgressResidue(output string) string {
	lines := strings.Split(output, "\n")
	for i, line := range lines {
		line = strings.TrimRight(line, "\r")
		if idx := strings.LastIndexByte(line, '\r'); idx >= 0 {
			line = line[idx+1:]
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}

// tableLayout holds the cell columns where Id and Version start. winget pads
// every row to the same display width, so columns are counted in terminal
// cells, not bytes: a name holding '…' or '™' is longer in bytes than on
// screen.
type tableLayout struct {
	id      int
	version int
}

// parseTableHeader finds the "Name Id Version" header line.
func parseTableHeader(output string) *tableLayout {
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Fields(line)
		if len(fields) < 3 || fields[0] != "Name" || fields[1] != "Id" || fields[2] != "Version" {
			continue
		}
		idAt := strings.Index(line, " Id ") + 1
		versionAt := strings.Index(line, " Version") + 1
		if idAt <= 0 || versionAt <= idAt {
			continue
		}
		return &tableLayout{
			id:      cellWidth.StringWidth(line[:idAt]),
			version: cellWidth.StringWidth(line[:versionAt]),
		}
	}
	return nil
}

// isRuleLine reports the dashed rule under the header.
func isRuleLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	return len(trimmed) >= 10 && strings.Trim(trimmed, "-") == ""
}

// split cuts a data row into its Name, Id and Version cells. The Version
// cell keeps only its first token; Available and Source follow it.
func (l *tableLayout) split(line string) (name, id, version string) {
	idAt, versionAt := byteOffset(line, l.id), byteOffset(line, l.version)
	name = strings.TrimSpace(line[:idAt])
	id = strings.TrimSpace(line[idAt:versionAt])

	fields := strings.Fields(line[versionAt:])
	switch {
	case len(fields) == 0:
	case fields[0] == "<" && len(fields) > 1:
		// Unknown versions render as "< 1.2.3".
		version = "< " + fields[1]
	default:
		version = fields[0]
	}
	return name, id, version
}

// byteOffset returns the byte index in line where display column col
// starts, or len(line) when the line is narrower. A wide rune straddling col
// stays in the cell on its left.
func byteOffset(line string, col int) int {
	width := 0
	for i, r := range line {
		if width >= col {
			return i
		}
		width += cellWidth.RuneWidth(r)
	}
	return len(line)
}
