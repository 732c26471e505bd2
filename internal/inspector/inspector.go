// Package inspector produces the read-only status reports shown during the
// Enumerate, PortFlag and Baseline phases. Reports are plain text; nothing
// here changes host state except the Windows integrity repair tools run by
// the baseline report.
package inspector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/breeze-rmm/remediate/internal/logging"
	"github.com/breeze-rmm/remediate/internal/platform"
)

var log = logging.L("inspector")

// recentWindow is how far back the baseline report looks for new processes.
const recentWindow = 5 * time.Minute

// Report selects a set of sections.
type Report int

const (
	Enumerate Report = iota
	Ports
	Baseline
)

func (r Report) String() string {
	switch r {
	case Enumerate:
		return "enumerate"
	case Ports:
		return "ports"
	case Baseline:
		return "baseline"
	default:
		return fmt.Sprintf("Report(%d)", int(r))
	}
}

// Section is one titled block of a report. Body may be non-empty even when
// Err is set, e.g. an integrity checker that lists findings and exits 1.
type Section struct {
	Title string
	Body  string
	Err   error
}

type collector struct {
	title string
	fn    func(ctx context.Context) (string, error)
}

// Inspector gathers report sections for one host.
type Inspector struct {
	profile platform.Profile
	runner  platform.Runner
	facts   Facts
	root    string
	now     func() time.Time
}

// New returns an Inspector that reads structured facts with gopsutil and
// runs OS tools through runner.
func New(profile platform.Profile, runner platform.Runner) *Inspector {
	return &Inspector{
		profile: profile,
		runner:  runner,
		facts:   gopsutilFacts{},
		root:    "/",
		now:     time.Now,
	}
}

// Collect runs every section of report. A failing section is returned with
// its error and does not stop the others.
func (i *Inspector) Collect(ctx context.Context, report Report) []Section {
	collectors := i.collectors(report)
	sections := make([]Section, 0, len(collectors))
	for _, c := range collectors {
		body, err := c.fn(ctx)
		if err != nil {
			log.Warn("report section failed", "report", report.String(), "section", c.title, logging.KeyError, err)
		}
		sections = append(sections, Section{
			Title: c.title,
			Body:  strings.TrimRight(body, "\r\n "),
			Err:   err,
		})
	}
	return sections
}

func (i *Inspector) collectors(report Report) []collector {
	switch report {
	case Enumerate:
		cs := []collector{
			{"Host", i.hostSummary},
			{"Disk usage", i.diskSummary},
			{"Listening sockets", i.listenerTable},
			{"Processes", i.processSummary},
		}
		return append(cs, i.enumerateTools()...)
	case Ports:
		return []collector{
			{"Listening sockets", i.listenerTable},
			i.firewallRules(),
		}
	case Baseline:
		cs := i.integrityChecks()
		return append(cs,
			collector{"Processes started in the last 5 minutes", i.recentProcesses},
			i.recentLog(),
		)
	}
	return nil
}

func (i *Inspector) enumerateTools() []collector {
	if i.profile == platform.Windows {
		return []collector{
			i.tool("System information", "systeminfo"),
			i.tool("Local accounts", "net", "user"),
			i.tool("Local groups", "net", "localgroup"),
			i.tool("Shares", "net", "share"),
			i.tool("Scheduled tasks", "schtasks", "/query", "/fo", "TABLE"),
			i.tool("Non-default packages", "powershell", "-NoProfile", "-NonInteractive", "-Command", "Get-InstalledModule"),
		}
	}
	return []collector{
		i.tool("Kernel", "uname", "-a"),
		i.tool("OS release", "cat", "/etc/os-release"),
		{"Installed packages", i.packageDump},
		{"Non-default packages", i.manualPackages},
		i.tool("Block devices", "lsblk"),
		i.tool("Accounts", "cat", "/etc/passwd"),
		i.tool("Groups", "cat", "/etc/group"),
		i.tool("Scheduled tasks", "crontab", "-l"),
	}
}

func (i *Inspector) firewallRules() collector {
	if i.profile == platform.Windows {
		return i.tool("Firewall rules", "netsh", "advfirewall", "firewall", "show", "rule", "name=all")
	}
	return i.tool("Firewall rules", "iptables", "-L", "-n")
}

func (i *Inspector) integrityChecks() []collector {
	if i.profile == platform.Windows {
		return []collector{
			i.tool("System file check", "sfc", "/scannow"),
			i.tool("Component store repair", "DISM", "/Online", "/Cleanup-Image", "/RestoreHealth"),
		}
	}
	return []collector{{"Package integrity", i.packageIntegrity}}
}

func (i *Inspector) recentLog() collector {
	if i.profile == platform.Windows {
		return i.tool("Recent security events", "wevtutil", "qe", "Security", "/c:20", "/rd:true", "/f:text")
	}
	return i.tool("Recent journal", "journalctl", "-xe", "--no-pager", "-n", "20")
}

func (i *Inspector) packageDump(ctx context.Context) (string, error) {
	switch platform.DetectFamily(i.root) {
	case platform.FamilyDebian:
		return i.runTool(ctx, "dpkg", "-l")
	case platform.FamilyRedHat:
		return i.runTool(ctx, "rpm", "-qa")
	default:
		return "", fmt.Errorf("package listing: %w: unknown distribution family", platform.ErrToolUnavailable)
	}
}

// manualPackages lists what an operator installed on top of the base
// system, as opposed to packages pulled in as dependencies.
func (i *Inspector) manualPackages(ctx context.Context) (string, error) {
	switch platform.DetectFamily(i.root) {
	case platform.FamilyDebian:
		return i.runTool(ctx, "apt-mark", "showmanual")
	case platform.FamilyRedHat:
		return i.runTool(ctx, "dnf", "repoquery", "--userinstalled")
	default:
		return "", fmt.Errorf("manual package listing: %w: unknown distribution family", platform.ErrToolUnavailable)
	}
}

func (i *Inspector) packageIntegrity(ctx context.Context) (string, error) {
	switch platform.DetectFamily(i.root) {
	case platform.FamilyDebian:
		return i.runTool(ctx, "debsums", "-c")
	case platform.FamilyRedHat:
		return i.runTool(ctx, "rpm", "-Va")
	default:
		return "", fmt.Errorf("integrity check: %w: unknown distribution family", platform.ErrToolUnavailable)
	}
}

func (i *Inspector) tool(title, name string, args ...string) collector {
	return collector{title: title, fn: func(ctx context.Context) (string, error) {
		return i.runTool(ctx, name, args...)
	}}
}

// runTool returns a tool's stdout. Checkers such as debsums and rpm -Va exit
// non-zero when they find something; their findings are kept as the body
// and the error is reduced to the exit status.
func (i *Inspector) runTool(ctx context.Context, name string, args ...string) (string, error) {
	res, err := i.runner.Run(ctx, platform.Command{Name: name, Args: args})
	if err == nil {
		return res.Stdout, nil
	}
	if errors.Is(err, platform.ErrToolUnavailable) || errors.Is(err, platform.ErrPermissionDenied) {
		return "", err
	}
	if strings.TrimSpace(res.Stdout) != "" {
		return res.Stdout, fmt.Errorf("%s exited with status %d", name, res.ExitCode)
	}
	return "", err
}

func (i *Inspector) hostSummary(ctx context.Context) (string, error) {
	info, err := i.facts.Host(ctx)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Hostname:  %s\n", info.Hostname)
	fmt.Fprintf(&b, "OS:        %s %s %s\n", info.OS, info.Platform, info.PlatformVersion)
	if info.PlatformFamily != "" {
		fmt.Fprintf(&b, "Family:    %s\n", info.PlatformFamily)
	}
	fmt.Fprintf(&b, "Kernel:    %s %s\n", info.KernelVersion, info.KernelArch)
	if vm, err := i.facts.Memory(ctx); err == nil && vm != nil {
		fmt.Fprintf(&b, "Memory:    %.1fG total, %.0f%% used\n", float64(vm.Total)/1024/1024/1024, vm.UsedPercent)
	}
	fmt.Fprintf(&b, "Uptime:    %s\n", (time.Duration(info.Uptime) * time.Second).String())
	fmt.Fprintf(&b, "Processes: %d\n", info.Procs)
	return b.String(), nil
}

func (i *Inspector) diskSummary(ctx context.Context) (string, error) {
	disks, err := i.facts.Disks(ctx)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MOUNT\tDEVICE\tFS\tSIZE\tUSED\tUSE%")
	for _, d := range disks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.1fG\t%.1fG\t%.0f%%\n", d.MountPoint, d.Device, d.FSType, d.TotalGB, d.UsedGB, d.UsedPercent)
	}
	tw.Flush()
	return b.String(), nil
}

func (i *Inspector) listenerTable(ctx context.Context) (string, error) {
	listeners, err := i.facts.Listeners(ctx)
	if err != nil {
		return "", err
	}
	sort.Slice(listeners, func(a, b int) bool {
		if listeners[a].Port != listeners[b].Port {
			return listeners[a].Port < listeners[b].Port
		}
		return listeners[a].Protocol < listeners[b].Protocol
	})

	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PROTO\tLOCAL ADDRESS\tPID\tPROCESS")
	for _, l := range listeners {
		fmt.Fprintf(tw, "%s\t%s:%d\t%d\t%s\n", l.Protocol, l.Address, l.Port, l.Pid, l.Process)
	}
	tw.Flush()
	return b.String(), nil
}

func (i *Inspector) processSummary(ctx context.Context) (string, error) {
	procs, err := i.facts.Processes(ctx)
	if err != nil {
		return "", err
	}
	sort.Slice(procs, func(a, b int) bool { return procs[a].Pid < procs[b].Pid })

	var b strings.Builder
	fmt.Fprintf(&b, "%d processes running\n\n", len(procs))
	b.WriteString(processTable(procs))
	return b.String(), nil
}

func (i *Inspector) recentProcesses(ctx context.Context) (string, error) {
	procs, err := i.facts.Processes(ctx)
	if err != nil {
		return "", err
	}
	cutoff := i.now().Add(-recentWindow)

	var recent []ProcessInfo
	for _, p := range procs {
		if p.Started.After(cutoff) {
			recent = append(recent, p)
		}
	}
	if len(recent) == 0 {
		return "none", nil
	}
	sort.Slice(recent, func(a, b int) bool { return recent[a].Started.Before(recent[b].Started) })

	return processTable(recent), nil
}

func processTable(procs []ProcessInfo) string {
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PID\tNAME\tSTARTED")
	for _, p := range procs {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", p.Pid, p.Name, p.Started.Format(time.DateTime))
	}
	tw.Flush()
	return b.String()
}
