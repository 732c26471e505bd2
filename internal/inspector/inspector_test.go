package inspector

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/breeze-rmm/remediate/internal/platform"
	"github.com/breeze-rmm/remediate/internal/platform/platformtest"
)

type fakeFacts struct {
	host      *host.InfoStat
	hostErr   error
	mem       *mem.VirtualMemoryStat
	disks     []DiskUsage
	listeners []Listener
	procs     []ProcessInfo
}

func (f fakeFacts) Host(ctx context.Context) (*host.InfoStat, error) { return f.host, f.hostErr }

func (f fakeFacts) Memory(ctx context.Context) (*mem.VirtualMemoryStat, error) {
	if f.mem == nil {
		return nil, errors.New("no memory info")
	}
	return f.mem, nil
}

func (f fakeFacts) Disks(ctx context.Context) ([]DiskUsage, error) { return f.disks, nil }

func (f fakeFacts) Listeners(ctx context.Context) ([]Listener, error) { return f.listeners, nil }

func (f fakeFacts) Processes(ctx context.Context) ([]ProcessInfo, error) { return f.procs, nil }

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestInspector(t *testing.T, profile platform.Profile, runner platform.Runner, family string) *Inspector {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "etc"), 0755); err != nil {
		t.Fatal(err)
	}
	if family != "" {
		if err := os.WriteFile(filepath.Join(root, "etc", family), []byte("x\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	in := New(profile, runner)
	in.root = root
	in.now = func() time.Time { return testNow }
	in.facts = fakeFacts{
		host: &host.InfoStat{Hostname: "web-01", OS: "linux", Platform: "ubuntu", PlatformVersion: "22.04", KernelVersion: "5.15.0", KernelArch: "x86_64", Uptime: 3600, Procs: 2},
		mem:  &mem.VirtualMemoryStat{Total: 8 * 1024 * 1024 * 1024, UsedPercent: 42},
		disks: []DiskUsage{
			{MountPoint: "/", Device: "/dev/sda1", FSType: "ext4", TotalGB: 40, UsedGB: 10, UsedPercent: 25},
		},
		listeners: []Listener{
			{Protocol: "tcp", Address: "0.0.0.0", Port: 443, Pid: 20, Process: "nginx"},
			{Protocol: "tcp", Address: "0.0.0.0", Port: 22, Pid: 10, Process: "sshd"},
		},
		procs: []ProcessInfo{
			{Pid: 1, Name: "systemd", Started: testNow.Add(-48 * time.Hour)},
			{Pid: 4242, Name: "nc", Started: testNow.Add(-2 * time.Minute)},
		},
	}
	return in
}

func titles(sections []Section) []string {
	out := make([]string, 0, len(sections))
	for _, s := range sections {
		out = append(out, s.Title)
	}
	return out
}

func TestEnumeratePosixSections(t *testing.T) {
	runner := platformtest.NewRunner().
		On("uname -a", "Linux web-01 5.15.0 x86_64 GNU/Linux\n").
		On("dpkg -l", "ii  openssl  3.0.2  amd64  toolkit\n").
		On("apt-mark showmanual", "nginx\nopenssl\n")
	in := newTestInspector(t, platform.Posix, runner, "debian_version")

	sections := in.Collect(context.Background(), Enumerate)
	want := []string{"Host", "Disk usage", "Listening sockets", "Processes", "Kernel", "OS release", "Installed packages", "Non-default packages", "Block devices", "Accounts", "Groups", "Scheduled tasks"}
	if strings.Join(titles(sections), "|") != strings.Join(want, "|") {
		t.Fatalf("titles = %v", titles(sections))
	}
	if !strings.Contains(sections[0].Body, "Hostname:  web-01") || !strings.Contains(sections[0].Body, "Uptime:    1h0m0s") ||
		!strings.Contains(sections[0].Body, "Memory:    8.0G total, 42% used") {
		t.Fatalf("host body = %q", sections[0].Body)
	}
	if !strings.Contains(sections[1].Body, "/dev/sda1") || !strings.Contains(sections[1].Body, "25%") {
		t.Fatalf("disk body = %q", sections[1].Body)
	}
	procBody := sections[3].Body
	if !strings.HasPrefix(procBody, "2 processes running\n") ||
		!strings.Contains(procBody, "systemd") || !strings.Contains(procBody, "4242") ||
		strings.Index(procBody, "systemd") > strings.Index(procBody, "4242") {
		t.Fatalf("process body = %q", procBody)
	}
	if sections[6].Body != "ii  openssl  3.0.2  amd64  toolkit" || sections[6].Err != nil {
		t.Fatalf("package section = %+v", sections[6])
	}
	if sections[7].Body != "nginx\nopenssl" || sections[7].Err != nil {
		t.Fatalf("non-default package section = %+v", sections[7])
	}
	if !runner.Ran("crontab -l") || !runner.Ran("cat /etc/group") {
		t.Fatalf("commands = %v", runner.CommandLines())
	}
}

func TestFailingSectionDoesNotStopReport(t *testing.T) {
	runner := platformtest.NewRunner().
		Fail("crontab -l", 1, "no crontab for root", errors.New("crontab failed: exit status 1: no crontab for root")).
		Fail("lsblk", 127, "", fmt.Errorf("lsblk: %w", platform.ErrToolUnavailable))
	in := newTestInspector(t, platform.Posix, runner, "")
	in.facts = fakeFacts{hostErr: errors.New("no host info")}

	sections := in.Collect(context.Background(), Enumerate)
	if len(sections) != 12 {
		t.Fatalf("expected every section, got %d", len(sections))
	}
	byTitle := make(map[string]Section)
	for _, s := range sections {
		byTitle[s.Title] = s
	}
	if byTitle["Host"].Err == nil {
		t.Fatal("expected host error")
	}
	if !errors.Is(byTitle["Installed packages"].Err, platform.ErrToolUnavailable) {
		t.Fatalf("unknown family should report tool unavailable, got %v", byTitle["Installed packages"].Err)
	}
	if !errors.Is(byTitle["Non-default packages"].Err, platform.ErrToolUnavailable) {
		t.Fatalf("unknown family should report tool unavailable, got %v", byTitle["Non-default packages"].Err)
	}
	if !errors.Is(byTitle["Block devices"].Err, platform.ErrToolUnavailable) {
		t.Fatalf("lsblk err = %v", byTitle["Block devices"].Err)
	}
	if byTitle["Scheduled tasks"].Err == nil {
		t.Fatal("expected crontab error")
	}
}

func TestPortsReport(t *testing.T) {
	runner := platformtest.NewRunner().On("iptables -L -n", "Chain INPUT (policy ACCEPT)\n")
	sections := newTestInspector(t, platform.Posix, runner, "").Collect(context.Background(), Ports)

	if len(sections) != 2 {
		t.Fatalf("sections = %v", titles(sections))
	}
	body := sections[0].Body
	if strings.Index(body, ":22") > strings.Index(body, ":443") {
		t.Fatalf("listeners not sorted by port: %q", body)
	}
	if sections[1].Title != "Firewall rules" || sections[1].Body != "Chain INPUT (policy ACCEPT)" {
		t.Fatalf("firewall section = %+v", sections[1])
	}
}

func TestBaselineKeepsIntegrityFindings(t *testing.T) {
	runner := platformtest.NewRunner().
		Fail("rpm -Va", 1, "S.5....T.  c /etc/ssh/sshd_config\n", errors.New("rpm failed: exit status 1"))
	sections := newTestInspector(t, platform.Posix, runner, "redhat-release").Collect(context.Background(), Baseline)

	want := []string{"Package integrity", "Processes started in the last 5 minutes", "Recent journal"}
	if strings.Join(titles(sections), "|") != strings.Join(want, "|") {
		t.Fatalf("titles = %v", titles(sections))
	}
	if sections[0].Body != "S.5....T.  c /etc/ssh/sshd_config" {
		t.Fatalf("integrity body = %q", sections[0].Body)
	}
	if sections[0].Err == nil || sections[0].Err.Error() != "rpm exited with status 1" {
		t.Fatalf("integrity err = %v", sections[0].Err)
	}
	if !strings.Contains(sections[1].Body, "nc") || strings.Contains(sections[1].Body, "systemd") {
		t.Fatalf("recent processes = %q", sections[1].Body)
	}
	if !runner.Ran("journalctl -xe --no-pager -n 20") {
		t.Fatalf("commands = %v", runner.CommandLines())
	}
}

func TestWindowsReportsUseWindowsTools(t *testing.T) {
	runner := platformtest.NewRunner()
	in := newTestInspector(t, platform.Windows, runner, "")
	ctx := context.Background()

	in.Collect(ctx, Enumerate)
	in.Collect(ctx, Ports)
	in.Collect(ctx, Baseline)

	for _, want := range []string{
		"systeminfo",
		"net localgroup",
		"schtasks /query",
		"powershell -NoProfile -NonInteractive -Command Get-InstalledModule",
		"netsh advfirewall firewall show rule name=all",
		"sfc /scannow",
		"DISM /Online /Cleanup-Image /RestoreHealth",
		"wevtutil qe Security /c:20 /rd:true /f:text",
	} {
		if !runner.Ran(want) {
			t.Errorf("expected %q to run; ran %v", want, runner.CommandLines())
		}
	}
	if runner.Ran("iptables") || runner.Ran("journalctl") {
		t.Fatal("POSIX tools must not run on Windows")
	}
}

func TestProtocolName(t *testing.T) {
	tests := []struct {
		sockType, family uint32
		want             string
	}{
		{1, 2, "tcp"},
		{1, 10, "tcp6"},
		{2, 2, "udp"},
		{2, 23, "udp6"},
		{3, 2, "unknown"},
	}
	for _, tt := range tests {
		if got := protocolName(tt.sockType, tt.family); got != tt.want {
			t.Errorf("protocolName(%d, %d) = %q, want %q", tt.sockType, tt.family, got, tt.want)
		}
	}
}
