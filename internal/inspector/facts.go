package inspector

import (
	"context"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	psnet "github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

// DiskUsage is one mounted filesystem.
type DiskUsage struct {
	MountPoint  string
	Device      string
	FSType      string
	TotalGB     float64
	UsedGB      float64
	UsedPercent float64
}

// Listener is a socket accepting connections or datagrams.
type Listener struct {
	Protocol string
	Address  string
	Port     uint32
	Pid      int32
	Process  string
}

// ProcessInfo is a running process and its start time.
type ProcessInfo struct {
	Pid     int32
	Name    string
	Started time.Time
}

// Facts is the structured host data behind the reports.
type Facts interface {
	Host(ctx context.Context) (*host.InfoStat, error)
	Memory(ctx context.Context) (*mem.VirtualMemoryStat, error)
	Disks(ctx context.Context) ([]DiskUsage, error)
	Listeners(ctx context.Context) ([]Listener, error)
	Processes(ctx context.Context) ([]ProcessInfo, error)
}

// gopsutilFacts reads Facts from the live host.
type gopsutilFacts struct{}

func (gopsutilFacts) Host(ctx context.Context) (*host.InfoStat, error) {
	return host.InfoWithContext(ctx)
}

func (gopsutilFacts) Memory(ctx context.Context) (*mem.VirtualMemoryStat, error) {
	return mem.VirtualMemoryWithContext(ctx)
}

func (gopsutilFacts) Disks(ctx context.Context) ([]DiskUsage, error) {
	partitions, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return nil, err
	}

	var disks []DiskUsage
	seen := make(map[string]bool)

	for _, partition := range partitions {
		// Skip duplicates and special filesystems
		if seen[partition.Mountpoint] || partition.Mountpoint == "" {
			continue
		}
		if strings.HasPrefix(partition.Fstype, "squashfs") ||
			strings.HasPrefix(partition.Fstype, "tmpfs") ||
			strings.HasPrefix(partition.Fstype, "devfs") {
			continue
		}

		usage, err := disk.UsageWithContext(ctx, partition.Mountpoint)
		if err != nil {
			continue
		}
		seen[partition.Mountpoint] = true

		disks = append(disks, DiskUsage{
			MountPoint:  partition.Mountpoint,
			Device:      partition.Device,
			FSType:      partition.Fstype,
			TotalGB:     float64(usage.Total) / 1024 / 1024 / 1024,
			UsedGB:      float64(usage.Used) / 1024 / 1024 / 1024,
			UsedPercent: usage.UsedPercent,
		})
	}
	return disks, nil
}

func (gopsutilFacts) Listeners(ctx context.Context) ([]Listener, error) {
	conns, err := psnet.ConnectionsWithContext(ctx, "inet")
	if err != nil {
		return nil, err
	}

	var listeners []Listener
	processCache := make(map[int32]string)

	for _, conn := range conns {
		proto := protocolName(conn.Type, conn.Family)
		listening := conn.Status == "LISTEN" || (strings.HasPrefix(proto, "udp") && conn.Raddr.IP == "")
		if !listening {
			continue
		}

		name := ""
		if conn.Pid > 0 {
			if cached, ok := processCache[conn.Pid]; ok {
				name = cached
			} else if proc, err := process.NewProcessWithContext(ctx, conn.Pid); err == nil {
				if n, err := proc.NameWithContext(ctx); err == nil {
					name = n
					processCache[conn.Pid] = n
				}
			}
		}

		listeners = append(listeners, Listener{
			Protocol: proto,
			Address:  conn.Laddr.IP,
			Port:     conn.Laddr.Port,
			Pid:      conn.Pid,
			Process:  name,
		})
	}
	return listeners, nil
}

func (gopsutilFacts) Processes(ctx context.Context) ([]ProcessInfo, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	infos := make([]ProcessInfo, 0, len(procs))
	for _, p := range procs {
		created, err := p.CreateTimeWithContext(ctx)
		if err != nil {
			continue
		}
		name, _ := p.NameWithContext(ctx)
		infos = append(infos, ProcessInfo{
			Pid:     p.Pid,
			Name:    name,
			Started: time.UnixMilli(created),
		})
	}
	return infos, nil
}

// protocolName maps socket type and address family to tcp/udp(6).
// AF_INET is 2 on every supported OS; anything else is treated as IPv6.
func protocolName(sockType, family uint32) string {
	var proto string
	switch sockType {
	case 1:
		proto = "tcp"
	case 2:
		proto = "udp"
	default:
		return "unknown"
	}
	if family != 2 {
		proto += "6"
	}
	return proto
}
