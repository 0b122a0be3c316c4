// Package host собирает сведения об узле через gopsutil.
package host

import (
	"context"
	"log/slog"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/dvbondoy/aitomate/internal/core"
)

// Info содержит снимок состояния узла. Указатели равны nil, если платформа не отдает значение.
type Info struct {
	Platform      string      `json:"platform"`
	System        string      `json:"system"`
	Release       string      `json:"release"`
	Architecture  string      `json:"architecture"`
	Hostname      string      `json:"hostname"`
	CPUCount      *int        `json:"cpu_count"`
	CPUModel      *string     `json:"cpu_model"`
	LoadAvg       *[3]float64 `json:"load_avg"`
	UptimeSeconds *uint64     `json:"uptime_seconds"`
	MemTotal      *uint64     `json:"mem_total"`
	MemUsedPct    *float64    `json:"mem_used_pct"`
	GoVersion     string      `json:"go_version"`
}

// SystemInfo опрашивает ОС. Каждое поле собирается независимо, вызов всегда возвращает ok.
func SystemInfo(ctx context.Context) core.Result[Info] {
	info := Info{
		System:       runtime.GOOS,
		Architecture: runtime.GOARCH,
		GoVersion:    runtime.Version(),
	}

	if h, err := host.InfoWithContext(ctx); err == nil {
		info.Hostname = h.Hostname
		info.Release = h.KernelVersion
		info.Platform = platformString(h)
		if h.KernelArch != "" {
			info.Architecture = h.KernelArch
		}
		if h.Uptime > 0 {
			up := h.Uptime
			info.UptimeSeconds = &up
		}
	} else {
		slog.Debug("host info unavailable", "err", err)
		info.Platform = runtime.GOOS + "-" + runtime.GOARCH
	}

	if n, err := cpu.CountsWithContext(ctx, true); err == nil && n > 0 {
		info.CPUCount = &n
	} else if n := runtime.NumCPU(); n > 0 {
		info.CPUCount = &n
	}

	if cpus, err := cpu.InfoWithContext(ctx); err == nil && len(cpus) > 0 && cpus[0].ModelName != "" {
		model := cpus[0].ModelName
		info.CPUModel = &model
	}

	if ld, err := load.AvgWithContext(ctx); err == nil {
		info.LoadAvg = &[3]float64{ld.Load1, ld.Load5, ld.Load15}
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		total, pct := vm.Total, vm.UsedPercent
		info.MemTotal = &total
		info.MemUsedPct = &pct
	}

	return core.OK(info)
}

func platformString(h *host.InfoStat) string {
	s := h.OS
	if h.Platform != "" {
		s += "-" + h.Platform
	}
	if h.PlatformVersion != "" {
		s += "-" + h.PlatformVersion
	}
	if h.KernelArch != "" {
		s += "-" + h.KernelArch
	}
	return s
}

// Module предоставляет сведения об узле.
type Module struct{}

func (m *Module) Name() string { return "host" }

func (m *Module) Commands() []string { return []string{"info"} }

func (m *Module) Init(context.Context) error { return nil }

func (m *Module) Execute(ctx context.Context, cmd string, args core.Args) (core.Response, error) {
	switch cmd {
	case "info":
		return SystemInfo(ctx).Response(), nil
	default:
		return core.UnknownCommand(m.Name(), cmd)
	}
}
