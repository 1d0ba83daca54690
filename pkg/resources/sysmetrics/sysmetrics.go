// Package sysmetrics provides a Resource reporting host CPU, memory, load,
// uptime and disk usage through gopsutil.
package sysmetrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
)

// Sample is one reading of the host.
type Sample struct {
	CPUPercent  float64       `json:"cpu_percent"`
	CPUCount    int           `json:"cpu_count"`
	MemTotal    uint64        `json:"mem_total"`
	MemUsed     uint64        `json:"mem_used"`
	MemPercent  float64       `json:"mem_percent"`
	Load1       float64       `json:"load1"`
	Load5       float64       `json:"load5"`
	Load15      float64       `json:"load15"`
	Uptime      time.Duration `json:"uptime"`
	Disks       []Disk        `json:"disks,omitempty"`
	CollectedAt time.Time     `json:"collected_at"`
}

// Disk is usage for one mount point.
type Disk struct {
	Path        string  `json:"path"`
	Total       uint64  `json:"total"`
	Used        uint64  `json:"used"`
	UsedPercent float64 `json:"used_percent"`
}

// Source reads raw host statistics. The gopsutil implementation is used
// unless a test supplies its own.
type Source interface {
	CPU(ctx context.Context) (percent float64, count int, err error)
	Memory(ctx context.Context) (*mem.VirtualMemoryStat, error)
	Load(ctx context.Context) (*load.AvgStat, error)
	Uptime(ctx context.Context) (uint64, error)
	Disk(ctx context.Context, path string) (*disk.UsageStat, error)
}

// Resource samples the host on every fetch.
type Resource struct {
	name   string
	mounts []string
	src    Source
	now    func() time.Time
}

// Option configures a Resource.
type Option func(*Resource)

// WithSource replaces the gopsutil source.
func WithSource(s Source) Option {
	return func(r *Resource) { r.src = s }
}

// WithMounts sets the mount points whose usage is reported. Defaults to "/".
func WithMounts(paths ...string) Option {
	return func(r *Resource) { r.mounts = paths }
}

// New returns a sysmetrics resource. An empty name defaults to "system".
func New(name string, opts ...Option) *Resource {
	if name == "" {
		name = "system"
	}
	r := &Resource{
		name:   name,
		mounts: []string{"/"},
		src:    gopsutilSource{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name returns the resource name.
func (r *Resource) Name() string { return r.name }

// Fetch takes a Sample. Individual probes may fail without failing the
// fetch; it is an error only when every probe failed.
func (r *Resource) Fetch(ctx context.Context) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := Sample{CollectedAt: r.now()}
	var errs []error

	if pct, n, err := r.src.CPU(ctx); err != nil {
		errs = append(errs, fmt.Errorf("cpu: %w", err))
	} else {
		s.CPUPercent, s.CPUCount = pct, n
	}

	if vm, err := r.src.Memory(ctx); err != nil {
		errs = append(errs, fmt.Errorf("memory: %w", err))
	} else {
		s.MemTotal, s.MemUsed, s.MemPercent = vm.Total, vm.Used, vm.UsedPercent
	}

	if avg, err := r.src.Load(ctx); err != nil {
		errs = append(errs, fmt.Errorf("load: %w", err))
	} else {
		s.Load1, s.Load5, s.Load15 = avg.Load1, avg.Load5, avg.Load15
	}

	if secs, err := r.src.Uptime(ctx); err != nil {
		errs = append(errs, fmt.Errorf("uptime: %w", err))
	} else {
		s.Uptime = time.Duration(secs) * time.Second
	}

	diskFailures := 0
	for _, p := range r.mounts {
		u, err := r.src.Disk(ctx, p)
		if err != nil {
			diskFailures++
			continue
		}
		s.Disks = append(s.Disks, Disk{Path: u.Path, Total: u.Total, Used: u.Used, UsedPercent: u.UsedPercent})
	}
	if len(r.mounts) > 0 && diskFailures == len(r.mounts) {
		errs = append(errs, errors.New("disk: no mount readable"))
	}

	probes := 4
	if len(r.mounts) > 0 {
		probes++
	}
	if len(errs) == probes {
		return nil, fmt.Errorf("sysmetrics: all probes failed: %w", errors.Join(errs...))
	}
	return s, nil
}

type gopsutilSource struct{}

func (gopsutilSource) CPU(ctx context.Context) (float64, int, error) {
	total, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, 0, err
	}
	n, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return 0, 0, err
	}
	if len(total) == 0 {
		return 0, n, nil
	}
	return total[0], n, nil
}

func (gopsutilSource) Memory(ctx context.Context) (*mem.VirtualMemoryStat, error) {
	return mem.VirtualMemoryWithContext(ctx)
}

func (gopsutilSource) Load(ctx context.Context) (*load.AvgStat, error) {
	return load.AvgWithContext(ctx)
}

func (gopsutilSource) Uptime(ctx context.Context) (uint64, error) {
	return host.UptimeWithContext(ctx)
}

func (gopsutilSource) Disk(ctx context.Context, path string) (*disk.UsageStat, error) {
	return disk.UsageWithContext(ctx, path)
}
