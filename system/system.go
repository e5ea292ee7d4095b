package system

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// Usage is a point-in-time reading of host resources.
type Usage struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	UptimeSeconds uint64  `json:"uptime_seconds"`
}

// GetCPUUsage returns the current CPU usage as a percentage
func GetCPUUsage(ctx context.Context) (float64, error) {
	percentages, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, err
	}
	if len(percentages) == 0 {
		return 0, fmt.Errorf("could not get CPU usage")
	}
	return percentages[0], nil
}

// GetMemoryUsage returns the current memory usage as a percentage
func GetMemoryUsage(ctx context.Context) (float64, error) {
	virtualMem, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return virtualMem.UsedPercent, nil
}

// Read collects CPU, memory and uptime. It fails on the first reading that
// cannot be taken.
func Read(ctx context.Context) (Usage, error) {
	var u Usage
	var err error
	if u.CPUPercent, err = GetCPUUsage(ctx); err != nil {
		return u, fmt.Errorf("cpu: %w", err)
	}
	if u.MemoryPercent, err = GetMemoryUsage(ctx); err != nil {
		return u, fmt.Errorf("memory: %w", err)
	}
	if u.UptimeSeconds, err = host.UptimeWithContext(ctx); err != nil {
		return u, fmt.Errorf("uptime: %w", err)
	}
	return u, nil
}
