package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemMetrics is a snapshot of host resource usage, so an operator can
// tell "the box is overloaded" apart from "a decoder died". main.go logs it
// when the load status is not ok; it is not part of the status snapshot.
type SystemMetrics struct {
	CPUCores     int       `json:"cpu_cores"`
	Load1        float64   `json:"load1"`
	Load5        float64   `json:"load5"`
	Load15       float64   `json:"load15"`
	LoadStatus   string    `json:"load_status"` // ok, warning, critical
	MemUsedBytes uint64    `json:"mem_used_bytes"`
	MemTotalBytes uint64   `json:"mem_total_bytes"`
	UptimeSeconds uint64   `json:"uptime_seconds"`
	SampledAt    time.Time `json:"sampled_at"`
}

// ReadSystemMetrics gathers CPU core count, load average, memory, and
// uptime. Load averages come from /proc/loadavg, matching the teacher's own
// parsing; core count and memory come from gopsutil.
func ReadSystemMetrics() (SystemMetrics, error) {
	m := SystemMetrics{SampledAt: time.Now()}

	cpuCores := 0
	if info, err := cpu.Info(); err == nil {
		for _, c := range info {
			cpuCores += int(c.Cores)
		}
	}
	m.CPUCores = cpuCores

	if data, err := os.ReadFile("/proc/loadavg"); err == nil {
		fields := strings.Fields(string(data))
		if len(fields) >= 3 {
			m.Load1, _ = strconv.ParseFloat(fields[0], 64)
			m.Load5, _ = strconv.ParseFloat(fields[1], 64)
			m.Load15, _ = strconv.ParseFloat(fields[2], 64)
		}
	}

	avgLoad := (m.Load1 + m.Load5 + m.Load15) / 3.0
	m.LoadStatus = "ok"
	if cpuCores > 0 {
		if avgLoad >= float64(cpuCores)*2.0 {
			m.LoadStatus = "critical"
		} else if avgLoad >= float64(cpuCores) {
			m.LoadStatus = "warning"
		}
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		m.MemUsedBytes = vm.Used
		m.MemTotalBytes = vm.Total
	}

	if uptime, err := host.Uptime(); err == nil {
		m.UptimeSeconds = uptime
	}

	return m, nil
}
