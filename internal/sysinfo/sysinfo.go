// Package sysinfo reports host and process resources for the dashboard.
package sysinfo

import (
	"bufio"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

const gb = 1024 * 1024 * 1024

// Metrics is a point-in-time view of the host and this process
type Metrics struct {
	CPUCount      int     `json:"cpu_count"`
	MemoryTotalGB float64 `json:"memory_total_gb,omitempty"`
	MemoryUsedGB  float64 `json:"memory_used_gb,omitempty"`
	MemoryFreeGB  float64 `json:"memory_free_gb,omitempty"`

	Goroutines  int     `json:"goroutines"`
	HeapAllocMB float64 `json:"heap_alloc_mb"`
	Uptime      string  `json:"uptime"`

	DatabaseSizeMB float64 `json:"database_size_mb,omitempty"`
}

var started = time.Now()

// Collect gathers metrics. dbPath is the SQLite file, empty to skip it.
// Host memory is only available where /proc/meminfo exists; its absence is
// not an error.
func Collect(dbPath string) (Metrics, error) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	metrics := Metrics{
		CPUCount:    runtime.NumCPU(),
		Goroutines:  runtime.NumGoroutine(),
		HeapAllocMB: float64(ms.HeapAlloc) / (1024 * 1024),
		Uptime:      time.Since(started).Round(time.Second).String(),
	}

	if err := readMemInfo("/proc/meminfo", &metrics); err != nil && !os.IsNotExist(err) {
		return metrics, fmt.Errorf("failed to get memory info: %w", err)
	}

	if dbPath != "" {
		size, err := databaseSize(dbPath)
		if err != nil {
			return metrics, fmt.Errorf("failed to get database size: %w", err)
		}
		metrics.DatabaseSizeMB = float64(size) / (1024 * 1024)
	}

	return metrics, nil
}

// readMemInfo parses a /proc/meminfo style file
func readMemInfo(path string, metrics *Metrics) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	var memTotal, memAvailable float64
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		value, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			continue
		}

		switch {
		case strings.HasPrefix(line, "MemTotal:"):
			memTotal = value * 1024 / gb // KB
		case strings.HasPrefix(line, "MemAvailable:"):
			memAvailable = value * 1024 / gb
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading %s: %w", path, err)
	}

	metrics.MemoryTotalGB = memTotal
	metrics.MemoryFreeGB = memAvailable
	metrics.MemoryUsedGB = memTotal - memAvailable
	return nil
}

// databaseSize sums the SQLite file and its WAL. In-memory DSNs report zero.
func databaseSize(path string) (int64, error) {
	if strings.HasPrefix(path, "file:") || path == ":memory:" {
		return 0, nil
	}

	var total int64
	for _, p := range []string{path, path + "-wal"} {
		info, err := os.Stat(p)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return 0, err
		}
		total += info.Size()
	}
	return total, nil
}
