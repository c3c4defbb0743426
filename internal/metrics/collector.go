package metrics

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

// Sample holds one metrics snapshot
type Sample struct {
	CPUPercent        float64 // System-wide CPU usage (0-100%)
	ProcessCPUPercent float64 // This process, per core, can exceed 100%
	ProcessRSSMB      float64
	MemoryUsedGB      float64
	MemoryPercent     float64
	Counters          map[string]int64
	Timestamp         time.Time
}

// Collector periodically samples process and system usage together with
// the run's progress counters and logs them
type Collector struct {
	interval time.Duration
	logger   *zap.Logger
	proc     *process.Process

	mu       sync.RWMutex
	counters map[string]func() int64
	last     *Sample
}

// NewCollector creates a new metrics collector
func NewCollector(interval time.Duration, logger *zap.Logger) *Collector {
	if interval < time.Second {
		interval = 30 * time.Second
	}

	// Get handle to current process for CPU tracking
	proc, _ := process.NewProcess(int32(os.Getpid()))

	return &Collector{
		interval: interval,
		logger:   logger,
		proc:     proc,
		counters: make(map[string]func() int64),
	}
}

// Track registers a progress counter logged with every sample
func (c *Collector) Track(name string, fn func() int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[name] = fn
}

// Start begins periodic collection. Returns when context is cancelled.
func (c *Collector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.Collect()

	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("Metrics collection stopped")
			return
		case <-ticker.C:
			c.Collect()
		}
	}
}

// Last returns the most recent sample
func (c *Collector) Last() *Sample {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

// Collect takes and logs a sample
func (c *Collector) Collect() *Sample {
	s := &Sample{
		Timestamp: time.Now(),
		Counters:  make(map[string]int64),
	}

	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		s.CPUPercent = pct[0]
	}
	if c.proc != nil {
		if pct, err := c.proc.Percent(0); err == nil {
			s.ProcessCPUPercent = pct
		}
		if info, err := c.proc.MemoryInfo(); err == nil {
			s.ProcessRSSMB = float64(info.RSS) / (1024 * 1024)
		}
	}
	if vmem, err := mem.VirtualMemory(); err == nil {
		s.MemoryPercent = vmem.UsedPercent
		s.MemoryUsedGB = float64(vmem.Used) / (1024 * 1024 * 1024)
	}

	c.mu.Lock()
	names := make([]string, 0, len(c.counters))
	for name, fn := range c.counters {
		s.Counters[name] = fn()
		names = append(names, name)
	}
	c.last = s
	c.mu.Unlock()

	sort.Strings(names)
	fields := []zap.Field{
		zap.Float64("sys_cpu", s.CPUPercent),
		zap.Float64("proc_cpu", s.ProcessCPUPercent),
		zap.String("rss", formatMB(s.ProcessRSSMB)),
		zap.Float64("mem_pct", s.MemoryPercent),
		zap.String("mem_used", formatGB(s.MemoryUsedGB)),
	}
	for _, name := range names {
		fields = append(fields, zap.Int64(name, s.Counters[name]))
	}
	c.logger.Debug("System metrics", fields...)
	return s
}

func formatGB(gb float64) string {
	return fmt.Sprintf("%.1f GB", gb)
}

func formatMB(mb float64) string {
	return fmt.Sprintf("%.1f MB", mb)
}
