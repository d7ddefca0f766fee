package infra

import (
	"os"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/process"
)

// collectProcessReport samples the current process's CPU/memory/FD
// usage and the data directory's disk usage. Any individual metric
// that fails to sample is simply left at zero rather than failing the
// whole health check — a partial process report is more useful than
// none.
func collectProcessReport(dataDir string) ProcessReport {
	var report ProcessReport

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err == nil {
		if cpuPct, err := proc.CPUPercent(); err == nil {
			report.CPUPercent = cpuPct
		}
		if memInfo, err := proc.MemoryInfo(); err == nil && memInfo != nil {
			report.RSSBytes = memInfo.RSS
		}
		if fds, err := proc.NumFDs(); err == nil {
			report.OpenFDs = int(fds)
		}
	}

	if usage, err := disk.Usage(dataDir); err == nil {
		report.DataDirDiskUsedBytes = usage.Used
		report.DataDirDiskTotalBytes = usage.Total
	}

	return report
}
