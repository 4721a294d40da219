package app

import "syscall"

// diskUsage reports capacity of the filesystem holding the recordings
// directory, or nil when it cannot be stat'ed (for example before the first
// recording creates it).
func diskUsage(path string) map[string]any {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return nil
	}
	bsize := uint64(stat.Bsize)
	total := stat.Blocks * bsize
	free := stat.Bfree * bsize
	return map[string]any{
		"total_bytes":     total,
		"used_bytes":      total - free,
		"available_bytes": stat.Bavail * bsize,
	}
}
