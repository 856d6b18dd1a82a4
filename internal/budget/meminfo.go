package budget

import "golang.org/x/sys/unix"

// AvailableMemoryBytes returns the host's currently free RAM in bytes, or 0
// if it cannot be determined. Mirrors the teacher's disk-space probe
// (unix.Statfs for GetAvailableSpace) but reads system memory via
// unix.Sysinfo instead, since the cache's resource constraint is RAM, not
// disk.
func AvailableMemoryBytes() uint64 {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0
	}
	return uint64(info.Freeram) * uint64(info.Unit)
}
