package preflight

import (
	"fmt"
	"syscall"

	"github.com/dustin/go-humanize"
)

// MinDiskSpaceBytes is the free space required next to the database.
const MinDiskSpaceBytes = 100 * humanize.MiByte

// freeBytes reports the space available to unprivileged writers on the
// filesystem holding path.
func freeBytes(path string) (uint64, error) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(path, &st); err != nil {
		return 0, err
	}
	return st.Bavail * uint64(st.Bsize), nil
}

// CheckDiskSpace fails when the filesystem of the database has less than the
// configured minimum free. path may not exist yet; its nearest existing
// ancestor is measured.
func (c *Checker) CheckDiskSpace(path string) CheckResult {
	res := CheckResult{Name: CheckNameDiskSpace, Required: true}

	free, err := freeBytes(existingAncestor(path))
	if err != nil {
		res.Status = StatusFail
		res.Message = fmt.Sprintf("cannot measure free space: %v", err)
		return res
	}

	res.Message = fmt.Sprintf("%s free, %s required", humanize.IBytes(free), humanize.IBytes(c.minDisk))
	if free < c.minDisk {
		res.Status = StatusFail
		res.Details = "free space or choose another --db location"
		return res
	}
	res.Status = StatusPass
	return res
}
