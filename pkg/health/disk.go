package health

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/c2h5oh/datasize"
	"golang.org/x/sys/unix"
)

// DiskChecker passes when Dir is writable and, if MinFreeBytes is set, has
// at least that much free space
type DiskChecker struct {
	Dir          string
	MinFreeBytes datasize.ByteSize
}

// NewDiskChecker probes dir for writability
func NewDiskChecker(dir string) *DiskChecker {
	return &DiskChecker{Dir: dir}
}

// WithMinFree sets the free space floor
func (d *DiskChecker) WithMinFree(size datasize.ByteSize) *DiskChecker {
	d.MinFreeBytes = size
	return d
}

func (d *DiskChecker) Check(ctx context.Context) Result {
	start := time.Now()
	fail := func(format string, args ...interface{}) Result {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf(format, args...),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}

	if err := ctx.Err(); err != nil {
		return fail("check cancelled: %v", err)
	}

	f, err := os.CreateTemp(d.Dir, ".probe-*")
	if err != nil {
		return fail("volume %s is not writable: %v", d.Dir, err)
	}
	name := f.Name()
	_, werr := f.Write([]byte("burrow"))
	cerr := f.Close()
	os.Remove(name)
	if werr != nil || cerr != nil {
		return fail("volume %s write failed: %v", d.Dir, firstErr(werr, cerr))
	}

	free, err := FreeBytes(d.Dir)
	if err != nil {
		return fail("statfs %s: %v", d.Dir, err)
	}
	if d.MinFreeBytes > 0 && free < d.MinFreeBytes {
		return fail("volume %s has %s free, below %s", d.Dir, free.HumanReadable(), d.MinFreeBytes.HumanReadable())
	}

	return Result{
		Healthy:   true,
		Message:   fmt.Sprintf("%s free in %s", free.HumanReadable(), filepath.Clean(d.Dir)),
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

func (d *DiskChecker) Type() CheckType {
	return CheckTypeDisk
}

// FreeBytes returns the space available to unprivileged writers under dir
func FreeBytes(dir string) (datasize.ByteSize, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return 0, err
	}
	return datasize.ByteSize(st.Bavail) * datasize.ByteSize(st.Bsize), nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
