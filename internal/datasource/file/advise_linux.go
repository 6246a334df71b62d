//go:build linux

package file

import (
	"os"

	"golang.org/x/sys/unix"
)

// adviseSequential tells the kernel the whole file will be read front to
// back so readahead can be more aggressive.
func adviseSequential(f *os.File) {
	_ = unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_SEQUENTIAL)
	_ = unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_WILLNEED)
}
