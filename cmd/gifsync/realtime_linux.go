//go:build linux

package main

import "golang.org/x/sys/unix"

// setRealtimePriority moves the calling thread to SCHED_FIFO. The tick loop
// is not audio, so it stays below the usual audio thread priorities.
func setRealtimePriority() error {
	attr := unix.SchedAttr{
		Size:     unix.SizeofSchedAttr,
		Policy:   unix.SCHED_FIFO,
		Priority: 50,
	}
	return unix.SchedSetAttr(0, &attr, 0)
}
