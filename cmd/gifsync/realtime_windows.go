//go:build windows

package main

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// setRealtimePriority raises the process priority class. Realtime needs
// administrator rights; HIGH is tried when it is refused.
func setRealtimePriority() error {
	process := windows.CurrentProcess()
	if err := windows.SetPriorityClass(process, windows.REALTIME_PRIORITY_CLASS); err == nil {
		return nil
	}
	if err := windows.SetPriorityClass(process, windows.HIGH_PRIORITY_CLASS); err != nil {
		return fmt.Errorf("failed to set high priority on Windows: %w", err)
	}
	return nil
}
