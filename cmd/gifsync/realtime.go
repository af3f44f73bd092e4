package main

import (
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"
)

// Platform-specific setRealtimePriority implementations live in
// realtime_linux.go, realtime_darwin.go and realtime_windows.go.

// realtime starts the timing-critical goroutines (tick loop, transport
// followers), each on its own OS thread with raised priority when enabled.
type realtime struct {
	enabled bool
	log     *logrus.Entry
	wg      sync.WaitGroup
}

// Go runs fn on a new goroutine.
func (rt *realtime) Go(name string, fn func()) {
	rt.wg.Add(1)
	go func() {
		defer rt.wg.Done()
		if rt.enabled {
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()
			if err := setRealtimePriority(); err != nil {
				rt.log.WithError(err).WithField("thread", name).Warn("Failed to set real-time priority")
			} else {
				rt.log.WithField("thread", name).Debug("Real-time priority set")
			}
		}
		fn()
	}()
}

// Wait blocks until every goroutine started with Go has returned.
func (rt *realtime) Wait() {
	rt.wg.Wait()
}

// logRealtimePriorityInfo logs information about real-time priority setup
func logRealtimePriorityInfo(log *logrus.Entry) {
	switch runtime.GOOS {
	case "linux":
		log.Info("Real-time priority enabled. On Linux, you may need to add your user to the 'audio' group " +
			"and allow '@audio - rtprio 99' in /etc/security/limits.conf, then log in again")
	case "darwin":
		log.Info("Real-time priority enabled. On macOS, this may require running as root or with appropriate entitlements")
	case "windows":
		log.Info("Real-time priority enabled. On Windows, this may require administrator privileges")
	}
}
