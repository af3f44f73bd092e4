//go:build darwin

package main

/*
#include <mach/mach.h>
#include <mach/mach_time.h>
#include <mach/thread_policy.h>
#include <mach/thread_act.h>

// Period and budget for a 60 Hz tick, in nanoseconds converted to Mach
// absolute time units.
int set_realtime_priority() {
    mach_timebase_info_data_t tb;
    mach_timebase_info(&tb);
    double toAbs = (double)tb.denom / (double)tb.numer;

    thread_time_constraint_policy_data_t policy;
    policy.period = (uint32_t)(16666667 * toAbs);
    policy.computation = (uint32_t)(2000000 * toAbs);
    policy.constraint = (uint32_t)(8000000 * toAbs);
    policy.preemptible = 1;

    kern_return_t result = thread_policy_set(
        mach_thread_self(),
        THREAD_TIME_CONSTRAINT_POLICY,
        (thread_policy_t)&policy,
        THREAD_TIME_CONSTRAINT_POLICY_COUNT
    );

    return result == KERN_SUCCESS ? 0 : -1;
}
*/
import "C"
import "fmt"

// setRealtimePriority sets real-time priority on macOS using Mach time constraint policy
func setRealtimePriority() error {
	result := C.set_realtime_priority()
	if result != 0 {
		return fmt.Errorf("failed to set real-time priority on macOS (code: %d)", result)
	}
	return nil
}
