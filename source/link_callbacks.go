//go:build link

package source

/*
#include <abl_link.h>
*/
import "C"
import "unsafe"

// lookupLink resolves the registry id passed to the C side as context.
func lookupLink(context unsafe.Pointer) *Link {
	if context == nil {
		return nil
	}
	linkRegistryMu.RLock()
	defer linkRegistryMu.RUnlock()
	return linkRegistry[uintptr(context)]
}

//export go_num_peers_callback
func go_num_peers_callback(numPeers C.uint64_t, context unsafe.Pointer) {
	link := lookupLink(context)
	if link == nil {
		return
	}

	link.mu.Lock()
	callback := link.numPeersCallback
	link.mu.Unlock()

	if callback != nil {
		callback(uint64(numPeers))
	}
}

//export go_tempo_callback
func go_tempo_callback(tempo C.double, context unsafe.Pointer) {
	link := lookupLink(context)
	if link == nil {
		return
	}

	link.mu.Lock()
	callback := link.tempoCallback
	link.mu.Unlock()

	if callback != nil {
		callback(float64(tempo))
	}
}

//export go_start_stop_callback
func go_start_stop_callback(isPlaying C.bool, context unsafe.Pointer) {
	link := lookupLink(context)
	if link == nil {
		return
	}

	link.mu.Lock()
	callback := link.startStopCallback
	link.mu.Unlock()

	if callback != nil {
		callback(bool(isPlaying))
	}
}
