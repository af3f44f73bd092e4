//go:build link
//go:generate go run build_link.go

package source

/*
#cgo CPPFLAGS: -I${SRCDIR}/../third_party/link/include -I${SRCDIR}/../third_party/link/extensions/abl_link/include
#cgo LDFLAGS: -L${SRCDIR}/../third_party/link/build -labl_link -lstdc++ -lpthread

#include <abl_link.h>
#include <stdlib.h>

void go_num_peers_callback(uint64_t num_peers, void *context);
void go_tempo_callback(double tempo, void *context);
void go_start_stop_callback(bool is_playing, void *context);

// C wrapper functions - these must be defined here, not just declared
void c_num_peers_callback(uint64_t num_peers, void *context) {
    go_num_peers_callback(num_peers, context);
}

void c_tempo_callback(double tempo, void *context) {
    go_tempo_callback(tempo, context);
}

void c_start_stop_callback(bool is_playing, void *context) {
    go_start_stop_callback(is_playing, context);
}
*/
import "C"
import (
	"sync"
	"unsafe"
)

// Global storage for Go callbacks to avoid CGO pointer issues
var (
	linkRegistry   = make(map[uintptr]*Link)
	linkRegistryMu sync.RWMutex
	nextLinkID     uintptr = 1
)

// Link is an Ableton Link session joined by this process
type Link struct {
	impl  C.abl_link
	state C.abl_link_session_state
	id    uintptr // C-safe identifier

	mu                sync.Mutex
	numPeersCallback  func(uint64)
	tempoCallback     func(float64)
	startStopCallback func(bool)

	captureStateMu sync.Mutex // CaptureAppSessionState is not thread-safe
}

// OpenLink joins the Link session with the given initial tempo, with
// start/stop sync enabled.
func OpenLink(bpm float64) (*Link, error) {
	linkRegistryMu.Lock()
	id := nextLinkID
	nextLinkID++
	linkRegistryMu.Unlock()

	l := &Link{
		impl:  C.abl_link_create(C.double(bpm)),
		state: C.abl_link_create_session_state(),
		id:    id,
	}

	linkRegistryMu.Lock()
	linkRegistry[id] = l
	linkRegistryMu.Unlock()

	C.abl_link_enable(l.impl, C.bool(true))
	C.abl_link_enable_start_stop_sync(l.impl, C.bool(true))
	return l, nil
}

// Close leaves the session and frees the native instance.
func (l *Link) Close() error {
	linkRegistryMu.Lock()
	delete(linkRegistry, l.id)
	linkRegistryMu.Unlock()

	C.abl_link_enable(l.impl, C.bool(false))
	C.abl_link_destroy_session_state(l.state)
	C.abl_link_destroy(l.impl)
	return nil
}

// NumPeers returns the number of currently connected peers
func (l *Link) NumPeers() uint64 {
	return uint64(C.abl_link_num_peers(l.impl))
}

// Capture reads the app session state: tempo, play state and the beat at
// the current Link clock time for the given quantum.
func (l *Link) Capture(quantum float64) (tempo float64, playing bool, beat float64) {
	l.captureStateMu.Lock()
	defer l.captureStateMu.Unlock()

	now := C.abl_link_clock_micros(l.impl)
	C.abl_link_capture_app_session_state(l.impl, l.state)
	tempo = float64(C.abl_link_tempo(l.state))
	playing = bool(C.abl_link_is_playing(l.state))
	beat = float64(C.abl_link_beat_at_time(l.state, now, C.double(quantum)))
	return tempo, playing, beat
}

// SetNumPeersCallback sets a callback to be called when the number of peers changes
func (l *Link) SetNumPeersCallback(callback func(uint64)) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.numPeersCallback = callback
	if callback != nil {
		C.abl_link_set_num_peers_callback(l.impl, (*[0]byte)(C.c_num_peers_callback), unsafe.Pointer(l.id))
	} else {
		C.abl_link_set_num_peers_callback(l.impl, nil, nil)
	}
}

// SetTempoCallback sets a callback to be called when the tempo changes
func (l *Link) SetTempoCallback(callback func(float64)) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.tempoCallback = callback
	if callback != nil {
		C.abl_link_set_tempo_callback(l.impl, (*[0]byte)(C.c_tempo_callback), unsafe.Pointer(l.id))
	} else {
		C.abl_link_set_tempo_callback(l.impl, nil, nil)
	}
}

// SetStartStopCallback sets a callback to be called when start/stop state changes
func (l *Link) SetStartStopCallback(callback func(bool)) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.startStopCallback = callback
	if callback != nil {
		C.abl_link_set_start_stop_callback(l.impl, (*[0]byte)(C.c_start_stop_callback), unsafe.Pointer(l.id))
	} else {
		C.abl_link_set_start_stop_callback(l.impl, nil, nil)
	}
}
