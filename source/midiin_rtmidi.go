//go:build rtmidi

package source

/*
#cgo pkg-config: rtmidi
#include <rtmidi_c.h>
#include <stdlib.h>

extern void gifsync_rtmidi_callback(double timestamp, unsigned char* message, size_t messageSize, void* userData);
*/
import "C"
import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"
)

// Global registry for MIDI callbacks to avoid CGO pointer issues
var (
	midiCallbackRegistry   = make(map[uintptr]func([]byte))
	midiCallbackRegistryMu sync.RWMutex
	nextMidiID             uintptr = 1
)

// MIDIIn is an RtMidi input port
type MIDIIn struct {
	ptr C.RtMidiInPtr
	id  uintptr
}

func newMIDIIn() (*MIDIIn, error) {
	ptr := C.rtmidi_in_create_default()
	if ptr == nil {
		return nil, fmt.Errorf("failed to create MIDI input")
	}

	midiCallbackRegistryMu.Lock()
	id := nextMidiID
	nextMidiID++
	midiCallbackRegistryMu.Unlock()

	in := &MIDIIn{ptr: ptr, id: id}
	runtime.SetFinalizer(in, func(in *MIDIIn) { in.Close() })
	return in, nil
}

// OpenMIDIIn opens input port `port`, or a virtual port named name when port
// is negative, and delivers every message (clock included) to handle.
func OpenMIDIIn(port int, name string, handle func([]byte)) (*MIDIIn, error) {
	in, err := newMIDIIn()
	if err != nil {
		return nil, err
	}

	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	if port >= 0 {
		C.rtmidi_open_port(in.ptr, C.uint(port), cname)
		if !in.ptr.ok {
			err = fmt.Errorf("failed to open MIDI input port %d: %s", port, C.GoString(in.ptr.msg))
		}
	} else {
		C.rtmidi_open_virtual_port(in.ptr, cname)
		if !in.ptr.ok {
			err = fmt.Errorf("failed to open virtual MIDI input '%s': %s", name, C.GoString(in.ptr.msg))
		}
	}
	if err != nil {
		in.Close()
		return nil, err
	}

	// sysex=ignored, time=kept, sense=ignored
	C.rtmidi_in_ignore_types(in.ptr, C.bool(true), C.bool(false), C.bool(true))

	midiCallbackRegistryMu.Lock()
	midiCallbackRegistry[in.id] = handle
	midiCallbackRegistryMu.Unlock()
	C.rtmidi_in_set_callback(in.ptr, (*[0]byte)(C.gifsync_rtmidi_callback), unsafe.Pointer(in.id))

	return in, nil
}

// Close closes the port. It is safe to call more than once.
func (in *MIDIIn) Close() error {
	if in.ptr == nil {
		return nil
	}
	midiCallbackRegistryMu.Lock()
	delete(midiCallbackRegistry, in.id)
	midiCallbackRegistryMu.Unlock()

	C.rtmidi_in_free(in.ptr)
	in.ptr = nil
	runtime.SetFinalizer(in, nil)
	return nil
}

// ListMIDIInputs returns the names of the available input ports.
func ListMIDIInputs() ([]string, error) {
	in, err := newMIDIIn()
	if err != nil {
		return nil, err
	}
	defer in.Close()

	count := uint(C.rtmidi_get_port_count(in.ptr))
	ports := make([]string, count)
	for i := uint(0); i < count; i++ {
		ports[i] = in.portName(i)
	}
	return ports, nil
}

func (in *MIDIIn) portName(port uint) string {
	if !in.ptr.ok {
		return fmt.Sprintf("Port %d (error)", port)
	}

	var bufLen C.int
	if C.rtmidi_get_port_name(in.ptr, C.uint(port), nil, &bufLen) != 0 || bufLen <= 0 {
		return fmt.Sprintf("Port %d (no name)", port)
	}

	buf := (*C.char)(C.calloc(C.size_t(bufLen+1), 1))
	defer C.free(unsafe.Pointer(buf))

	if C.rtmidi_get_port_name(in.ptr, C.uint(port), buf, &bufLen) == 0 {
		if name := C.GoString(buf); name != "" {
			return name
		}
	}
	return fmt.Sprintf("Port %d", port)
}

//export gifsync_rtmidi_callback
func gifsync_rtmidi_callback(timestamp C.double, message *C.uchar, messageSize C.size_t, userData unsafe.Pointer) {
	id := uintptr(userData)
	midiCallbackRegistryMu.RLock()
	callback, exists := midiCallbackRegistry[id]
	midiCallbackRegistryMu.RUnlock()

	if exists {
		callback(C.GoBytes(unsafe.Pointer(message), C.int(messageSize)))
	}
}
