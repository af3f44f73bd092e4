//go:build !rtmidi

package source

// MIDIIn is unavailable without the rtmidi build tag.
type MIDIIn struct{}

// OpenMIDIIn always fails in this build.
func OpenMIDIIn(port int, name string, handle func([]byte)) (*MIDIIn, error) {
	return nil, ErrUnavailable
}

// Close does nothing.
func (in *MIDIIn) Close() error { return nil }

// ListMIDIInputs always fails in this build.
func ListMIDIInputs() ([]string, error) {
	return nil, ErrUnavailable
}
