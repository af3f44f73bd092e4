//go:build !link

package source

// Link is unavailable without the link build tag.
type Link struct{}

// OpenLink always fails in this build.
func OpenLink(bpm float64) (*Link, error) {
	return nil, ErrUnavailable
}

func (l *Link) Close() error { return nil }
func (l *Link) NumPeers() uint64 { return 0 }
func (l *Link) Capture(float64) (float64, bool, float64) { return 0, false, 0 }
func (l *Link) SetNumPeersCallback(func(uint64)) {}
func (l *Link) SetTempoCallback(func(float64)) {}
func (l *Link) SetStartStopCallback(func(bool)) {}
