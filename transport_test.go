package gifsync

import (
	"math"
	"sync"
	"testing"
)

func TestNewTransport(t *testing.T) {
	if got := NewTransport(0).Tempo(); got != DefaultTempo {
		t.Errorf("NewTransport(0).Tempo() = %v, want %v", got, DefaultTempo)
	}
	tr := NewTransport(93)
	if got := tr.Snapshot(); got != (TransportSnapshot{Tempo: 93}) {
		t.Errorf("Snapshot() = %+v", got)
	}
}

func TestTransportSetters(t *testing.T) {
	tr := NewTransport(100)

	for _, bpm := range []float64{0, -20, math.NaN(), math.Inf(1)} {
		tr.SetTempo(bpm)
		if got := tr.Tempo(); got != 100 {
			t.Errorf("SetTempo(%v) changed tempo to %v", bpm, got)
		}
	}
	tr.SetTempo(128.5)
	if got := tr.Tempo(); got != 128.5 {
		t.Errorf("Tempo() = %v, want 128.5", got)
	}

	tr.SetBeatPosition(-2)
	if got := tr.BeatPosition(); got != -2 {
		t.Errorf("BeatPosition() = %v, want -2", got)
	}
	tr.SetBeatPosition(math.NaN())
	tr.SetBeatPosition(math.Inf(-1))
	if got := tr.BeatPosition(); got != -2 {
		t.Errorf("non-finite beat replaced position: %v", got)
	}

	tr.Update(140, true, 17.25)
	if got := tr.Snapshot(); got != (TransportSnapshot{Tempo: 140, Playing: true, Beat: 17.25}) {
		t.Errorf("Snapshot() after Update = %+v", got)
	}
	tr.SetPlaying(false)
	if tr.IsPlaying() {
		t.Error("IsPlaying() = true after SetPlaying(false)")
	}
}

func TestTransportConcurrentAccess(t *testing.T) {
	tr := NewTransport(120)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.Update(float64(60+i%100), i%2 == 0, float64(i)/24)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			if snap.Tempo < 60 || snap.Tempo > 160 {
				t.Errorf("torn tempo %v", snap.Tempo)
				return
			}
		}
	}()
	wg.Wait()
}
