package overlay

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/vmihailenco/msgpack/v5"

	gifsync "github.com/DatanoiseTV/gifsync-go"
)

type upload struct {
	data string
	name string
}

type recordingLoader struct {
	mu      sync.Mutex
	paths   []string
	uploads []upload
}

func (l *recordingLoader) LoadFile(path string) {
	l.mu.Lock()
	l.paths = append(l.paths, path)
	l.mu.Unlock()
}

func (l *recordingLoader) LoadData(data []byte, name string) {
	l.mu.Lock()
	l.uploads = append(l.uploads, upload{string(data), name})
	l.mu.Unlock()
}

func newTestServer(t *testing.T, loader Loader) (*Server, *httptest.Server) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	s := New(loader, logrus.NewEntry(logger))
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func testView(gen uint64) gifsync.View {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 4))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	seq := &gifsync.Sequence{
		Frames: []gifsync.Frame{
			{Image: img, Duration: 0.5, End: 0.5},
			{Image: img, Duration: 0.5, End: 1},
		},
		Total:  1,
		Width:  8,
		Height: 4,
	}
	return gifsync.View{
		Frame:      &seq.Frames[1],
		Index:      1,
		Sequence:   seq,
		Generation: gen,
		Phase:      0.625,
		Status:     "loop.gif",
		Playing:    true,
		Tempo:      128,
		Bars:       2,
	}
}

func TestTickOf(t *testing.T) {
	got := TickOf(testView(3))
	want := Tick{Phase: 0.625, Index: 1, Frames: 2, Generation: 3, Tempo: 128, Bars: 2, Playing: true, Status: "loop.gif"}
	if got != want {
		t.Errorf("TickOf() = %+v, want %+v", got, want)
	}
	if got := TickOf(gifsync.View{Index: -1}); got.Frames != 0 || got.Index != -1 {
		t.Errorf("TickOf(empty) = %+v", got)
	}
}

func TestStatusHandler(t *testing.T) {
	s, ts := newTestServer(t, nil)
	s.Sink().Present(testView(4))

	resp, err := http.Get(ts.URL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
	var tick Tick
	if err := json.NewDecoder(resp.Body).Decode(&tick); err != nil {
		t.Fatal(err)
	}
	if tick.Generation != 4 || tick.Status != "loop.gif" || tick.Index != 1 {
		t.Errorf("status = %+v", tick)
	}
}

func TestFrameHandler(t *testing.T) {
	s, ts := newTestServer(t, nil)
	s.Sink().Present(testView(1))

	tests := []struct {
		query  string
		status int
		size   image.Point
	}{
		{"", http.StatusOK, image.Pt(64, 64)},
		{"?w=40&h=20", http.StatusOK, image.Pt(40, 20)},
		{"?w=40", http.StatusBadRequest, image.Point{}},
		{"?w=0&h=10", http.StatusBadRequest, image.Point{}},
		{"?w=abc&h=10", http.StatusBadRequest, image.Point{}},
		{"?w=10&h=99999", http.StatusBadRequest, image.Point{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp, err := http.Get(ts.URL + "/frame.png" + tt.query)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			if tt.status != http.StatusOK {
				return
			}
			img, err := png.Decode(resp.Body)
			if err != nil {
				t.Fatalf("png.Decode() failed: %v", err)
			}
			if got := img.Bounds().Size(); got != tt.size {
				t.Errorf("image size = %v, want %v", got, tt.size)
			}
		})
	}
}

func TestFrameHandlerWithoutView(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/frame.png?w=400&h=200")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	img, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	r, g, b, a := img.At(0, 0).RGBA()
	if (color.RGBA64{uint16(r), uint16(g), uint16(b), uint16(a)}) != (color.RGBA64{A: 0xffff}) {
		t.Errorf("corner pixel = %v, want opaque black", img.At(0, 0))
	}
}

func TestLoadHandler(t *testing.T) {
	loader := &recordingLoader{}
	_, ts := newTestServer(t, loader)

	tests := []struct {
		name        string
		query       string
		contentType string
		origin      string
		body        string
		status      int
	}{
		{"upload", "", "image/gif", "", "GIF89a", http.StatusAccepted},
		{"upload named", "?name=dir/cat.gif", "application/octet-stream", "", "GIF89a", http.StatusAccepted},
		{"upload cross origin", "", "image/gif", "http://evil.example", "GIF89a", http.StatusAccepted},
		{"empty upload", "", "image/gif", "", "", http.StatusBadRequest},
		{"path", "", "application/json", "", `{"path": "/anims/cat.gif"}`, http.StatusAccepted},
		{"path same origin", "", "application/json; charset=utf-8", "SELF", `{"path": "/anims/dog.gif"}`, http.StatusAccepted},
		{"path cross origin", "", "application/json", "http://evil.example", `{"path": "/etc/passwd"}`, http.StatusForbidden},
		{"path null origin", "", "application/json", "null", `{"path": "/etc/passwd"}`, http.StatusForbidden},
		{"empty path", "", "application/json", "", `{"path": ""}`, http.StatusBadRequest},
		{"bad json", "", "application/json", "", `not json`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodPost, ts.URL+"/load"+tt.query, strings.NewReader(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			req.Header.Set("Content-Type", tt.contentType)
			switch tt.origin {
			case "":
			case "SELF":
				req.Header.Set("Origin", ts.URL)
			default:
				req.Header.Set("Origin", tt.origin)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.status {
				t.Errorf("POST /load = %d, want %d", resp.StatusCode, tt.status)
			}
		})
	}

	wantPaths := []string{"/anims/cat.gif", "/anims/dog.gif"}
	if strings.Join(loader.paths, ",") != strings.Join(wantPaths, ",") {
		t.Errorf("path loads = %v, want %v", loader.paths, wantPaths)
	}
	wantUploads := []upload{{"GIF89a", "upload.gif"}, {"GIF89a", "cat.gif"}, {"GIF89a", "upload.gif"}}
	if len(loader.uploads) != len(wantUploads) {
		t.Fatalf("uploads = %v, want %v", loader.uploads, wantUploads)
	}
	for i, u := range loader.uploads {
		if u != wantUploads[i] {
			t.Errorf("upload %d = %+v, want %+v", i, u, wantUploads[i])
		}
	}

	resp, err := http.Get(ts.URL + "/load")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /load = %d, want 405", resp.StatusCode)
	}
}

func TestLoadUploadTooLarge(t *testing.T) {
	loader := &recordingLoader{}
	_, ts := newTestServer(t, loader)

	resp, err := http.Post(ts.URL+"/load", "image/gif", bytes.NewReader(make([]byte, maxUpload+1)))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", resp.StatusCode)
	}
	if len(loader.uploads) != 0 {
		t.Errorf("oversized upload reached the loader")
	}
}

func TestLoadDisabled(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp, err := http.Post(ts.URL+"/load", "application/json", bytes.NewBufferString(`{"path": "a.gif"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}
}

func TestIndexPage(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
		t.Errorf("Content-Type = %q", resp.Header.Get("Content-Type"))
	}
}

func readTick(t *testing.T, conn *websocket.Conn) Tick {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	mt, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() failed: %v", err)
	}
	if mt != websocket.BinaryMessage {
		t.Fatalf("message type = %d, want binary", mt)
	}
	var tick Tick
	if err := msgpack.Unmarshal(data, &tick); err != nil {
		t.Fatalf("msgpack.Unmarshal() failed: %v", err)
	}
	return tick
}

func TestWebSocketStream(t *testing.T) {
	s, ts := newTestServer(t, nil)
	s.Sink().Present(testView(5))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() failed: %v", err)
	}
	defer conn.Close()

	if tick := readTick(t, conn); tick.Generation != 5 || tick.Tempo != 128 {
		t.Errorf("first tick = %+v", tick)
	}
	if s.Clients() != 1 {
		t.Errorf("Clients() = %d, want 1", s.Clients())
	}

	s.Sink().Present(testView(7))
	for {
		if tick := readTick(t, conn); tick.Generation == 7 {
			break
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
	if s.Clients() != 0 {
		t.Errorf("Clients() = %d after shutdown", s.Clients())
	}
}
