// Package overlay serves the running animation over HTTP so a browser
// source (OBS, a second screen) can show it: the current frame as PNG, the
// transport state as JSON, and a websocket stream of msgpack tick messages.
package overlay

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"

	gifsync "github.com/DatanoiseTV/gifsync-go"
	"github.com/DatanoiseTV/gifsync-go/render"
)

const (
	writeWait    = 2 * time.Second
	maxImageSide = 4096
	maxUpload    = 32 << 20
	uploadName   = "upload.gif"
)

// Loader accepts load requests. The request is queued; the result shows up
// in later ticks.
type Loader interface {
	LoadFile(path string)
	LoadData(data []byte, name string)
}

// Tick is the state pushed to websocket clients on every tick.
type Tick struct {
	Phase      float64 `msgpack:"phase" json:"phase"`
	Index      int     `msgpack:"index" json:"index"`
	Frames     int     `msgpack:"frames" json:"frames"`
	Generation uint64  `msgpack:"generation" json:"generation"`
	Tempo      float64 `msgpack:"tempo" json:"tempo"`
	Bars       float64 `msgpack:"bars" json:"bars"`
	Playing    bool    `msgpack:"playing" json:"playing"`
	Status     string  `msgpack:"status" json:"status"`
}

// TickOf extracts the wire state of v.
func TickOf(v gifsync.View) Tick {
	return Tick{
		Phase:      v.Phase,
		Index:      v.Index,
		Frames:     v.Sequence.Len(),
		Generation: v.Generation,
		Tempo:      v.Tempo,
		Bars:       v.Bars,
		Playing:    v.Playing,
		Status:     v.Status,
	}
}

// Server is the HTTP overlay. Present views to Sink() and call Run to
// stream them.
type Server struct {
	views  *render.Mailbox
	loader Loader
	log    *logrus.Entry
	router *mux.Router

	upgrader websocket.Upgrader

	mu      sync.RWMutex
	writeMu sync.Mutex
	clients map[*websocket.Conn]bool
}

// New creates the overlay server. loader may be nil, which disables POST /load.
func New(loader Loader, log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	s := &Server{
		views:  render.NewMailbox(),
		loader: loader,
		log:    log.WithField("component", "overlay"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // browser sources load from file:// and other hosts
			},
		},
		clients: make(map[*websocket.Conn]bool),
	}

	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/frame.png", s.handleFrame).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/load", s.handleLoad).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/ws", s.handleWebSocket)
	r.Use(mux.CORSMethodMiddleware(r))
	s.router = r

	return s
}

// Sink returns the sink the engine presents to.
func (s *Server) Sink() gifsync.Sink {
	return s.views
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Clients returns the number of connected websocket clients.
func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Run broadcasts every view to the websocket clients until ctx is done.
func (s *Server) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		s.views.Close()
	}()

	for {
		v, ok := s.views.Next()
		if !ok {
			break
		}
		data, err := msgpack.Marshal(TickOf(v))
		if err != nil {
			s.log.WithError(err).Error("Failed to encode tick")
			continue
		}
		s.Broadcast(data)
	}

	s.mu.Lock()
	for conn := range s.clients {
		conn.Close()
		delete(s.clients, conn)
	}
	s.mu.Unlock()
}

// Broadcast sends data to all connected clients, dropping the ones that fail.
func (s *Server) Broadcast(data []byte) {
	s.mu.RLock()
	var failed []*websocket.Conn
	s.writeMu.Lock()
	for conn := range s.clients {
		if err := s.write(conn, data); err != nil {
			s.log.WithError(err).Debug("Broadcast write error")
			failed = append(failed, conn)
		}
	}
	s.writeMu.Unlock()
	s.mu.RUnlock()

	for _, conn := range failed {
		s.removeClient(conn)
	}
}

func (s *Server) write(conn *websocket.Conn, data []byte) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.BinaryMessage, data)
}

func (s *Server) addClient(conn *websocket.Conn) {
	s.mu.Lock()
	s.clients[conn] = true
	n := len(s.clients)
	s.mu.Unlock()
	s.log.WithField("clients", n).Info("Overlay client connected")
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.mu.Lock()
	_, ok := s.clients[conn]
	delete(s.clients, conn)
	n := len(s.clients)
	s.mu.Unlock()
	if ok {
		conn.Close()
		s.log.WithField("clients", n).Info("Overlay client disconnected")
	}
}

func allowOrigin(w http.ResponseWriter, r *http.Request) bool {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	return r.Method != http.MethodOptions
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("WebSocket upgrade error")
		return
	}
	s.addClient(conn)
	defer s.removeClient(conn)

	// catch the client up before the next tick
	if v, ok := s.views.Latest(); ok {
		data, err := msgpack.Marshal(TickOf(v))
		if err == nil {
			s.writeMu.Lock()
			err = s.write(conn, data)
			s.writeMu.Unlock()
		}
		if err != nil {
			return
		}
	}

	// clients only listen; reading notices when they go away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !allowOrigin(w, r) {
		return
	}
	v, _ := s.views.Latest()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(TickOf(v))
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	if !allowOrigin(w, r) {
		return
	}
	size, err := sizeParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	v, _ := s.views.Latest()

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := render.EncodePNG(w, v, size); err != nil {
		s.log.WithError(err).Error("Failed to render frame")
	}
}

// sizeParam reads the optional w and h query parameters. Missing values
// leave the size to the renderer.
func sizeParam(r *http.Request) (image.Point, error) {
	var size image.Point
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *int
	}{{"w", &size.X}, {"h", &size.Y}} {
		s := q.Get(p.name)
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > maxImageSide {
			return image.Point{}, errors.New("invalid " + p.name + " parameter")
		}
		*p.dst = n
	}
	if (size.X == 0) != (size.Y == 0) {
		return image.Point{}, errors.New("w and h must be given together")
	}
	return size, nil
}

type loadRequest struct {
	Path string `json:"path"`
}

// handleLoad takes the GIF itself as the request body. A JSON body of the
// form {"path": "..."} names a local file instead; that form is refused for
// cross-origin requests so a web page cannot point the server at its disk.
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	if !allowOrigin(w, r) {
		return
	}
	if s.loader == nil {
		http.Error(w, "loading is disabled", http.StatusForbidden)
		return
	}

	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "application/json" {
		s.loadPath(w, r)
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUpload))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "upload too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	if len(data) == 0 {
		http.Error(w, "empty body", http.StatusBadRequest)
		return
	}
	name := uploadName
	if n := path.Base(r.URL.Query().Get("name")); n != "." && n != "/" {
		name = n
	}

	s.log.WithFields(logrus.Fields{"name": name, "bytes": len(data)}).Info("Upload received over HTTP")
	s.loader.LoadData(data, name)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) loadPath(w http.ResponseWriter, r *http.Request) {
	if !sameOrigin(r) {
		http.Error(w, "path loads are only accepted from the same origin", http.StatusForbidden)
		return
	}

	var req loadRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil || req.Path == "" {
		http.Error(w, "expected {\"path\": \"...\"}", http.StatusBadRequest)
		return
	}

	s.log.WithField("file", req.Path).Info("Load requested over HTTP")
	s.loader.LoadFile(req.Path)
	w.WriteHeader(http.StatusAccepted)
}

// sameOrigin reports whether r came from a page served by this host.
// Requests without an Origin header are not from a browser page.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && u.Host != "" && u.Host == r.Host
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(indexPage))
}

// ListenAndServe serves the overlay on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.log.WithField("addr", addr).Info("Overlay listening")
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

const indexPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>gifsync</title>
<style>html,body{margin:0;background:transparent}img{width:100vw;height:100vh;object-fit:contain}</style>
</head>
<body>
<img id="frame" src="frame.png" alt="">
<script>
const img = document.getElementById("frame");
let busy = false;
function next() {
  if (busy) return;
  busy = true;
  const src = "frame.png?t=" + Date.now();
  const pre = new Image();
  pre.onload = pre.onerror = () => { img.src = pre.src; busy = false; };
  pre.src = src;
}
setInterval(next, 40);
</script>
</body>
</html>
`
