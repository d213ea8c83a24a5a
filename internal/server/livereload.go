package server

import (
	"bufio"
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"git.home.luguber.info/inful/pagebrew/internal/events"
	"git.home.luguber.info/inful/pagebrew/internal/logfields"
	"git.home.luguber.info/inful/pagebrew/internal/metrics"
)

// ErrorHashPrefix marks a broadcast that reports a failed build.
const ErrorHashPrefix = "error:"

// Hub fans build hashes out to SSE clients at /livereload.
type Hub struct {
	mu       sync.RWMutex
	nextID   int
	clients  map[int]*lrClient
	closed   bool
	lastHash string

	recorder  metrics.Recorder
	logger    *slog.Logger
	heartbeat time.Duration
}

type lrClient struct {
	ch   chan string
	done chan struct{}
}

func NewHub(recorder metrics.Recorder, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:   map[int]*lrClient{},
		recorder:  metrics.OrNoop(recorder),
		logger:    logger,
		heartbeat: 30 * time.Second,
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	client := &lrClient{ch: make(chan string, 8), done: make(chan struct{})}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		http.Error(w, "livereload shutting down", http.StatusServiceUnavailable)
		return
	}
	id := h.nextID
	h.nextID++
	h.clients[id] = client
	current := h.lastHash
	n := len(h.clients)
	h.mu.Unlock()
	h.recorder.SetLiveReloadClients(n)
	defer h.removeClient(id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	bw := bufio.NewWriter(w)
	send := func(s string) bool {
		if _, err := bw.WriteString(s); err != nil {
			h.logger.Debug("Live reload write failed", logfields.Error(err))
			return false
		}
		if err := bw.Flush(); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}
	hello := ": connected\n\n"
	if current != "" {
		hello += event(current)
	}
	if !send(hello) {
		return
	}

	hb := time.NewTicker(h.heartbeat)
	defer hb.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-client.done:
			return
		case <-hb.C:
			if !send(": ping\n\n") {
				return
			}
		case hash := <-client.ch:
			if !send(event(hash)) {
				return
			}
		}
	}
}

func event(hash string) string {
	return "data: {\"hash\":" + strconv.Quote(hash) + "}\n\n"
}

func (h *Hub) removeClient(id int) {
	h.mu.Lock()
	c, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
		close(c.done)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.recorder.SetLiveReloadClients(n)
	}
}

// Broadcast sends hash to every client. Repeated hashes are dropped, as are
// clients that cannot keep up.
func (h *Hub) Broadcast(hash string) {
	h.mu.Lock()
	if h.closed || hash == "" || hash == h.lastHash {
		h.mu.Unlock()
		return
	}
	h.lastHash = hash
	ids := make([]int, 0, len(h.clients))
	snapshot := make([]*lrClient, 0, len(h.clients))
	for id, c := range h.clients {
		ids = append(ids, id)
		snapshot = append(snapshot, c)
	}
	h.mu.Unlock()

	dropped := 0
	for i, c := range snapshot {
		select {
		case c.ch <- hash:
		case <-c.done:
		default:
			dropped++
			h.removeClient(ids[i])
		}
	}
	h.logger.Debug("Live reload broadcast",
		slog.String("hash", hash), logfields.Count(len(snapshot)), slog.Int("dropped", dropped))
}

// Follow broadcasts build and asset notifications from bus until ctx ends.
func (h *Hub) Follow(ctx context.Context, bus *events.Bus) {
	builds, unsubBuilds := events.Subscribe[events.BuildFinished](bus, 8)
	defer unsubBuilds()
	synced, unsubSynced := events.Subscribe[events.AssetSynced](bus, 32)
	defer unsubSynced()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-builds:
			if !ok {
				return
			}
			h.Broadcast(BuildHash(evt))
		case evt, ok := <-synced:
			if !ok {
				return
			}
			if evt.Err == nil {
				h.Broadcast("asset:" + evt.Path + ":" + strconv.FormatInt(time.Now().UnixNano(), 10))
			}
		}
	}
}

// BuildHash is the value broadcast for a finished build.
func BuildHash(evt events.BuildFinished) string {
	if evt.Err != nil || evt.BuildID == "" {
		ts := evt.FinishedAt
		if ts.IsZero() {
			ts = time.Now()
		}
		return ErrorHashPrefix + strconv.FormatInt(ts.UnixNano(), 10)
	}
	return evt.BuildID
}

// Shutdown disconnects every client and refuses new ones.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := h.clients
	h.clients = map[int]*lrClient{}
	h.mu.Unlock()
	for _, c := range clients {
		close(c.done)
	}
	h.recorder.SetLiveReloadClients(0)
}

// Script is served at /livereload.js. It reloads the page whenever the hash
// changes and logs failed builds to the console instead of reloading.
const Script = `(() => {
  if (window.__PAGEBREW_LR__) return;
  window.__PAGEBREW_LR__ = true;
  let current = null;
  function connect() {
    const es = new EventSource('/livereload');
    es.onmessage = (e) => {
      let p;
      try { p = JSON.parse(e.data); } catch (_) { return; }
      if (!p.hash) return;
      if (current === null) { current = p.hash; return; }
      if (p.hash === current) return;
      current = p.hash;
      if (p.hash.startsWith('error:')) { console.error('[pagebrew] build failed; fix the error and save again'); return; }
      location.reload();
    };
    es.onerror = () => { es.close(); setTimeout(connect, 2000); };
  }
  connect();
})();
`
