package main

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var statusUpgrader = websocket.Upgrader{
	ReadBufferSize:    4096,
	WriteBufferSize:   65536,
	EnableCompression: false,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamStatus is one stream's row in the status snapshot.
type StreamStatus struct {
	Stream      StreamId `json:"stream"`
	CmdHealth   string   `json:"cmd_health"`
	AudioHealth string   `json:"audio_health"`
	UptimeSecs  float64  `json:"uptime_seconds"`
	RestartCnt  int      `json:"restart_count"`
	MeanDBFS    float64  `json:"mean_dbfs"`
	MaxDBFS     float64  `json:"max_dbfs"`
}

// StatusSnapshot is the full machine-readable picture the status surface
// exposes: per-channel stream rows plus the latest comparison vector.
type StatusSnapshot struct {
	GeneratedAt time.Time                 `json:"generated_at"`
	Channels    map[string][]StreamStatus `json:"channels"`
	Comparisons []ComparisonResult        `json:"comparisons"`
	Alerts      []Alert                   `json:"alerts"`
}

// StatusSource is whatever the StatusServer pulls a snapshot from; main.go
// wires the running Supervisor/Comparator/AlertManager/ChannelRegistry into
// one implementation.
type StatusSource interface {
	Snapshot() StatusSnapshot
}

// statusWsConn wraps one websocket client with a write mutex so the push
// loop and any future request/response traffic never race on the
// underlying connection.
type statusWsConn struct {
	id      string
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (wc *statusWsConn) writeJSON(v interface{}) error {
	wc.writeMu.Lock()
	defer wc.writeMu.Unlock()

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	wc.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return wc.conn.WriteMessage(websocket.TextMessage, data)
}

// StatusServer exposes the machine-readable status snapshot over plain
// HTTP/JSON (polling) and a websocket push (every pushInterval, for status
// dashboards that want to avoid polling).
type StatusServer struct {
	source       StatusSource
	pushInterval time.Duration

	mu      sync.Mutex
	clients map[string]*statusWsConn
}

func NewStatusServer(source StatusSource, pushInterval time.Duration) *StatusServer {
	return &StatusServer{
		source:       source,
		pushInterval: pushInterval,
		clients:      make(map[string]*statusWsConn),
	}
}

func (s *StatusServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatusJSON)
	mux.HandleFunc("/status/ws", s.handleStatusWS)
	return mux
}

func (s *StatusServer) handleStatusJSON(w http.ResponseWriter, r *http.Request) {
	snapshot := s.source.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snapshot); err != nil {
		log.Printf("status server: encode: %v", err)
	}
}

func (s *StatusServer) handleStatusWS(w http.ResponseWriter, r *http.Request) {
	conn, err := statusUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("status server: upgrade: %v", err)
		return
	}

	wc := &statusWsConn{id: uuid.NewString(), conn: conn}

	s.mu.Lock()
	s.clients[wc.id] = wc
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, wc.id)
		s.mu.Unlock()
		conn.Close()
	}()

	if err := wc.writeJSON(s.source.Snapshot()); err != nil {
		return
	}

	// Drain reads so the client's close frame is observed; this endpoint
	// is push-only and does not expect client messages.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// StartPushLoop periodically broadcasts the latest snapshot to every
// connected websocket client, dropping any client whose write fails rather
// than letting one slow client stall the broadcast.
func (s *StatusServer) StartPushLoop(done <-chan struct{}) {
	ticker := time.NewTicker(s.pushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			snapshot := s.source.Snapshot()

			s.mu.Lock()
			clients := make([]*statusWsConn, 0, len(s.clients))
			for _, c := range s.clients {
				clients = append(clients, c)
			}
			s.mu.Unlock()

			for _, c := range clients {
				if err := c.writeJSON(snapshot); err != nil {
					s.mu.Lock()
					delete(s.clients, c.id)
					s.mu.Unlock()
				}
			}
		case <-done:
			return
		}
	}
}
