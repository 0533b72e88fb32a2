package websocket

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/saveenergy/brofiler/internal/logging"
	"github.com/saveenergy/brofiler/pkg/types"
)

const (
	writeTimeout  = 5 * time.Second
	reportBacklog = 16
)

// Server pushes every cycle report to connected subscribers. It implements
// scheduler.Reporter; Report never blocks the poll loop.
type Server struct {
	upgrader       websocket.Upgrader
	clients        map[*websocket.Conn]*clientConn
	latest         *types.CycleReport
	allowedOrigins []string
	pingInterval   time.Duration
	reports        chan types.CycleReport
	stopCh         chan struct{}
	stopOnce       sync.Once
	wg             sync.WaitGroup
	mu             sync.RWMutex
}

type clientConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func NewServer() *Server {
	server := &Server{
		clients:      make(map[*websocket.Conn]*clientConn),
		pingInterval: 30 * time.Second,
		reports:      make(chan types.CycleReport, reportBacklog),
		stopCh:       make(chan struct{}),
	}
	server.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return server.isAllowedOrigin(r.Header.Get("Origin"), r.Host)
		},
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
	}
	server.startPingLoop()
	server.startBroadcastLoop()
	return server
}

func (s *Server) SetAllowedOrigins(origins []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allowedOrigins = origins
}

func (s *Server) SetPingInterval(interval time.Duration) {
	if interval <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pingInterval = interval
}

// ClientCount returns the number of connected subscribers.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// HandleStream upgrades the request and keeps the subscriber until it
// disconnects. A late subscriber immediately receives the latest report.
func (s *Server) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error("WebSocket upgrade error", logging.Field{Key: "error", Value: err})
		return
	}
	defer conn.Close()

	// Subscribers only read for disconnect detection.
	conn.SetReadLimit(4096)

	client := &clientConn{conn: conn}
	s.mu.Lock()
	s.clients[conn] = client
	latest := s.latest
	s.mu.Unlock()

	hello := wsMessage{Type: "connected", Time: time.Now().Unix(), Report: latest}
	if latest != nil {
		hello.SessionID = latest.SessionID
	}
	if err := client.writeJSON(hello); err != nil {
		s.removeClient(conn)
		return
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.removeClient(conn)
}

// Report queues r for delivery. When subscribers fall behind the oldest
// queued report is dropped.
func (s *Server) Report(r types.CycleReport) {
	s.mu.Lock()
	s.latest = &r
	s.mu.Unlock()

	for {
		select {
		case s.reports <- r:
			return
		default:
		}
		select {
		case <-s.reports:
		default:
		}
	}
}

func (s *Server) startBroadcastLoop() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-s.stopCh:
				return
			case r := <-s.reports:
				s.broadcast(r)
			}
		}
	}()
}

func (s *Server) broadcast(r types.CycleReport) {
	s.mu.RLock()
	if len(s.clients) == 0 {
		s.mu.RUnlock()
		return
	}
	clientList := make([]*clientConn, 0, len(s.clients))
	for _, client := range s.clients {
		clientList = append(clientList, client)
	}
	s.mu.RUnlock()

	msgType := "cycle"
	if r.Failed() {
		msgType = "error"
	}
	msg := wsMessage{
		Type:      msgType,
		SessionID: r.SessionID,
		Time:      time.Now().Unix(),
		Report:    &r,
		Error:     r.Error,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		logging.Warn("WebSocket report marshal failed",
			logging.Field{Key: "cycle", Value: r.Cycle},
			logging.Field{Key: "error", Value: err})
		return
	}

	for _, client := range clientList {
		if err := client.writeMessage(websocket.TextMessage, data); err != nil {
			s.removeClient(client.conn)
			client.conn.Close()
		}
	}
}

func (s *Server) startPingLoop() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		interval := s.getPingInterval()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopCh:
				return
			case <-ticker.C:
				s.pingClients()
				if next := s.getPingInterval(); next != interval {
					interval = next
					ticker.Reset(interval)
				}
			}
		}
	}()
}

// Close stops the background loops and disconnects every subscriber.
func (s *Server) Close() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()

	s.mu.Lock()
	for conn := range s.clients {
		conn.Close()
		delete(s.clients, conn)
	}
	s.mu.Unlock()
}

func (s *Server) getPingInterval() time.Duration {
	s.mu.RLock()
	interval := s.pingInterval
	s.mu.RUnlock()
	if interval <= 0 {
		return 30 * time.Second
	}
	return interval
}

func (s *Server) pingClients() {
	s.mu.RLock()
	clientList := make([]*clientConn, 0, len(s.clients))
	for _, client := range s.clients {
		clientList = append(clientList, client)
	}
	s.mu.RUnlock()

	for _, client := range clientList {
		if err := client.writeMessage(websocket.PingMessage, nil); err != nil {
			s.removeClient(client.conn)
			client.conn.Close()
		}
	}
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, conn)
}

func (s *Server) isAllowedOrigin(origin string, host string) bool {
	if origin == "" {
		return true
	}

	s.mu.RLock()
	allowedOrigins := append([]string(nil), s.allowedOrigins...)
	s.mu.RUnlock()

	if len(allowedOrigins) == 0 {
		return sameOrigin(origin, host)
	}

	originHostValue := types.OriginHost(origin)
	for _, allowed := range allowedOrigins {
		allowed = strings.TrimSpace(allowed)
		switch {
		case allowed == "":
			continue
		case allowed == "*", strings.EqualFold(allowed, origin):
			return true
		case strings.HasPrefix(allowed, "*."):
			suffix := strings.TrimPrefix(allowed, "*.")
			if originHostValue != "" && (originHostValue == suffix || strings.HasSuffix(originHostValue, "."+suffix)) {
				return true
			}
		}
		allowedHost := types.OriginHost(allowed)
		if allowedHost != "" && originHostValue != "" && strings.EqualFold(allowedHost, originHostValue) {
			return true
		}
	}
	return false
}

func sameOrigin(origin string, host string) bool {
	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(types.StripHostPort(parsed.Host), types.StripHostPort(host))
}

type wsMessage struct {
	Type      string             `json:"type"`
	SessionID string             `json:"session_id,omitempty"`
	Time      int64              `json:"time"`
	Report    *types.CycleReport `json:"report,omitempty"`
	Error     string             `json:"error,omitempty"`
}

func (c *clientConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(v)
}

func (c *clientConn) writeMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(messageType, data)
}
