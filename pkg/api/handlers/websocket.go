package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/goclaw/sigmux/pkg/logger"
	"github.com/goclaw/sigmux/pkg/signals"
)

const (
	defaultMaxConnections = 100
	defaultPingInterval   = 30 * time.Second
	defaultPongTimeout    = 10 * time.Second
	wsWriteTimeout        = 10 * time.Second
	clientOutboxSize      = 32
	maxInboundFrameBytes  = 1 << 20
)

// WebSocketConfig sets the limits and origin policy for the event stream.
type WebSocketConfig struct {
	MaxConnections int
	PingInterval   time.Duration
	PongTimeout    time.Duration
	AllowedOrigins []string
}

// EventStreamMetrics tracks websocket client counts and dropped sends.
type EventStreamMetrics interface {
	IncWebSocketClients()
	DecWebSocketClients()
	RecordWebSocketDrop()
}

// EventMessage is the frame format sent to websocket clients.
type EventMessage struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// controlMessage is what clients may send upstream. Subscribing to one
// or more kinds narrows the feed; with no subscriptions a client
// receives everything.
type controlMessage struct {
	Type    string         `json:"type"`
	Kind    string         `json:"kind,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// streamClient is one connected websocket consumer. The outbox is
// closed exactly once, always while the owning manager holds its
// write lock, so broadcast sends under the read lock cannot race it.
type streamClient struct {
	conn   *websocket.Conn
	outbox chan []byte

	mu    sync.RWMutex
	kinds map[string]struct{}

	stop sync.Once
}

func newStreamClient(conn *websocket.Conn) *streamClient {
	return &streamClient{
		conn:   conn,
		outbox: make(chan []byte, clientOutboxSize),
		kinds:  make(map[string]struct{}),
	}
}

func (c *streamClient) shutdown() {
	c.stop.Do(func() {
		close(c.outbox)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

func (c *streamClient) extendReadDeadline(idle time.Duration) error {
	return c.conn.SetReadDeadline(time.Now().Add(idle))
}

func (c *streamClient) addKind(kind string) {
	if kind == "" {
		return
	}
	c.mu.Lock()
	c.kinds[kind] = struct{}{}
	c.mu.Unlock()
}

func (c *streamClient) removeKind(kind string) {
	if kind == "" {
		return
	}
	c.mu.Lock()
	delete(c.kinds, kind)
	c.mu.Unlock()
}

// wants reports whether an event tagged with kind should reach this
// client. An empty subscription set means "everything"; a kindless
// event only matches unfiltered clients.
func (c *streamClient) wants(kind string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.kinds) == 0 {
		return true
	}
	if kind == "" {
		return false
	}
	_, ok := c.kinds[kind]
	return ok
}

// ConnectionManager tracks the live websocket clients and fans event
// frames out to them.
type ConnectionManager struct {
	mu      sync.RWMutex
	clients map[*streamClient]struct{}
	limit   int
	metrics EventStreamMetrics
}

// NewConnectionManager caps concurrent clients at maxConnections.
// metrics may be nil.
func NewConnectionManager(maxConnections int, metrics EventStreamMetrics) *ConnectionManager {
	if maxConnections <= 0 {
		maxConnections = defaultMaxConnections
	}
	return &ConnectionManager{
		clients: make(map[*streamClient]struct{}),
		limit:   maxConnections,
		metrics: metrics,
	}
}

// Register adds a client, failing when the connection cap is reached.
func (m *ConnectionManager) Register(client *streamClient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.clients) >= m.limit {
		return errors.New("event stream client limit reached")
	}
	m.clients[client] = struct{}{}
	if m.metrics != nil {
		m.metrics.IncWebSocketClients()
	}
	return nil
}

// Unregister drops a client and closes its connection. Both pumps call
// it on exit; the second call finds nothing left to do.
func (m *ConnectionManager) Unregister(client *streamClient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, live := m.clients[client]
	if !live {
		return
	}
	delete(m.clients, client)
	client.shutdown()
	if m.metrics != nil {
		m.metrics.DecWebSocketClients()
	}
}

// Count returns the number of live clients.
func (m *ConnectionManager) Count() int {
	m.mu.RLock()
	n := len(m.clients)
	m.mu.RUnlock()
	return n
}

// CanAccept reports whether one more connection fits under the cap.
func (m *ConnectionManager) CanAccept() bool {
	m.mu.RLock()
	free := m.limit - len(m.clients)
	m.mu.RUnlock()
	return free > 0
}

// Broadcast sends the event to every client whose subscription matches.
// Events without a timestamp are stamped before marshaling. A client
// with a full outbox is evicted instead of stalling the producer;
// eviction happens after the fan-out pass because Unregister needs the
// write lock.
func (m *ConnectionManager) Broadcast(event EventMessage) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	frame, err := json.Marshal(event)
	if err != nil {
		return err
	}
	kind := eventKind(event.Payload)

	var stalled []*streamClient
	m.mu.RLock()
	for client := range m.clients {
		if !client.wants(kind) {
			continue
		}
		select {
		case client.outbox <- frame:
		default:
			stalled = append(stalled, client)
		}
	}
	m.mu.RUnlock()

	for _, client := range stalled {
		if m.metrics != nil {
			m.metrics.RecordWebSocketDrop()
		}
		m.Unregister(client)
	}
	return nil
}

// Close disconnects every client.
func (m *ConnectionManager) Close() {
	m.mu.Lock()
	for client := range m.clients {
		client.shutdown()
		if m.metrics != nil {
			m.metrics.DecWebSocketClients()
		}
	}
	clear(m.clients)
	m.mu.Unlock()
}

// WebSocketHandler serves the /events stream.
type WebSocketHandler struct {
	manager      *ConnectionManager
	log          logger.Logger
	pingInterval time.Duration
	pongTimeout  time.Duration
	upgrader     websocket.Upgrader
}

// NewWebSocketHandler builds the event stream endpoint. metrics may be
// nil.
func NewWebSocketHandler(log logger.Logger, cfg WebSocketConfig, metrics EventStreamMetrics) *WebSocketHandler {
	pingEvery, pongWait := cfg.PingInterval, cfg.PongTimeout
	if pingEvery <= 0 {
		pingEvery = defaultPingInterval
	}
	if pongWait <= 0 {
		pongWait = defaultPongTimeout
	}

	origins := append([]string(nil), cfg.AllowedOrigins...)
	return &WebSocketHandler{
		manager:      NewConnectionManager(cfg.MaxConnections, metrics),
		log:          log,
		pingInterval: pingEvery,
		pongTimeout:  pongWait,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return wsOriginAllowed(r, origins)
			},
		},
	}
}

func (h *WebSocketHandler) logWarn(msg string, args ...any) {
	if h.log != nil {
		h.log.Warn(msg, args...)
	}
}

// closeFrame tells the peer why the connection is ending. Send failures
// are ignored; the TCP close that follows is the real teardown.
func closeFrame(conn *websocket.Conn, code int, reason string) {
	frame := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, frame, time.Now().Add(wsWriteTimeout))
}

// ServeHTTP upgrades the request and runs the client until either side
// disconnects.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		http.Error(w, "event stream requires a websocket handshake", http.StatusBadRequest)
		return
	}
	if !h.manager.CanAccept() {
		http.Error(w, "event stream is at client capacity", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written its own error response.
		h.logWarn("websocket upgrade failed", "error", err)
		return
	}

	client := newStreamClient(conn)
	if err := h.manager.Register(client); err != nil {
		// Lost the race for the last slot between CanAccept and here.
		closeFrame(conn, websocket.CloseTryAgainLater, "client capacity reached")
		_ = conn.Close()
		return
	}

	go h.writeLoop(client)
	h.readLoop(client)
}

// readLoop consumes control frames until the connection dies. Any
// inbound traffic, not just pongs, counts as liveness.
func (h *WebSocketHandler) readLoop(client *streamClient) {
	defer h.manager.Unregister(client)

	idleLimit := h.pingInterval + h.pongTimeout
	client.conn.SetReadLimit(maxInboundFrameBytes)
	_ = client.extendReadDeadline(idleLimit)
	client.conn.SetPongHandler(func(string) error {
		return client.extendReadDeadline(idleLimit)
	})

	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logWarn("websocket read error", "error", err)
			}
			return
		}
		_ = client.extendReadDeadline(idleLimit)
		h.applyControl(client, data)
	}
}

// writeLoop drains the outbox and keeps the connection alive with
// pings. A closed outbox means the client was unregistered; say
// goodbye properly before dropping the TCP connection.
func (h *WebSocketHandler) writeLoop(client *streamClient) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()
	defer h.manager.Unregister(client)

	for {
		select {
		case frame, ok := <-client.outbox:
			if !ok {
				closeFrame(client.conn, websocket.CloseNormalClosure, "")
				return
			}
			_ = client.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := client.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			if err := client.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		}
	}
}

// applyControl interprets a client frame. Unknown types and malformed
// JSON are ignored; the stream is one-way except for filtering.
func (h *WebSocketHandler) applyControl(client *streamClient, raw []byte) {
	var msg controlMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}

	kind := strings.TrimSpace(msg.Kind)
	if kind == "" && msg.Payload != nil {
		if v, ok := msg.Payload["kind"].(string); ok {
			kind = strings.TrimSpace(v)
		}
	}
	// Canonicalize known kind spellings so subscriptions match the
	// names used in broadcast payloads. Unknown names stay as given
	// and simply never match.
	if kind != "" {
		if parsed, err := signals.ParseKind(kind); err == nil {
			kind = parsed.String()
		}
	}

	switch strings.ToLower(strings.TrimSpace(msg.Type)) {
	case "subscribe":
		client.addKind(kind)
	case "unsubscribe":
		client.removeKind(kind)
	}
}

// Broadcast fans an event out to every matching websocket client,
// stamping the timestamp when the caller left it zero.
func (h *WebSocketHandler) Broadcast(event EventMessage) error {
	return h.manager.Broadcast(event)
}

// Close disconnects all websocket clients.
func (h *WebSocketHandler) Close() {
	h.manager.Close()
}

// eventKind pulls the signal kind out of an event payload, when it has
// one, for subscription matching.
func eventKind(payload any) string {
	switch v := payload.(type) {
	case map[string]any:
		if kind, ok := v["kind"].(string); ok {
			return kind
		}
	case map[string]string:
		return v["kind"]
	}
	return ""
}

// wsOriginAllowed mirrors browser CORS rules for the upgrade request:
// an allow-listed or same-host origin passes, anything else is refused.
func wsOriginAllowed(r *http.Request, origins []string) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		// Non-browser clients send no Origin header.
		return true
	}
	for _, allowed := range origins {
		if allowed == "*" || strings.EqualFold(strings.TrimSpace(allowed), origin) {
			return true
		}
	}
	// Unlisted origins still pass when they point back at this host.
	u, err := url.Parse(origin)
	return err == nil && strings.EqualFold(u.Host, r.Host)
}
