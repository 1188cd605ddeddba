package annotation

import (
	"net/http"
	"sync"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lewtec/rotulador-video/internal/metrics"
)

const (
	eventWriteTimeout = 10 * time.Second
	eventPongTimeout  = 60 * time.Second
	eventPingInterval = 30 * time.Second
	eventBufferSize   = 256
)

type eventClient struct {
	id   string
	conn *websocket.Conn
	send chan Event
}

// EventStream forwards orchestrator events to websocket clients as JSON
// messages {"event": name, "value": ...}. A client that falls behind by more
// than its buffer is disconnected.
type EventStream struct {
	log     logs.Log
	metrics *metrics.Metrics

	upgrader websocket.Upgrader

	unsubscribe func()

	mu      sync.RWMutex
	clients map[string]*eventClient
}

func NewEventStream(log logs.Log, bus *EventBus, m *metrics.Metrics) *EventStream {
	s := &EventStream{
		log:     log,
		metrics: m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: map[string]*eventClient{},
	}
	s.unsubscribe = bus.SubscribeAll(s.broadcast)
	return s
}

// Close detaches the stream from its bus and hangs up on every client
func (s *EventStream) Close() {
	s.unsubscribe()
	s.mu.RLock()
	clients := make([]*eventClient, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()
	for _, c := range clients {
		s.remove(c)
	}
}

func (s *EventStream) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *EventStream) broadcast(ev Event) {
	s.mu.RLock()
	var slow []*eventClient
	for _, c := range s.clients {
		select {
		case c.send <- ev:
		default:
			slow = append(slow, c)
		}
	}
	s.mu.RUnlock()
	for _, c := range slow {
		s.log.Warnf("http: event client %v is not keeping up, disconnecting", c.id)
		s.remove(c)
	}
}

func (s *EventStream) remove(c *eventClient) {
	s.mu.Lock()
	_, ok := s.clients[c.id]
	if ok {
		delete(s.clients, c.id)
		close(c.send)
	}
	s.mu.Unlock()
	if ok && s.metrics != nil {
		s.metrics.EventClients.Add(^uint64(0))
	}
}

func (s *EventStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("http: websocket upgrade failed: %v", err)
		return
	}
	c := &eventClient{id: uuid.NewString(), conn: conn, send: make(chan Event, eventBufferSize)}
	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.EventClients.Add(1)
	}
	s.log.Infof("http: event client %v connected", c.id)

	go s.writePump(c)
	s.readPump(c)
}

// readPump only services control frames; clients have nothing to say
func (s *EventStream) readPump(c *eventClient) {
	defer func() {
		s.remove(c)
		c.conn.Close()
		s.log.Infof("http: event client %v disconnected", c.id)
	}()
	c.conn.SetReadDeadline(time.Now().Add(eventPongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(eventPongTimeout))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warnf("http: event client %v: %v", c.id, err)
			}
			return
		}
	}
}

func (s *EventStream) writePump(c *eventClient) {
	ticker := time.NewTicker(eventPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case ev, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(eventWriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(eventWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
