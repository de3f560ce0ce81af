package api

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"deal-eval/backend/internal/pipeline"
)

const wsWriteTimeout = 10 * time.Second

// wsClient wraps a websocket connection with write locking.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// EvaluationNotifier keeps track of active websocket clients and broadcasts
// pipeline events to them. It implements pipeline.Notifier.
type EvaluationNotifier struct {
	mu         sync.Mutex
	clients    map[*wsClient]struct{}
	lastStatus *pipeline.Event
}

// NewEvaluationNotifier constructs a notifier instance.
func NewEvaluationNotifier() *EvaluationNotifier {
	return &EvaluationNotifier{clients: make(map[*wsClient]struct{})}
}

// Register attaches a websocket connection and replays the latest status.
func (n *EvaluationNotifier) Register(conn *websocket.Conn) *wsClient {
	client := &wsClient{conn: conn}
	n.mu.Lock()
	n.clients[client] = struct{}{}
	status := n.lastStatus
	n.mu.Unlock()

	if status != nil {
		_ = client.writeJSON(*status)
	}
	return client
}

// Unregister removes the websocket client from the notifier and closes the socket.
func (n *EvaluationNotifier) Unregister(client *wsClient) {
	if client == nil {
		return
	}
	n.mu.Lock()
	delete(n.clients, client)
	n.mu.Unlock()
	_ = client.conn.Close()
}

// Publish sends the event to all registered websocket clients.
func (n *EvaluationNotifier) Publish(event pipeline.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	n.mu.Lock()
	if event.Type == pipeline.EventStarted || event.Type == pipeline.EventDecision {
		snapshot := event
		n.lastStatus = &snapshot
	}

	for client := range n.clients {
		if err := client.writeJSON(event); err != nil {
			delete(n.clients, client)
			_ = client.conn.Close()
		}
	}
	n.mu.Unlock()
}

// LastStatus returns the most recent started or decision event.
func (n *EvaluationNotifier) LastStatus() *pipeline.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.lastStatus == nil {
		return nil
	}
	copy := *n.lastStatus
	return &copy
}

func (c *wsClient) writeJSON(payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteJSON(payload)
}

func (s *Server) handleEvaluateStream(c *gin.Context) {
	upgrader := websocket.Upgrader{
		HandshakeTimeout:  5 * time.Second,
		EnableCompression: true,
		CheckOrigin: func(r *http.Request) bool {
			if len(s.allowedOrigins) == 0 {
				return true
			}
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			for _, allowed := range s.allowedOrigins {
				if strings.EqualFold(origin, allowed) {
					return true
				}
			}
			return false
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("upgrade websocket")
		return
	}

	client := s.evalNotifier.Register(conn)
	logrus.WithField("remote", conn.RemoteAddr().String()).Info("evaluation websocket connected")
	defer s.evalNotifier.Unregister(client)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithField("remote", conn.RemoteAddr().String()).Info("evaluation websocket closed")
			} else {
				logrus.WithError(err).Warn("evaluation websocket unexpected close")
			}
			break
		}
	}
}
