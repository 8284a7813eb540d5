package api

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// AnalysisEvent describes websocket payloads emitted while an analysis
// job runs.
type AnalysisEvent struct {
	Type       string       `json:"type"`
	JobID      string       `json:"job_id"`
	DecisionID uint         `json:"decision_id"`
	Message    string       `json:"message,omitempty"`
	Result     *AnalysisDTO `json:"result,omitempty"`
	Timestamp  time.Time    `json:"timestamp"`
}

// wsClient wraps a websocket connection with write locking.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// AnalysisNotifier tracks active websocket clients and broadcasts analysis
// events. New clients immediately receive the last known status.
type AnalysisNotifier struct {
	mu         sync.Mutex
	clients    map[*wsClient]struct{}
	lastStatus *AnalysisEvent
}

// NewAnalysisNotifier constructs a notifier instance.
func NewAnalysisNotifier() *AnalysisNotifier {
	return &AnalysisNotifier{clients: make(map[*wsClient]struct{})}
}

// Register attaches a websocket connection and returns a client handle.
func (n *AnalysisNotifier) Register(conn *websocket.Conn) *wsClient {
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

// Unregister removes the websocket client and closes the socket.
func (n *AnalysisNotifier) Unregister(client *wsClient) {
	if client == nil {
		return
	}
	n.mu.Lock()
	delete(n.clients, client)
	n.mu.Unlock()
	_ = client.conn.Close()
}

// Broadcast sends the supplied event to all registered clients. The full
// result payload is kept out of the retained status snapshot.
func (n *AnalysisNotifier) Broadcast(event AnalysisEvent) {
	event.Timestamp = time.Now().UTC()

	n.mu.Lock()
	snapshot := event
	snapshot.Result = nil
	n.lastStatus = &snapshot

	for client := range n.clients {
		if err := client.writeJSON(event); err != nil {
			delete(n.clients, client)
			_ = client.conn.Close()
		}
	}
	n.mu.Unlock()
}

// LastStatus returns a copy of the most recent broadcast status.
func (n *AnalysisNotifier) LastStatus() *AnalysisEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.lastStatus == nil {
		return nil
	}
	status := *n.lastStatus
	return &status
}

func (c *wsClient) writeJSON(payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(payload)
}
