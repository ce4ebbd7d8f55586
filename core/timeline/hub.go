package timeline

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"geojournal/logger"
	"geojournal/model"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 64
)

// ErrHubStopped is returned when broadcasting after Stop.
var ErrHubStopped = errors.New("timeline hub stopped")

// MessageType 消息类型
type MessageType string

const (
	MsgTypeEntry MessageType = "entry"
	MsgTypeClear MessageType = "clear"
)

// Message is what subscribers receive.
type Message struct {
	Type      MessageType          `json:"type"`
	Entry     *model.EntryResponse `json:"entry,omitempty"`
	HTML      string               `json:"html,omitempty"`
	Timestamp int64                `json:"timestamp"`
}

// Subscriber is one /ws/timeline connection.
type Subscriber struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub fans timeline changes out to WebSocket subscribers. It is a Renderer.
type Hub struct {
	subscribers map[*Subscriber]bool
	register    chan *Subscriber
	unregister  chan *Subscriber
	broadcast   chan []byte
	done        chan struct{}
	stopOnce    sync.Once
	mu          sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[*Subscriber]bool),
		register:    make(chan *Subscriber),
		unregister:  make(chan *Subscriber),
		broadcast:   make(chan []byte, 256),
		done:        make(chan struct{}),
	}
}

// Run 启动 Hub 主循环
func (h *Hub) Run() {
	for {
		select {
		case s := <-h.register:
			h.mu.Lock()
			h.subscribers[s] = true
			h.mu.Unlock()
			logger.Debug("timeline subscriber registered", logger.Int("subscribers", h.Count()))

		case s := <-h.unregister:
			h.remove(s)

		case msg := <-h.broadcast:
			h.fanOut(msg)

		case <-h.done:
			h.mu.Lock()
			for s := range h.subscribers {
				close(s.send)
			}
			h.subscribers = make(map[*Subscriber]bool)
			h.mu.Unlock()
			return
		}
	}
}

// Stop 停止 Hub
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Count is the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

func (h *Hub) remove(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[s]; ok {
		delete(h.subscribers, s)
		close(s.send)
	}
}

func (h *Hub) fanOut(msg []byte) {
	h.mu.RLock()
	list := make([]*Subscriber, 0, len(h.subscribers))
	for s := range h.subscribers {
		list = append(list, s)
	}
	h.mu.RUnlock()

	for _, s := range list {
		select {
		case s.send <- msg:
		default:
			// slow subscriber
			h.remove(s)
		}
	}
}

func (h *Hub) publish(ctx context.Context, msg *Message) error {
	select {
	case <-h.done:
		return ErrHubStopped
	default:
	}

	msg.Timestamp = time.Now().UnixMilli()
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- data:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) publishEntry(ctx context.Context, entry *model.Entry) error {
	html, err := RenderEntryHTML(entry)
	if err != nil {
		return err
	}
	resp := entry.ToResponse()
	return h.publish(ctx, &Message{Type: MsgTypeEntry, Entry: &resp, HTML: string(html)})
}

func (h *Hub) AddTextEntry(ctx context.Context, entry *model.Entry) error {
	return h.publishEntry(ctx, entry)
}

func (h *Hub) AddAudioEntry(ctx context.Context, entry *model.Entry) error {
	return h.publishEntry(ctx, entry)
}

func (h *Hub) Clear(ctx context.Context) error {
	return h.publish(ctx, &Message{Type: MsgTypeClear})
}

// Serve registers conn and pumps messages until the peer goes away.
func (h *Hub) Serve(conn *websocket.Conn) {
	s := &Subscriber{hub: h, conn: conn, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- s:
	case <-h.done:
		conn.Close()
		return
	}
	go s.writePump()
	s.readPump()
}

// readPump only services control frames; subscribers never send data.
func (s *Subscriber) readPump() {
	defer func() {
		select {
		case s.hub.unregister <- s:
		case <-s.hub.done:
		}
		s.conn.Close()
	}()

	s.conn.SetReadLimit(512)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("timeline websocket read error", logger.ErrorField(err))
			}
			return
		}
	}
}

func (s *Subscriber) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case message, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
