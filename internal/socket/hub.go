// server/internal/socket/hub.go
package socket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait = 10 * time.Second
	// sendBuffer là số tin nhắn tối đa chờ ghi cho một kết nối.
	sendBuffer = 32
)

const (
	// EventRepairOrderUpdated báo cho client tải lại chi tiết đơn.
	EventRepairOrderUpdated = "repair_order_updated"
	// EventRepairItemTransferred chỉ gửi cho thợ vừa nhận việc.
	EventRepairItemTransferred = "repair_item_transferred"
)

// Event là tin nhắn JSON đẩy xuống client.
type Event struct {
	Type    string    `json:"type"`
	OrderID string    `json:"order_id"`
	ItemID  string    `json:"item_id,omitempty"`
	Action  string    `json:"action"`
	At      time.Time `json:"at"`
}

// client là một kết nối; chỉ writePump được ghi lên conn.
type client struct {
	userID   string
	workerID string
	conn     *websocket.Conn
	send     chan []byte
}

// Hub quản lý tất cả các client WebSocket.
type Hub struct {
	// một user có thể mở nhiều tab, mỗi tab là một client.
	clients map[*websocket.Conn]*client
	// mu chỉ bảo vệ map clients, không giữ khi ghi ra mạng.
	mu     sync.Mutex
	logger *zap.Logger
}

// NewHub tạo một Hub mới.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]*client),
		logger:  logger,
	}
}

// Register thêm một client mới vào Hub và chạy goroutine ghi của nó.
// workerID rỗng với các tài khoản không gắn thợ.
func (h *Hub) Register(userID, workerID string, conn *websocket.Conn) {
	c := &client{userID: userID, workerID: workerID, conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.clients[conn] = c
	h.mu.Unlock()
	h.logger.Debug("WebSocket client registered", zap.String("user_id", userID))
	go h.writePump(c)
}

// Unregister xóa một kết nối khỏi Hub.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(conn)
}

// remove phải được gọi khi đang giữ h.mu.
func (h *Hub) remove(conn *websocket.Conn) {
	c, ok := h.clients[conn]
	if !ok {
		return
	}
	delete(h.clients, conn)
	close(c.send)
	h.logger.Debug("WebSocket client unregistered", zap.String("user_id", c.userID))
}

// enqueue không chặn; client đầy hàng đợi bị loại. Phải giữ h.mu.
func (h *Hub) enqueue(c *client, message []byte) {
	select {
	case c.send <- message:
	default:
		h.logger.Warn("WebSocket client too slow, dropping", zap.String("user_id", c.userID))
		h.remove(c.conn)
		c.conn.Close()
	}
}

func (h *Hub) writePump(c *client) {
	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			h.logger.Warn("WebSocket write failed, dropping client", zap.String("user_id", c.userID), zap.Error(err))
			h.Unregister(c.conn)
			c.conn.Close()
			return
		}
	}
}

func encode(ev Event, defaultType string) ([]byte, error) {
	if ev.Type == "" {
		ev.Type = defaultType
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	return json.Marshal(ev)
}

// Broadcast đẩy event tới mọi client đang kết nối.
func (h *Hub) Broadcast(ev Event) {
	message, err := encode(ev, EventRepairOrderUpdated)
	if err != nil {
		h.logger.Error("Failed to encode websocket event", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		h.enqueue(c, message)
	}
}

// SendToWorker gửi event tới các kết nối của tài khoản gắn với thợ workerID.
// Thợ đang offline thì bỏ qua. Trả về số kết nối đã nhận.
func (h *Hub) SendToWorker(workerID string, ev Event) int {
	if workerID == "" {
		return 0
	}
	message, err := encode(ev, EventRepairItemTransferred)
	if err != nil {
		h.logger.Error("Failed to encode websocket event", zap.Error(err))
		return 0
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, c := range h.clients {
		if c.workerID == workerID {
			h.enqueue(c, message)
			n++
		}
	}
	return n
}

// Count trả về số kết nối đang mở.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
