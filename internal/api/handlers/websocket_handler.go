// server/internal/api/handlers/websocket_handler.go
package handlers

import (
	"net/http"
	"time"

	"garage-repair-api-server/internal/auth"
	"garage-repair-api-server/internal/socket"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Thời gian chờ tối đa cho một tin nhắn từ client.
const pongWait = 30 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebSocketHandler struct {
	Hub    *socket.Hub
	Tokens *auth.TokenManager
	Logger *zap.Logger
}

// ServeWs xử lý các yêu cầu kết nối WebSocket. Token truyền qua query ?token=.
func (h *WebSocketHandler) ServeWs(c *gin.Context) {
	tokenString := c.Query("token")
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Token is required"})
		return
	}

	claims, err := h.Tokens.Parse(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}
	userID := claims.UserID

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Logger.Warn("Failed to upgrade connection", zap.Error(err))
		return
	}

	h.Hub.Register(userID, claims.WorkerID, conn)
	defer func() {
		h.Hub.Unregister(conn)
		conn.Close()
	}()

	// Khi nhận PING từ client thì gia hạn deadline, gorilla/websocket tự gửi PONG.
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPingHandler(func(appData string) error {
		h.Logger.Debug("Received ping, extending deadline", zap.String("user_id", userID))
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
	})

	// Vòng lặp đọc; client chỉ nhận sự kiện, nội dung gửi lên bị bỏ qua.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.Logger.Warn("Unexpected close error", zap.String("user_id", userID), zap.Error(err))
			}
			break
		}
	}
}
