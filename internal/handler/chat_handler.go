// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"civic-relay-go/internal/model"
	"civic-relay-go/internal/service"
	"civic-relay-go/pkg/knowledge"
	"civic-relay-go/pkg/log"
	"civic-relay-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// ChatHandler 负责处理聊天相关的 HTTP 与 WebSocket 请求。
type ChatHandler struct {
	chatService service.ChatService
	userService service.UserService
	jwtManager  *token.JWTManager
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService, userService service.UserService, jwtManager *token.JWTManager) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		userService: userService,
		jwtManager:  jwtManager,
	}
}

// QueryRequest 定义了聊天提问 API 的请求体结构。
type QueryRequest struct {
	Text string `json:"text"`
}

// Query 处理一次聊天提问。
// 空白输入和重复提交会被调度器静默忽略，返回 accepted=false，不算错误。
func (h *ChatHandler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的请求负载",
		})
		return
	}

	session := h.sessionFromContext(c)
	result := h.chatService.Submit(c.Request.Context(), session, req.Text)

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    result,
	})
}

// TranscriptEntry 是返回给前端的一条会话消息，附带引用标签。
type TranscriptEntry struct {
	Message model.Message  `json:"message"`
	Text    string         `json:"text"`
	Sources []CitationView `json:"sources"`
}

// CitationView 是一条展示用的引用链接。
type CitationView struct {
	URL   string `json:"url"`
	Label string `json:"label"`
}

// GetTranscript 返回当前会话的完整消息记录。
func (h *ChatHandler) GetTranscript(c *gin.Context) {
	session := h.sessionFromContext(c)

	transcript := session.Transcript()
	entries := make([]TranscriptEntry, 0, len(transcript))
	for _, msg := range transcript {
		entry := TranscriptEntry{
			Message: msg,
			Text:    msg.FlattenText(),
			Sources: make([]CitationView, 0),
		}
		for _, part := range msg.Parts {
			if part.IsCitation() {
				entry.Sources = append(entry.Sources, CitationView{
					URL:   part.Text,
					Label: knowledge.CitationLabel(part.Text),
				})
			}
		}
		entries = append(entries, entry)
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data": gin.H{
			"state":      session.State(),
			"transcript": entries,
		},
	})
}

// sessionFromContext 取当前用户的会话；未认证的请求得到只读会话。
func (h *ChatHandler) sessionFromContext(c *gin.Context) *service.ChatSession {
	claims, ok := c.Get("claims")
	if !ok {
		return h.chatService.ReadOnlySession()
	}
	return h.chatService.SessionFor(claims.(*token.CustomClaims).UserID)
}

// GetWebsocketToken 为 WebSocket 握手签发一个短时效 token。
func (h *ChatHandler) GetWebsocketToken(c *gin.Context) {
	claims := c.MustGet("claims").(*token.CustomClaims)

	wsToken, err := h.jwtManager.GenerateShortLivedToken(claims.UserID, claims.Username, claims.Role, 5*time.Minute)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "无法签发 WebSocket token", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": gin.H{"wsToken": wsToken}})
}

// wsFrame 是 WebSocket 连接上发往客户端的一帧。
// 助手回复整体作为单帧下发，不做分块流式传输。
type wsFrame struct {
	Type      string                `json:"type"` // "result" 或 "error"
	Result    *service.SubmitResult `json:"result,omitempty"`
	Message   string                `json:"message,omitempty"`
	Timestamp int64                 `json:"timestamp"`
}

// HandleWebsocket 处理一个传入的 WebSocket 聊天连接。
// 每收到一条文本帧就执行一次调度器提交，并把结果作为单个 JSON 帧回发。
func (h *ChatHandler) HandleWebsocket(c *gin.Context) {
	tokenString := c.Param("token")
	claims, err := h.jwtManager.VerifyToken(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "无效的 token", "data": nil})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	log.Infof("WebSocket 连接已建立，用户: %s", claims.Username)
	session := h.chatService.SessionFor(claims.UserID)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warnf("从 WebSocket 读取消息失败: %v", err)
			break
		}

		result := h.chatService.Submit(c.Request.Context(), session, string(message))
		frame := wsFrame{
			Type:      "result",
			Result:    &result,
			Timestamp: time.Now().UnixMilli(),
		}
		b, _ := json.Marshal(frame)
		if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
			log.Warnf("向 WebSocket 写入消息失败: %v", err)
			break
		}
	}
}
