// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"strings"
	"sync"

	"civic-relay-go/internal/model"
	"civic-relay-go/pkg/knowledge"
	"civic-relay-go/pkg/log"
)

// SessionState 表示一个聊天会话的调度状态。
type SessionState string

const (
	StateIdle    SessionState = "idle"
	StateLoading SessionState = "loading"
)

// 后端未返回答案文本时使用的兜底句。
const fallbackAnswerText = "Sorry, I wasn't able to find an answer to that. Please try rephrasing your question."

// 传输失败时返回给用户的一次性提示。
const transientFailureNotice = "The assistant is temporarily unavailable. Your message was kept — please try again."

// ChatSession 是一个用户聊天会话的全部状态：调度状态机加只追加的消息记录。
// 只有 Submit 会写入记录（单写者），其余接口只读。
type ChatSession struct {
	mu         sync.Mutex
	readOnly   bool
	state      SessionState
	transcript []model.Message
}

// State 返回会话当前的调度状态。
func (s *ChatSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transcript 返回会话记录的快照，按插入顺序排列。
func (s *ChatSession) Transcript() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Message, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// SubmitResult 描述一次提交的结果。
// 被守卫条件拒绝的提交 Accepted 为 false，这不是错误。
type SubmitResult struct {
	Accepted         bool           `json:"accepted"`
	UserMessage      *model.Message `json:"userMessage,omitempty"`
	AssistantMessage *model.Message `json:"assistantMessage,omitempty"`
	// Notice 是传输失败时的一次性用户提示，成功时为空。
	Notice string `json:"notice,omitempty"`
}

// ChatService 定义了聊天调度的接口。
type ChatService interface {
	// SessionFor 返回（必要时创建）某个用户的聊天会话。
	SessionFor(userID uint) *ChatSession
	// ReadOnlySession 返回未登录状态下使用的只读会话，任何提交都会被拒绝。
	ReadOnlySession() *ChatSession
	// Submit 处理一次用户提问。所有失败都在内部恢复，不向调用方返回错误。
	Submit(ctx context.Context, session *ChatSession, text string) SubmitResult
	// EndSession 丢弃某个用户的会话记录（偏好变更后需要新会话）。
	EndSession(userID uint)
}

type chatService struct {
	knowledgeClient knowledge.Client
	sessions        sync.Map // key: userID, value: *ChatSession
	readOnly        *ChatSession
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(knowledgeClient knowledge.Client) ChatService {
	return &chatService{
		knowledgeClient: knowledgeClient,
		readOnly:        &ChatSession{readOnly: true, state: StateIdle},
	}
}

// SessionFor 返回用户的会话，首次访问时创建。
func (s *chatService) SessionFor(userID uint) *ChatSession {
	actual, _ := s.sessions.LoadOrStore(userID, &ChatSession{state: StateIdle})
	return actual.(*ChatSession)
}

// ReadOnlySession 返回共享的只读会话。
func (s *chatService) ReadOnlySession() *ChatSession {
	return s.readOnly
}

// EndSession 丢弃用户的会话。
func (s *chatService) EndSession(userID uint) {
	s.sessions.Delete(userID)
}

// BuildConversationPayload 把会话记录投影为后端的会话负载：
// 逐条拍平正文，空消息丢弃（避免污染上下文），角色按
// assistant→assistant、system→system、其余→user 映射，顺序保持不变。
func BuildConversationPayload(transcript []model.Message) []knowledge.MessagePayload {
	payload := make([]knowledge.MessagePayload, 0, len(transcript))
	for _, msg := range transcript {
		content := msg.FlattenText()
		if content == "" {
			continue
		}
		role := "user"
		switch msg.Role {
		case model.RoleAssistant:
			role = "assistant"
		case model.RoleSystem:
			role = "system"
		}
		payload = append(payload, knowledge.MessagePayload{Role: role, Content: content})
	}
	return payload
}

// Submit 处理一次提问。
//
// 守卫条件（全部静默忽略，不算错误）：空白输入、会话正在等待后端响应、只读会话。
// 用户消息在发起网络请求之前就追加进记录，失败时也保留，用户的输入不会丢。
// 发送给后端的 conversation 是追加本条消息之前的历史，本轮提问只放在 user_query
// 字段里，二者不重复计入。
func (s *chatService) Submit(ctx context.Context, session *ChatSession, text string) SubmitResult {
	trimmed := strings.TrimSpace(text)

	session.mu.Lock()
	if trimmed == "" || session.readOnly || session.state == StateLoading {
		session.mu.Unlock()
		return SubmitResult{Accepted: false}
	}

	history := make([]model.Message, len(session.transcript))
	copy(history, session.transcript)

	userMsg := model.NewUserMessage(trimmed)
	session.transcript = append(session.transcript, userMsg)
	session.state = StateLoading
	session.mu.Unlock()

	payload := BuildConversationPayload(history)
	resp, err := s.knowledgeClient.Query(ctx, trimmed, payload)

	session.mu.Lock()
	defer session.mu.Unlock()
	session.state = StateIdle

	if err != nil {
		// 传输失败在本地恢复：记录保持在已追加用户消息的状态，
		// 给出一次性提示，不自动重试。
		log.Errorf("知识后端请求失败: %v", err)
		return SubmitResult{
			Accepted:    true,
			UserMessage: &userMsg,
			Notice:      transientFailureNotice,
		}
	}

	answer := strings.TrimSpace(resp.TextResponse)
	if answer == "" {
		answer = fallbackAnswerText
	}
	citations := knowledge.ExtractCitations(resp.Documents)

	assistantMsg := model.NewAssistantMessage(answer, citations)
	session.transcript = append(session.transcript, assistantMsg)

	return SubmitResult{
		Accepted:         true,
		UserMessage:      &userMsg,
		AssistantMessage: &assistantMsg,
	}
}
