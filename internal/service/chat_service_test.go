package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"civic-relay-go/internal/model"
	"civic-relay-go/internal/service"
	"civic-relay-go/pkg/knowledge"
)

// fakeKnowledgeClient 记录请求并返回预设响应，block 非 nil 时阻塞到通道关闭。
type fakeKnowledgeClient struct {
	mu               sync.Mutex
	calls            int
	lastQuery        string
	lastConversation []knowledge.MessagePayload
	resp             *knowledge.QueryResponse
	err              error
	block            chan struct{}
}

func (f *fakeKnowledgeClient) Query(ctx context.Context, userQuery string, conversation []knowledge.MessagePayload) (*knowledge.QueryResponse, error) {
	f.mu.Lock()
	f.calls++
	f.lastQuery = userQuery
	f.lastConversation = append([]knowledge.MessagePayload{}, conversation...)
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeKnowledgeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestSubmitSuccessAppendsBothMessages(t *testing.T) {
	fake := &fakeKnowledgeClient{
		resp: &knowledge.QueryResponse{
			TextResponse: "Because of Rayleigh scattering.",
			Documents: []knowledge.Document{
				{Metadata: map[string]any{"url": "https://nasa.gov/a"}},
			},
		},
	}
	svc := service.NewChatService(fake)
	session := svc.SessionFor(1)

	result := svc.Submit(context.Background(), session, "Why is the sky blue?")

	if !result.Accepted {
		t.Fatalf("submit should be accepted")
	}
	if result.Notice != "" {
		t.Fatalf("unexpected notice on success: %q", result.Notice)
	}

	transcript := session.Transcript()
	if len(transcript) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(transcript))
	}
	if transcript[0].Role != model.RoleUser || transcript[0].FlattenText() != "Why is the sky blue?" {
		t.Fatalf("unexpected user message: %+v", transcript[0])
	}

	assistant := transcript[1]
	if assistant.Role != model.RoleAssistant {
		t.Fatalf("unexpected assistant role: %s", assistant.Role)
	}
	if len(assistant.Parts) != 2 {
		t.Fatalf("expected text part + citation part, got %+v", assistant.Parts)
	}
	if !assistant.Parts[0].IsText() || assistant.Parts[0].Text != "Because of Rayleigh scattering." {
		t.Fatalf("unexpected text part: %+v", assistant.Parts[0])
	}
	if !assistant.Parts[1].IsCitation() || assistant.Parts[1].Text != "https://nasa.gov/a" {
		t.Fatalf("unexpected citation part: %+v", assistant.Parts[1])
	}
	if session.State() != service.StateIdle {
		t.Fatalf("expected idle state after success, got %s", session.State())
	}
}

func TestSubmitExcludesNewMessageFromConversation(t *testing.T) {
	fake := &fakeKnowledgeClient{resp: &knowledge.QueryResponse{TextResponse: "first answer"}}
	svc := service.NewChatService(fake)
	session := svc.SessionFor(1)

	svc.Submit(context.Background(), session, "first question")
	svc.Submit(context.Background(), session, "second question")

	// 第二次提交时历史应只包含第一轮问答，本轮提问只出现在 user_query 里
	if fake.lastQuery != "second question" {
		t.Fatalf("unexpected user_query: %q", fake.lastQuery)
	}
	if len(fake.lastConversation) != 2 {
		t.Fatalf("expected 2 history entries, got %+v", fake.lastConversation)
	}
	if fake.lastConversation[0].Role != "user" || fake.lastConversation[0].Content != "first question" {
		t.Fatalf("unexpected history[0]: %+v", fake.lastConversation[0])
	}
	if fake.lastConversation[1].Role != "assistant" || fake.lastConversation[1].Content != "first answer" {
		t.Fatalf("unexpected history[1]: %+v", fake.lastConversation[1])
	}
	for _, entry := range fake.lastConversation {
		if entry.Content == "second question" {
			t.Fatalf("new message must not be double-counted in conversation history")
		}
	}
}

func TestSubmitFailureKeepsUserMessageAndRecovers(t *testing.T) {
	fake := &fakeKnowledgeClient{err: errors.New("status 500")}
	svc := service.NewChatService(fake)
	session := svc.SessionFor(1)

	result := svc.Submit(context.Background(), session, "hello?")

	if !result.Accepted {
		t.Fatalf("failed submit is still an accepted submit")
	}
	if result.Notice == "" {
		t.Fatalf("transport failure must surface a notice")
	}
	if result.AssistantMessage != nil {
		t.Fatalf("no assistant message expected on failure")
	}
	if got := len(session.Transcript()); got != 1 {
		t.Fatalf("transcript should keep exactly the user message, got %d entries", got)
	}
	if session.State() != service.StateIdle {
		t.Fatalf("state must return to idle after failure, got %s", session.State())
	}
	if fake.callCount() != 1 {
		t.Fatalf("failures must not be retried, got %d calls", fake.callCount())
	}
}

func TestSubmitGuardsAreSilentNoOps(t *testing.T) {
	fake := &fakeKnowledgeClient{resp: &knowledge.QueryResponse{TextResponse: "x"}}
	svc := service.NewChatService(fake)

	// 空白输入
	session := svc.SessionFor(1)
	if result := svc.Submit(context.Background(), session, "   \n\t "); result.Accepted {
		t.Fatalf("whitespace submit must be ignored")
	}
	if len(session.Transcript()) != 0 {
		t.Fatalf("ignored submit must not touch the transcript")
	}

	// 只读会话
	readOnly := svc.ReadOnlySession()
	if result := svc.Submit(context.Background(), readOnly, "hello"); result.Accepted {
		t.Fatalf("read-only submit must be ignored")
	}
	if fake.callCount() != 0 {
		t.Fatalf("guard rejections must not reach the backend")
	}
}

func TestSubmitWhileLoadingIsRejected(t *testing.T) {
	release := make(chan struct{})
	fake := &fakeKnowledgeClient{
		resp:  &knowledge.QueryResponse{TextResponse: "slow answer"},
		block: release,
	}
	svc := service.NewChatService(fake)
	session := svc.SessionFor(1)

	done := make(chan service.SubmitResult, 1)
	go func() {
		done <- svc.Submit(context.Background(), session, "first")
	}()

	// 等待第一次提交进入 loading 状态
	deadline := time.After(2 * time.Second)
	for session.State() != service.StateLoading {
		select {
		case <-deadline:
			t.Fatalf("first submit never reached loading state")
		case <-time.After(5 * time.Millisecond):
		}
	}

	// 用户消息应在网络调用完成前就已出现在记录里
	if got := len(session.Transcript()); got != 1 {
		t.Fatalf("user message must be appended before the backend resolves, transcript=%d", got)
	}

	// loading 期间的第二次提交被静默拒绝
	if second := svc.Submit(context.Background(), session, "second"); second.Accepted {
		t.Fatalf("submit while loading must be rejected")
	}

	close(release)
	first := <-done
	if !first.Accepted || first.AssistantMessage == nil {
		t.Fatalf("first submit should complete normally: %+v", first)
	}
	if fake.callCount() != 1 {
		t.Fatalf("expected exactly one backend call, got %d", fake.callCount())
	}
	if got := len(session.Transcript()); got != 2 {
		t.Fatalf("expected one user + one assistant message, got %d", got)
	}
}

func TestSubmitUsesFallbackTextWhenResponseEmpty(t *testing.T) {
	fake := &fakeKnowledgeClient{resp: &knowledge.QueryResponse{TextResponse: "   "}}
	svc := service.NewChatService(fake)
	session := svc.SessionFor(1)

	result := svc.Submit(context.Background(), session, "anything")
	if result.AssistantMessage == nil {
		t.Fatalf("expected an assistant message")
	}
	if result.AssistantMessage.FlattenText() == "" {
		t.Fatalf("blank text_response must be replaced by the fallback sentence")
	}
}

func TestBuildConversationPayload(t *testing.T) {
	transcript := []model.Message{
		{Role: model.RoleSystem, Parts: []model.MessagePart{model.TextPart("ground rules")}},
		{Role: model.RoleUser, Parts: []model.MessagePart{model.TextPart(" question ")}},
		// 只有引用、没有正文的消息不应产生任何条目
		{Role: model.RoleAssistant, Parts: []model.MessagePart{model.CitationPart("https://a.example")}},
		{Role: model.RoleAssistant, Parts: []model.MessagePart{model.TextPart("answer"), model.CitationPart("https://b.example")}},
		// 未知角色按 user 处理
		{Role: "tool", Parts: []model.MessagePart{model.TextPart("tool output")}},
	}

	payload := service.BuildConversationPayload(transcript)

	if len(payload) > len(transcript) {
		t.Fatalf("payload may never exceed transcript length")
	}
	want := []knowledge.MessagePayload{
		{Role: "system", Content: "ground rules"},
		{Role: "user", Content: "question"},
		{Role: "assistant", Content: "answer"},
		{Role: "user", Content: "tool output"},
	}
	if len(payload) != len(want) {
		t.Fatalf("expected %d entries, got %+v", len(want), payload)
	}
	for i := range want {
		if payload[i] != want[i] {
			t.Errorf("payload[%d] = %+v, want %+v", i, payload[i], want[i])
		}
	}
	for _, entry := range payload {
		if entry.Content == "" {
			t.Fatalf("payload must never contain empty content")
		}
	}
}
