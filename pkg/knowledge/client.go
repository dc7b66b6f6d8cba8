// Package knowledge 提供了与知识问答后端交互的客户端功能。
package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"civic-relay-go/internal/config"
)

// MessagePayload 表示发送给后端的一条角色消息。
type MessagePayload struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Document 代表后端随答案返回的一篇支撑文档。
// 后端的元数据没有固定的 schema，这里用通用映射承接。
type Document struct {
	ID          string         `json:"id"`
	PageContent string         `json:"page_content"`
	Metadata    map[string]any `json:"metadata"`
}

// UnmarshalJSON 容忍非对象形状的 metadata（数组、数字等），按缺失处理，
// 避免单篇文档的脏元数据导致整个响应解码失败。
func (d *Document) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID          string          `json:"id"`
		PageContent string          `json:"page_content"`
		Metadata    json.RawMessage `json:"metadata"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d.ID = raw.ID
	d.PageContent = raw.PageContent
	d.Metadata = nil
	if len(raw.Metadata) > 0 {
		var m map[string]any
		if err := json.Unmarshal(raw.Metadata, &m); err == nil {
			d.Metadata = m
		}
	}
	return nil
}

// QueryResponse 是后端 /user-query 接口的响应体。
type QueryResponse struct {
	TextResponse string     `json:"text_response"`
	Documents    []Document `json:"documents"`
}

// UnmarshalJSON 对字段级的脏数据做降级：text_response 不是字符串按缺失处理，
// documents 不是文档数组按空处理。整体不是 JSON 对象才算解码失败。
func (r *QueryResponse) UnmarshalJSON(data []byte) error {
	var raw struct {
		TextResponse json.RawMessage `json:"text_response"`
		Documents    json.RawMessage `json:"documents"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.TextResponse = ""
	if len(raw.TextResponse) > 0 {
		var s string
		if err := json.Unmarshal(raw.TextResponse, &s); err == nil {
			r.TextResponse = s
		}
	}
	r.Documents = nil
	if len(raw.Documents) > 0 {
		var docs []Document
		if err := json.Unmarshal(raw.Documents, &docs); err == nil {
			r.Documents = docs
		}
	}
	return nil
}

// Client 定义了知识后端客户端的接口。
type Client interface {
	// Query 向后端发起一次问答请求：user_query 为本轮提问，
	// conversation 为之前的完整历史（不包含本轮提问）。
	Query(ctx context.Context, userQuery string, conversation []MessagePayload) (*QueryResponse, error)
}

type httpClient struct {
	cfg    config.KnowledgeConfig
	client *http.Client
}

// NewClient 根据配置创建一个知识后端客户端。
// 请求超时是有界的，超时视为一次传输失败，由调用方按失败路径处理。
func NewClient(cfg config.KnowledgeConfig) Client {
	config.ApplyKnowledgeDefaults(&cfg)
	return &httpClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

type queryRequest struct {
	UserQuery    string           `json:"user_query"`
	Conversation []MessagePayload `json:"conversation"`
}

// Query 调用后端的 /user-query 接口并解析响应。
func (c *httpClient) Query(ctx context.Context, userQuery string, conversation []MessagePayload) (*QueryResponse, error) {
	if conversation == nil {
		conversation = []MessagePayload{}
	}
	reqBytes, err := json.Marshal(queryRequest{
		UserQuery:    userQuery,
		Conversation: conversation,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/user-query", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call knowledge backend: %w", err)
	}
	defer resp.Body.Close()

	// 任何非 2xx 状态码都视为本次请求的硬失败
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("knowledge backend returned non-2xx status: %s, body: %s", resp.Status, string(bodyBytes))
	}

	var result QueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode knowledge backend response: %w", err)
	}
	return &result, nil
}
